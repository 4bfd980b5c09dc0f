//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package filemap

// Stats summarizes the finalized files of a directory. LivePercent is the
// share of live among stored objects, it is 100 if nothing is stored.
type Stats struct {
	LiveObjects   uint64
	StoredObjects uint64
	DeadObjects   uint64
	LivePercent   uint8
	Files         int
	TotalFileSize uint64
}

// Stats is computed without any claims, concurrent changes may or may not
// be reflected.
func (d *Directory) Stats() Stats {
	var s Stats
	d.entries.rangeAll(func(_ uint64, rec *FileRecord) bool {
		metadata := rec.Metadata()
		if metadata == nil {
			return true
		}

		s.Files++
		s.StoredObjects += metadata.PresentObjects
		s.TotalFileSize += metadata.FileSize
		if live := rec.LiveCount(); live > 0 {
			s.LiveObjects += uint64(live)
		}
		return true
	})

	if s.LiveObjects < s.StoredObjects {
		s.DeadObjects = s.StoredObjects - s.LiveObjects
	}
	s.LivePercent = 100
	if s.StoredObjects > 0 {
		s.LivePercent = uint8(s.LiveObjects * 100 / s.StoredObjects)
	}

	d.metrics.Stats(s)
	return s
}

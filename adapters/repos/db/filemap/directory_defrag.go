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

import (
	"github.com/weaviate/logstore/usecases/config"
)

// DefragBuckets groups the claimed defragmentation candidates by
// generation. Within a bucket files are in ascending position order.
type DefragBuckets [MaxGeneration + 1][]*FileRecord

// Len returns the number of candidates across all generations.
func (b *DefragBuckets) Len() int {
	n := 0
	for _, bucket := range b {
		n += len(bucket)
	}
	return n
}

// FilesToDefrag claims every finalized file which is either mostly dead or
// small enough to be merged with others. Files claimed by someone else are
// skipped. The claims are held by the returned guard, the caller must
// release it once the rewrite is complete or abandoned.
func (d *Directory) FilesToDefrag(cfg config.Config) (DefragBuckets, *ClaimGuard) {
	var buckets DefragBuckets
	guard := newClaimGuard(d.logger)

	minFiles := cfg.MinCompactionFiles
	if minFiles == 0 {
		minFiles = 1
	}

	for _, rec := range d.snapshot() {
		metadata := rec.Metadata()
		if metadata == nil {
			continue
		}

		live := rec.LiveCount()
		if live <= 0 {
			// empty files are left to PruneEmptyFiles
			continue
		}

		lowLiveRatio := metadata.PresentObjects > 0 &&
			uint64(live)*100/metadata.PresentObjects < uint64(cfg.FileCompactionPercent)
		small := metadata.FileSize/minFiles < cfg.TargetFileSize
		if !lowLiveRatio && !small {
			continue
		}

		if !rec.tryClaim() {
			d.metrics.ClaimConflict("defrag")
			continue
		}

		guard.add(rec)
		buckets[rec.generation] = append(buckets[rec.generation], rec)
		d.metrics.DefragCandidate(rec.generation)
	}

	if guard.Len() > 0 {
		d.logger.WithField("action", "filemap_defrag").
			WithField("candidates", guard.Len()).
			Debug("claimed files for defragmentation")
	} else {
		d.logger.WithField("action", "filemap_defrag").
			Trace("no file eligible for defragmentation")
	}

	return buckets, guard
}

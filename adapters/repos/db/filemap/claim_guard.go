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
	"sync"

	"github.com/sirupsen/logrus"
)

// ClaimGuard owns the rewrite claims of a set of files. Release gives all of
// them back, exactly once, no matter how often it is called. Callers should
// defer it right after obtaining the guard.
type ClaimGuard struct {
	logger  logrus.FieldLogger
	records []*FileRecord
	once    sync.Once
}

func newClaimGuard(logger logrus.FieldLogger, records ...*FileRecord) *ClaimGuard {
	return &ClaimGuard{logger: logger, records: records}
}

func (g *ClaimGuard) add(rec *FileRecord) {
	g.records = append(g.records, rec)
}

// Records returns the files owned by this guard.
func (g *ClaimGuard) Records() []*FileRecord {
	if g == nil {
		return nil
	}
	return g.records
}

func (g *ClaimGuard) Len() int {
	if g == nil {
		return 0
	}
	return len(g.records)
}

func (g *ClaimGuard) Release() {
	if g == nil {
		return
	}
	g.once.Do(func() {
		for _, rec := range g.records {
			if !rec.releaseClaim() {
				corrupted(g.logger, "claim_release",
					"claim was released by someone other than its owner",
					rec.location)
			}
		}
	})
}

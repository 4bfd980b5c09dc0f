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
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	enterrors "github.com/weaviate/logstore/entities/errors"
)

// SyncAll fsyncs every file which is not yet known to be durable. It
// returns true if at least one file was fsynced. Files still being written
// without an open handle have nothing to fsync yet and stay pending. If any
// fsync fails no file is marked as synced, so the next call retries all of
// them.
func (d *Directory) SyncAll() (bool, error) {
	var pending []*FileRecord
	d.entries.rangeAll(func(_ uint64, rec *FileRecord) bool {
		// the reference keeps the handle open if the file is pruned meanwhile
		if !rec.Synced() && rec.acquire() {
			pending = append(pending, rec)
		}
		return true
	})
	if len(pending) == 0 {
		return false, nil
	}

	start := time.Now()
	eg := enterrors.NewErrorGroupWrapper(d.logger)
	eg.SetLimit(d.syncConcurrency)

	synced := make([]bool, len(pending))
	var errs *multierror.Error
	var errsLock sync.Mutex
	for i, rec := range pending {
		eg.Go(func() error {
			defer d.releaseSynced(rec)

			ok, err := rec.sync()
			if err != nil {
				errsLock.Lock()
				errs = multierror.Append(errs, errors.Wrapf(err, "fsync file at %s", rec.location))
				errsLock.Unlock()
				return nil
			}
			synced[i] = ok
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return false, err
	}
	if err := errs.ErrorOrNil(); err != nil {
		d.logger.WithField("action", "filemap_sync").
			WithField("files", len(pending)).
			WithError(err).
			Error("fsync files")
		return false, err
	}

	count := 0
	for i, rec := range pending {
		if synced[i] {
			rec.synced.Store(true)
			count++
		}
	}
	if count == 0 {
		return false, nil
	}
	d.metrics.SyncDuration(start)

	d.logger.WithField("action", "filemap_sync").
		WithField("files", count).
		WithField("took", time.Since(start)).
		Debug("synced files")
	return true, nil
}

func (d *Directory) releaseSynced(rec *FileRecord) {
	if err := rec.release(); err != nil {
		d.logger.WithField("action", "filemap_sync").
			WithField("location", rec.location).
			WithError(err).
			Warn("close released file")
	}
}

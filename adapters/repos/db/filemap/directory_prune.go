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
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/weaviate/logstore/entities/diskio"
	"github.com/weaviate/logstore/entities/diskloc"
)

// RemoveImmediately is the DeletionScheduler used when none is configured.
// It unlinks the file right away and syncs the parent directory.
type RemoveImmediately struct{}

func (RemoveImmediately) Schedule(_ diskloc.DiskLocation, path, _ string) error {
	if _, err := diskio.RemoveIfExists(path); err != nil {
		return err
	}
	return diskio.FsyncDir(path)
}

// PruneEmptyFiles removes every finalized file without live objects from
// the directory and hands it to the deletion scheduler. Files claimed by
// someone else are skipped. A file whose deletion cannot be scheduled stays
// in the directory and the error is returned alongside the number of files
// which were pruned.
func (d *Directory) PruneEmptyFiles() (int, error) {
	guard := newClaimGuard(d.logger)
	defer guard.Release()

	var candidates []*FileRecord
	for _, rec := range d.snapshot() {
		if !rec.Finalized() || rec.LiveCount() != 0 {
			continue
		}
		if !rec.tryClaim() {
			d.metrics.ClaimConflict("prune")
			continue
		}
		guard.add(rec)

		// counts only decrease, a racing decrement can only have underflowed
		if live := rec.LiveCount(); live != 0 {
			corrupted(d.logger, "prune_empty_files",
				fmt.Sprintf("live count changed to %d on an empty file", live),
				rec.location)
		}
		candidates = append(candidates, rec)
	}

	if len(candidates) == 0 {
		return 0, nil
	}

	if d.validate {
		locs := make([]diskloc.DiskLocation, len(candidates))
		for i, rec := range candidates {
			locs[i] = rec.location
		}
		d.VerifyFilesUninhabited(locs)
	}

	var errs *multierror.Error
	pruned := 0
	for _, rec := range candidates {
		path, _ := rec.Path()
		if err := d.scheduler.Schedule(rec.location, path, ReasonEmpty); err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err,
				"schedule deletion of empty file %q", path))
			continue
		}

		d.remove("prune", rec)
		pruned++

		d.logger.WithField("action", "filemap_prune").
			WithField("location", rec.location).
			WithField("path", path).
			Debug("pruned empty file")
	}

	d.metrics.Pruned(pruned)
	return pruned, errs.ErrorOrNil()
}

// VerifyFileUninhabited panics if the location index still references an
// object in the file starting at loc. It is a no-op unless deletion
// validation is enabled and a location index is configured.
func (d *Directory) VerifyFileUninhabited(loc diskloc.DiskLocation) {
	d.VerifyFilesUninhabited([]diskloc.DiskLocation{loc})
}

// VerifyFilesUninhabited checks several files in a single pass over the
// location index.
func (d *Directory) VerifyFilesUninhabited(locs []diskloc.DiskLocation) {
	if !d.validate || d.index == nil || len(locs) == 0 {
		return
	}

	files := make(map[*FileRecord]struct{}, len(locs))
	for _, loc := range locs {
		files[d.exact("verify_file_uninhabited", loc)] = struct{}{}
	}

	d.index.Range(func(id ObjectID, objLoc diskloc.DiskLocation) bool {
		rec := d.lookup(objLoc)
		if rec == nil {
			return true
		}
		if _, ok := files[rec]; ok {
			corrupted(d.logger, "verify_file_uninhabited",
				fmt.Sprintf("object %s is still live in a file about to be deleted", id),
				rec.location, objLoc)
		}
		return true
	})
}

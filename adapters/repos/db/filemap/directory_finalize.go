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

	"github.com/pkg/errors"
	"github.com/weaviate/logstore/entities/diskloc"
)

// FinalizeFam completes a file registered by Insert. subtractFromLen
// objects of the file were superseded while it was being written and are
// not live anymore.
func (d *Directory) FinalizeFam(loc diskloc.DiskLocation, metadata Metadata,
	subtractFromLen uint64, newPath string,
) {
	const op = "finalize_fam"

	rec := d.exact(op, loc)
	if rec.path.Load() != nil {
		corrupted(d.logger, op, "file was already finalized", loc)
	}
	if subtractFromLen > metadata.PresentObjects {
		corrupted(d.logger, op, fmt.Sprintf(
			"cannot subtract %d objects from a file with %d present",
			subtractFromLen, metadata.PresentObjects), loc)
	}

	if !rec.metadata.CompareAndSwap(nil, &metadata) {
		corrupted(d.logger, op, "metadata was installed twice", loc)
	}

	live, ok := rec.subtractLive(subtractFromLen)
	if !ok {
		corrupted(d.logger, op, fmt.Sprintf(
			"live count underflow to %d after subtracting %d", live, subtractFromLen), loc)
	}
	if uint64(live) > metadata.PresentObjects {
		corrupted(d.logger, op, fmt.Sprintf(
			"%d live objects in a file with %d present", live, metadata.PresentObjects), loc)
	}

	// the path goes last, prune only looks at files which have one
	if !rec.path.CompareAndSwap(nil, &newPath) {
		corrupted(d.logger, op, "path was installed twice", loc)
	}

	d.logger.WithField("action", "filemap_finalize").
		WithField("location", loc).
		WithField("path", newPath).
		WithField("live", live).
		Debug("finalized file")
}

// DeletePartiallyInstalledFam rolls back an Insert whose file never made it
// to its final path. The temporary file is handed to the deletion
// scheduler. If that fails the file stays registered and the error is
// returned.
func (d *Directory) DeletePartiallyInstalledFam(loc diskloc.DiskLocation, tmpPath string) error {
	const op = "delete_partially_installed_fam"

	rec := d.exact(op, loc)
	if rec.path.Load() != nil {
		corrupted(d.logger, op, "file was already installed", loc)
	}

	if err := d.scheduler.Schedule(loc, tmpPath, ReasonPartial); err != nil {
		return errors.Wrapf(err, "schedule deletion of partially installed file %q", tmpPath)
	}

	if !rec.path.CompareAndSwap(nil, &tmpPath) {
		corrupted(d.logger, op, "file was installed concurrently", loc)
	}
	rec.liveCount.Store(0)
	d.remove("rollback", rec)

	d.logger.WithField("action", "filemap_rollback").
		WithField("location", loc).
		WithField("path", tmpPath).
		Info("removed partially installed file")
	return nil
}

// DecrementEvacuatedFams accounts for objects which a rewrite copied into
// the file at newBase. Each old file loses one live object per entry.
func (d *Directory) DecrementEvacuatedFams(newBase diskloc.DiskLocation, replaced []Evacuation) {
	const op = "decrement_evacuated_fams"

	for _, ev := range replaced {
		rec := d.lookup(ev.OldLocation)
		if rec == nil {
			corrupted(d.logger, op, fmt.Sprintf(
				"no file covers the old location of object %s", ev.ID),
				ev.OldLocation, newBase)
		}
		if rec.location.Lsn() == newBase.Lsn() {
			corrupted(d.logger, op, fmt.Sprintf(
				"object %s was evacuated into the file it came from", ev.ID),
				ev.OldLocation, newBase)
		}

		if live, ok := rec.subtractLive(1); !ok {
			corrupted(d.logger, op, fmt.Sprintf(
				"live count underflow to %d evacuating object %s", live, ev.ID),
				rec.location, ev.OldLocation)
		}
	}
}

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
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/logstore/entities/diskloc"
)

func TestDirectory_FinalizeFam(t *testing.T) {
	cfg := testConfig()

	t.Run("installs metadata and path", func(t *testing.T) {
		d := newTestDirectory(t, cfg)
		loc, guard := d.Insert(nil, 100, 8, 0, false, cfg, nil)
		defer guard.Release()

		meta := Metadata{PresentObjects: 8, FileSize: 100, TrailerOffset: 90}
		d.FinalizeFam(loc, meta, 3, "/data/file.seg")

		rec := d.FamForLocation(loc)
		assert.True(t, rec.Finalized())
		assert.Equal(t, &meta, rec.Metadata())
		path, ok := rec.Path()
		assert.True(t, ok)
		assert.Equal(t, "/data/file.seg", path)
		assert.Equal(t, int64(5), rec.LiveCount())
	})

	t.Run("twice is corruption", func(t *testing.T) {
		d := newTestDirectory(t, cfg)
		loc, guard := d.Insert(nil, 100, 8, 0, false, cfg, nil)
		defer guard.Release()
		d.FinalizeFam(loc, Metadata{PresentObjects: 8}, 0, "a")

		requireCorruption(t, "finalize_fam", func() {
			d.FinalizeFam(loc, Metadata{PresentObjects: 8}, 0, "a")
		})
		assert.Equal(t, int64(8), d.FamForLocation(loc).LiveCount())
	})

	t.Run("subtracting more than present is corruption", func(t *testing.T) {
		d := newTestDirectory(t, cfg)
		loc, guard := d.Insert(nil, 100, 8, 0, false, cfg, nil)
		defer guard.Release()

		requireCorruption(t, "finalize_fam", func() {
			d.FinalizeFam(loc, Metadata{PresentObjects: 8}, 9, "a")
		})
	})

	t.Run("more live than present is corruption", func(t *testing.T) {
		d := newTestDirectory(t, cfg)
		loc, guard := d.Insert(nil, 100, 8, 0, false, cfg, nil)
		defer guard.Release()

		requireCorruption(t, "finalize_fam", func() {
			d.FinalizeFam(loc, Metadata{PresentObjects: 4}, 1, "a")
		})
	})

	t.Run("unknown location is corruption", func(t *testing.T) {
		d := newTestDirectory(t, cfg)
		loc, guard := d.Insert(nil, 100, 8, 0, false, cfg, nil)
		defer guard.Release()

		// inside the range, but not its start
		requireCorruption(t, "finalize_fam", func() {
			d.FinalizeFam(loc.Add(1), Metadata{PresentObjects: 8}, 0, "a")
		})
	})
}

func TestDirectory_DeletePartiallyInstalledFam(t *testing.T) {
	cfg := testConfig()

	t.Run("removes the file and schedules the temporary path", func(t *testing.T) {
		scheduler := &recordingScheduler{}
		d := newTestDirectory(t, cfg, WithDeletionScheduler(scheduler))
		loc, guard := d.Insert(nil, 100, 8, 0, true, cfg, nil)
		rec := guard.Records()[0]

		require.NoError(t, d.DeletePartiallyInstalledFam(loc, "/data/file.seg.tmp"))
		guard.Release()

		assert.Zero(t, d.Len())
		assert.Zero(t, rec.LiveCount())
		assert.Equal(t, []string{"/data/file.seg.tmp"}, scheduler.paths())
		assert.Equal(t, ReasonPartial, scheduler.scheduled[0].reason)
		requireCorruption(t, "fam_for_location", func() { d.FamForLocation(loc) })
	})

	t.Run("scheduling failure keeps the file", func(t *testing.T) {
		scheduler := &recordingScheduler{failFor: map[string]error{
			"tmp": errors.New("read-only file system"),
		}}
		d := newTestDirectory(t, cfg, WithDeletionScheduler(scheduler))
		loc, guard := d.Insert(nil, 100, 8, 0, true, cfg, nil)
		defer guard.Release()

		err := d.DeletePartiallyInstalledFam(loc, "tmp")
		require.Error(t, err)

		rec := d.FamForLocation(loc)
		assert.Equal(t, int64(8), rec.LiveCount())
		_, ok := rec.Path()
		assert.False(t, ok)
	})

	t.Run("installed file is corruption", func(t *testing.T) {
		d := newTestDirectory(t, cfg, WithDeletionScheduler(&recordingScheduler{}))
		rec := insertFinalized(t, d, 8, 8, "final")

		requireCorruption(t, "delete_partially_installed_fam", func() {
			d.DeletePartiallyInstalledFam(rec.Location(), "tmp")
		})
		assert.Equal(t, 1, d.Len())
	})
}

func TestDirectory_DecrementEvacuatedFams(t *testing.T) {
	cfg := testConfig()

	t.Run("three objects out of five", func(t *testing.T) {
		d := newTestDirectory(t, cfg)
		b := insertFinalized(t, d, 5, 5, "b")
		newBase, guard := d.Insert(nil, 100, 3, 1, true, cfg, nil)
		defer guard.Release()

		d.DecrementEvacuatedFams(newBase, []Evacuation{
			{ID: uuid.New(), OldLocation: b.Location().Add(1)},
			{ID: uuid.New(), OldLocation: b.Location().Add(20)},
			{ID: uuid.New(), OldLocation: b.Location().Add(40)},
		})
		assert.Equal(t, int64(2), b.LiveCount())
	})

	t.Run("spread over several files", func(t *testing.T) {
		d := newTestDirectory(t, cfg)
		a := insertFinalized(t, d, 3, 3, "a")
		b := insertFinalized(t, d, 3, 2, "b")
		newBase, guard := d.Insert(nil, 100, 3, 1, true, cfg, nil)
		defer guard.Release()

		d.DecrementEvacuatedFams(newBase, []Evacuation{
			{ID: uuid.New(), OldLocation: a.Location()},
			{ID: uuid.New(), OldLocation: b.Location()},
			{ID: uuid.New(), OldLocation: b.Location().Add(1)},
		})
		assert.Equal(t, int64(2), a.LiveCount())
		assert.Equal(t, int64(0), b.LiveCount())
	})

	t.Run("evacuating into the source file is corruption", func(t *testing.T) {
		d := newTestDirectory(t, cfg)
		newBase, guard := d.Insert(nil, 100, 3, 1, true, cfg, nil)
		defer guard.Release()

		c := requireCorruption(t, "decrement_evacuated_fams", func() {
			d.DecrementEvacuatedFams(newBase, []Evacuation{
				{ID: uuid.New(), OldLocation: newBase.Add(10)},
			})
		})
		assert.Equal(t, []diskloc.DiskLocation{newBase.Add(10), newBase}, c.Locations)
	})

	t.Run("underflow is corruption", func(t *testing.T) {
		d := newTestDirectory(t, cfg)
		a := insertFinalized(t, d, 2, 1, "a")
		newBase, guard := d.Insert(nil, 100, 2, 1, true, cfg, nil)
		defer guard.Release()

		requireCorruption(t, "decrement_evacuated_fams", func() {
			d.DecrementEvacuatedFams(newBase, []Evacuation{
				{ID: uuid.New(), OldLocation: a.Location()},
				{ID: uuid.New(), OldLocation: a.Location()},
			})
		})
	})

	t.Run("unresolvable location is corruption", func(t *testing.T) {
		d := newTestDirectory(t, cfg, WithNextLsn(1000))
		newBase, guard := d.Insert(nil, 100, 2, 1, true, cfg, nil)
		defer guard.Release()

		requireCorruption(t, "decrement_evacuated_fams", func() {
			d.DecrementEvacuatedFams(newBase, []Evacuation{
				{ID: uuid.New(), OldLocation: diskloc.New(10, false)},
			})
		})
	})
}

// A full rewrite cycle: objects written by batches are superseded, the
// mostly dead file is compacted into a new one, the old file is pruned.
func TestDirectory_CompactionCycle(t *testing.T) {
	cfg := testConfig()
	cfg.FileCompactionPercent = 50
	scheduler := &recordingScheduler{}
	d := newTestDirectory(t, cfg, WithDeletionScheduler(scheduler))

	old := insertFinalized(t, d, 10, 10, "old.seg")
	ids := make([]ObjectID, 10)
	for i := range ids {
		ids[i] = uuid.New()
	}

	// a later batch overwrites 8 of the objects
	batch, batchGuard := d.Insert(nil, 80, 8, 0, false, cfg, nil)
	replaced := make([]Evacuation, 8)
	for i := range replaced {
		replaced[i] = Evacuation{ID: ids[i], OldLocation: old.Location().Add(uint64(i * 10))}
	}
	d.FinalizeFam(batch, Metadata{PresentObjects: 8, FileSize: 80}, 0, "batch.seg")
	d.DecrementEvacuatedFams(batch, replaced)
	batchGuard.Release()
	require.Equal(t, int64(2), old.LiveCount())

	buckets, guard := d.FilesToDefrag(cfg)
	require.Equal(t, []*FileRecord{old}, buckets[0])

	func() {
		defer guard.Release()

		newBase, newGuard := d.Insert(nil, 40, 2, NextGeneration(old.Generation()), true, cfg, nil)
		defer newGuard.Release()

		d.FinalizeFam(newBase, Metadata{PresentObjects: 2, FileSize: 40}, 0, "new.seg")
		d.DecrementEvacuatedFams(newBase, []Evacuation{
			{ID: ids[8], OldLocation: old.Location().Add(80)},
			{ID: ids[9], OldLocation: old.Location().Add(90)},
		})
	}()

	assert.Zero(t, old.LiveCount())

	pruned, err := d.PruneEmptyFiles()
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)
	assert.Equal(t, []string{"old.seg"}, scheduler.paths())

	stats := d.Stats()
	assert.Equal(t, uint64(10), stats.LiveObjects)
	assert.Equal(t, uint64(10), stats.StoredObjects)
	assert.Equal(t, 2, stats.Files)
}

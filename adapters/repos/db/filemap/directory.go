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
	"math"
	"os"
	"sort"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/weaviate/logstore/entities/diskloc"
	"github.com/weaviate/logstore/usecases/config"
)

// Directory maps log positions to the storage files covering them.
type Directory struct {
	store  string
	logger logrus.FieldLogger

	// keyed by ^lsn, so that an ascending ceil lookup finds the file with
	// the nearest preceding or equal start position
	entries *skipList
	nextLsn atomic.Uint64

	metrics         *Metrics
	scheduler       DeletionScheduler
	index           LocationIndex
	validate        bool
	syncConcurrency int
}

type DirectoryOption func(d *Directory) error

func WithLogger(logger logrus.FieldLogger) DirectoryOption {
	return func(d *Directory) error {
		d.logger = logger
		return nil
	}
}

func WithMetrics(metrics *Metrics) DirectoryOption {
	return func(d *Directory) error {
		d.metrics = metrics
		return nil
	}
}

// WithDeletionScheduler replaces the default, which removes files
// immediately.
func WithDeletionScheduler(scheduler DeletionScheduler) DirectoryOption {
	return func(d *Directory) error {
		if scheduler == nil {
			return errors.New("deletion scheduler must not be nil")
		}
		d.scheduler = scheduler
		return nil
	}
}

// WithLocationIndex enables the uninhabited checks before deletions, if
// the config asks for them.
func WithLocationIndex(index LocationIndex) DirectoryOption {
	return func(d *Directory) error {
		d.index = index
		return nil
	}
}

// WithNextLsn starts the position allocator at lsn instead of 1.
func WithNextLsn(lsn uint64) DirectoryOption {
	return func(d *Directory) error {
		if lsn == 0 || lsn > diskloc.MaxLsn() {
			return errors.Errorf("invalid start lsn %d", lsn)
		}
		d.nextLsn.Store(lsn)
		return nil
	}
}

func NewDirectory(store string, cfg config.Config, opts ...DirectoryOption,
) (*Directory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	d := &Directory{
		store:           store,
		entries:         newSkipList(),
		scheduler:       RemoveImmediately{},
		validate:        cfg.ValidateDeletions,
		syncConcurrency: cfg.SyncConcurrency,
	}
	d.nextLsn.Store(1)

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	if d.logger == nil {
		d.logger = logrus.New()
	}
	d.logger = d.logger.WithField("store", store)

	return d, nil
}

func keyFor(lsn uint64) uint64 {
	return ^lsn
}

// lookup returns the file covering loc, or nil.
func (d *Directory) lookup(loc diskloc.DiskLocation) *FileRecord {
	if loc == diskloc.Max {
		return nil
	}
	rec, ok := d.entries.ceil(keyFor(loc.Lsn()))
	if !ok || !rec.covers(loc.Lsn()) {
		return nil
	}
	return rec
}

// exact returns the file starting at loc, or panics.
func (d *Directory) exact(op string, loc diskloc.DiskLocation) *FileRecord {
	rec, ok := d.entries.get(keyFor(loc.Lsn()))
	if !ok {
		corrupted(d.logger, op, "no file starts at this location", loc)
	}
	return rec
}

// FamForLocation returns the file whose range contains loc. A location no
// file covers means the index and the directory diverged, it panics with a
// *Corruption.
func (d *Directory) FamForLocation(loc diskloc.DiskLocation) *FileRecord {
	rec := d.lookup(loc)
	if rec == nil {
		corrupted(d.logger, "fam_for_location", "no file covers location", loc)
	}
	return rec
}

// Pin is FamForLocation for readers which use the file handle or the
// decompressor. Both stay open until the returned func is called, even if
// the file is pruned in the meantime.
func (d *Directory) Pin(loc diskloc.DiskLocation) (*FileRecord, func()) {
	rec := d.FamForLocation(loc)
	if !rec.acquire() {
		corrupted(d.logger, "pin", "file covering location was already released",
			loc, rec.location)
	}

	return rec, func() {
		if err := rec.release(); err != nil {
			d.logger.WithField("action", "filemap_unpin").
				WithField("location", rec.location).
				WithError(err).
				Warn("close released file")
		}
	}
}

// Insert registers a freshly written file and returns its start position.
// The range [lsn, lsn+writtenBytes] is reserved for it. The file is claimed
// by the returned guard, so no maintenance routine touches it until the
// caller released the guard, usually after FinalizeFam.
func (d *Directory) Insert(file *os.File, writtenBytes, initialCapacity uint64,
	generation uint8, isGC bool, cfg config.Config, decompressor *Decompressor,
) (diskloc.DiskLocation, *ClaimGuard) {
	if writtenBytes >= diskloc.MaxLsn() || initialCapacity > math.MaxInt64 {
		corrupted(d.logger, "insert", fmt.Sprintf(
			"file of %d bytes with %d objects exceeds the position space",
			writtenBytes, initialCapacity))
	}

	span := writtenBytes + 1
	lsn := d.nextLsn.Add(span) - span
	if lsn == 0 || lsn+span > diskloc.MaxLsn() {
		corrupted(d.logger, "insert", fmt.Sprintf(
			"allocated lsn %d with span %d is outside the position space", lsn, span))
	}

	loc := diskloc.New(lsn, isGC)
	rec := newFileRecord(loc, writtenBytes, int64(initialCapacity), generation,
		cfg.FsyncEachBatch, file, decompressor.Acquire())
	rec.rewriteClaim.Store(true)

	if _, inserted := d.entries.insert(keyFor(lsn), rec); !inserted {
		corrupted(d.logger, "insert", "a file already starts at the allocated location", loc)
	}

	d.metrics.Inserted(isGC)
	d.logger.WithField("action", "filemap_insert").
		WithField("location", loc).
		WithField("generation", rec.generation).
		WithField("objects", initialCapacity).
		Debug("registered file")

	return loc, newClaimGuard(d.logger, rec)
}

// Restore registers a finalized file found on disk during startup. The
// allocator is moved past its range.
func (d *Directory) Restore(loc diskloc.DiskLocation, metadata Metadata,
	path string, liveCount uint64, generation uint8, decompressor *Decompressor,
) error {
	if loc == diskloc.Max || loc.Lsn() == 0 {
		return errors.Errorf("restore file %q: invalid location %s", path, loc)
	}
	if liveCount > metadata.PresentObjects {
		return errors.Errorf("restore file %q: %d live objects but only %d present",
			path, liveCount, metadata.PresentObjects)
	}
	if metadata.FileSize >= diskloc.MaxLsn()-loc.Lsn() {
		return errors.Errorf("restore file %q: range of %d bytes at %s overflows",
			path, metadata.FileSize, loc)
	}

	// the nearest start at or before the end of the range is either inside
	// it or the preceding file, which must end before it
	end := loc.Lsn() + metadata.FileSize
	if other, ok := d.entries.ceil(keyFor(end)); ok &&
		(other.location.Lsn() >= loc.Lsn() || other.covers(loc.Lsn())) {
		return errors.Errorf("restore file %q: range [%d, %d] overlaps file at %s",
			path, loc.Lsn(), end, other.location)
	}

	rec := newFileRecord(loc, metadata.FileSize, int64(liveCount), generation,
		true, nil, decompressor.Acquire())
	rec.metadata.Store(&metadata)
	rec.path.Store(&path)

	if _, inserted := d.entries.insert(keyFor(loc.Lsn()), rec); !inserted {
		_ = rec.release()
		return errors.Errorf("restore file %q: a file already starts at %s", path, loc)
	}

	for {
		next := d.nextLsn.Load()
		if next >= end+1 || d.nextLsn.CompareAndSwap(next, end+1) {
			break
		}
	}

	d.logger.WithField("action", "filemap_restore").
		WithField("location", loc).
		WithField("path", path).
		Debug("restored file")
	return nil
}

// NextLsn is the position the next Insert starts at, if no other insert
// races with it.
func (d *Directory) NextLsn() uint64 {
	return d.nextLsn.Load()
}

// Len returns the number of files in the directory, including files which
// are still being written.
func (d *Directory) Len() int {
	return d.entries.len()
}

// Range calls fn for every file in ascending position order until fn
// returns false. It iterates over a snapshot, fn may call back into the
// directory.
func (d *Directory) Range(fn func(rec *FileRecord) bool) {
	for _, rec := range d.snapshot() {
		if !fn(rec) {
			return
		}
	}
}

// snapshot returns the current files in ascending position order.
func (d *Directory) snapshot() []*FileRecord {
	var recs []*FileRecord
	d.entries.rangeAll(func(_ uint64, rec *FileRecord) bool {
		recs = append(recs, rec)
		return true
	})
	sort.Slice(recs, func(a, b int) bool {
		return recs[a].location.Less(recs[b].location)
	})
	return recs
}

// remove drops the file from the directory together with the directory's
// reference.
func (d *Directory) remove(op string, rec *FileRecord) {
	if removed, ok := d.entries.remove(keyFor(rec.location.Lsn())); !ok || removed != rec {
		corrupted(d.logger, op, "file vanished from the directory", rec.location)
	}
	if err := rec.release(); err != nil {
		d.logger.WithField("action", "filemap_"+op).
			WithField("location", rec.location).
			WithError(err).
			Warn("close removed file")
	}
}

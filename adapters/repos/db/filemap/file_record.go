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
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/weaviate/logstore/entities/diskio"
	"github.com/weaviate/logstore/entities/diskloc"
)

// MaxGeneration is the highest compaction generation. Files rewritten more
// often stay in the last generation.
const MaxGeneration uint8 = 3

// NextGeneration returns the generation of a file produced by rewriting a
// file of generation g.
func NextGeneration(g uint8) uint8 {
	if g >= MaxGeneration {
		return MaxGeneration
	}
	return g + 1
}

func clampGeneration(g uint8) uint8 {
	if g > MaxGeneration {
		return MaxGeneration
	}
	return g
}

// Metadata describes a finalized file. It is installed exactly once.
type Metadata struct {
	PresentObjects uint64
	FileSize       uint64
	TrailerOffset  uint64
}

// FileRecord is the directory entry of a single storage file.
type FileRecord struct {
	location   diskloc.DiskLocation
	rangeLen   uint64
	generation uint8
	file       *os.File

	decompressor *Decompressor

	liveCount    atomic.Int64
	metadata     atomic.Pointer[Metadata]
	path         atomic.Pointer[string]
	synced       atomic.Bool
	rewriteClaim atomic.Bool

	// one reference is held by the directory, one by every pinned reader
	refs atomic.Int64
}

func newFileRecord(location diskloc.DiskLocation, rangeLen uint64,
	liveCount int64, generation uint8, synced bool, file *os.File,
	decompressor *Decompressor,
) *FileRecord {
	rec := &FileRecord{
		location:     location,
		rangeLen:     rangeLen,
		generation:   clampGeneration(generation),
		file:         file,
		decompressor: decompressor,
	}
	rec.liveCount.Store(liveCount)
	rec.synced.Store(synced)
	rec.refs.Store(1)
	return rec
}

func (r *FileRecord) Location() diskloc.DiskLocation {
	return r.location
}

func (r *FileRecord) Generation() uint8 {
	return r.generation
}

// LiveCount is the number of objects in this file which are still reachable.
func (r *FileRecord) LiveCount() int64 {
	return r.liveCount.Load()
}

// Metadata returns nil while the file is still being written.
func (r *FileRecord) Metadata() *Metadata {
	return r.metadata.Load()
}

// Path returns the final path of the file. The second return value is false
// while the file is still being written.
func (r *FileRecord) Path() (string, bool) {
	p := r.path.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}

func (r *FileRecord) Finalized() bool {
	return r.metadata.Load() != nil && r.path.Load() != nil
}

func (r *FileRecord) Synced() bool {
	return r.synced.Load()
}

// Claimed reports whether a writer or maintenance routine currently owns the
// file.
func (r *FileRecord) Claimed() bool {
	return r.rewriteClaim.Load()
}

func (r *FileRecord) File() *os.File {
	return r.file
}

func (r *FileRecord) Decompressor() *Decompressor {
	return r.decompressor
}

func (r *FileRecord) String() string {
	return fmt.Sprintf("file at %s (gen %d, live %d)", r.location,
		r.generation, r.LiveCount())
}

// covers reports whether lsn lies within the range allocated for this file.
func (r *FileRecord) covers(lsn uint64) bool {
	start := r.location.Lsn()
	return lsn >= start && lsn-start <= r.rangeLen
}

func (r *FileRecord) tryClaim() bool {
	return r.rewriteClaim.CompareAndSwap(false, true)
}

func (r *FileRecord) releaseClaim() bool {
	return r.rewriteClaim.CompareAndSwap(true, false)
}

// subtractLive lowers the live count by n and returns the new value. It
// returns ok=false if the count dropped below zero.
func (r *FileRecord) subtractLive(n uint64) (int64, bool) {
	if n > math.MaxInt64 {
		return r.liveCount.Load(), false
	}
	live := r.liveCount.Add(-int64(n))
	return live, live >= 0
}

// acquire takes a reader reference. It fails once the directory dropped the
// record and all readers are gone.
func (r *FileRecord) acquire() bool {
	for {
		refs := r.refs.Load()
		if refs <= 0 {
			return false
		}
		if r.refs.CompareAndSwap(refs, refs+1) {
			return true
		}
	}
}

// release drops a reference. The last one closes the file handle and
// releases the decompressor.
func (r *FileRecord) release() error {
	refs := r.refs.Add(-1)
	if refs > 0 {
		return nil
	}
	if refs < 0 {
		panic(fmt.Sprintf("%s released more often than acquired", r))
	}

	r.decompressor.Release()
	if r.file == nil {
		return nil
	}
	if err := r.file.Close(); err != nil {
		return errors.Wrapf(err, "close file at %s", r.location)
	}
	return nil
}

// sync makes the contents of the file durable, through the open handle if
// there is one. It reports false if there was nothing to fsync, i.e. the
// file has neither a handle nor a final path yet.
func (r *FileRecord) sync() (bool, error) {
	if r.file != nil {
		return true, r.file.Sync()
	}
	if path, ok := r.Path(); ok {
		return true, diskio.Fsync(path)
	}
	return false, nil
}

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

// Package diskloc defines positions in the append-only log of the object
// store.
package diskloc

import (
	"fmt"
	"math"
)

// NewWriteBatchBit tags positions handed out for externally visible write
// batches. Positions allocated for compaction rewrites leave it clear. The
// bit is not part of the ordering, see Lsn().
const NewWriteBatchBit uint64 = 1 << 62

const lsnMask = NewWriteBatchBit - 1

// Max is the "no file" sentinel. It compares greater than every position
// that can be allocated.
const Max = DiskLocation(math.MaxUint64)

// DiskLocation is a logical sequence number identifying a point in the log.
type DiskLocation uint64

// New builds the position for lsn. Positions of regular write batches carry
// NewWriteBatchBit, compaction rewrites (isGC) do not.
func New(lsn uint64, isGC bool) DiskLocation {
	if lsn&^lsnMask != 0 {
		panic(fmt.Sprintf("lsn %d overflows the log position space", lsn))
	}

	if isGC {
		return DiskLocation(lsn)
	}

	return DiskLocation(lsn | NewWriteBatchBit)
}

// Lsn returns the sequence number without the write batch tag.
func (l DiskLocation) Lsn() uint64 {
	if l == Max {
		return math.MaxUint64
	}
	return uint64(l) & lsnMask
}

func (l DiskLocation) IsNewWriteBatch() bool {
	return l != Max && uint64(l)&NewWriteBatchBit != 0
}

// Add returns the position offset bytes into the range starting at l. The
// write batch tag is preserved.
func (l DiskLocation) Add(offset uint64) DiskLocation {
	lsn := l.Lsn() + offset
	if lsn&^lsnMask != 0 {
		panic(fmt.Sprintf("position %s + %d overflows the log position space", l, offset))
	}
	return DiskLocation(lsn | uint64(l)&NewWriteBatchBit)
}

// Less orders positions by sequence number only.
func (l DiskLocation) Less(other DiskLocation) bool {
	return l.Lsn() < other.Lsn()
}

// MaxLsn is the highest sequence number that can be allocated.
func MaxLsn() uint64 {
	return lsnMask
}

func (l DiskLocation) String() string {
	if l == Max {
		return "max"
	}
	if l.IsNewWriteBatch() {
		return fmt.Sprintf("%d(batch)", l.Lsn())
	}
	return fmt.Sprintf("%d(gc)", l.Lsn())
}

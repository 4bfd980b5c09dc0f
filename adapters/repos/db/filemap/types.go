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
	"github.com/google/uuid"
	"github.com/weaviate/logstore/entities/diskloc"
)

// ObjectID identifies an object across rewrites.
type ObjectID = uuid.UUID

// LocationIndex is the object location index of the store. It is only
// consulted to cross check deletions.
type LocationIndex interface {
	// Range calls fn for every live object until fn returns false.
	Range(fn func(id ObjectID, loc diskloc.DiskLocation) bool)
}

// DeletionScheduler takes over physical deletion of files which were
// removed from the directory.
type DeletionScheduler interface {
	Schedule(location diskloc.DiskLocation, path, reason string) error
}

// Evacuation records that an object was copied out of the file at
// OldLocation by a compaction rewrite.
type Evacuation struct {
	ID          ObjectID
	OldLocation diskloc.DiskLocation
}

const (
	ReasonEmpty   = "empty"
	ReasonPartial = "partially_installed"
)

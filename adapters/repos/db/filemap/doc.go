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

// Package filemap keeps track of the storage files of a log-structured object
// store. Every file covers a contiguous range of log positions. The
// directory answers which file holds a position, counts how many objects in
// each file are still live, and hands files to the compaction and deletion
// routines without ever letting two of them work on the same file.
//
// All operations may be called from any goroutine. There is no
// directory-wide lock: the file registry is a lock-free ordered map, live
// counts are atomic counters, and the only coordination between maintenance
// routines is the per-file rewrite claim. Claims are always held through a
// *ClaimGuard.
//
// Violated invariants, for example a position that no file covers, mean
// that the in-memory state diverged from disk. They panic with a
// *Corruption value after logging the positions involved.
package filemap

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
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
)

const (
	skipListMaxLevel = 16
	// one in four nodes is promoted to the next level
	skipListPromoteMask = 3
)

// skipList is a concurrent ordered map from uint64 to *FileRecord. Lookups
// and iteration never take a lock. Inserts and deletes only lock the
// predecessor nodes they relink, so writers on disjoint parts of the list do
// not contend.
//
// A node is logically present once fullyLinked is set and logically removed
// once marked is set. Marked nodes may still be reachable for a short while
// and are skipped by readers.
type skipList struct {
	head   *skipNode
	length atomic.Int64
}

type skipNode struct {
	key         uint64
	value       *FileRecord
	next        []atomic.Pointer[skipNode]
	mu          sync.Mutex
	marked      atomic.Bool
	fullyLinked atomic.Bool
}

func newSkipNode(key uint64, value *FileRecord, level int) *skipNode {
	return &skipNode{
		key:   key,
		value: value,
		next:  make([]atomic.Pointer[skipNode], level),
	}
}

func (n *skipNode) level() int {
	return len(n.next)
}

func (n *skipNode) live() bool {
	return n.fullyLinked.Load() && !n.marked.Load()
}

func newSkipList() *skipList {
	return &skipList{head: newSkipNode(0, nil, skipListMaxLevel)}
}

func randomLevel() int {
	level := 1
	for level < skipListMaxLevel && rand.Uint32()&skipListPromoteMask == 0 {
		level++
	}
	return level
}

// find fills preds and succs for every level and returns the highest level
// on which a node with the exact key was found, or -1.
func (s *skipList) find(key uint64, preds, succs *[skipListMaxLevel]*skipNode) int {
	found := -1
	pred := s.head
	for level := skipListMaxLevel - 1; level >= 0; level-- {
		curr := pred.next[level].Load()
		for curr != nil && curr.key < key {
			pred = curr
			curr = pred.next[level].Load()
		}
		if found == -1 && curr != nil && curr.key == key {
			found = level
		}
		preds[level] = pred
		succs[level] = curr
	}
	return found
}

func unlockPreds(preds *[skipListMaxLevel]*skipNode, highestLocked int) {
	var prev *skipNode
	for level := 0; level <= highestLocked; level++ {
		if preds[level] != prev {
			preds[level].mu.Unlock()
			prev = preds[level]
		}
	}
}

// insert stores value under key unless the key is already present. It
// returns the stored value and whether it was inserted by this call.
func (s *skipList) insert(key uint64, value *FileRecord) (*FileRecord, bool) {
	topLevel := randomLevel()
	var preds, succs [skipListMaxLevel]*skipNode

	for {
		if found := s.find(key, &preds, &succs); found != -1 {
			existing := succs[found]
			if !existing.marked.Load() {
				for !existing.fullyLinked.Load() {
					runtime.Gosched()
				}
				return existing.value, false
			}
			// concurrently removed, retry until the removal is complete
			continue
		}

		highestLocked := -1
		valid := true
		var prev *skipNode
		for level := 0; valid && level < topLevel; level++ {
			pred, succ := preds[level], succs[level]
			if pred != prev {
				pred.mu.Lock()
				highestLocked = level
				prev = pred
			}
			valid = !pred.marked.Load() &&
				(succ == nil || !succ.marked.Load()) &&
				pred.next[level].Load() == succ
		}
		if !valid {
			unlockPreds(&preds, highestLocked)
			continue
		}

		node := newSkipNode(key, value, topLevel)
		for level := 0; level < topLevel; level++ {
			node.next[level].Store(succs[level])
		}
		for level := 0; level < topLevel; level++ {
			preds[level].next[level].Store(node)
		}
		node.fullyLinked.Store(true)

		unlockPreds(&preds, highestLocked)
		s.length.Add(1)
		return value, true
	}
}

// remove deletes key and returns the removed value.
func (s *skipList) remove(key uint64) (*FileRecord, bool) {
	var preds, succs [skipListMaxLevel]*skipNode
	var victim *skipNode
	isMarked := false
	topLevel := -1

	for {
		found := s.find(key, &preds, &succs)
		if !isMarked {
			if found == -1 {
				return nil, false
			}
			candidate := succs[found]
			if !candidate.fullyLinked.Load() || candidate.level()-1 != found ||
				candidate.marked.Load() {
				// either not linked yet, not found on its top level or
				// already being removed by someone else
				if candidate.marked.Load() {
					return nil, false
				}
				continue
			}

			victim = candidate
			topLevel = victim.level()
			victim.mu.Lock()
			if victim.marked.Load() {
				victim.mu.Unlock()
				return nil, false
			}
			victim.marked.Store(true)
			isMarked = true
		}

		highestLocked := -1
		valid := true
		var prev *skipNode
		for level := 0; valid && level < topLevel; level++ {
			pred := preds[level]
			if pred != prev {
				pred.mu.Lock()
				highestLocked = level
				prev = pred
			}
			valid = !pred.marked.Load() && pred.next[level].Load() == victim
		}
		if !valid {
			unlockPreds(&preds, highestLocked)
			continue
		}

		for level := topLevel - 1; level >= 0; level-- {
			preds[level].next[level].Store(victim.next[level].Load())
		}
		victim.mu.Unlock()
		unlockPreds(&preds, highestLocked)
		s.length.Add(-1)
		return victim.value, true
	}
}

// get returns the value stored under exactly key.
func (s *skipList) get(key uint64) (*FileRecord, bool) {
	pred := s.head
	for level := skipListMaxLevel - 1; level >= 0; level-- {
		curr := pred.next[level].Load()
		for curr != nil && curr.key < key {
			pred = curr
			curr = pred.next[level].Load()
		}
		if curr != nil && curr.key == key {
			if curr.live() {
				return curr.value, true
			}
			return nil, false
		}
	}
	return nil, false
}

// ceil returns the value with the smallest key >= key.
func (s *skipList) ceil(key uint64) (*FileRecord, bool) {
	pred := s.head
	for level := skipListMaxLevel - 1; level >= 0; level-- {
		curr := pred.next[level].Load()
		for curr != nil && curr.key < key {
			pred = curr
			curr = pred.next[level].Load()
		}
	}

	for curr := pred.next[0].Load(); curr != nil; curr = curr.next[0].Load() {
		if curr.live() {
			return curr.value, true
		}
	}
	return nil, false
}

// rangeAll calls fn for every present value in ascending key order until fn
// returns false. Entries inserted or removed concurrently may or may not be
// visited.
func (s *skipList) rangeAll(fn func(key uint64, value *FileRecord) bool) {
	for curr := s.head.next[0].Load(); curr != nil; curr = curr.next[0].Load() {
		if !curr.live() {
			continue
		}
		if !fn(curr.key, curr.value) {
			return
		}
	}
}

func (s *skipList) len() int {
	return int(s.length.Load())
}

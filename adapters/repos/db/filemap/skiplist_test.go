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
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keysOf(s *skipList) []uint64 {
	var keys []uint64
	s.rangeAll(func(key uint64, _ *FileRecord) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

func TestSkipList(t *testing.T) {
	t.Run("empty list", func(t *testing.T) {
		s := newSkipList()
		_, ok := s.get(7)
		assert.False(t, ok)
		_, ok = s.ceil(0)
		assert.False(t, ok)
		_, ok = s.remove(7)
		assert.False(t, ok)
		assert.Equal(t, 0, s.len())
	})

	t.Run("insert, get and ceil", func(t *testing.T) {
		s := newSkipList()
		recs := map[uint64]*FileRecord{}
		for _, key := range []uint64{50, 10, 30, 20, 40} {
			recs[key] = &FileRecord{}
			stored, inserted := s.insert(key, recs[key])
			require.True(t, inserted)
			require.Same(t, recs[key], stored)
		}

		assert.Equal(t, []uint64{10, 20, 30, 40, 50}, keysOf(s))
		assert.Equal(t, 5, s.len())

		got, ok := s.get(30)
		require.True(t, ok)
		assert.Same(t, recs[30], got)
		_, ok = s.get(31)
		assert.False(t, ok)

		got, ok = s.ceil(31)
		require.True(t, ok)
		assert.Same(t, recs[40], got)
		got, ok = s.ceil(40)
		require.True(t, ok)
		assert.Same(t, recs[40], got)
		got, ok = s.ceil(0)
		require.True(t, ok)
		assert.Same(t, recs[10], got)
		_, ok = s.ceil(51)
		assert.False(t, ok)
	})

	t.Run("duplicate insert keeps the first value", func(t *testing.T) {
		s := newSkipList()
		first, second := &FileRecord{}, &FileRecord{}
		_, inserted := s.insert(1, first)
		require.True(t, inserted)

		stored, inserted := s.insert(1, second)
		assert.False(t, inserted)
		assert.Same(t, first, stored)
		assert.Equal(t, 1, s.len())
	})

	t.Run("remove", func(t *testing.T) {
		s := newSkipList()
		recs := make([]*FileRecord, 10)
		for i := range recs {
			recs[i] = &FileRecord{}
			s.insert(uint64(i), recs[i])
		}

		removed, ok := s.remove(4)
		require.True(t, ok)
		assert.Same(t, recs[4], removed)
		_, ok = s.remove(4)
		assert.False(t, ok)

		_, ok = s.get(4)
		assert.False(t, ok)
		got, ok := s.ceil(4)
		require.True(t, ok)
		assert.Same(t, recs[5], got)
		assert.Equal(t, 9, s.len())
		assert.Equal(t, []uint64{0, 1, 2, 3, 5, 6, 7, 8, 9}, keysOf(s))
	})

	t.Run("range stops early", func(t *testing.T) {
		s := newSkipList()
		for i := uint64(0); i < 10; i++ {
			s.insert(i, &FileRecord{})
		}

		visited := 0
		s.rangeAll(func(uint64, *FileRecord) bool {
			visited++
			return visited < 3
		})
		assert.Equal(t, 3, visited)
	})

	t.Run("concurrent inserts and removes", func(t *testing.T) {
		s := newSkipList()
		const routines = 8
		const perRoutine = 500

		var wg sync.WaitGroup
		for r := 0; r < routines; r++ {
			wg.Add(1)
			go func(r int) {
				defer wg.Done()
				for i := 0; i < perRoutine; i++ {
					key := uint64(i*routines + r)
					s.insert(key, &FileRecord{})
					// every routine removes its odd keys again
					if key%2 == 1 {
						_, ok := s.remove(key)
						assert.True(t, ok)
					}
				}
			}(r)
		}
		wg.Wait()

		keys := keysOf(s)
		assert.Len(t, keys, routines*perRoutine/2)
		assert.Equal(t, routines*perRoutine/2, s.len())
		assert.True(t, sort.SliceIsSorted(keys, func(a, b int) bool { return keys[a] < keys[b] }))
		for _, key := range keys {
			assert.Zero(t, key%2)
		}
	})

	t.Run("concurrent readers see a consistent order", func(t *testing.T) {
		s := newSkipList()
		for i := uint64(0); i < 1000; i += 2 {
			s.insert(i, &FileRecord{})
		}

		done := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				key := rand.Uint64N(1000)
				if key%2 == 1 {
					s.insert(key, &FileRecord{})
					s.remove(key)
				}
			}
		}()

		for i := 0; i < 200; i++ {
			keys := keysOf(s)
			require.True(t, sort.SliceIsSorted(keys, func(a, b int) bool { return keys[a] < keys[b] }))
			_, ok := s.get(500)
			require.True(t, ok)
		}
		close(done)
		wg.Wait()
	})
}

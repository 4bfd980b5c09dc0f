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
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/logstore/entities/diskloc"
	"github.com/weaviate/logstore/usecases/config"
)

// testConfig disables the small file criterion, so only the live ratio
// selects defrag candidates.
func testConfig() config.Config {
	cfg := config.Default()
	cfg.MinCompactionFiles = 1
	cfg.TargetFileSize = 1
	return cfg
}

func newTestDirectory(t *testing.T, cfg config.Config, opts ...DirectoryOption) *Directory {
	t.Helper()
	logger, _ := test.NewNullLogger()
	d, err := NewDirectory("test", cfg, append([]DirectoryOption{WithLogger(logger)}, opts...)...)
	require.NoError(t, err)
	return d
}

// insertFinalized registers a finalized and unclaimed file with the given
// number of present and live objects.
func insertFinalized(t *testing.T, d *Directory, present, live uint64, path string) *FileRecord {
	t.Helper()
	return insertFinalizedGen(t, d, present, live, 0, path)
}

func insertFinalizedGen(t *testing.T, d *Directory, present, live uint64,
	generation uint8, path string,
) *FileRecord {
	t.Helper()
	require.LessOrEqual(t, live, present)

	loc, guard := d.Insert(nil, 100, present, generation, false, testConfig(), nil)
	defer guard.Release()

	d.FinalizeFam(loc, Metadata{PresentObjects: present, FileSize: 100}, present-live, path)
	return guard.Records()[0]
}

func requireCorruption(t *testing.T, op string, fn func()) *Corruption {
	t.Helper()

	var c *Corruption
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r, "expected a corruption panic")
			var ok bool
			c, ok = r.(*Corruption)
			require.True(t, ok, "unexpected panic value %v", r)
		}()
		fn()
	}()

	assert.Equal(t, op, c.Op)
	assert.True(t, c.Unrecoverable())
	return c
}

type scheduledDeletion struct {
	location diskloc.DiskLocation
	path     string
	reason   string
}

type recordingScheduler struct {
	sync.Mutex
	scheduled []scheduledDeletion
	failFor   map[string]error
}

func (s *recordingScheduler) Schedule(location diskloc.DiskLocation, path, reason string) error {
	s.Lock()
	defer s.Unlock()

	if err := s.failFor[path]; err != nil {
		return err
	}
	s.scheduled = append(s.scheduled, scheduledDeletion{location, path, reason})
	return nil
}

func (s *recordingScheduler) paths() []string {
	s.Lock()
	defer s.Unlock()

	paths := make([]string, len(s.scheduled))
	for i, sd := range s.scheduled {
		paths[i] = sd.path
	}
	return paths
}

type staticIndex map[ObjectID]diskloc.DiskLocation

func (idx staticIndex) Range(fn func(id ObjectID, loc diskloc.DiskLocation) bool) {
	for id, loc := range idx {
		if !fn(id, loc) {
			return
		}
	}
}

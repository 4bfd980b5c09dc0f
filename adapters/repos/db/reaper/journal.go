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

// Package reaper deletes storage files which were removed from the file
// directory. Deletions are first recorded in a durable journal, so a crash
// between dropping a file from the directory and unlinking it does not leak
// the file. A background cycle drains the journal.
package reaper

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/weaviate/logstore/entities/diskloc"
	bolt "go.etcd.io/bbolt"
)

const pendingBucket = "pending_deletions"

// PendingDeletion is a file scheduled for deletion which was not yet
// confirmed to be gone.
type PendingDeletion struct {
	Location    diskloc.DiskLocation `msgpack:"-"`
	Path        string               `msgpack:"path"`
	Reason      string               `msgpack:"reason"`
	ScheduledAt time.Time            `msgpack:"scheduled_at"`
}

// key is the big-endian location followed by the path. A location is
// scheduled at most once per path.
func (p PendingDeletion) key() []byte {
	k := make([]byte, 8, 8+len(p.Path))
	binary.BigEndian.PutUint64(k, uint64(p.Location))
	return append(k, p.Path...)
}

// Journal persists scheduled deletions in a bolt database. It implements
// filemap.DeletionScheduler.
type Journal struct {
	db     *bolt.DB
	logger logrus.FieldLogger
	now    func() time.Time
}

func OpenJournal(path string, logger logrus.FieldLogger) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open %q", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(pendingBucket))
		if err != nil {
			return errors.Wrap(err, "create bucket")
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init deletion journal")
	}

	return &Journal{db: db, logger: logger, now: time.Now}, nil
}

// Schedule records path for deletion. The record is durable once Schedule
// returns.
func (j *Journal) Schedule(location diskloc.DiskLocation, path, reason string) error {
	entry := PendingDeletion{
		Location:    location,
		Path:        path,
		Reason:      reason,
		ScheduledAt: j.now(),
	}

	value, err := msgpack.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "marshal pending deletion")
	}

	err = j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(pendingBucket))
		if b == nil {
			return errors.New("deletion journal bucket not found")
		}
		return b.Put(entry.key(), value)
	})
	if err != nil {
		return errors.Wrapf(err, "schedule deletion of %q", path)
	}

	j.logger.WithField("action", "reaper_schedule").
		WithField("location", location).
		WithField("path", path).
		WithField("reason", reason).
		Debug("scheduled file deletion")
	return nil
}

// Pending returns all scheduled deletions in location order.
func (j *Journal) Pending() ([]PendingDeletion, error) {
	var pending []PendingDeletion
	err := j.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(pendingBucket))
		if b == nil {
			return errors.New("deletion journal bucket not found")
		}

		return b.ForEach(func(k, v []byte) error {
			if len(k) < 8 {
				return errors.Errorf("invalid journal key %x", k)
			}

			var entry PendingDeletion
			if err := msgpack.Unmarshal(v, &entry); err != nil {
				return errors.Wrapf(err, "unmarshal pending deletion %x", k)
			}
			entry.Location = diskloc.DiskLocation(binary.BigEndian.Uint64(k[:8]))
			pending = append(pending, entry)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "read deletion journal")
	}
	return pending, nil
}

// Forget removes entries whose files are gone.
func (j *Journal) Forget(entries ...PendingDeletion) error {
	if len(entries) == 0 {
		return nil
	}

	err := j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(pendingBucket))
		if b == nil {
			return errors.New("deletion journal bucket not found")
		}
		for _, entry := range entries {
			if err := b.Delete(entry.key()); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "forget pending deletions")
}

func (j *Journal) Len() (int, error) {
	n := 0
	err := j.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(pendingBucket))
		if b == nil {
			return errors.New("deletion journal bucket not found")
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}

func (j *Journal) Close() error {
	return j.db.Close()
}

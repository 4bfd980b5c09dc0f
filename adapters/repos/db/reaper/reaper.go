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

package reaper

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/weaviate/logstore/entities/cyclemanager"
	"github.com/weaviate/logstore/entities/diskio"
	"github.com/weaviate/logstore/usecases/monitoring"
)

const (
	removeRetries       = 3
	removeRetryInterval = 50 * time.Millisecond
)

// Reaper unlinks the files recorded in a Journal.
type Reaper struct {
	journal *Journal
	logger  logrus.FieldLogger
	cycle   cyclemanager.CycleManager

	newBackoff func() backoff.BackOff

	deleted  prometheus.Counter
	pending  prometheus.Gauge
	failures prometheus.Counter
}

// New creates a reaper for store. promMetrics may be nil.
func New(store string, journal *Journal, interval time.Duration,
	logger logrus.FieldLogger, promMetrics *monitoring.PrometheusMetrics,
) *Reaper {
	if promMetrics == nil {
		promMetrics = monitoring.NewPrometheusMetrics(nil)
	}
	labels := prometheus.Labels{"store": store}

	r := &Reaper{
		journal:  journal,
		logger:   logger.WithField("store", store),
		deleted:  promMetrics.ReaperDeletedFiles.With(labels),
		pending:  promMetrics.ReaperPendingFiles.With(labels),
		failures: promMetrics.ReaperFailures.With(labels),
	}
	r.newBackoff = removeBackoff
	r.cycle = cyclemanager.New(cyclemanager.NewFixedTicker(interval), r.reapCycle,
		"file_reaper", r.logger)
	return r
}

// Start begins draining the journal in the background.
func (r *Reaper) Start() {
	r.cycle.Start()
}

// Shutdown stops the background cycle. Pending deletions stay in the
// journal for the next start.
func (r *Reaper) Shutdown(ctx context.Context) error {
	if err := r.cycle.StopAndWait(ctx); err != nil {
		return errors.Wrap(err, "stop file reaper")
	}
	return nil
}

func (r *Reaper) reapCycle(shouldBreak cyclemanager.ShouldBreakFunc) bool {
	n, err := r.reap(shouldBreak)
	if err != nil {
		r.logger.WithField("action", "reaper_cycle").
			WithError(err).
			Error("delete scheduled files")
	}
	return n > 0
}

// ReapOnce deletes every scheduled file now and returns how many entries
// were cleared from the journal.
func (r *Reaper) ReapOnce() (int, error) {
	return r.reap(func() bool { return false })
}

func (r *Reaper) reap(shouldBreak cyclemanager.ShouldBreakFunc) (int, error) {
	pending, err := r.journal.Pending()
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		r.pending.Set(0)
		return 0, nil
	}

	var errs *multierror.Error
	removedByDir := map[string][]PendingDeletion{}
	for _, entry := range pending {
		if shouldBreak() {
			break
		}

		removed, err := r.remove(entry.Path)
		if err != nil {
			r.failures.Inc()
			errs = multierror.Append(errs, errors.Wrapf(err, "remove %q", entry.Path))
			continue
		}
		if removed {
			r.deleted.Inc()
		}

		dir := filepath.Dir(entry.Path)
		removedByDir[dir] = append(removedByDir[dir], entry)
	}

	// an entry may only be forgotten once the unlink is durable
	var done []PendingDeletion
	for dir, entries := range removedByDir {
		if err := diskio.Fsync(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			r.failures.Inc()
			errs = multierror.Append(errs, errors.Wrapf(err, "fsync directory %q", dir))
			continue
		}
		done = append(done, entries...)
	}

	if err := r.journal.Forget(done...); err != nil {
		errs = multierror.Append(errs, err)
		return 0, errs.ErrorOrNil()
	}
	r.pending.Set(float64(len(pending) - len(done)))

	if len(done) > 0 {
		r.logger.WithField("action", "reaper_delete").
			WithField("files", len(done)).
			Debug("deleted scheduled files")
	}
	return len(done), errs.ErrorOrNil()
}

func removeBackoff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(removeRetryInterval), removeRetries)
}

// remove retries transient failures, e.g. EBUSY on network file systems.
func (r *Reaper) remove(path string) (bool, error) {
	var removed bool
	err := backoff.Retry(func() error {
		var err error
		removed, err = diskio.RemoveIfExists(path)
		return err
	}, r.newBackoff())
	return removed, err
}

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
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/weaviate/logstore/usecases/monitoring"
)

type Metrics struct {
	files          prometheus.Gauge
	fileBytes      prometheus.Gauge
	liveObjects    prometheus.Gauge
	storedObjects  prometheus.Gauge
	deadObjects    prometheus.Gauge
	livePercent    prometheus.Gauge
	inserted       *prometheus.CounterVec
	claimConflicts *prometheus.CounterVec
	defragCands    *prometheus.CounterVec
	pruned         prometheus.Counter
	syncDurations  prometheus.Observer
}

// NewMetrics binds the directory metrics to a store label. It returns nil if
// promMetrics is nil, all methods are no-ops on a nil *Metrics.
func NewMetrics(promMetrics *monitoring.PrometheusMetrics, store string) *Metrics {
	if promMetrics == nil {
		return nil
	}

	labels := prometheus.Labels{"store": store}
	return &Metrics{
		files:          promMetrics.FilemapFiles.With(labels),
		fileBytes:      promMetrics.FilemapFileBytes.With(labels),
		liveObjects:    promMetrics.FilemapLiveObjects.With(labels),
		storedObjects:  promMetrics.FilemapStoredObjects.With(labels),
		deadObjects:    promMetrics.FilemapDeadObjects.With(labels),
		livePercent:    promMetrics.FilemapLivePercent.With(labels),
		inserted:       promMetrics.FilemapInsertedFiles.MustCurryWith(labels),
		claimConflicts: promMetrics.FilemapClaimConflicts.MustCurryWith(labels),
		defragCands:    promMetrics.FilemapDefragCands.MustCurryWith(labels),
		pruned:         promMetrics.FilemapPrunedFiles.With(labels),
		syncDurations:  promMetrics.FilemapSyncDurations.With(labels),
	}
}

func (m *Metrics) Inserted(isGC bool) {
	if m == nil {
		return
	}
	origin := "batch"
	if isGC {
		origin = "gc"
	}
	m.inserted.WithLabelValues(origin).Inc()
}

func (m *Metrics) ClaimConflict(operation string) {
	if m == nil {
		return
	}
	m.claimConflicts.WithLabelValues(operation).Inc()
}

func (m *Metrics) DefragCandidate(generation uint8) {
	if m == nil {
		return
	}
	m.defragCands.WithLabelValues(strconv.Itoa(int(generation))).Inc()
}

func (m *Metrics) Pruned(n int) {
	if m == nil {
		return
	}
	m.pruned.Add(float64(n))
}

func (m *Metrics) SyncDuration(start time.Time) {
	if m == nil {
		return
	}
	m.syncDurations.Observe(time.Since(start).Seconds())
}

func (m *Metrics) Stats(s Stats) {
	if m == nil {
		return
	}
	m.files.Set(float64(s.Files))
	m.fileBytes.Set(float64(s.TotalFileSize))
	m.liveObjects.Set(float64(s.LiveObjects))
	m.storedObjects.Set(float64(s.StoredObjects))
	m.deadObjects.Set(float64(s.DeadObjects))
	m.livePercent.Set(float64(s.LivePercent))
}

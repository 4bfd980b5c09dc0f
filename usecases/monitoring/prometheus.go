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

package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusMetrics struct {
	FilemapFiles          *prometheus.GaugeVec
	FilemapFileBytes      *prometheus.GaugeVec
	FilemapLiveObjects    *prometheus.GaugeVec
	FilemapStoredObjects  *prometheus.GaugeVec
	FilemapDeadObjects    *prometheus.GaugeVec
	FilemapLivePercent    *prometheus.GaugeVec
	FilemapInsertedFiles  *prometheus.CounterVec
	FilemapClaimConflicts *prometheus.CounterVec
	FilemapDefragCands    *prometheus.CounterVec
	FilemapPrunedFiles    *prometheus.CounterVec
	FilemapSyncDurations  *prometheus.HistogramVec

	ReaperDeletedFiles *prometheus.CounterVec
	ReaperPendingFiles *prometheus.GaugeVec
	ReaperFailures     *prometheus.CounterVec
}

// NewPrometheusMetrics registers all metrics with reg. A nil reg disables
// registration, the collectors still work but are never exported.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = noop
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		FilemapFiles: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "filemap_files",
			Help: "Number of finalized storage files tracked by the file directory",
		}, []string{"store"}),
		FilemapFileBytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "filemap_file_bytes",
			Help: "Total on-disk size of finalized storage files",
		}, []string{"store"}),
		FilemapLiveObjects: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "filemap_live_objects",
			Help: "Objects in finalized files which are still reachable",
		}, []string{"store"}),
		FilemapStoredObjects: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "filemap_stored_objects",
			Help: "Objects physically present in finalized files",
		}, []string{"store"}),
		FilemapDeadObjects: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "filemap_dead_objects",
			Help: "Objects present in finalized files which are no longer reachable",
		}, []string{"store"}),
		FilemapLivePercent: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "filemap_live_percent",
			Help: "Share of live objects among stored objects, 0-100",
		}, []string{"store"}),
		FilemapInsertedFiles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "filemap_inserted_files_total",
			Help: "Files registered in the directory, by origin (batch, gc)",
		}, []string{"store", "origin"}),
		FilemapClaimConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "filemap_claim_conflicts_total",
			Help: "Files skipped because another routine already claimed them",
		}, []string{"store", "operation"}),
		FilemapDefragCands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "filemap_defrag_candidates_total",
			Help: "Files claimed for defragmentation, by generation",
		}, []string{"store", "generation"}),
		FilemapPrunedFiles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "filemap_pruned_files_total",
			Help: "Empty files removed from the directory",
		}, []string{"store"}),
		FilemapSyncDurations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "filemap_sync_duration_seconds",
			Help:    "Duration of a SyncAll pass which had to fsync at least one file",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"store"}),

		ReaperDeletedFiles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reaper_deleted_files_total",
			Help: "Files physically deleted by the reaper",
		}, []string{"store"}),
		ReaperPendingFiles: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reaper_pending_files",
			Help: "Files scheduled for deletion which were not yet deleted",
		}, []string{"store"}),
		ReaperFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reaper_failures_total",
			Help: "Failed attempts to delete a scheduled file",
		}, []string{"store"}),
	}
}

// DeleteStore drops every series of the given store, e.g. when it is shut
// down.
func (pm *PrometheusMetrics) DeleteStore(store string) {
	if pm == nil {
		return
	}

	labels := prometheus.Labels{"store": store}
	pm.FilemapFiles.DeletePartialMatch(labels)
	pm.FilemapFileBytes.DeletePartialMatch(labels)
	pm.FilemapLiveObjects.DeletePartialMatch(labels)
	pm.FilemapStoredObjects.DeletePartialMatch(labels)
	pm.FilemapDeadObjects.DeletePartialMatch(labels)
	pm.FilemapLivePercent.DeletePartialMatch(labels)
	pm.FilemapInsertedFiles.DeletePartialMatch(labels)
	pm.FilemapClaimConflicts.DeletePartialMatch(labels)
	pm.FilemapDefragCands.DeletePartialMatch(labels)
	pm.FilemapPrunedFiles.DeletePartialMatch(labels)
	pm.FilemapSyncDurations.DeletePartialMatch(labels)
	pm.ReaperDeletedFiles.DeletePartialMatch(labels)
	pm.ReaperPendingFiles.DeletePartialMatch(labels)
	pm.ReaperFailures.DeletePartialMatch(labels)
}

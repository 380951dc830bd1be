// SPDX-License-Identifier: MIT
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Source metrics
	sourceFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epgmerge_source_fetch_total",
		Help: "Source fetch attempts by outcome",
	}, []string{"outcome"}) // outcome=success|bad_status|timeout|unavailable|decompress|empty|too_large

	sourceBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epgmerge_source_bytes_total",
		Help: "Bytes received from sources, by encoding detected",
	}, []string{"encoding"})

	sourceDecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "epgmerge_source_decode_failures_total",
		Help: "Sources whose XMLTV document failed to decode",
	})

	programmesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "epgmerge_programmes_dropped_total",
		Help: "Programme entries rejected for missing fields, bad timestamps or inverted ranges",
	})

	sourcePipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "epgmerge_source_pipeline_duration_seconds",
		Help:    "Time from fetch start to decoded partial per source",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"outcome"}) // outcome=success|failure

	// Merge metrics
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epgmerge_refresh_total",
		Help: "FetchAndMerge runs by outcome",
	}, []string{"outcome"}) // outcome=success|failed|cancelled

	refreshDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "epgmerge_refresh_duration_seconds",
		Help:    "Wall time of a full FetchAndMerge run",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
	})

	mergedChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "epgmerge_merged_channels",
		Help: "Channels in the last merged schedule",
	})

	mergedProgrammes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "epgmerge_merged_programmes",
		Help: "Programmes in the last merged schedule",
	})

	nameConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "epgmerge_name_conflicts_total",
		Help: "Display names claimed by more than one channel id across sources",
	})

	refreshProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "epgmerge_refresh_progress_ratio",
		Help: "Overall progress of the running refresh (0..1)",
	})

	// Persistence metrics
	cacheWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epgmerge_cache_writes_total",
		Help: "Cache envelope writes by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	cacheLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epgmerge_cache_loads_total",
		Help: "Cache envelope loads by outcome",
	}, []string{"outcome"}) // outcome=hit|miss

	xmltvWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "epgmerge_xmltv_write_errors_total",
		Help: "Total number of XMLTV export failures",
	})

	heuristicsErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epgmerge_heuristics_errors_total",
		Help: "Heuristics store failures by operation",
	}, []string{"op"}) // op=get|record_size|record_duration

	configValidationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "epgmerge_config_validation_errors_total",
		Help: "Total number of configuration validation errors",
	})
)

func IncSourceFetch(outcome string)           { sourceFetchTotal.WithLabelValues(outcome).Inc() }
func AddSourceBytes(encoding string, n int64) { sourceBytesTotal.WithLabelValues(encoding).Add(float64(n)) }
func IncSourceDecodeFailure()                 { sourceDecodeFailures.Inc() }
func AddProgrammesDropped(n int)              { programmesDropped.Add(float64(n)) }
func IncNameConflicts(n int)                  { nameConflicts.Add(float64(n)) }
func SetRefreshProgress(f float64)            { refreshProgress.Set(f) }
func IncXMLTVWriteError()                     { xmltvWriteErrors.Inc() }
func IncHeuristicsError(op string)            { heuristicsErrors.WithLabelValues(op).Inc() }
func IncConfigValidationError()               { configValidationErrors.Inc() }
func IncCacheLoad(hit bool)                   { cacheLoadsTotal.WithLabelValues(hitLabel(hit)).Inc() }

func ObserveSourcePipeline(ok bool, d time.Duration) {
	sourcePipelineDuration.WithLabelValues(successLabel(ok)).Observe(d.Seconds())
}

func RecordCacheWrite(err error) {
	cacheWritesTotal.WithLabelValues(successLabel(err == nil)).Inc()
}

// RecordRefresh records one FetchAndMerge run. A cancelled run leaves the
// merged gauges untouched.
func RecordRefresh(cancelled bool, channels, programmes int, d time.Duration) {
	if cancelled {
		refreshTotal.WithLabelValues("cancelled").Inc()
		return
	}
	refreshTotal.WithLabelValues("success").Inc()
	refreshDurationSeconds.Observe(d.Seconds())
	mergedChannels.Set(float64(channels))
	mergedProgrammes.Set(float64(programmes))
}

// RecordRefreshFailed counts a run in which every source failed. The merged
// gauges keep describing the schedule still being served.
func RecordRefreshFailed(d time.Duration) {
	refreshTotal.WithLabelValues("failed").Inc()
	refreshDurationSeconds.Observe(d.Seconds())
}

func successLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func hitLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

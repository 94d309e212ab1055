// Package metrics provides Prometheus metrics for process supervision and
// device setup.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	processStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "virtcam",
		Subsystem: "process",
		Name:      "starts_total",
		Help:      "Managed process start attempts by result",
	}, []string{"name", "result"})

	processStops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "virtcam",
		Subsystem: "process",
		Name:      "stops_total",
		Help:      "Managed process stops by termination mode",
	}, []string{"name", "mode"})

	resourceSetups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "virtcam",
		Subsystem: "resource",
		Name:      "setups_total",
		Help:      "Resource guard setup attempts by family and result",
	}, []string{"family", "result"})

	resourceReady = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "virtcam",
		Subsystem: "resource",
		Name:      "ready",
		Help:      "Whether a resource family is currently set up (1) or not (0)",
	}, []string{"family"})

	streamFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "virtcam",
		Subsystem: "stream",
		Name:      "fallbacks_total",
		Help:      "Stream starts that substituted the degraded built-in source",
	}, []string{"kind"})

	synthesisRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "virtcam",
		Subsystem: "synthesis",
		Name:      "runs_total",
		Help:      "Speech synthesis attempts by backend and result",
	}, []string{"backend", "result"})

	downloadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "virtcam",
		Subsystem: "fetch",
		Name:      "downloaded_bytes_total",
		Help:      "Total bytes downloaded for stream artifacts",
	})
)

// RecordProcessStart records a managed process start attempt.
// result is "ok", "launch_failed", or "died_early".
func RecordProcessStart(name, result string) {
	processStarts.WithLabelValues(name, result).Inc()
}

// RecordProcessStop records a managed process stop.
// mode is "graceful", "forced", or "unconfirmed".
func RecordProcessStop(name, mode string) {
	processStops.WithLabelValues(name, mode).Inc()
}

// RecordResourceSetup records a guard setup attempt.
// result is "ok" or the failing phase ("cleanup", "load", "verify").
func RecordResourceSetup(family, result string) {
	resourceSetups.WithLabelValues(family, result).Inc()
}

// SetResourceReady sets the ready gauge for a resource family.
func SetResourceReady(family string, ready bool) {
	v := 0.0
	if ready {
		v = 1.0
	}
	resourceReady.WithLabelValues(family).Set(v)
}

// RecordStreamFallback records a degraded-source substitution.
func RecordStreamFallback(kind string) {
	streamFallbacks.WithLabelValues(kind).Inc()
}

// RecordSynthesis records a synthesis attempt.
// result is "ok" or "failed".
func RecordSynthesis(backend, result string) {
	synthesisRuns.WithLabelValues(backend, result).Inc()
}

// AddDownloadedBytes accumulates downloaded artifact bytes.
func AddDownloadedBytes(n int64) {
	if n > 0 {
		downloadBytes.Add(float64(n))
	}
}

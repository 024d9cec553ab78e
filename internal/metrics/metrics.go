package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlexec",
			Subsystem: "source",
			Name:      "records_total",
			Help:      "Number of multi-line records framed from process output.",
		}, []string{"source"},
	)
	batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlexec",
			Subsystem: "source",
			Name:      "batches_total",
			Help:      "Number of batches delivered to the sink.",
		}, []string{"source"},
	)
	batchRecords = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mlexec",
			Subsystem: "source",
			Name:      "batch_records",
			Help:      "Records per emitted batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"source"},
	)
	sinkFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlexec",
			Subsystem: "sink",
			Name:      "failures_total",
			Help:      "Number of batches dropped because the sink failed.",
		}, []string{"source"},
	)
	processStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlexec",
			Subsystem: "process",
			Name:      "starts_total",
			Help:      "Number of successful process launches.",
		}, []string{"source"},
	)
	launchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlexec",
			Subsystem: "process",
			Name:      "launch_failures_total",
			Help:      "Number of failed process launches.",
		}, []string{"source"},
	)
	processExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlexec",
			Subsystem: "process",
			Name:      "exits_total",
			Help:      "Number of process exits by exit status.",
		}, []string{"source", "code"},
	)
	processRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlexec",
			Subsystem: "process",
			Name:      "restarts_total",
			Help:      "Number of relaunches after a process exit.",
		}, []string{"source"},
	)
	killTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlexec",
			Subsystem: "process",
			Name:      "kill_timeouts_total",
			Help:      "Number of kills whose reap did not finish in time.",
		}, []string{"source"},
	)
	stderrLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlexec",
			Subsystem: "process",
			Name:      "stderr_lines_total",
			Help:      "Number of lines drained from process stderr.",
		}, []string{"source"},
	)

	currentStates = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "mlexec",
			Subsystem: "source",
			Name:      "current_state",
			Help:      "Current state of the source (1 = active state, 0 = inactive).",
		}, []string{"source", "state"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		recordsTotal, batchesTotal, batchRecords, sinkFailures,
		processStarts, launchFailures, processExits, processRestarts,
		killTimeouts, stderrLines, currentStates,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncRecord(source string) {
	if regOK.Load() {
		recordsTotal.WithLabelValues(source).Inc()
	}
}

func ObserveBatch(source string, n int) {
	if regOK.Load() {
		batchesTotal.WithLabelValues(source).Inc()
		batchRecords.WithLabelValues(source).Observe(float64(n))
	}
}

func IncSinkFailure(source string) {
	if regOK.Load() {
		sinkFailures.WithLabelValues(source).Inc()
	}
}

func IncStart(source string) {
	if regOK.Load() {
		processStarts.WithLabelValues(source).Inc()
	}
}

func IncLaunchFailure(source string) {
	if regOK.Load() {
		launchFailures.WithLabelValues(source).Inc()
	}
}

func IncExit(source, code string) {
	if regOK.Load() {
		processExits.WithLabelValues(source, code).Inc()
	}
}

func IncRestart(source string) {
	if regOK.Load() {
		processRestarts.WithLabelValues(source).Inc()
	}
}

func IncKillTimeout(source string) {
	if regOK.Load() {
		killTimeouts.WithLabelValues(source).Inc()
	}
}

func IncStderrLine(source string) {
	if regOK.Load() {
		stderrLines.WithLabelValues(source).Inc()
	}
}

// SetState marks state as the only active state for source.
func SetState(source, state string, all []string) {
	if !regOK.Load() {
		return
	}
	for _, s := range all {
		var v float64
		if s == state {
			v = 1
		}
		currentStates.WithLabelValues(source, s).Set(v)
	}
}

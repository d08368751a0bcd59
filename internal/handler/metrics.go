package handler

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Registration outcomes.
const (
	outcomeOK           = "ok"
	outcomeParseError   = "parse_error"
	outcomeCompileError = "compile_error"
	outcomeOpenError    = "open_error"
)

// Execution outcomes that never reach the engine.
const (
	statusProgramNotFound  = "program_not_found"
	statusFunctionNotFound = "function_not_found"
)

var (
	registrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiln_program_registrations_total",
			Help: "Total number of program registrations by outcome.",
		},
		[]string{"outcome"},
	)

	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiln_executions_total",
			Help: "Total number of execute requests by final status.",
		},
		[]string{"status"},
	)

	compileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kiln_compile_duration_seconds",
			Help:    "Time to compile and open a registered program.",
			Buckets: prometheus.DefBuckets,
		},
	)

	executionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kiln_execution_duration_seconds",
			Help:    "Time from dispatch until every result of an execution resolved.",
			Buckets: prometheus.DefBuckets,
		},
	)

	cachedPrograms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiln_cached_programs",
			Help: "Number of programs in the function cache.",
		},
	)
)

func init() {
	prometheus.MustRegister(registrationsTotal)
	prometheus.MustRegister(executionsTotal)
	prometheus.MustRegister(compileDuration)
	prometheus.MustRegister(executionDuration)
	prometheus.MustRegister(cachedPrograms)
}

// registrationOutcome maps a Register error to its metric label.
func registrationOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrParse):
		return outcomeParseError
	case errors.Is(err, ErrOpen):
		return outcomeOpenError
	default:
		return outcomeCompileError
	}
}

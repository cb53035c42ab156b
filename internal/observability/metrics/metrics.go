package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "fintera_ledger_"

	ResultSuccess   = "success"
	ResultFailed    = "failed"
	ResultDuplicate = "duplicate"
	ResultSkipped   = "skipped"
)

var (
	registerOnce sync.Once

	ruleExecutions       *prometheus.CounterVec
	ruleExecutionLatency *prometheus.HistogramVec
	eventsProcessed      *prometheus.CounterVec
	schedulerTicks       *prometheus.CounterVec
	scheduledRules       prometheus.Gauge
	reconciliationFinds  *prometheus.CounterVec
	reconciliationScans  *prometheus.HistogramVec
	reviewDecisions      *prometheus.CounterVec
	jobRuns              *prometheus.CounterVec
	jobLatency           *prometheus.HistogramVec
)

// Init registers the ledger metrics on the default registry. Safe to call
// more than once; recording helpers are no-ops until Init runs.
func Init() {
	registerOnce.Do(func() {
		ruleExecutions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rule_executions_total",
				Help: "Total rule executions by trigger and result",
			},
			[]string{"trigger", "result"},
		)
		ruleExecutionLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "rule_execution_duration_seconds",
				Help:    "Rule execution latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		eventsProcessed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_processed_total",
				Help: "Total business events processed by trigger",
			},
			[]string{"trigger"},
		)
		schedulerTicks = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "scheduler_ticks_total",
				Help: "Total scheduled rule ticks by result",
			},
			[]string{"result"},
		)
		scheduledRules = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "scheduled_rules",
				Help: "Number of rules with an armed timer",
			},
		)
		reconciliationFinds = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconciliation_findings_total",
				Help: "Total reconciliation findings by type and severity",
			},
			[]string{"type", "severity"},
		)
		reconciliationScans = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reconciliation_scan_duration_seconds",
				Help:    "Reconciliation scan latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		)
		reviewDecisions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "review_decisions_total",
				Help: "Total review decisions by outcome",
			},
			[]string{"decision"},
		)
		jobRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "job_runs_total",
				Help: "Total background job runs by job and result",
			},
			[]string{"job", "result"},
		)
		jobLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "job_duration_seconds",
				Help:    "Background job latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job"},
		)

		prometheus.MustRegister(
			ruleExecutions,
			ruleExecutionLatency,
			eventsProcessed,
			schedulerTicks,
			scheduledRules,
			reconciliationFinds,
			reconciliationScans,
			reviewDecisions,
			jobRuns,
			jobLatency,
		)
	})
}

// Handler exposes the default registry for scraping
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRuleExecution records one rule attempt
func ObserveRuleExecution(trigger, result string, duration time.Duration) {
	if trigger == "" {
		trigger = "unknown"
	}
	if ruleExecutions != nil {
		ruleExecutions.WithLabelValues(trigger, result).Inc()
	}
	if ruleExecutionLatency != nil {
		ruleExecutionLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncEventProcessed counts an event handed to the engine
func IncEventProcessed(trigger string) {
	if eventsProcessed != nil {
		eventsProcessed.WithLabelValues(trigger).Inc()
	}
}

// IncSchedulerTick counts a scheduler tick by result
func IncSchedulerTick(result string) {
	if schedulerTicks != nil {
		schedulerTicks.WithLabelValues(result).Inc()
	}
}

// SetScheduledRules reports how many rule timers are armed
func SetScheduledRules(n int) {
	if scheduledRules != nil {
		scheduledRules.Set(float64(n))
	}
}

// IncReconciliationFinding counts a new finding
func IncReconciliationFinding(errorType, severity string) {
	if reconciliationFinds != nil {
		reconciliationFinds.WithLabelValues(errorType, severity).Inc()
	}
}

// ObserveReconciliationScan records how long a detector scan took
func ObserveReconciliationScan(errorType string, duration time.Duration) {
	if reconciliationScans != nil {
		reconciliationScans.WithLabelValues(errorType).Observe(duration.Seconds())
	}
}

// IncReviewDecision counts a review outcome
func IncReviewDecision(decision string) {
	if reviewDecisions != nil {
		reviewDecisions.WithLabelValues(decision).Inc()
	}
}

// ObserveJob records a background job run
func ObserveJob(job, result string, duration time.Duration) {
	if job == "" {
		job = "anonymous"
	}
	if jobRuns != nil {
		jobRuns.WithLabelValues(job, result).Inc()
	}
	if jobLatency != nil {
		jobLatency.WithLabelValues(job).Observe(duration.Seconds())
	}
}

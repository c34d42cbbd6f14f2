// Package metrics registers the engine's Prometheus collectors. All
// collectors are package-level promauto vars so call sites never deal with
// registration ordering.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	LogsEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logward_logs_evaluated_total",
		Help: "Total number of log entries run through the detection engine.",
	})

	RuleMatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logward_rule_matches_total",
		Help: "Detection rule matches by rule and severity level.",
	}, []string{"rule_id", "level"})

	RuleEvalErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logward_rule_eval_errors_total",
		Help: "Detection rule evaluation failures by rule.",
	}, []string{"rule_id"})

	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "logward_evaluation_duration_seconds",
		Help:    "Wall time spent evaluating a single log entry against all rules.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	AlertRulesChecked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logward_alert_rules_checked_total",
		Help: "Total alert threshold rule checks performed by the scheduler.",
	})

	AlertFirings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logward_alert_firings_total",
		Help: "Alert threshold firings by rule.",
	}, []string{"rule_id"})

	SchedulerTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logward_scheduler_ticks_total",
		Help: "Scheduler ticks by outcome (run or skipped).",
	}, []string{"result"})

	NotificationJobsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logward_notification_jobs_enqueued_total",
		Help: "Notification jobs pushed onto the dispatch queue.",
	})

	NotificationEnqueueFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logward_notification_enqueue_failures_total",
		Help: "Notification jobs that could not be pushed onto the queue.",
	})

	WorkerPoolActiveWorkers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "logward_worker_pool_active_workers",
		Help: "Workers currently executing a task, by pool.",
	}, []string{"pool"})
)

// Serve exposes /metrics on addr. It blocks, so callers run it in a
// goroutine; errors other than a clean shutdown are logged and returned.
func Serve(addr string, logger *zap.SugaredLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Infow("metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Errorw("metrics server failed", "error", err)
		return err
	}
	return nil
}

package alerting

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"logward/core"
	"logward/metrics"
	"logward/notify"
	"logward/storage"
)

const DefaultCheckInterval = 60 * time.Second

// Scheduler drives periodic alert rule evaluation. A single check cycle
// runs at a time: when a tick arrives while the previous cycle is still in
// flight, that tick is skipped outright rather than queued, so slow cycles
// never build a backlog.
type Scheduler struct {
	rules     storage.AlertRuleStore
	history   storage.HistoryStore
	evaluator *Evaluator
	queue     notify.JobQueue
	logger    *zap.SugaredLogger
	interval  time.Duration

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(rules storage.AlertRuleStore, history storage.HistoryStore, evaluator *Evaluator, queue notify.JobQueue, interval time.Duration, logger *zap.SugaredLogger) *Scheduler {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Scheduler{
		rules:     rules,
		history:   history,
		evaluator: evaluator,
		queue:     queue,
		logger:    logger,
		interval:  interval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the tick loop. The first cycle runs after one full
// interval, not immediately.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

// Stop terminates the tick loop and waits for it to exit. An in-flight
// check cycle finishes on its own goroutine.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Infow("alert scheduler started", "interval", s.interval)
	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopCh:
			s.logger.Info("alert scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("alert scheduler context cancelled")
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		metrics.SchedulerTicks.WithLabelValues("skipped").Inc()
		s.logger.Debug("alert check cycle still running, skipping tick")
		return
	}
	metrics.SchedulerTicks.WithLabelValues("run").Inc()
	go func() {
		defer s.running.Store(false)
		s.CheckAllRules(ctx)
	}()
}

// CheckAllRules evaluates every enabled alert rule once. Rule failures are
// isolated: an error on one rule is logged and the cycle moves on. Exported
// so operators can force a cycle outside the tick cadence.
func (s *Scheduler) CheckAllRules(ctx context.Context) {
	rules, err := s.rules.ListAllEnabledRules(ctx)
	if err != nil {
		s.logger.Errorw("failed to list alert rules", "error", err)
		return
	}

	for _, rule := range rules {
		metrics.AlertRulesChecked.Inc()
		firing, err := s.evaluator.CheckRule(ctx, rule)
		if err != nil {
			s.logger.Errorw("alert rule check failed", "rule_id", rule.ID, "error", err)
			continue
		}
		if firing == nil {
			continue
		}
		s.dispatch(ctx, firing)
	}
}

// dispatch enqueues the notification job for a firing. The firing is
// already recorded in history, so an enqueue failure is persisted against
// the history row instead of retried here.
func (s *Scheduler) dispatch(ctx context.Context, firing *core.Firing) {
	job := core.NotificationJob{
		RuleID:            firing.Rule.ID,
		RuleName:          firing.Rule.Name,
		OrganizationID:    firing.Rule.OrganizationID,
		ProjectID:         firing.Rule.ProjectID,
		HistoryID:         firing.HistoryID,
		LogCount:          firing.LogCount,
		Threshold:         firing.Rule.Threshold,
		TimeWindowMinutes: firing.Rule.TimeWindowMinutes,
		EmailRecipients:   firing.Rule.EmailRecipients,
		WebhookURL:        firing.Rule.WebhookURL,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		metrics.NotificationEnqueueFailures.Inc()
		s.logger.Errorw("failed to enqueue notification job",
			"rule_id", firing.Rule.ID, "history_id", firing.HistoryID, "error", err)
		if uerr := s.history.UpdateHistoryNotified(ctx, firing.HistoryID, false, err.Error()); uerr != nil {
			s.logger.Errorw("failed to record enqueue failure", "history_id", firing.HistoryID, "error", uerr)
		}
		return
	}
	metrics.NotificationJobsEnqueued.Inc()
}

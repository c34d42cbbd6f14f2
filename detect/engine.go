package detect

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"logward/core"
	"logward/metrics"
	"logward/rules"
	"logward/storage"
)

// Engine evaluates compiled detection rules against log entries. Rules are
// loaded per-call from the store and compiled through the content-hash
// cache, so edits take effect on the next evaluation without a restart.
type Engine struct {
	store         storage.DetectionRuleStore
	cache         *RuleCache
	pool          *core.WorkerPool
	logger        *zap.SugaredLogger
	caseSensitive bool
}

// EngineOptions configures engine construction.
type EngineOptions struct {
	CacheSize     int
	BatchWorkers  int
	QueueSize     int
	CaseSensitive bool
}

// NewEngine builds an engine with its own worker pool for batch
// evaluation. The pool is started immediately and stopped via Close.
func NewEngine(ctx context.Context, store storage.DetectionRuleStore, opts EngineOptions, logger *zap.SugaredLogger) (*Engine, error) {
	cache, err := NewRuleCache(opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("rule cache: %w", err)
	}
	workers := opts.BatchWorkers
	if workers <= 0 {
		workers = 4
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = workers * 16
	}
	pool := core.NewWorkerPool(ctx, workers, queueSize, "detect_batch", logger)
	pool.Start()
	return &Engine{
		store:         store,
		cache:         cache,
		pool:          pool,
		logger:        logger,
		caseSensitive: opts.CaseSensitive,
	}, nil
}

// Close stops the batch worker pool.
func (e *Engine) Close() {
	e.pool.Stop()
}

// InvalidateRule drops a rule's compiled form from the cache. The content
// hash already invalidates edited rules lazily; this exists for deletes.
func (e *Engine) InvalidateRule(ruleID string) {
	e.cache.Invalidate(ruleID)
}

// EvaluateLog runs every active rule in scope against a single log entry.
// Rule failures are isolated: a rule that fails to compile or panics during
// evaluation is logged and skipped, and the remaining rules still run.
func (e *Engine) EvaluateLog(ctx context.Context, entry *core.LogEntry, orgID string, projectID *string) (*core.DetectionResult, error) {
	docs, err := e.store.ListActiveDetectionRules(ctx, orgID, projectID)
	if err != nil {
		return nil, fmt.Errorf("list detection rules: %w", err)
	}
	return e.evaluateAgainst(docs, entry), nil
}

// EvaluateBatch evaluates a batch of log entries against a single rule
// snapshot loaded once up front. Entries are fanned out across the worker
// pool; results are positionally aligned with the input.
func (e *Engine) EvaluateBatch(ctx context.Context, entries []*core.LogEntry, orgID string, projectID *string) ([]*core.DetectionResult, error) {
	docs, err := e.store.ListActiveDetectionRules(ctx, orgID, projectID)
	if err != nil {
		return nil, fmt.Errorf("list detection rules: %w", err)
	}

	results := make([]*core.DetectionResult, len(entries))
	var wg sync.WaitGroup
	for i, entry := range entries {
		i, entry := i, entry
		wg.Add(1)
		task := func() {
			defer wg.Done()
			results[i] = e.evaluateAgainst(docs, entry)
		}
		if err := e.pool.Submit(task); err != nil {
			// Submit blocks on a full queue and only errors once the pool
			// is stopped. Evaluate inline rather than dropping the entry.
			results[i] = e.evaluateAgainst(docs, entry)
			wg.Done()
		}
	}
	wg.Wait()
	return results, nil
}

func (e *Engine) evaluateAgainst(docs []*rules.RuleDocument, entry *core.LogEntry) *core.DetectionResult {
	start := time.Now()
	result := &core.DetectionResult{LogID: entry.ID}

	var record core.FlattenedRecord
	for _, doc := range docs {
		matched, err := e.evaluateOne(doc, entry, &record)
		if err != nil {
			metrics.RuleEvalErrors.WithLabelValues(doc.ID).Inc()
			e.logger.Warnw("rule evaluation failed", "rule_id", doc.ID, "log_id", entry.ID, "error", err)
			continue
		}
		if matched {
			tactics, techniques := rules.ExtractAttackTags(doc.Tags)
			result.Matches = append(result.Matches, core.MatchedRule{
				RuleID:     doc.ID,
				Title:      doc.Title,
				Level:      doc.Level,
				Tags:       doc.Tags,
				Tactics:    tactics,
				Techniques: techniques,
				MatchedAt:  time.Now().UTC(),
			})
			metrics.RuleMatches.WithLabelValues(doc.ID, doc.Level).Inc()
		}
	}
	result.Matched = len(result.Matches) > 0

	// Most severe matches first; the stable sort preserves store order for
	// rules of equal severity.
	sort.SliceStable(result.Matches, func(i, j int) bool {
		return core.SeverityRank(result.Matches[i].Level) > core.SeverityRank(result.Matches[j].Level)
	})

	metrics.LogsEvaluated.Inc()
	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	return result
}

// evaluateOne runs a single rule against a single entry. The flattened
// record is built lazily and shared across rules for the same entry; the
// logsource gate runs first so non-matching sources skip flattening
// entirely when no prior rule forced it.
func (e *Engine) evaluateOne(doc *rules.RuleDocument, entry *core.LogEntry, record *core.FlattenedRecord) (matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			matched = false
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if !MatchLogsource(doc.Logsource, entry) {
		return false, nil
	}

	compiled := e.cache.Get(doc)
	if compiled == nil {
		var cerr error
		compiled, cerr = e.cache.Compile(doc)
		if cerr != nil {
			return false, fmt.Errorf("compile: %w", cerr)
		}
	}

	if *record == nil {
		*record = Flatten(entry)
	}

	selResults := make(map[string]bool, len(doc.Selections))
	for name, sel := range doc.Selections {
		selResults[name] = MatchSelection(*record, sel, e.caseSensitive)
	}

	return compiled.AST.Evaluate(selResults), nil
}

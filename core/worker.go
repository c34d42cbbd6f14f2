package core

import (
	"context"
	"errors"
	"sync"

	"logward/metrics"

	"go.uber.org/zap"
)

// WorkerPool is a generic pool for parallel task processing. Batch detection
// uses it to fan log evaluation out across goroutines while the rule set
// stays read-only for the duration of the batch.
type WorkerPool struct {
	workers   int
	queueSize int
	taskCh    chan func()
	wg        sync.WaitGroup
	logger    *zap.SugaredLogger
	ctx       context.Context
	cancel    context.CancelFunc
	running   bool
	mu        sync.RWMutex
	poolType  string
}

// NewWorkerPool creates a worker pool. Workers do not start until Start()
// is called; cancelling parentCtx stops them the same way Stop() does.
func NewWorkerPool(parentCtx context.Context, workers, queueSize int, poolType string, logger *zap.SugaredLogger) *WorkerPool {
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	if workers < 1 {
		workers = 1
	}
	if poolType == "" {
		poolType = "default"
	}
	ctx, cancel := context.WithCancel(parentCtx)
	return &WorkerPool{
		workers:   workers,
		queueSize: queueSize,
		taskCh:    make(chan func(), queueSize),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		poolType:  poolType,
	}
}

// Start begins processing tasks. Safe to call more than once.
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.running {
		return
	}
	wp.running = true

	wp.logger.Infof("Starting %s worker pool with %d workers, queue size %d", wp.poolType, wp.workers, wp.queueSize)
	metrics.WorkerPoolActiveWorkers.WithLabelValues(wp.poolType).Set(float64(wp.workers))

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for {
		select {
		case task, ok := <-wp.taskCh:
			if !ok {
				return
			}
			wp.runTask(task)
		case <-wp.ctx.Done():
			wp.drain()
			return
		}
	}
}

// drain runs whatever tasks are already queued. A task accepted by Submit
// must execute even when shutdown cuts the worker loop short, otherwise a
// caller waiting on its completion hangs.
func (wp *WorkerPool) drain() {
	for {
		select {
		case task, ok := <-wp.taskCh:
			if !ok {
				return
			}
			wp.runTask(task)
		default:
			return
		}
	}
}

// runTask executes one task, recovering panics so a single bad task cannot
// take a worker down.
func (wp *WorkerPool) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Errorf("Worker pool %s task panicked: %v", wp.poolType, r)
		}
	}()
	task()
}

// ErrPoolStopped is returned by Submit after the pool has been stopped.
var ErrPoolStopped = errors.New("worker pool stopped")

// Submit queues a task for execution, blocking when the queue is full. The
// read lock is held across the send so Stop cannot close the channel under
// a sender.
func (wp *WorkerPool) Submit(task func()) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if !wp.running {
		return ErrPoolStopped
	}

	select {
	case wp.taskCh <- task:
		return nil
	case <-wp.ctx.Done():
		return ErrPoolStopped
	}
}

// Stop closes the task channel and waits for workers to finish whatever is
// queued. Every task accepted before Stop runs to completion. Safe to call
// more than once.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if !wp.running {
		wp.mu.Unlock()
		return
	}
	wp.running = false
	close(wp.taskCh)
	wp.mu.Unlock()

	wp.wg.Wait()
	wp.cancel()
	metrics.WorkerPoolActiveWorkers.WithLabelValues(wp.poolType).Set(0)
	wp.logger.Infof("Worker pool %s stopped", wp.poolType)
}

package notify

import (
	"context"
	"errors"
	"sync"

	"logward/core"
)

// ErrQueueClosed is returned by MockQueue when failure injection is on.
var ErrQueueClosed = errors.New("queue closed")

// MockQueue is an in-memory JobQueue for tests.
type MockQueue struct {
	mu   sync.Mutex
	jobs []core.NotificationJob
	fail bool
}

func NewMockQueue() *MockQueue {
	return &MockQueue{}
}

func (q *MockQueue) Enqueue(_ context.Context, job core.NotificationJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail {
		return ErrQueueClosed
	}
	q.jobs = append(q.jobs, job)
	return nil
}

// Jobs returns a copy of everything enqueued so far.
func (q *MockQueue) Jobs() []core.NotificationJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]core.NotificationJob, len(q.jobs))
	copy(out, q.jobs)
	return out
}

// SetFail toggles enqueue failure injection.
func (q *MockQueue) SetFail(fail bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.fail = fail
}

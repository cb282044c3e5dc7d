package usecase

import (
	"context"
	"sync"

	"taskflow-backend/pkg/metrics"

	"go.uber.org/zap"
)

// Runner executes one research request
type Runner interface {
	RequestResearch(ctx context.Context, taskID string) Outcome
}

// Queue hands research requests to a fixed pool of workers.
// Enqueue never blocks: a full queue rejects the request.
type Queue struct {
	runner      Runner
	jobs        chan string
	workerCount int
	metrics     *metrics.Metrics
	logger      *zap.Logger

	mu      sync.Mutex
	pending map[string]bool
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// NewQueue creates a queue with the given worker count and buffer size
func NewQueue(runner Runner, workerCount, size int, m *metrics.Metrics, logger *zap.Logger) *Queue {
	if workerCount <= 0 {
		workerCount = 2
	}
	if size <= 0 {
		size = 100
	}
	return &Queue{
		runner:      runner,
		jobs:        make(chan string, size),
		workerCount: workerCount,
		metrics:     m,
		logger:      logger.Named("research-queue"),
		pending:     make(map[string]bool),
	}
}

// Start launches the workers
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started || q.stopped {
		return
	}
	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.started = true
	q.logger.Info("workers started", zap.Int("workers", q.workerCount))
}

// Stop refuses new work, lets the workers drain what is queued and waits for them
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.jobs)
	started := q.started
	q.mu.Unlock()

	if started {
		q.wg.Wait()
	}
	q.logger.Info("workers stopped")
}

// Enqueue schedules research for a task. A task already waiting in the queue is not
// queued twice. It returns false when the queue is full or stopped.
func (q *Queue) Enqueue(taskID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return false
	}
	if q.pending[taskID] {
		return true
	}

	select {
	case q.jobs <- taskID:
		q.pending[taskID] = true
		return true
	default:
		q.metrics.QueueRejected()
		q.logger.Warn("queue full, dropping research request", zap.String("task_id", taskID))
		return false
	}
}

// Pending reports how many requests are waiting for a worker
func (q *Queue) Pending() int {
	return len(q.jobs)
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()

	for taskID := range q.jobs {
		// Cleared before running so an edit made mid-run queues a fresh request
		q.mu.Lock()
		delete(q.pending, taskID)
		q.mu.Unlock()

		q.run(id, taskID)
	}
}

func (q *Queue) run(worker int, taskID string) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("research worker recovered from panic", zap.Int("worker", worker), zap.String("task_id", taskID), zap.Any("panic", r))
		}
	}()

	out := q.runner.RequestResearch(context.Background(), taskID)
	if out.Error != nil && out.Error.Code == CodeResearchFailed {
		q.logger.Warn("research request failed", zap.Int("worker", worker), zap.String("task_id", taskID), zap.String("error", out.Error.Message))
	}
}

// Package scheduler runs the periodic background jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taskflow-backend/pkg/metrics"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobFunc is one pass of a background job
type JobFunc func(ctx context.Context) error

type intervalJob struct {
	name     string
	interval time.Duration
	run      JobFunc
}

type cronJob struct {
	name string
	spec string
	run  JobFunc
}

// Scheduler runs interval jobs on tickers and calendar jobs on a cron.
// Every job runs once when the scheduler starts.
type Scheduler struct {
	metrics *metrics.Metrics
	logger  *zap.Logger

	intervals []intervalJob
	crons     []cronJob

	cron     *cron.Cron
	stopChan chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	started  bool
	stopped  bool
}

func New(m *metrics.Metrics, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		metrics:  m,
		logger:   logger.Named("scheduler"),
		cron:     cron.New(cron.WithLocation(time.UTC)),
		stopChan: make(chan struct{}),
	}
}

// Every registers a job that runs each interval
func (s *Scheduler) Every(name string, interval time.Duration, run JobFunc) {
	s.intervals = append(s.intervals, intervalJob{name: name, interval: interval, run: run})
}

// Cron registers a job on a standard five-field cron spec
func (s *Scheduler) Cron(name, spec string, run JobFunc) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule for %s: %w", name, err)
	}
	s.crons = append(s.crons, cronJob{name: name, spec: spec, run: run})
	return nil
}

// Start launches every registered job. It is a no-op after the first call.
func (s *Scheduler) Start(parent context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return nil
	}
	s.started = true

	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel

	for _, job := range s.crons {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() { s.execute(ctx, job.name, job.run) }); err != nil {
			cancel()
			return fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.execute(ctx, job.name, job.run)
		}()
	}
	s.cron.Start()

	for _, job := range s.intervals {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}

	s.logger.Info("started", zap.Int("interval_jobs", len(s.intervals)), zap.Int("cron_jobs", len(s.crons)))
	return nil
}

func (s *Scheduler) loop(ctx context.Context, job intervalJob) {
	defer s.wg.Done()

	// Run immediately on start
	s.execute(ctx, job.name, job.run)

	ticker := time.NewTicker(job.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.execute(ctx, job.name, job.run)
		case <-s.stopChan:
			return
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, name string, run JobFunc) {
	if ctx.Err() != nil {
		return
	}
	s.metrics.JobRun(name)
	if err := run(ctx); err != nil {
		s.metrics.JobFailure(name)
		s.logger.Error("job failed", zap.String("job", name), zap.Error(err))
	}
}

// countFailures records owners a batch job could not process
func (s *Scheduler) countFailures(name string, n int) {
	for i := 0; i < n; i++ {
		s.metrics.JobFailure(name)
	}
}

// Stop ends every loop and waits for running jobs to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	s.mu.Unlock()

	close(s.stopChan)
	if !started {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("stopped")
}

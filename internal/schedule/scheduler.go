// Package schedule provides recurring and one-shot deferred execution for
// the snapshot engine.
//
// The scheduler owns an in-memory job registry; there is no distributed
// coordination, so one process per deployment holds scheduling authority.
// Cron and timer triggers never execute work inline: they enqueue onto a
// bounded worker pool, keeping the trigger threads unblocked.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/telemetry/logger"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/telemetry/metric"
)

// Task is one unit of deferred work.
type Task func(ctx context.Context) error

// JobHandle identifies a registered job.
type JobHandle string

// Config configures the scheduler.
type Config struct {
	// Location interprets cron expressions. Defaults to UTC.
	Location *time.Location

	// Workers bounds concurrent task executions. Defaults to 2.
	Workers int

	Logger  logger.Logger
	Metrics *metric.Registry
}

type jobEntry struct {
	name    string
	entryID cron.EntryID // recurring jobs
	timer   *time.Timer  // one-shot jobs
}

// Scheduler runs registered jobs. The registry is guarded by a single
// mutex; job set changes are infrequent and cheap.
type Scheduler struct {
	cron    *cron.Cron
	queue   chan queuedTask
	workers int
	logger  logger.Logger
	metrics *metric.Registry

	mu      sync.Mutex
	jobs    map[JobHandle]*jobEntry
	nextID  uint64
	started bool
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type queuedTask struct {
	name string
	task Task
}

// New creates a scheduler. Call Start to begin firing jobs.
func New(cfg Config) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Workers < 1 {
		cfg.Workers = 2
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(cfg.Location)),
		queue:   make(chan queuedTask, cfg.Workers*4),
		workers: cfg.Workers,
		logger:  cfg.Logger.With("component", "scheduler"),
		metrics: cfg.Metrics,
		jobs:    make(map[JobHandle]*jobEntry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ScheduleRecurring registers a named cron job. The name doubles as the
// handle, so config-driven jobs stay addressable across restarts.
func (s *Scheduler) ScheduleRecurring(name, spec string, task Task) (JobHandle, error) {
	if name == "" {
		return "", domain.ErrBadSchedule.WithDetails("job name is required")
	}
	handle := JobHandle(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[handle]; exists {
		return "", domain.ErrBadSchedule.WithDetails("job " + name + " already registered")
	}

	entryID, err := s.cron.AddFunc(spec, func() {
		s.enqueue(name, task)
	})
	if err != nil {
		return "", domain.ErrBadSchedule.WithDetails("parse cron spec " + spec).WithCause(err)
	}

	s.jobs[handle] = &jobEntry{name: name, entryID: entryID}
	s.logger.Info("recurring job registered", "job", name, "spec", spec)
	return handle, nil
}

// ScheduleOnce registers a job that fires once at the given time and then
// removes itself from the registry, whether it succeeds or fails.
func (s *Scheduler) ScheduleOnce(at time.Time, task Task) (JobHandle, error) {
	delay := time.Until(at)
	if delay < 0 {
		return "", domain.ErrBadSchedule.WithDetails("one-shot time is in the past")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	handle := JobHandle(fmt.Sprintf("once-%d", s.nextID))
	name := string(handle)

	timer := time.AfterFunc(delay, func() {
		s.remove(handle)
		s.enqueue(name, task)
	})
	s.jobs[handle] = &jobEntry{name: name, timer: timer}
	s.logger.Info("one-shot job registered", "job", name, "at", at)
	return handle, nil
}

// Cancel removes a job from the registry. A pending one-shot never fires;
// a recurring job stops recurring. In-flight executions finish.
func (s *Scheduler) Cancel(handle JobHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.jobs[handle]
	if !ok {
		return domain.ErrJobNotFound.WithDetails(string(handle))
	}
	if entry.timer != nil {
		entry.timer.Stop()
	} else {
		s.cron.Remove(entry.entryID)
	}
	delete(s.jobs, handle)
	s.logger.Info("job cancelled", "job", entry.name)
	return nil
}

// Jobs returns the registered job names, for inspection.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jobs))
	for _, e := range s.jobs {
		out = append(out, e.name)
	}
	return out
}

// Start launches the worker pool and the cron loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "workers", s.workers)
}

// Stop stops firing jobs and drains in-flight work. Tasks still sitting in
// the queue are not guaranteed to run.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	for _, e := range s.jobs {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	s.mu.Unlock()

	cronCtx := s.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) remove(handle JobHandle) {
	s.mu.Lock()
	delete(s.jobs, handle)
	s.mu.Unlock()
}

// enqueue hands a fired job to the worker pool without blocking the
// trigger thread. When the queue is saturated the run is skipped and
// counted, never queued behind an unbounded backlog.
func (s *Scheduler) enqueue(name string, task Task) {
	select {
	case s.queue <- queuedTask{name: name, task: task}:
	default:
		s.logger.Warn("worker queue full, run skipped", "job", name)
		if s.metrics != nil {
			s.metrics.SchedulerRuns.WithLabelValues(name, "skipped").Inc()
		}
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case q := <-s.queue:
			s.run(q)
		}
	}
}

func (s *Scheduler) run(q queuedTask) {
	start := time.Now()
	err := q.task(s.ctx)
	outcome := "success"
	if err != nil {
		outcome = "failure"
		s.logger.Error("job run failed", "job", q.name, "error", err, "duration", time.Since(start))
	} else {
		s.logger.Debug("job run finished", "job", q.name, "duration", time.Since(start))
	}
	if s.metrics != nil {
		s.metrics.SchedulerRuns.WithLabelValues(q.name, outcome).Inc()
	}
}

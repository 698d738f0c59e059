package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pricecollector/internal/metrics"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one unit of scheduled work. ctx is canceled when the scheduler stops.
type Job func(ctx context.Context) error

// Scheduler runs named jobs on standard five-field cron specs in a fixed timezone.
// A job still running when its next tick fires is skipped for that tick.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	jobs    map[string]Job
	entries map[string]cron.EntryID
}

func New(loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cl := cronLogger{logger.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers job under name. Names are unique.
func (s *Scheduler) Add(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job already registered: %s", name)
	}

	id, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}

	s.jobs[name] = job
	s.entries[name] = id
	s.logger.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// RunNow runs a registered job synchronously, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job: %s", name)
	}
	return s.run(name, job)
}

// Next returns the next activation of a registered job, or the zero time when the
// scheduler is not running.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

func (s *Scheduler) run(name string, job Job) error {
	start := time.Now()
	log := s.logger.With(zap.String("job", name))
	log.Info("job started")

	err := job(s.ctx)
	if err != nil {
		metrics.RecordJob(name, "error")
		log.Warn("job failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return err
	}

	metrics.RecordJob(name, "ok")
	log.Info("job finished", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// cronLogger routes cron's own messages to zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

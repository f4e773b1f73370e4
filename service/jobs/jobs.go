// Package jobs runs the periodic background work on independent tickers.
// Every run is guarded by a lease so that a job executes on one worker at a time.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smsflow/smsflow/pkg/otellib"
	"github.com/smsflow/smsflow/pkg/promlib"
	"go.uber.org/zap"
)

// Job names
const (
	ProcessQueue   = "process-queue"
	RunScheduled   = "run-scheduled"
	Reconcile      = "reconcile"
	RecoverFailed  = "recover-failed"
	CleanupOverdue = "cleanup-overdue"
	CheckIntegrity = "check-integrity"
)

//go:generate moq -out jobs_mocks_test.go . Locker

// Locker hands out named leases
type Locker interface {
	TryAcquire(name string, ttl time.Duration) (bool, error)
	Release(name string) error
}

type noLock struct {
}

// NoLock always acquires, for single worker deployments
func NoLock() Locker {
	return noLock{}
}

func (noLock) TryAcquire(string, time.Duration) (bool, error) {
	return true, nil
}

func (noLock) Release(string) error {
	return nil
}

// ErrLeaseHeld is returned by Run when another worker holds the lease of the job
var ErrLeaseHeld = errors.New("jobs: lease held by another worker")

// Job ...
type Job struct {
	Name string

	// Interval of zero disables the ticker, the job can still be run by name
	Interval time.Duration

	Run func(ctx context.Context) error
}

// Runner ...
type Runner struct {
	locker        Locker
	leaseDuration time.Duration
	logger        *zap.Logger

	jobs  map[string]Job
	order []string
	wg    sync.WaitGroup
}

// NewRunner ...
func NewRunner(locker Locker, leaseDuration time.Duration, logger *zap.Logger) *Runner {
	return &Runner{
		locker:        locker,
		leaseDuration: leaseDuration,
		logger:        logger,
		jobs:          map[string]Job{},
	}
}

// Add registers a job, a job with the same name is replaced
func (r *Runner) Add(job Job) {
	if _, ok := r.jobs[job.Name]; !ok {
		r.order = append(r.order, job.Name)
	}
	r.jobs[job.Name] = job
}

// Names returns the registered jobs in registration order
func (r *Runner) Names() []string {
	return append([]string(nil), r.order...)
}

// Run executes the job once under its lease
func (r *Runner) Run(ctx context.Context, name string) error {
	job, ok := r.jobs[name]
	if !ok {
		return errors.New("jobs: unknown job " + name)
	}
	return r.run(ctx, job)
}

func (r *Runner) run(ctx context.Context, job Job) (err error) {
	logger := r.logger.With(zap.String("job", job.Name))

	acquired, err := r.locker.TryAcquire(job.Name, r.leaseDuration)
	if err != nil {
		logger.Error("acquire job lease", zap.Error(err))
		return err
	}
	if !acquired {
		logger.Debug("job lease held by another worker")
		return ErrLeaseHeld
	}
	defer func() {
		if releaseErr := r.locker.Release(job.Name); releaseErr != nil {
			logger.Warn("release job lease", zap.Error(releaseErr))
		}
	}()

	ctx = otellib.ToContext(ctx, logger)
	ctx, span := otellib.StartSpan(ctx, "jobs."+job.Name)
	defer span.End()

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			logger.Error("job panicked", zap.Any("panic", p))
			promlib.ObserveSince(promlib.JobRuns.WithLabelValues(job.Name, "panic"), start)
			err = errors.New("jobs: panic in " + job.Name)
		}
	}()

	err = job.Run(ctx)
	if err != nil {
		otellib.RecordError(ctx, "job failed", err, zap.Duration("duration", time.Since(start)))
		promlib.ObserveSince(promlib.JobRuns.WithLabelValues(job.Name, "error"), start)
		return err
	}

	promlib.ObserveSince(promlib.JobRuns.WithLabelValues(job.Name, "ok"), start)
	return nil
}

// Start launches one ticker goroutine per job with a positive interval, they exit when ctx is done
func (r *Runner) Start(ctx context.Context) {
	for _, name := range r.Names() {
		job := r.jobs[name]
		if job.Interval <= 0 {
			r.logger.Info("job disabled", zap.String("job", job.Name))
			continue
		}

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.loop(ctx, job)
		}()
	}
}

func (r *Runner) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	r.logger.Info("job started", zap.String("job", job.Name), zap.Duration("interval", job.Interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job stopped", zap.String("job", job.Name))
			return
		case <-ticker.C:
			_ = r.run(ctx, job)
		}
	}
}

// Wait blocks until every job goroutine exited
func (r *Runner) Wait() {
	r.wg.Wait()
}

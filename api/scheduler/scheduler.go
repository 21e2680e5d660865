// Package scheduler runs the periodic payment maintenance jobs
package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/linesmerrill/vehicle-tax-api/locks"
)

// ExpiryJobName is the lock name of the expiry sweep
const ExpiryJobName = "expire_stale_payments"

// Expirer moves stale pending attempts to expired
type Expirer interface {
	ExpireStale(ctx context.Context, maxAge time.Duration) (int, error)
}

// Scheduler handles periodic background jobs
type Scheduler struct {
	cron       *cron.Cron
	Payments   Expirer
	LockDB     locks.JobLocker
	MaxAge     time.Duration
	Schedule   string
	instanceID string
}

// NewScheduler creates a new scheduler instance
func NewScheduler(payments Expirer, lockDB locks.JobLocker, schedule string, maxAge time.Duration) *Scheduler {
	// Generate a unique instance ID for this pod
	instanceID := os.Getenv("DYNO") // Heroku sets this to "web.1", "web.2", etc.
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		Payments:   payments,
		LockDB:     lockDB,
		MaxAge:     maxAge,
		Schedule:   schedule,
		instanceID: instanceID,
	}
}

// Start registers the sweep and starts the cron loop
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.Schedule, s.ExpireStalePayments); err != nil {
		return fmt.Errorf("failed to register expiry job %q: %w", s.Schedule, err)
	}
	s.cron.Start()
	zap.S().Infow("payment scheduler started",
		"schedule", s.Schedule,
		"maxAge", s.MaxAge,
		"instance", s.instanceID)
	return nil
}

// Stop gracefully stops the scheduler, waiting for a running job
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("payment scheduler stopped")
}

// ExpireStalePayments runs one sweep if no other instance holds the job lock
func (s *Scheduler) ExpireStalePayments() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	acquired, err := s.LockDB.TryAcquireLock(ctx, ExpiryJobName, s.instanceID, 10*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for expiry job", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("expiry job already running on another instance, skipping")
		return
	}
	defer func() {
		if err := s.LockDB.ReleaseLock(context.Background(), ExpiryJobName, s.instanceID); err != nil {
			zap.S().Warnw("failed to release expiry job lock", "error", err)
		}
	}()

	n, err := s.Payments.ExpireStale(ctx, s.MaxAge)
	if err != nil {
		zap.S().Errorw("expiry sweep finished with errors",
			"expired", n,
			"error", err)
		return
	}
	zap.S().Infow("expiry sweep complete",
		"expired", n,
		"instance", s.instanceID)
}

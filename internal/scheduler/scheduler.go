// Package scheduler provides cron-based canary notices that exercise the
// delivery pipeline end to end.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/powa-team/errnotify/internal/model"
	"github.com/powa-team/errnotify/internal/notice"
	"github.com/powa-team/errnotify/internal/notifier"
)

// DefaultCanaryTimeout bounds a single canary delivery.
const DefaultCanaryTimeout = 30 * time.Second

// Sender delivers a notice and waits for the outcome.
type Sender interface {
	NotifySync(ctx context.Context, err error, opts ...notifier.NoticeOption) (*model.Response, error)
}

// CanaryError is the synthetic error sent on every run.
type CanaryError struct {
	RunID string
}

func (e *CanaryError) Error() string {
	return fmt.Sprintf("errnotify canary %s", e.RunID)
}

// Scheduler manages scheduled canary runs.
type Scheduler struct {
	cron    *cron.Cron
	sender  Sender
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	running bool
	sending int32 // atomic flag to prevent overlapping runs

	last atomic.Pointer[model.Response]
}

// New creates a new Scheduler. Cron expressions take a seconds field and
// are interpreted in loc; a nil loc means UTC.
func New(sender Sender, logger *zap.Logger, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		sender:  sender,
		logger:  logger.Named("canary"),
		timeout: DefaultCanaryTimeout,
	}
}

// SetTimeout sets the timeout for a single canary delivery.
func (s *Scheduler) SetTimeout(timeout time.Duration) {
	s.timeout = timeout
}

// Schedule adds a canary job with the given cron expression.
func (s *Scheduler) Schedule(cronExpr string) error {
	if _, err := s.cron.AddFunc(cronExpr, s.runCanary); err != nil {
		return fmt.Errorf("scheduling canary %q: %w", cronExpr, err)
	}
	return nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("Scheduler started")
}

// Stop halts all scheduled jobs. The returned context is done once a
// running canary has finished.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return context.Background()
	}

	ctx := s.cron.Stop()
	s.running = false
	s.logger.Info("Scheduler stopped")
	return ctx
}

// RunNow triggers an immediate canary run (bypassing schedule).
func (s *Scheduler) RunNow() {
	s.runCanary()
}

// runCanary sends one canary notice. Overlapping runs are skipped.
func (s *Scheduler) runCanary() {
	if !atomic.CompareAndSwapInt32(&s.sending, 0, 1) {
		s.logger.Info("Canary already in progress, skipping this run")
		return
	}
	defer atomic.StoreInt32(&s.sending, 0)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	runID := uuid.NewString()
	log := s.logger.With(zap.String("run_id", runID))

	resp, err := s.sender.NotifySync(ctx, &CanaryError{RunID: runID},
		notifier.WithSeverity(notice.SeverityInfo))
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			log.Warn("Canary timed out", zap.Duration("timeout", s.timeout))
		} else {
			log.Error("Canary failed", zap.Error(err))
		}
		return
	}

	s.last.Store(resp)
	log.Info("Canary completed",
		zap.Stringer("status", resp.Status),
		zap.String("id", resp.ID),
	)
}

// LastResponse returns the outcome of the most recent successful canary
// exchange, or nil.
func (s *Scheduler) LastResponse() *model.Response {
	return s.last.Load()
}

// IsRunning returns whether the scheduler is currently active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// IsSending returns whether a canary is currently in flight.
func (s *Scheduler) IsSending() bool {
	return atomic.LoadInt32(&s.sending) == 1
}

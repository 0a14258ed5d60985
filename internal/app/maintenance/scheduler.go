package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/clinic/internal/services"
	"github.com/charlesng35/clinic/pkg/logger"
)

const (
	defaultSyncSpec   = "@every 1m"
	defaultTokenSpec  = "@hourly"
	defaultJobTimeout = 5 * time.Minute
)

// SyncRunner performs one last-connected synchronisation pass.
type SyncRunner interface {
	Run(ctx context.Context) (services.SyncResult, error)
}

// TokenCleaner drops expired password reset tokens.
type TokenCleaner interface {
	ClearExpiredResetTokens(ctx context.Context) (int64, error)
}

// Scheduler runs the periodic background jobs: relaying last-connected facts from the cache to the
// database and purging expired reset tokens. Job failures are logged and never propagated.
type Scheduler struct {
	sync   SyncRunner
	tokens TokenCleaner
	cron   *cron.Cron
	log    *zap.Logger

	syncSchedule  string
	tokenSchedule string
	jobTimeout    time.Duration
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithSyncSchedule overrides the cron specification for the last-connected sync.
func WithSyncSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.syncSchedule = spec
		}
	}
}

// WithTokenSchedule overrides the cron specification for reset token cleanup.
func WithTokenSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.tokenSchedule = spec
		}
	}
}

// WithJobTimeout bounds each job execution.
func WithJobTimeout(timeout time.Duration) Option {
	return func(s *Scheduler) {
		if timeout > 0 {
			s.jobTimeout = timeout
		}
	}
}

// WithLogger replaces the module logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// NewScheduler constructs a Scheduler. A nil dependency disables the corresponding job.
func NewScheduler(sync SyncRunner, tokens TokenCleaner, opts ...Option) *Scheduler {
	s := &Scheduler{
		sync:          sync,
		tokens:        tokens,
		syncSchedule:  defaultSyncSpec,
		tokenSchedule: defaultTokenSpec,
		jobTimeout:    defaultJobTimeout,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		cl := cronLogger{log: s.log}
		s.cron = cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		)
	}

	return s
}

// Start registers the enabled jobs and launches the scheduler.
func (s *Scheduler) Start() error {
	if s.sync == nil && s.tokens == nil {
		return nil
	}

	if s.sync != nil {
		if _, err := s.cron.AddFunc(s.syncSchedule, func() { s.runJob(s.syncLastConnected) }); err != nil {
			return fmt.Errorf("schedule last connected sync %q: %w", s.syncSchedule, err)
		}
	}

	if s.tokens != nil {
		if _, err := s.cron.AddFunc(s.tokenSchedule, func() { s.runJob(s.clearResetTokens) }); err != nil {
			return fmt.Errorf("schedule reset token cleanup %q: %w", s.tokenSchedule, err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler. The returned context is done once running jobs complete.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes every enabled job sequentially and returns their combined errors.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if s.sync != nil {
		errs = multierr.Append(errs, s.syncLastConnected(ctx))
	}
	if s.tokens != nil {
		errs = multierr.Append(errs, s.clearResetTokens(ctx))
	}
	return errs
}

func (s *Scheduler) runJob(job func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	// Failures are already logged by the job itself.
	_ = job(ctx)
}

func (s *Scheduler) syncLastConnected(ctx context.Context) error {
	result, err := s.sync.Run(ctx)
	switch {
	case errors.Is(err, services.ErrSyncInProgress):
		s.log.Info("last connected sync skipped", zap.String("reason", "previous run still active"))
		return nil
	case err != nil:
		s.log.Warn("last connected sync failed", zap.Error(err))
		return err
	}

	s.log.Info("last connected sync finished", zap.String("outcome", result.String()))
	return nil
}

func (s *Scheduler) clearResetTokens(ctx context.Context) error {
	cleared, err := s.tokens.ClearExpiredResetTokens(ctx)
	if err != nil {
		s.log.Warn("reset token cleanup failed", zap.Error(err))
		return err
	}
	if cleared > 0 {
		s.log.Info("expired reset tokens cleared", zap.Int64("count", cleared))
	}
	return nil
}

// cronLogger routes cron's own diagnostics through zap.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}

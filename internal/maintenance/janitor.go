// Package maintenance runs periodic housekeeping over the record store.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/taskhub/internal/logging"
	"github.com/example/taskhub/internal/persistence"
)

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("maintenance: janitor already started")

// DisabledSchedule turns the periodic sweep off.
const DisabledSchedule = "off"

// Janitor removes instances whose master record no longer exists.
type Janitor struct {
	store   persistence.RecordStore
	logger  *slog.Logger
	timeout time.Duration

	mu   sync.Mutex
	cron *cron.Cron
}

// Option customises a Janitor.
type Option func(*Janitor)

// WithSweepTimeout bounds a single scheduled sweep.
func WithSweepTimeout(d time.Duration) Option {
	return func(j *Janitor) {
		j.timeout = d
	}
}

// NewJanitor builds a janitor over store.
func NewJanitor(store persistence.RecordStore, logger *slog.Logger, opts ...Option) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	j := &Janitor{store: store, logger: logger.With("component", "janitor"), timeout: time.Minute}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Sweep deletes every orphaned instance in one unit of work and reports how
// many were removed.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	removed := 0
	err := j.store.WithinTx(ctx, func(ctx context.Context, tx persistence.RecordTx) error {
		orphans, err := tx.FindOrphanedInstances(ctx)
		if err != nil {
			return fmt.Errorf("find orphaned instances: %w", err)
		}
		if len(orphans) == 0 {
			return nil
		}
		if err := tx.DeleteAll(ctx, orphans); err != nil {
			return fmt.Errorf("delete orphaned instances: %w", err)
		}
		removed = len(orphans)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Start schedules Sweep with a cron spec such as "@every 1h" or
// "0 3 * * *". An empty spec or DisabledSchedule leaves the janitor idle.
func (j *Janitor) Start(spec string) error {
	if spec == "" || spec == DisabledSchedule {
		j.logger.Info("orphan sweep disabled")
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron != nil {
		return ErrAlreadyStarted
	}

	c := cron.New(cron.WithChain(cron.Recover(cronLogger{j.logger}), cron.SkipIfStillRunning(cronLogger{j.logger})))
	if _, err := c.AddFunc(spec, j.runScheduled); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", spec, err)
	}
	c.Start()
	j.cron = c

	j.logger.Info("orphan sweep scheduled", "schedule", spec)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to
// end.
func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.mu.Unlock()

	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Janitor) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	ctx = logging.ContextWithLogger(ctx, j.logger)

	started := time.Now()
	removed, err := j.Sweep(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "orphan sweep failed", "error", err)
		return
	}
	if removed > 0 {
		j.logger.InfoContext(ctx, "orphan sweep removed instances", "removed", removed, "duration", time.Since(started))
		return
	}
	j.logger.DebugContext(ctx, "orphan sweep found nothing", "duration", time.Since(started))
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Skotchmaster/authtrust/pkg/metrics"
)

type Func func(ctx context.Context) (int64, error)

// Sweeper runs periodic cleanup jobs. A job that is still running when its
// next tick arrives is skipped rather than stacked.
type Sweeper struct {
	c       *cron.Cron
	log     *slog.Logger
	metrics *metrics.Metrics
}

func New(log *slog.Logger, m *metrics.Metrics) *Sweeper {
	adapter := cronLogger{l: log}
	return &Sweeper{
		c:       cron.New(cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter))),
		log:     log,
		metrics: m,
	}
}

func (s *Sweeper) Every(interval time.Duration, name string, fn Func) error {
	if interval <= 0 {
		return fmt.Errorf("sweeper %s: interval must be positive", name)
	}
	if _, err := s.c.AddFunc("@every "+interval.String(), s.job(interval, name, fn)); err != nil {
		return fmt.Errorf("sweeper %s: %w", name, err)
	}
	return nil
}

func (s *Sweeper) job(timeout time.Duration, name string, fn Func) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		n, err := fn(ctx)
		if err != nil {
			s.log.Error("sweep_failed", "job", name, "error", err)
			return
		}
		if s.metrics != nil {
			s.metrics.Swept.WithLabelValues(name).Add(float64(n))
		}
		s.log.Info("sweep_completed", "job", name, "removed", n, "duration_ms", time.Since(start).Milliseconds())
	}
}

func (s *Sweeper) Jobs() int { return len(s.c.Entries()) }

func (s *Sweeper) Start() { s.c.Start() }

// Stop stops scheduling and waits for running jobs until ctx ends.
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.c.Stop().Done():
	case <-ctx.Done():
	}
}

type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}

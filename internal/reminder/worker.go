package reminder

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-scheduling/internal/metrics"
)

const defaultRunTimeout = 20 * time.Second

// Sender dispatches reminders for appointments due at now.
type Sender interface {
	SendReminders(ctx context.Context, now time.Time) (int, error)
}

type Worker struct {
	sender     Sender
	interval   time.Duration
	runTimeout time.Duration
	now        func() time.Time
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

type Option func(*Worker)

func WithRunTimeout(d time.Duration) Option {
	return func(w *Worker) { w.runTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

func NewWorker(sender Sender, interval time.Duration, logger zerolog.Logger, opts ...Option) *Worker {
	w := &Worker{
		sender:     sender,
		interval:   interval,
		runTimeout: defaultRunTimeout,
		now:        time.Now,
		log:        logger.With().Str("component", "reminder-worker").Logger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run executes one pass immediately and then one per interval until ctx is done.
// A failed pass is logged and the next tick tries again.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("reminder worker started")

	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	runCtx, cancel := context.WithTimeout(ctx, w.runTimeout)
	defer cancel()

	start := time.Now()
	sent, err := w.sender.SendReminders(runCtx, w.now())
	if err != nil {
		w.log.Error().Err(err).Int("reminders", sent).Msg("reminder run failed")
		w.metrics.ObserveReminderRun("error", sent)
		return sent, err
	}

	w.metrics.ObserveReminderRun("ok", sent)
	w.log.Info().
		Int("reminders", sent).
		Dur("took", time.Since(start)).
		Msg("reminder run complete")
	return sent, nil
}

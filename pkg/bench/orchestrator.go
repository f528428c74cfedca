package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ErrNoSuccess is returned for a concurrency level in which every request failed.
var ErrNoSuccess = errors.New("no successful requests")

// Observer is notified of a sweep's progress.
//
// All calls for one sweep happen on the same goroutine.
type Observer interface {
	LevelStarted(concurrency, totalRequests int)
	RequestFinished(concurrency int, result RequestResult)
	LevelFinished(report LevelReport)
}

// Observers fans every notification out to each of its members, in order.
type Observers []Observer

func (obs Observers) LevelStarted(concurrency, totalRequests int) {
	for _, o := range obs {
		o.LevelStarted(concurrency, totalRequests)
	}
}

func (obs Observers) RequestFinished(concurrency int, result RequestResult) {
	for _, o := range obs {
		o.RequestFinished(concurrency, result)
	}
}

func (obs Observers) LevelFinished(report LevelReport) {
	for _, o := range obs {
		o.LevelFinished(report)
	}
}

// Orchestrator sweeps a list of concurrency levels.
type Orchestrator struct {
	Settings Settings
	// Collect executes a single request. Collector.Collect is the usual choice.
	Collect CollectFunc
	// Observer, if set, is notified of progress.
	Observer Observer
	// Logger receives progress records. Nil uses slog.Default.
	Logger *slog.Logger
}

// Sweep runs every level of Settings.ConcurrencyLevels in order, pausing for
// Settings.Cooldown between consecutive levels so in-flight load from one
// level drains before the next one is measured.
//
// A level in which every request failed is reported and the sweep moves on.
// The sweep stops early only if ctx is canceled, in which case the levels
// completed so far are returned along with the context's error.
func (o *Orchestrator) Sweep(ctx context.Context) (SweepReport, error) {
	sweep := SweepReport{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
		Settings:  o.Settings,
	}
	logger := o.logger().With("sweep_id", sweep.ID)

	for i, concurrency := range o.Settings.ConcurrencyLevels {
		if i > 0 && o.Settings.Cooldown > 0 {
			logger.Debug("cooling down", "duration", o.Settings.Cooldown)
			if err := sleepContext(ctx, o.Settings.Cooldown); err != nil {
				sweep.FinishedAt = time.Now()
				return sweep, err
			}
		}

		report, err := o.RunLevel(ctx, concurrency)
		switch {
		case err == nil:
			sweep.Levels = append(sweep.Levels, report)
		case errors.Is(err, ErrNoSuccess):
			logger.Warn("every request failed", "concurrency", concurrency, "failed", report.Failed)
			sweep.Levels = append(sweep.Levels, report)
		default:
			sweep.FinishedAt = time.Now()
			return sweep, fmt.Errorf("concurrency level %d: %w", concurrency, err)
		}
	}

	sweep.FinishedAt = time.Now()
	return sweep, nil
}

// RunLevel dispatches Settings.TotalRequests requests at the given concurrency
// and aggregates them.
//
// If no request succeeded, the report is still returned, together with an
// error wrapping ErrNoSuccess.
func (o *Orchestrator) RunLevel(ctx context.Context, concurrency int) (LevelReport, error) {
	logger := o.logger().With("concurrency", concurrency)
	observer := o.observer()

	observer.LevelStarted(concurrency, o.Settings.TotalRequests)
	logger.Info("starting level", "total_requests", o.Settings.TotalRequests)

	dispatcher := &Dispatcher{
		Concurrency: concurrency,
		OnResult:    func(result RequestResult) { observer.RequestFinished(concurrency, result) },
	}
	if o.Settings.RateLimit > 0 {
		dispatcher.Limiter = rate.NewLimiter(rate.Limit(o.Settings.RateLimit), 1)
	}

	run, err := dispatcher.Run(ctx, o.Settings.TotalRequests, o.Collect)
	if err != nil {
		return LevelReport{}, fmt.Errorf("failed to dispatch requests: %w", err)
	}

	report := NewLevelReport(run)
	observer.LevelFinished(report)
	logger.Info("level complete",
		"succeeded", report.Succeeded, "failed", report.Failed,
		"wall_time", report.WallTime, "system_tps", report.SystemTPS)

	if report.Succeeded == 0 {
		return report, fmt.Errorf("concurrency level %d: %w", concurrency, ErrNoSuccess)
	}
	return report, nil
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o *Orchestrator) observer() Observer {
	if o.Observer == nil {
		return Observers(nil)
	}
	return o.Observer
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

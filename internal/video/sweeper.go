package video

import (
	"context"
	"log/slog"
	"time"

	"fleetwatch-backend/internal/storage"
)

// SweepStore is the slice of the repository the sweeper reads from.
type SweepStore interface {
	ListSuspiciousWithoutVideo(ctx context.Context, since time.Time) ([]storage.AlarmRecord, error)
}

// Launcher abstracts the trigger so sweeps can be tested without spawning
// processes.
type Launcher interface {
	Launch(ctx context.Context, alarm storage.AlarmRecord)
}

// Sweeper periodically re-requests footage for suspicious alarms that still
// have none. Attempts per alarm are capped through the tracker; entries idle
// for three days are pruned since those videos no longer exist upstream.
type Sweeper struct {
	store   SweepStore
	trigger Launcher
	tracker *Tracker
	cfg     SweepConfig
	logger  *slog.Logger
}

const trackerMaxIdle = 72 * time.Hour

func NewSweeper(store SweepStore, trigger Launcher, tracker *Tracker, cfg SweepConfig, logger *slog.Logger) *Sweeper {
	return &Sweeper{store: store, trigger: trigger, tracker: tracker, cfg: cfg.withDefaults(), logger: logger}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)
	ticker := time.NewTicker(s.cfg.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if pruned := s.tracker.Prune(trackerMaxIdle); pruned > 0 {
		s.logger.Info("pruned stale retry tracking", slog.Int("count", pruned))
	}
	since := time.Now().UTC().Add(-s.cfg.lookback())
	alarms, err := s.store.ListSuspiciousWithoutVideo(ctx, since)
	if err != nil {
		s.logger.Error("retry sweep query failed", slog.String("error", err.Error()))
		return
	}
	if len(alarms) == 0 {
		return
	}

	launched := 0
	for _, alarm := range alarms {
		if ctx.Err() != nil {
			return
		}
		count := s.tracker.Count(alarm.GUID)
		if count >= s.cfg.MaxAttempts {
			continue
		}
		attempt := s.tracker.Increment(alarm.GUID)
		s.logger.Info("re-requesting video",
			slog.String("guid", alarm.GUID),
			slog.Int("attempt", attempt),
			slog.Int("maxAttempts", s.cfg.MaxAttempts))
		s.trigger.Launch(ctx, alarm)
		launched++
		if pace := s.cfg.pace(); pace > 0 && launched < len(alarms) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pace):
			}
		}
	}
	s.logger.Info("retry sweep finished",
		slog.Int("candidates", len(alarms)),
		slog.Int("launched", launched))
}

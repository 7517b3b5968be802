package manifest

import (
	"context"
	"log/slog"
	"time"

	"reelcms/pkg/models"
)

// DefaultSweepInterval is how often the background sweep promotes due works.
const DefaultSweepInterval = 60 * time.Second

// ApplySchedules publishes every work whose schedule has passed and reports
// whether anything changed. Works already published are left alone, as are
// schedules that cannot be parsed.
func ApplySchedules(works []models.Work, now time.Time) bool {
	return len(promoteDue(works, now)) > 0
}

func promoteDue(works []models.Work, now time.Time) []string {
	var promoted []string
	for i := range works {
		w := &works[i]
		if w.ScheduledAt == nil || !w.ScheduledAt.Due(now) || w.Published == models.Published {
			continue
		}
		w.Published = models.Published
		w.ScheduledAt = nil
		w.UpdatedAt = now.UnixMilli()
		promoted = append(promoted, w.Slug)
	}
	return promoted
}

// Sweeper periodically promotes due works so the persisted manifest catches
// up even when nobody reads the catalog.
type Sweeper struct {
	Store     *Store
	Interval  time.Duration
	Logger    *slog.Logger
	OnPromote func(slugs []string)
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "schedule-sweep"))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("schedule sweep started", slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			logger.Info("schedule sweep stopped")
			return
		case <-ticker.C:
			s.sweep(ctx, logger)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context, logger *slog.Logger) {
	promoted, err := s.Store.Promote(ctx)
	if err != nil {
		logger.Warn("schedule sweep failed", slog.String("error", err.Error()))
		return
	}
	if len(promoted) == 0 {
		return
	}
	logger.Info("scheduled works published", slog.Int("count", len(promoted)), slog.Any("slugs", promoted))
	if s.OnPromote != nil {
		s.OnPromote(promoted)
	}
}

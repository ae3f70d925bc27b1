package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/FFD-Group/Tidio-Products/internal/config"
	"github.com/FFD-Group/Tidio-Products/internal/domain"
)

// Syncer runs one sync of the given kind.
type Syncer interface {
	Run(ctx context.Context, kind domain.SyncKind) (*domain.SyncResult, error)
}

// Scheduler fires syncs on an hourly UTC schedule: one full catalog sync
// per day and incremental syncs at the configured hours. It replaces an
// external cron dependency so everything stays inside one process.
type Scheduler struct {
	syncer     Syncer
	cfg        config.ScheduleConfig
	runTimeout time.Duration
	logger     *slog.Logger
}

func NewScheduler(syncer Syncer, cfg config.ScheduleConfig, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer:     syncer,
		cfg:        cfg,
		runTimeout: runTimeout,
		logger:     logger.With("component", "scheduler"),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"full_hour", s.cfg.FullHour,
		"incremental_hours", s.cfg.IncrementalHours,
	)

	// Guards against double-firing when a run finishes within the minute
	// it started in.
	lastFiredHour := -1

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-time.After(untilNextMinute(time.Now().UTC())):
		}

		now := time.Now().UTC()
		if now.Minute() != 0 || now.Hour() == lastFiredHour {
			continue
		}
		lastFiredHour = now.Hour()

		kind, ok := s.kindFor(now.Hour())
		if !ok {
			continue
		}
		s.runSync(ctx, kind)
	}
}

// kindFor decides what, if anything, to run at the top of the given hour.
func (s *Scheduler) kindFor(hour int) (domain.SyncKind, bool) {
	if hour == s.cfg.FullHour {
		return domain.SyncFull, true
	}
	for _, h := range s.cfg.IncrementalHours {
		if h == hour {
			return domain.SyncIncremental, true
		}
	}
	return "", false
}

func (s *Scheduler) runSync(ctx context.Context, kind domain.SyncKind) {
	syncCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	s.logger.Info("launching sync", "kind", kind)

	result, err := s.syncer.Run(syncCtx, kind)
	if err != nil {
		s.logger.Error("sync failed", "kind", kind, "error", err)
		return
	}
	if !result.Success() {
		s.logger.Error("sync finished with unsent batches",
			"kind", kind,
			"unsent", result.Unsent,
			"remote_ref", result.RemoteRef,
		)
	}
}

func untilNextMinute(now time.Time) time.Duration {
	next := now.Truncate(time.Minute).Add(time.Minute)
	return next.Sub(now)
}

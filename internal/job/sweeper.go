package job

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is an optional background loop that keeps jobs moving when no
// client is polling them and evicts stalled or abandoned records. When it is
// disabled, progress is purely caller-driven.
type Sweeper struct {
	svc      *Service
	store    Store
	interval time.Duration
	maxAge   time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper that refreshes non-terminal jobs every
// interval and converts jobs older than maxAge to failed (or evicts them if
// already terminal). A maxAge of zero disables age-based eviction.
func NewSweeper(svc *Service, store Store, interval, maxAge time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		svc:      svc,
		store:    store,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger,
	}
}

// Run sweeps on the configured interval until ctx is done.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("job sweeper started",
		slog.Duration("interval", w.interval),
		slog.Duration("max_age", w.maxAge),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("job sweeper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep walks the job table once.
func (w *Sweeper) sweep(ctx context.Context) {
	recs, err := w.store.List(ctx)
	if err != nil {
		w.logger.Warn("sweep: list jobs failed", slog.String("error", err.Error()))
		return
	}

	for _, rec := range recs {
		age := time.Since(rec.CreatedAt)

		if rec.Terminal() {
			if w.maxAge > 0 && age > w.maxAge {
				w.evict(ctx, rec)
			}
			continue
		}

		if w.maxAge > 0 && age > w.maxAge {
			w.expire(ctx, rec.Key)
			continue
		}

		if _, err := w.svc.Refresh(ctx, rec.Key); err != nil {
			w.logger.Warn("sweep: refresh failed",
				slog.String("job_key", rec.Key),
				slog.String("error", err.Error()),
			)
		}
	}
}

// expire converts a stalled job to failed and reclaims its artifacts.
func (w *Sweeper) expire(ctx context.Context, key string) {
	_, err := w.store.Update(ctx, key, func(rec *Record) error {
		if rec.Terminal() {
			return nil
		}
		rec.Fail("job exceeded maximum age")
		w.svc.artifacts.Cleanup(ctx, rec.IntermediatePaths()...)
		rec.VideoPath = ""
		rec.MusicPath = ""
		return nil
	})
	if err != nil {
		w.logger.Warn("sweep: expire failed",
			slog.String("job_key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	w.logger.Info("sweep: stalled job expired", slog.String("job_key", key))
}

// evict removes an aged-out terminal record and any artifact it still owns.
func (w *Sweeper) evict(ctx context.Context, rec *Record) {
	if rec.FinalPath != "" {
		w.svc.artifacts.Cleanup(ctx, rec.FinalPath)
	}
	if err := w.store.Delete(ctx, rec.Key); err != nil {
		w.logger.Warn("sweep: evict failed",
			slog.String("job_key", rec.Key),
			slog.String("error", err.Error()),
		)
		return
	}
	w.logger.Info("sweep: aged-out job evicted", slog.String("job_key", rec.Key))
}

package sync

import (
	"context"
	"time"

	"leobook/core/store"

	"go.uber.org/zap"
)

// Sweeper tombstones expired live score rows so the next micro-sync
// propagates the deletes. It is the in-process half of the streamer's
// "delete instructions for expired items" contract: matches that finished
// hours ago have no business on a live scores surface.
type Sweeper struct {
	store    *store.Store
	log      *zap.Logger
	ttl      time.Duration
	interval time.Duration
}

// NewSweeper creates a sweeper for the live_scores table.
func NewSweeper(st *store.Store, cfg Config, log *zap.Logger) *Sweeper {
	ttl := time.Duration(cfg.LiveTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 3 * time.Hour
	}
	interval := time.Duration(cfg.SweepIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{store: st, log: log, ttl: ttl, interval: interval}
}

// Sweep tombstones every live row older than the TTL. Returns the number
// of expired rows.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	rows, err := s.store.ReadTable(ctx, "live_scores")
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	var expired []string
	for _, row := range rows {
		if row.IsTombstone() {
			continue
		}
		ts, err := row.LastUpdated()
		if err != nil {
			continue
		}
		if now.Sub(ts) > s.ttl {
			expired = append(expired, row["fixture_id"])
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}

	applied, err := s.store.DeleteRows(ctx, "live_scores", expired, now)
	if err != nil {
		return 0, err
	}
	s.log.Info("Expired live scores tombstoned", zap.Int("count", applied))
	return applied, nil
}

// Run sweeps on the configured cadence until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Warn("Live score sweep failed", zap.Error(err))
			}
		}
	}
}

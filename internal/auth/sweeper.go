package auth

// sweeper.go removes abandoned sessions from the in-memory store.
//
// Guard already deletes an expired session when its token comes back, but a
// token that never returns would otherwise stay in memory until restart.
// Redis expires keys on its own and needs no sweeper.

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is implemented by stores that can purge stale sessions in bulk.
type Sweeper interface {
	Sweep(now time.Time, idle, maxAge time.Duration) int
	Len() int
}

// RunSweeper purges stale sessions every interval until ctx is cancelled.
// It returns immediately when the store does not implement Sweeper.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	sw, ok := m.store.(Sweeper)
	if !ok || interval <= 0 {
		return
	}

	slog.Info("session sweeper started",
		"interval", interval.String(),
		"idle_timeout", m.idle.String(),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			m.sweepOnce(sw)
		}
	}
}

func (m *Manager) sweepOnce(sw Sweeper) int {
	start := time.Now()
	removed := sw.Sweep(m.now(), m.idle, m.maxAge)
	if removed > 0 {
		slog.Info("swept stale sessions",
			"sessions_removed", removed,
			"sessions_active", sw.Len(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return removed
}

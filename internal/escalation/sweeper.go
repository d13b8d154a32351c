package escalation

import (
	"context"
	"log/slog"
	"time"

	"github.com/shubhsahu23/VoiceBot/internal/domain"
)

// ResolvedCallback is called for each ticket the sweeper closes.
type ResolvedCallback func(ctx context.Context, t *domain.Ticket)

// StartSweeper runs a background goroutine that periodically resolves
// OPEN or IN_PROGRESS tickets whose chat has been idle for longer than staleAfter.
// A non-positive staleAfter disables the sweeper.
func StartSweeper(ctx context.Context, m *Machine, staleAfter, interval time.Duration, onResolved ResolvedCallback) {
	if staleAfter <= 0 || interval <= 0 {
		slog.Info("Stale escalation sweeper disabled")
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Stale escalation sweeper started", "interval", interval, "stale_after", staleAfter)

		for {
			select {
			case <-ticker.C:
				m.SweepStale(ctx, staleAfter, onResolved)
			case <-ctx.Done():
				slog.Info("Stale escalation sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// SweepStale resolves every ticket with no status change and no chat message
// within staleAfter and returns how many were closed.
func (m *Machine) SweepStale(ctx context.Context, staleAfter time.Duration, onResolved ResolvedCallback) int {
	stale, err := m.store.ListStaleTickets(ctx, m.now().Add(-staleAfter))
	if err != nil {
		m.logger.Error("Sweeper failed to list stale escalations", "error", err)
		return 0
	}
	if len(stale) == 0 {
		return 0
	}

	m.logger.Info("Sweeper found stale escalations", "count", len(stale))

	resolved := 0
	for _, t := range stale {
		closed, err := m.resolve(ctx, t.ID, EventAutoResolved)
		if err != nil {
			// An agent may have resolved it since the listing.
			m.logger.Warn("Sweeper failed to resolve escalation",
				"error", err,
				"ticket_id", t.ID,
				"driver_id", t.DriverID)
			continue
		}
		resolved++
		if onResolved != nil {
			onResolved(ctx, closed)
		}
	}

	m.logger.Info("Sweeper cleanup completed", "resolved", resolved)
	return resolved
}

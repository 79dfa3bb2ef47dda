package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// runOverrideSweeper evicts stale temporary overrides and checkpoints node
// configurations so a restart keeps the remaining overrides.
func (s *Services) runOverrideSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Overrides.SweepInterval.Duration())
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

func (s *Services) sweep(ctx context.Context) {
	evicted := s.Registry.Sweep(s.clock.Now())
	if len(evicted) > 0 {
		log.Debug().Int("nodes", len(evicted)).Msg("Swept expired overrides")
	}
	if err := s.SaveState(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to checkpoint node configs")
	}
}

// runLedgerCleanup periodically cleans up old ledger entries.
func (s *Services) runLedgerCleanup(ctx context.Context) {
	retention := s.cfg.Ledger.Retention()

	ticker := time.NewTicker(s.cfg.Ledger.CleanupInterval.Duration())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.Ledger.DeleteOlderThan(ctx, retention)
			if err != nil {
				log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
			} else if deleted > 0 {
				log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
			}
		}
	}
}

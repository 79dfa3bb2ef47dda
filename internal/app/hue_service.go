package app

import (
	"context"
	"errors"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/homebase/internal/command"
	"github.com/dokzlo13/homebase/internal/config"
	"github.com/dokzlo13/homebase/internal/hue"
	"github.com/dokzlo13/homebase/internal/reconcile"
)

// HueService wraps the bridge side: the applier the reconciler writes through,
// the reader for actual light states and the event stream.
type HueService struct {
	cfg *config.Config

	Bridge      *huego.Bridge
	Applier     reconcile.Applier
	Reader      command.StateReader
	EventStream *hue.EventStream
}

// NewHueService connects to the bridge unless running offline, in which case
// targets are only logged.
func NewHueService(cfg *config.Config) (*HueService, error) {
	s := &HueService{cfg: cfg}

	if cfg.Hue.Offline() {
		log.Warn().Msg("No Hue bridge configured or dry run enabled, light states will only be logged")
		s.Applier = reconcile.LogApplier{}
		return s, nil
	}

	bridge, err := hue.Connect(cfg.Hue.Bridge, cfg.Hue.Token)
	if err != nil {
		return nil, err
	}
	s.Bridge = bridge
	s.Applier = hue.NewApplier(bridge)
	s.Reader = hue.NewReader(bridge)

	if cfg.Hue.EventStream {
		s.EventStream = hue.NewEventStream(hue.EventStreamConfig{
			Address:       cfg.Hue.Bridge,
			AppKey:        cfg.Hue.Token,
			MinBackoff:    cfg.Hue.MinRetryBackoff.Duration(),
			MaxBackoff:    cfg.Hue.MaxRetryBackoff.Duration(),
			Multiplier:    cfg.Hue.RetryMultiplier,
			MaxReconnects: cfg.Hue.MaxReconnects,
		})
	}
	return s, nil
}

// RunEventStream feeds bridge events to handle until ctx is done. Exceeding
// the reconnect limit is fatal; other errors are logged.
func (s *HueService) RunEventStream(ctx context.Context, handle hue.EventHandler) error {
	if s.EventStream == nil {
		return nil
	}
	if err := s.EventStream.Run(ctx, handle); err != nil {
		if errors.Is(err, hue.ErrMaxReconnectsExceeded) {
			log.Error().Msg("Event stream: max reconnects exceeded, triggering shutdown")
			return err
		}
		log.Error().Err(err).Msg("Event stream error")
	}
	return nil
}

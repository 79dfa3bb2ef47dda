package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dokzlo13/homebase/internal/api"
	"github.com/dokzlo13/homebase/internal/clock"
	"github.com/dokzlo13/homebase/internal/command"
	"github.com/dokzlo13/homebase/internal/config"
	"github.com/dokzlo13/homebase/internal/db"
	"github.com/dokzlo13/homebase/internal/eventbus"
	"github.com/dokzlo13/homebase/internal/home"
	"github.com/dokzlo13/homebase/internal/hue"
	"github.com/dokzlo13/homebase/internal/ledger"
	"github.com/dokzlo13/homebase/internal/metrics"
	"github.com/dokzlo13/homebase/internal/reconcile"
	"github.com/dokzlo13/homebase/internal/remote"
	"github.com/dokzlo13/homebase/internal/storage"
	"github.com/dokzlo13/homebase/internal/stores"
)

// persistTimeout bounds store writes made outside a request.
const persistTimeout = 5 * time.Second

// Options tune service construction.
type Options struct {
	// ResetState discards persisted configurations and light states.
	ResetState bool
	Clock      clock.Clock
}

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg   *config.Config
	clock clock.Clock

	// Core infrastructure
	DB      *db.DB
	Ledger  *ledger.Ledger
	Stores  *stores.Registry
	Metrics *metrics.Metrics
	Bus     *eventbus.Bus

	// Light tree
	Home     *home.Home
	Registry *home.Registry

	// Command path
	Executor   *command.Executor
	Dispatcher *command.Dispatcher

	Hue          *HueService
	Orchestrator *reconcile.Orchestrator
	Remotes      *remote.Router
	API          *api.Server
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config, opts Options) (*Services, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	s := &Services{cfg: cfg, clock: clk}

	loc, err := cfg.Home.Location()
	if err != nil {
		return nil, err
	}
	spec, err := home.LoadSpec(cfg.Home.Spec)
	if err != nil {
		return nil, err
	}
	s.Home, err = spec.Build()
	if err != nil {
		return nil, err
	}

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database
	s.Ledger = ledger.New(database.DB)
	s.Stores = stores.NewRegistry(storage.NewStore(database.DB))
	s.Metrics = metrics.New()

	s.Registry = home.NewRegistry(s.Home, home.Options{
		Location: loc,
		TTL:      cfg.Overrides.TemporaryTTL.Duration(),
		OnEvict:  s.onEvict,
	})
	if err := s.restore(opts.ResetState); err != nil {
		s.Close()
		return nil, err
	}

	s.Hue, err = NewHueService(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Orchestrator = reconcile.NewOrchestrator(s.Registry, s.Hue.Applier, reconcile.Options{
		PeriodicInterval: cfg.Reconciler.PeriodicInterval.Duration(),
		Debounce:         cfg.Reconciler.Debounce.Duration(),
		RateLimitRPS:     cfg.Reconciler.RateLimitRPS,
		CacheSize:        cfg.Reconciler.CacheSize,
		CacheTTL:         cfg.Reconciler.CacheTTL.Duration(),
		Clock:            clk,
		Recorder:         s.Metrics,
		OnApplied:        s.onApplied,
	})

	execOpts := []command.ExecutorOption{
		command.WithRecorder(s.Metrics),
		command.WithClock(clk),
	}
	if s.Hue.Reader != nil {
		execOpts = append(execOpts, command.WithStateReader(s.Hue.Reader))
	}
	s.Executor = command.NewExecutor(s.Registry, s.Ledger, s.Orchestrator, execOpts...)

	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())
	s.Dispatcher = command.NewDispatcher(s.Bus, s.Executor)

	s.Remotes, err = remote.NewRouter(s.Home, s.Registry, s.Dispatcher, remote.Options{
		RotaryQuiet: cfg.Remotes.RotaryQuiet.Duration(),
		RotaryStep:  cfg.Remotes.RotaryStep,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	if cfg.API.Enabled {
		s.API = api.NewServer(cfg.API.Addr(), api.NewHandler(api.Deps{
			Registry:   s.Registry,
			Dispatcher: s.Dispatcher,
			History:    s.Ledger,
			Reconciler: s.Orchestrator,
			Metrics:    s.Metrics.Handler(),
			Clock:      clk,
		}))
	}

	return s, nil
}

// restore loads persisted node configurations and last applied light states.
func (s *Services) restore(reset bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if reset {
		log.Warn().Msg("Resetting persisted state")
		return s.Stores.Clear(ctx)
	}

	snap, err := s.Stores.LoadConfigs(ctx)
	if err != nil {
		return err
	}
	for _, topic := range s.Registry.Restore(snap) {
		log.Warn().Str("topic", string(topic)).Msg("Dropping persisted config of unknown node")
	}

	states, err := s.Stores.LoadLightStates(ctx)
	if err != nil {
		return err
	}
	for topic, st := range states {
		if err := s.Registry.UpdateState(topic, st); err != nil {
			log.Debug().Err(err).Str("topic", string(topic)).Msg("Skipping persisted light state")
		}
	}

	log.Info().Int("configs", len(snap)).Int("lights", len(states)).Msg("Restored persisted state")
	return nil
}

// Start runs every background service until ctx is done or one of them fails.
// The returned group reports the first failure.
func (s *Services) Start(ctx context.Context) *errgroup.Group {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.Orchestrator.Run(ctx)
	})
	g.Go(func() error {
		return s.Hue.RunEventStream(ctx, func(ev hue.Event) {
			s.Remotes.Handle(ctx, ev)
		})
	})
	g.Go(func() error {
		s.runOverrideSweeper(ctx)
		return nil
	})
	g.Go(func() error {
		s.runLedgerCleanup(ctx)
		return nil
	})
	if s.API != nil {
		g.Go(func() error {
			return s.API.Run(ctx, s.cfg.ShutdownTimeout.Duration())
		})
	}
	return g
}

// SaveState persists the current node configurations.
func (s *Services) SaveState(ctx context.Context) error {
	return s.Stores.SaveConfigs(ctx, s.Registry.Snapshot())
}

// Stop gracefully stops all services and persists state.
func (s *Services) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
	defer cancel()

	var errs []error
	if s.Remotes != nil {
		s.Remotes.Close()
	}
	if s.Bus != nil {
		s.Bus.Close(ctx)
	}
	if s.Registry != nil && s.Stores != nil {
		if err := s.SaveState(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.Close()
	return errors.Join(errs...)
}

// Close releases all resources.
func (s *Services) Close() {
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
		s.DB = nil
	}
}

func (s *Services) onEvict(e home.Eviction) {
	log.Warn().
		Str("topic", string(e.Topic)).
		Strs("fields", e.Fields).
		Msg("Temporary overrides expired")

	s.Metrics.Evicted(e.Fields)
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.Ledger.Append(ctx, ledger.Record{
		Type:    ledger.EventOverrideEvicted,
		Topic:   string(e.Topic),
		Source:  "sweeper",
		Payload: map[string]any{"fields": e.Fields},
	}); err != nil {
		log.Error().Err(err).Str("topic", string(e.Topic)).Msg("Failed to record eviction")
	}
	if s.Orchestrator != nil {
		s.Orchestrator.Trigger(e.Topic, false)
	}
}

func (s *Services) onApplied(t home.Target) {
	if err := s.Registry.UpdateState(t.Topic, t.State); err != nil {
		log.Warn().Err(err).Str("topic", string(t.Topic)).Msg("Failed to record applied state")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.Stores.LightStates().Set(ctx, string(t.Topic), t.State); err != nil {
		log.Error().Err(err).Str("topic", string(t.Topic)).Msg("Failed to persist light state")
	}
}

// Package reconcile pushes resolved light states to the devices. Commands
// trigger topics; a debounced loop resolves the lights below them and sends
// every target that changed since it was last applied.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/homebase/internal/clock"
	"github.com/dokzlo13/homebase/internal/home"
	"github.com/dokzlo13/homebase/internal/lighting"
)

// Defaults
const (
	DefaultRateLimitRPS = 10.0
	DefaultCacheSize    = 256
	DefaultCacheTTL     = 10 * time.Minute
)

// stateTolerance is the per-channel difference below which a target counts as unchanged.
const stateTolerance = 1e-6

// Resolver resolves the targets below a topic.
type Resolver interface {
	Targets(topic lighting.Topic, now time.Time) ([]home.Target, error)
}

// Recorder receives reconcile metrics.
type Recorder interface {
	Published(err error)
	ObserveResolve(d time.Duration)
}

// Options configures an Orchestrator.
type Options struct {
	// PeriodicInterval re-resolves the whole home; 0 disables it.
	PeriodicInterval time.Duration
	// Debounce delays a pass after a trigger so bursts collapse into one; 0 runs immediately.
	Debounce time.Duration
	// RateLimitRPS bounds device writes per second.
	RateLimitRPS float64
	// CacheSize and CacheTTL bound the last-applied cache. An expired entry is resent.
	CacheSize int
	CacheTTL  time.Duration

	Clock    clock.Clock
	Recorder Recorder
	// OnApplied is called after a target was written successfully.
	OnApplied func(home.Target)
}

// Stats summarizes the orchestrator's work so far.
type Stats struct {
	Passes   int64     `json:"passes"`
	Applied  int64     `json:"applied"`
	Skipped  int64     `json:"skipped"`
	Failed   int64     `json:"failed"`
	LastPass time.Time `json:"last_pass"`
}

// Orchestrator coordinates reconciliation of triggered topics.
type Orchestrator struct {
	resolver  Resolver
	applier   Applier
	limiter   *rate.Limiter
	applied   gcache.Cache
	clock     clock.Clock
	recorder  Recorder
	onApplied func(home.Target)

	mu      sync.Mutex
	pending map[lighting.Topic]bool // topic -> forced
	trigger chan struct{}

	// serializes passes between Run and ReconcileNow
	passMu sync.Mutex

	periodicInterval time.Duration
	debounce         time.Duration

	passes   *atomic.Int64
	nApplied *atomic.Int64
	nSkipped *atomic.Int64
	nFailed  *atomic.Int64
	lastPass *atomic.Time
}

// NewOrchestrator creates a new reconciliation orchestrator.
func NewOrchestrator(resolver Resolver, applier Applier, opts Options) *Orchestrator {
	rps := opts.RateLimitRPS
	if rps <= 0 {
		rps = DefaultRateLimitRPS
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	return &Orchestrator{
		resolver:         resolver,
		applier:          applier,
		limiter:          rate.NewLimiter(rate.Limit(rps), burst),
		applied:          gcache.New(size).LRU().Expiration(ttl).Build(),
		clock:            clk,
		recorder:         opts.Recorder,
		onApplied:        opts.OnApplied,
		pending:          make(map[lighting.Topic]bool),
		trigger:          make(chan struct{}, 1),
		periodicInterval: opts.PeriodicInterval,
		debounce:         opts.Debounce,
		passes:           atomic.NewInt64(0),
		nApplied:         atomic.NewInt64(0),
		nSkipped:         atomic.NewInt64(0),
		nFailed:          atomic.NewInt64(0),
		lastPass:         atomic.NewTime(time.Time{}),
	}
}

// Trigger marks a topic for reconciliation. A forced topic resends its
// lights even when their state did not change.
func (o *Orchestrator) Trigger(topic lighting.Topic, force bool) {
	o.mu.Lock()
	o.pending[topic] = o.pending[topic] || force
	o.mu.Unlock()
	o.signal()
}

// TriggerAll forgets every applied state and resends the whole home. Used to
// enforce the resolved states against changes made outside the service.
func (o *Orchestrator) TriggerAll() {
	o.applied.Purge()
	o.Trigger(home.RootTopic, true)
}

func (o *Orchestrator) signal() {
	select {
	case o.trigger <- struct{}{}:
	default:
		// Already triggered
	}
}

// Ready reports whether at least one pass has completed.
func (o *Orchestrator) Ready() bool {
	return o.passes.Load() > 0
}

// Stats returns the counters.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Passes:   o.passes.Load(),
		Applied:  o.nApplied.Load(),
		Skipped:  o.nSkipped.Load(),
		Failed:   o.nFailed.Load(),
		LastPass: o.lastPass.Load(),
	}
}

// Run starts the reconciliation loop. The first pass covers the whole home.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Info().
		Dur("periodic_interval", o.periodicInterval).
		Dur("debounce", o.debounce).
		Msg("Orchestrator started")

	o.Trigger(home.RootTopic, true)

	// Set up periodic ticker (nil if disabled)
	var tickerC <-chan time.Time
	if o.periodicInterval > 0 {
		ticker := time.NewTicker(o.periodicInterval)
		tickerC = ticker.C
		defer ticker.Stop()
	}

	// Debounce timer (nil until first trigger)
	var debounceTimer *time.Timer
	var debounceC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Orchestrator stopping")
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case <-o.trigger:
			if o.debounce <= 0 {
				o.reconcilePending(ctx)
				continue
			}
			if debounceTimer == nil {
				debounceTimer = time.NewTimer(o.debounce)
				debounceC = debounceTimer.C
				continue
			}
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(o.debounce)

		case <-debounceC:
			o.reconcilePending(ctx)

		case <-tickerC:
			// the baseline follows the clock, so the whole home is re-resolved
			o.Trigger(home.RootTopic, false)
		}
	}
}

// ReconcileNow resolves and applies the lights below topic synchronously.
func (o *Orchestrator) ReconcileNow(ctx context.Context, topic lighting.Topic, force bool) error {
	return o.reconcile(ctx, map[lighting.Topic]bool{topic: force})
}

func (o *Orchestrator) reconcilePending(ctx context.Context) {
	o.mu.Lock()
	pending := o.pending
	o.pending = make(map[lighting.Topic]bool)
	o.mu.Unlock()

	if len(pending) == 0 {
		return
	}
	if err := o.reconcile(ctx, pending); err != nil {
		log.Error().Err(err).Int("topics", len(pending)).Msg("Reconciliation finished with errors")
	}
}

type job struct {
	target home.Target
	force  bool
}

func (o *Orchestrator) reconcile(ctx context.Context, topics map[lighting.Topic]bool) error {
	o.passMu.Lock()
	defer o.passMu.Unlock()

	now := o.clock.Now()
	start := time.Now()

	var errs []error
	jobs := make(map[lighting.Topic]job)
	for topic, force := range topics {
		targets, err := o.resolver.Targets(topic, now)
		if err != nil {
			log.Error().Err(err).Str("topic", topic.String()).Msg("Resolve failed")
			errs = append(errs, fmt.Errorf("failed to resolve %s: %w", topic, err))
			continue
		}
		for _, t := range targets {
			j := jobs[t.Topic]
			jobs[t.Topic] = job{target: t, force: j.force || force}
		}
	}
	if o.recorder != nil {
		o.recorder.ObserveResolve(time.Since(start))
	}

	order := make([]lighting.Topic, 0, len(jobs))
	for topic := range jobs {
		order = append(order, topic)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	applied, skipped := 0, 0
	for _, topic := range order {
		j := jobs[topic]
		if !j.force && o.unchanged(j.target) {
			skipped++
			continue
		}
		if err := o.applyOne(ctx, j.target); err != nil {
			if ctx.Err() != nil {
				errs = append(errs, ctx.Err())
				break
			}
			errs = append(errs, err)
			continue
		}
		applied++
	}

	o.passes.Inc()
	o.nApplied.Add(int64(applied))
	o.nSkipped.Add(int64(skipped))
	o.lastPass.Store(now)

	log.Debug().
		Int("topics", len(topics)).
		Int("targets", len(jobs)).
		Int("applied", applied).
		Int("skipped", skipped).
		Dur("took", time.Since(start)).
		Msg("Reconciliation pass completed")

	return errors.Join(errs...)
}

func (o *Orchestrator) unchanged(t home.Target) bool {
	v, err := o.applied.Get(t.Topic)
	if err != nil {
		return false
	}
	last, ok := v.(lighting.State)
	return ok && last.Equal(t.State, stateTolerance)
}

func (o *Orchestrator) applyOne(ctx context.Context, t home.Target) error {
	if err := o.limiter.Wait(ctx); err != nil {
		return err
	}

	err := o.applier.Apply(ctx, t)
	if o.recorder != nil {
		o.recorder.Published(err)
	}
	if err != nil {
		o.nFailed.Inc()
		// a failed write must be retried on the next pass
		o.applied.Remove(t.Topic)
		log.Error().Err(err).
			Str("topic", t.Topic.String()).
			Str("device_id", t.DeviceID).
			Msg("Apply failed")
		return fmt.Errorf("failed to apply %s: %w", t.Topic, err)
	}

	_ = o.applied.Set(t.Topic, t.State)
	if o.onApplied != nil {
		o.onApplied(t)
	}
	return nil
}

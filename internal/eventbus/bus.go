// Package eventbus routes events to handlers on a keyed worker pool. Events
// that share a key always run on the same worker, in publish order.
package eventbus

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog/log"
)

// EventType represents the type of event
type EventType string

const (
	EventTypeCommand  EventType = "command"
	EventTypeEviction EventType = "eviction"
)

// Default configuration
const (
	DefaultWorkerCount = 4
	DefaultQueueSize   = 100
)

var (
	// ErrQueueFull is returned when the key's worker queue has no room.
	ErrQueueFull = errors.New("event bus queue full")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("event bus closed")
	// ErrNoHandler is returned when nothing is subscribed to the event type.
	ErrNoHandler = errors.New("no handler for event type")
)

// Event represents an event in the system. Key selects the worker.
type Event struct {
	Type    EventType
	Key     string
	Payload any
}

// Handler is a function that handles events
type Handler func(Event)

// work represents a unit of work for the worker pool
type work struct {
	event   Event
	handler Handler
}

// Bus provides event routing with a bounded, keyed worker pool
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler

	// one queue per worker; a key always hashes to the same queue
	queues []chan work
	wg     sync.WaitGroup

	// closed is guarded by sendMu so no send races with closing the queues
	sendMu sync.RWMutex
	closed bool
}

// New creates a new event bus with default settings
func New() *Bus {
	return NewWithConfig(DefaultWorkerCount, DefaultQueueSize)
}

// NewWithConfig creates a new event bus with custom worker count and
// per-worker queue size
func NewWithConfig(workerCount, queueSize int) *Bus {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	b := &Bus{
		handlers: make(map[EventType][]Handler),
		queues:   make([]chan work, workerCount),
	}

	for i := range b.queues {
		b.queues[i] = make(chan work, queueSize)
		b.wg.Add(1)
		go b.worker(i, b.queues[i])
	}

	log.Debug().Int("workers", workerCount).Int("queue_size", queueSize).Msg("Event bus worker pool started")
	return b
}

// worker processes events from its queue
func (b *Bus) worker(id int, queue <-chan work) {
	defer b.wg.Done()

	for w := range queue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("event_type", string(w.event.Type)).
						Str("key", w.event.Key).
						Int("worker", id).
						Msg("Event handler panicked")
				}
			}()
			w.handler(w.event)
		}()
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish queues the event for every subscribed handler without blocking.
// It returns ErrQueueFull when the key's queue is full and ErrClosed once
// the bus is closing; the event is dropped in both cases.
func (b *Bus) Publish(event Event) error {
	b.mu.RLock()
	handlers := b.handlers[event.Type]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return ErrNoHandler
	}

	b.sendMu.RLock()
	defer b.sendMu.RUnlock()

	if b.closed {
		log.Warn().Str("event_type", string(event.Type)).Msg("Event bus closing, dropping event")
		return ErrClosed
	}

	queue := b.queues[b.shard(event.Key)]
	for _, handler := range handlers {
		select {
		case queue <- work{event: event, handler: handler}:
		default:
			log.Warn().
				Str("event_type", string(event.Type)).
				Str("key", event.Key).
				Msg("Event bus queue full, dropping event")
			return ErrQueueFull
		}
	}
	return nil
}

func (b *Bus) shard(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(b.queues)))
}

// Close stops accepting events, drains the queues and waits for the workers
// until ctx expires.
func (b *Bus) Close(ctx context.Context) {
	b.sendMu.Lock()
	if !b.closed {
		b.closed = true
		for _, q := range b.queues {
			close(q)
		}
	}
	b.sendMu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug().Msg("Event bus workers stopped gracefully")
	case <-ctx.Done():
		log.Warn().Msg("Event bus shutdown timed out, some events may be lost")
	}
}

// Clear removes all handlers
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = make(map[EventType][]Handler)
}

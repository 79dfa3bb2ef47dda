package hue

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrMaxReconnectsExceeded is returned when the maximum number of reconnect attempts is exceeded.
var ErrMaxReconnectsExceeded = errors.New("max reconnects exceeded")

// EventKind is the kind of a decoded bridge event.
type EventKind string

const (
	EventButton EventKind = "button"
	EventRotary EventKind = "rotary"
)

// Event is a button or rotary report from the bridge.
type Event struct {
	Kind       EventKind
	ResourceID string
	// Action is the button event ("short_release", "long_press", ...) or the
	// rotary action ("start", "repeat").
	Action string
	// Direction and Steps are set for rotary events.
	Direction string
	Steps     int
	// EventID is unique per report; replays carry the same ID. Empty when
	// the bridge sent no timestamp.
	EventID string
}

// EventHandler receives decoded events.
type EventHandler func(Event)

// EventStreamConfig contains configuration for event stream reconnection.
type EventStreamConfig struct {
	Address       string
	AppKey        string
	MinBackoff    time.Duration // Minimum backoff between reconnects
	MaxBackoff    time.Duration // Maximum backoff between reconnects
	Multiplier    float64       // Backoff multiplier
	MaxReconnects int           // Max reconnect attempts, 0 = infinite
}

func (c *EventStreamConfig) applyDefaults() {
	if c.MinBackoff <= 0 {
		c.MinBackoff = time.Second
	}
	if c.MaxBackoff < c.MinBackoff {
		c.MaxBackoff = 2 * time.Minute
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2.0
	}
}

// EventStream listens to the Hue CLIP v2 event stream (SSE).
type EventStream struct {
	httpClient *http.Client
	config     EventStreamConfig
}

// NewEventStream creates a new event stream listener.
func NewEventStream(config EventStreamConfig) *EventStream {
	config.applyDefaults()
	transport := &http.Transport{
		// the bridge serves a self-signed certificate
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	return &EventStream{
		httpClient: &http.Client{
			Transport: transport,
			// No timeout for SSE - it's a long-lived connection
		},
		config: config,
	}
}

// Run listens with automatic reconnection until ctx is done.
// Returns ErrMaxReconnectsExceeded if max reconnects is exceeded.
func (e *EventStream) Run(ctx context.Context, handle EventHandler) error {
	retryCount := 0
	currentBackoff := e.config.MinBackoff

	for {
		if ctx.Err() != nil {
			return nil
		}

		connected, err := e.connect(ctx, handle)
		if connected {
			// Reset retry count and backoff after a successful connection
			retryCount = 0
			currentBackoff = e.config.MinBackoff
		}
		if ctx.Err() != nil {
			return nil
		}

		retryCount++
		if e.config.MaxReconnects > 0 && retryCount > e.config.MaxReconnects {
			log.Error().
				Int("max_reconnects", e.config.MaxReconnects).
				Msg("Event stream: max reconnects exceeded, terminating")
			return ErrMaxReconnectsExceeded
		}

		log.Warn().
			Err(err).
			Dur("backoff", currentBackoff).
			Int("retry", retryCount).
			Int("max_reconnects", e.config.MaxReconnects).
			Msg("Event stream disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(currentBackoff):
		}

		// Calculate next backoff with multiplier, capped at max
		nextBackoff := time.Duration(float64(currentBackoff) * e.config.Multiplier)
		if nextBackoff > e.config.MaxBackoff {
			nextBackoff = e.config.MaxBackoff
		}
		currentBackoff = nextBackoff
	}
}

func (e *EventStream) connect(ctx context.Context, handle EventHandler) (bool, error) {
	url := fmt.Sprintf("https://%s/eventstream/clip/v2", e.config.Address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("hue-application-key", e.config.AppKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	log.Info().Str("address", e.config.Address).Msg("Connected to Hue event stream")

	scanner := bufio.NewScanner(resp.Body)
	var data strings.Builder

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, ":") {
			// comment, e.g. the ": hi" greeting
			continue
		}

		// Empty line marks end of event
		if line == "" {
			if data.Len() > 0 {
				processEvent(data.String(), handle)
				data.Reset()
			}
			continue
		}

		if strings.HasPrefix(line, "data:") {
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	if err := scanner.Err(); err != nil {
		return true, err
	}
	return true, errors.New("event stream closed by bridge")
}

type streamMessage struct {
	Type string       `json:"type"`
	Data []streamItem `json:"data"`
}

type streamItem struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Button *struct {
		ButtonReport *struct {
			Event   string `json:"event"`
			Updated string `json:"updated"`
		} `json:"button_report"`
		LastEvent string `json:"last_event"`
	} `json:"button,omitempty"`
	RelativeRotary *struct {
		RotaryReport *struct {
			Action   string `json:"action"`
			Rotation struct {
				Direction string `json:"direction"`
				Steps     int    `json:"steps"`
			} `json:"rotation"`
			Updated string `json:"updated"`
		} `json:"rotary_report"`
	} `json:"relative_rotary,omitempty"`
}

func processEvent(data string, handle EventHandler) {
	var messages []streamMessage
	if err := json.Unmarshal([]byte(data), &messages); err != nil {
		log.Warn().Err(err).Str("data", data).Msg("Failed to parse event")
		return
	}

	for _, msg := range messages {
		for _, item := range msg.Data {
			ev, ok := decodeItem(item)
			if !ok {
				log.Trace().
					Str("event_type", msg.Type).
					Str("item_type", item.Type).
					Str("id", item.ID).
					Msg("Unhandled event type")
				continue
			}
			log.Debug().
				Str("kind", string(ev.Kind)).
				Str("id", ev.ResourceID).
				Str("action", ev.Action).
				Str("event_id", ev.EventID).
				Msg("Bridge event")
			handle(ev)
		}
	}
}

func decodeItem(item streamItem) (Event, bool) {
	switch item.Type {
	case "button":
		if item.Button == nil {
			return Event{}, false
		}
		action, updated := item.Button.LastEvent, ""
		if r := item.Button.ButtonReport; r != nil {
			action, updated = r.Event, r.Updated
		}
		if action == "" {
			return Event{}, false
		}
		ev := Event{Kind: EventButton, ResourceID: item.ID, Action: action}
		if updated != "" {
			ev.EventID = fmt.Sprintf("%s-%s-%s", item.ID, action, updated)
		}
		return ev, true

	case "relative_rotary":
		if item.RelativeRotary == nil || item.RelativeRotary.RotaryReport == nil {
			return Event{}, false
		}
		r := item.RelativeRotary.RotaryReport
		ev := Event{
			Kind:       EventRotary,
			ResourceID: item.ID,
			Action:     r.Action,
			Direction:  r.Rotation.Direction,
			Steps:      r.Rotation.Steps,
		}
		if r.Updated != "" {
			ev.EventID = fmt.Sprintf("%s-%s", item.ID, r.Updated)
		}
		return ev, true
	}
	return Event{}, false
}

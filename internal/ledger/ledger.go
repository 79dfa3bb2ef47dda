// Package ledger provides the append-only history of commands and override
// evictions.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of event in the ledger
type EventType string

const (
	EventCommandApplied  EventType = "command_applied"
	EventCommandFailed   EventType = "command_failed"
	EventOverrideEvicted EventType = "override_evicted"
)

// Entry represents a single event in the ledger
type Entry struct {
	ID             int64          `json:"id"`
	EventType      EventType      `json:"event_type"`
	Timestamp      time.Time      `json:"timestamp"`
	Topic          string         `json:"topic,omitempty"`
	Source         string         `json:"source,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
}

// Record is an event to append.
type Record struct {
	Type           EventType
	Topic          string
	Source         string
	IdempotencyKey string
	Payload        map[string]any
}

// Ledger provides append-only event logging
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Append adds a new event to the ledger. A command_applied event is recorded
// at most once per idempotency key; later duplicates are ignored.
func (l *Ledger) Append(ctx context.Context, rec Record) error {
	var payloadJSON []byte
	if rec.Payload != nil {
		var err error
		payloadJSON, err = json.Marshal(rec.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	insertSQL := `INSERT INTO event_ledger (event_type, timestamp, payload, source, idempotency_key, topic) VALUES (?, ?, ?, ?, ?, ?)`
	if rec.Type == EventCommandApplied && rec.IdempotencyKey != "" {
		insertSQL = `INSERT OR IGNORE INTO event_ledger (event_type, timestamp, payload, source, idempotency_key, topic) VALUES (?, ?, ?, ?, ?, ?)`
	}

	_, err := l.db.ExecContext(ctx, insertSQL,
		string(rec.Type), l.now().UTC().Unix(), string(payloadJSON), rec.Source, rec.IdempotencyKey, rec.Topic)
	return err
}

// HasApplied checks if the command with the given idempotency key was applied.
func (l *Ledger) HasApplied(ctx context.Context, idempotencyKey string) bool {
	if idempotencyKey == "" {
		return false
	}

	var exists int
	err := l.db.QueryRowContext(ctx, `
		SELECT 1 FROM event_ledger
		WHERE idempotency_key = ? AND event_type = ?
		LIMIT 1
	`, idempotencyKey, string(EventCommandApplied)).Scan(&exists)

	return err == nil && exists == 1
}

// Recent returns the newest entries, optionally filtered by event type.
func (l *Ledger) Recent(ctx context.Context, eventType EventType, limit int) ([]*Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, event_type, timestamp, payload, source, idempotency_key, topic
		FROM event_ledger
		WHERE ? = '' OR event_type = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, string(eventType), string(eventType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ForTopic returns the newest entries recorded for a topic.
func (l *Ledger) ForTopic(ctx context.Context, topic string, limit int) ([]*Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, event_type, timestamp, payload, source, idempotency_key, topic
		FROM event_ledger
		WHERE topic = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, topic, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := l.now().Add(-retention).Unix()
	result, err := l.db.ExecContext(ctx, `
		DELETE FROM event_ledger WHERE timestamp < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var payloadStr, source, idempotencyKey, topic sql.NullString
		var timestamp int64

		err := rows.Scan(
			&entry.ID, &entry.EventType, &timestamp, &payloadStr, &source, &idempotencyKey, &topic,
		)
		if err != nil {
			return nil, err
		}

		entry.Timestamp = time.Unix(timestamp, 0).UTC()
		entry.Source = source.String
		entry.IdempotencyKey = idempotencyKey.String
		entry.Topic = topic.String

		if payloadStr.Valid && payloadStr.String != "" {
			entry.Payload = make(map[string]any)
			if err := json.Unmarshal([]byte(payloadStr.String), &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

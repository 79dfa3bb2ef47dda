// Package storage provides versioned JSON state keyed by (kind, id) on top of
// the shared SQLite database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const upsertSQL = `
	INSERT INTO resource_state (kind, id, payload, version, updated_at)
	VALUES (?, ?, ?, 1, ?)
	ON CONFLICT(kind, id) DO UPDATE SET
		payload = excluded.payload,
		version = version + 1,
		updated_at = excluded.updated_at
	WHERE payload != excluded.payload
`

// Store provides generic versioned state storage with JSON payloads.
// Writing an identical payload does not bump the version.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore creates a new generic state store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get retrieves payload and version for a resource.
// Returns empty payload and version 0 if not found.
func (s *Store) Get(ctx context.Context, kind, id string) (payload []byte, version int64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payloadStr string
	err = s.db.QueryRowContext(ctx, `
		SELECT payload, version FROM resource_state
		WHERE kind = ? AND id = ?
	`, kind, id).Scan(&payloadStr, &version)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	return []byte(payloadStr), version, nil
}

// Set stores payload, incrementing version when it changed.
func (s *Store) Set(ctx context.Context, kind, id string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, upsertSQL, kind, id, string(payload), time.Now().UTC().Unix())
	if err == nil {
		log.Debug().
			Str("kind", kind).
			Str("id", id).
			Int("bytes", len(payload)).
			Msg("Store.Set completed")
	}
	return err
}

// SetMany stores several payloads of one kind in a single transaction.
func (s *Store) SetMany(ctx context.Context, kind string, payloads map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Unix()
	for id, payload := range payloads {
		if _, err := stmt.ExecContext(ctx, kind, id, string(payload), now); err != nil {
			return fmt.Errorf("failed to store %s/%s: %w", kind, id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	log.Debug().
		Str("kind", kind).
		Int("count", len(payloads)).
		Msg("Store.SetMany completed")
	return nil
}

// GetDirty returns IDs where version > lastVersions[id] for a given kind.
func (s *Store) GetDirty(ctx context.Context, kind string, lastVersions map[string]int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, version FROM resource_state WHERE kind = ?
	`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dirty []string
	for rows.Next() {
		var id string
		var version int64

		if err := rows.Scan(&id, &version); err != nil {
			return nil, err
		}
		if version > lastVersions[id] {
			dirty = append(dirty, id)
		}
	}

	return dirty, rows.Err()
}

// Delete removes a resource state entry.
func (s *Store) Delete(ctx context.Context, kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM resource_state WHERE kind = ? AND id = ?
	`, kind, id)
	return err
}

// Clear removes all state for a kind. If kind is empty, clears all state.
func (s *Store) Clear(ctx context.Context, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if kind == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM resource_state`)
	} else {
		_, err = s.db.ExecContext(ctx, `DELETE FROM resource_state WHERE kind = ?`, kind)
	}
	return err
}

// GetAll returns all entries for a kind with their versions.
func (s *Store) GetAll(ctx context.Context, kind string) (map[string][]byte, map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payload, version FROM resource_state WHERE kind = ?
	`, kind)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	payloads := make(map[string][]byte)
	versions := make(map[string]int64)

	for rows.Next() {
		var id, payloadStr string
		var version int64

		if err := rows.Scan(&id, &payloadStr, &version); err != nil {
			return nil, nil, err
		}

		payloads[id] = []byte(payloadStr)
		versions[id] = version
	}

	return payloads, versions, rows.Err()
}

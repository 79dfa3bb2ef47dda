package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// TypedStore wraps Store with JSON marshaling for a specific kind.
type TypedStore[T any] struct {
	store *Store
	kind  string
}

// NewTypedStore creates a new typed store wrapper for the given kind.
func NewTypedStore[T any](store *Store, kind string) *TypedStore[T] {
	return &TypedStore[T]{
		store: store,
		kind:  kind,
	}
}

// Kind returns the resource kind this store handles.
func (s *TypedStore[T]) Kind() string {
	return s.kind
}

// Get retrieves and unmarshals the value for an ID.
// Returns zero value and version 0 if not found.
func (s *TypedStore[T]) Get(ctx context.Context, id string) (value T, version int64, err error) {
	payload, version, err := s.store.Get(ctx, s.kind, id)
	if err != nil {
		return value, 0, err
	}
	if payload == nil {
		return value, 0, nil
	}
	if err := json.Unmarshal(payload, &value); err != nil {
		return value, 0, fmt.Errorf("failed to unmarshal %s/%s: %w", s.kind, id, err)
	}
	return value, version, nil
}

// Set marshals and stores the value for an ID.
func (s *TypedStore[T]) Set(ctx context.Context, id string, value T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", s.kind, id, err)
	}
	return s.store.Set(ctx, s.kind, id, payload)
}

// SetAll marshals and stores several values in one transaction.
func (s *TypedStore[T]) SetAll(ctx context.Context, values map[string]T) error {
	payloads := make(map[string][]byte, len(values))
	for id, value := range values {
		payload, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal %s/%s: %w", s.kind, id, err)
		}
		payloads[id] = payload
	}
	return s.store.SetMany(ctx, s.kind, payloads)
}

// GetDirty returns IDs where version > lastVersions[id].
func (s *TypedStore[T]) GetDirty(ctx context.Context, lastVersions map[string]int64) ([]string, error) {
	return s.store.GetDirty(ctx, s.kind, lastVersions)
}

// Delete removes the value for an ID.
func (s *TypedStore[T]) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, s.kind, id)
}

// Clear removes all values of this kind.
func (s *TypedStore[T]) Clear(ctx context.Context) error {
	return s.store.Clear(ctx, s.kind)
}

// GetAll retrieves all entries of this kind.
func (s *TypedStore[T]) GetAll(ctx context.Context) (map[string]T, map[string]int64, error) {
	payloads, versions, err := s.store.GetAll(ctx, s.kind)
	if err != nil {
		return nil, nil, err
	}

	values := make(map[string]T, len(payloads))
	for id, payload := range payloads {
		var value T
		if err := json.Unmarshal(payload, &value); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal %s/%s: %w", s.kind, id, err)
		}
		values[id] = value
	}
	return values, versions, nil
}

// Update applies modify to the current value and stores the result.
// A missing ID passes the zero value to modify.
func (s *TypedStore[T]) Update(ctx context.Context, id string, modify func(current T) T) error {
	current, _, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.Set(ctx, id, modify(current))
}

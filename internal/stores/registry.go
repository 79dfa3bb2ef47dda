// Package stores provides centralized access to the typed state stores.
package stores

import (
	"context"
	"fmt"

	"github.com/dokzlo13/homebase/internal/home"
	"github.com/dokzlo13/homebase/internal/lighting"
	"github.com/dokzlo13/homebase/internal/storage"
)

// Resource kinds stored in resource_state.
const (
	KindNodeConfig = "node_config"
	KindLightState = "light_state"
)

// Registry provides centralized access to all typed stores.
type Registry struct {
	configs *storage.TypedStore[home.ConfigDoc]
	states  *storage.TypedStore[lighting.State]
}

// NewRegistry creates a new store registry with typed stores for each resource kind.
func NewRegistry(base *storage.Store) *Registry {
	return &Registry{
		configs: storage.NewTypedStore[home.ConfigDoc](base, KindNodeConfig),
		states:  storage.NewTypedStore[lighting.State](base, KindLightState),
	}
}

// NodeConfigs returns the typed store for node configuration.
func (r *Registry) NodeConfigs() *storage.TypedStore[home.ConfigDoc] {
	return r.configs
}

// LightStates returns the typed store for the last state applied to each light.
func (r *Registry) LightStates() *storage.TypedStore[lighting.State] {
	return r.states
}

// SaveConfigs persists a snapshot of node configurations.
func (r *Registry) SaveConfigs(ctx context.Context, snap map[lighting.Topic]lighting.Config) error {
	docs := make(map[string]home.ConfigDoc, len(snap))
	for topic, cfg := range snap {
		docs[string(topic)] = home.EncodeConfig(cfg)
	}
	if err := r.configs.SetAll(ctx, docs); err != nil {
		return fmt.Errorf("failed to save node configs: %w", err)
	}
	return nil
}

// LoadConfigs reads every persisted node configuration.
func (r *Registry) LoadConfigs(ctx context.Context) (map[lighting.Topic]lighting.Config, error) {
	docs, _, err := r.configs.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load node configs: %w", err)
	}
	snap := make(map[lighting.Topic]lighting.Config, len(docs))
	for id, doc := range docs {
		snap[lighting.Topic(id)] = doc.Config()
	}
	return snap, nil
}

// LoadLightStates reads the last applied state of every light.
func (r *Registry) LoadLightStates(ctx context.Context) (map[lighting.Topic]lighting.State, error) {
	values, _, err := r.states.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load light states: %w", err)
	}
	states := make(map[lighting.Topic]lighting.State, len(values))
	for id, s := range values {
		states[lighting.Topic(id)] = s
	}
	return states, nil
}

// Clear removes all state from all stores.
func (r *Registry) Clear(ctx context.Context) error {
	if err := r.configs.Clear(ctx); err != nil {
		return err
	}
	return r.states.Clear(ctx)
}

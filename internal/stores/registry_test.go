package stores

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/homebase/internal/db"
	"github.com/dokzlo13/homebase/internal/lighting"
	"github.com/dokzlo13/homebase/internal/storage"
)

func openRegistry(t *testing.T) *Registry {
	t.Helper()
	database, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewRegistry(storage.NewStore(database.DB))
}

func TestRegistry_ConfigsRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := openRegistry(t)
	setAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	var kitchen lighting.Config
	kitchen.OverrideDynamic(false)
	kitchen.OverrideStatic(lighting.State{On: true, Brightness: 0.8, WhiteTemp: 0.5, Color: lighting.White})
	kitchen.OverrideToggledOnTemporarily(false, setAt)

	snap := map[lighting.Topic]lighting.Config{
		"home/kitchen": kitchen,
		"home":         {},
	}
	require.NoError(t, r.SaveConfigs(ctx, snap))

	loaded, err := r.LoadConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	got := loaded["home/kitchen"]
	assert.False(t, got.Dynamic.ValueOr(true))
	assert.Equal(t, 0.8, got.Static.ValueOr(lighting.Off()).Brightness)
	require.NotNil(t, got.ToggledOn.Temporary)
	assert.True(t, got.ToggledOn.Temporary.SetAt.Equal(setAt), "temporary timestamps survive persistence")
	assert.False(t, loaded["home"].Dynamic.IsSet())
}

func TestRegistry_SaveUnchangedKeepsVersion(t *testing.T) {
	ctx := context.Background()
	r := openRegistry(t)

	var cfg lighting.Config
	cfg.AdaptBrightnessMod(0.2)
	snap := map[lighting.Topic]lighting.Config{"home": cfg}

	require.NoError(t, r.SaveConfigs(ctx, snap))
	require.NoError(t, r.SaveConfigs(ctx, snap))

	_, version, err := r.NodeConfigs().Get(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestRegistry_LightStatesAndClear(t *testing.T) {
	ctx := context.Background()
	r := openRegistry(t)

	require.NoError(t, r.LightStates().Set(ctx, "home/kitchen/ceiling/pendant", lighting.Max()))
	require.NoError(t, r.SaveConfigs(ctx, map[lighting.Topic]lighting.Config{"home": {}}))

	states, err := r.LoadLightStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, lighting.Max(), states["home/kitchen/ceiling/pendant"])

	require.NoError(t, r.Clear(ctx))
	states, _ = r.LoadLightStates(ctx)
	assert.Empty(t, states)
	configs, _ := r.LoadConfigs(ctx)
	assert.Empty(t, configs)
}

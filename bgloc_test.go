package bgloc_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/bgloc"
	"github.com/bft-labs/bgloc/internal/provider/replay"
	"github.com/bft-labs/bgloc/pkg/dispatch"
	"github.com/bft-labs/bgloc/pkg/fetcher"
)

func TestOpenFile_DeliversAndPersists(t *testing.T) {
	dir := t.TempDir()
	battery := 64
	provider := replay.New(replay.Track{
		Battery: &battery,
		Points:  []replay.Point{{Latitude: 48.8566, Longitude: 2.3522, Speed: 1.2}},
	})
	require.ErrorIs(t, provider.Run(context.Background()), replay.ErrPlaybackDone)

	var mu sync.Mutex
	var events []dispatch.CallbackEvent
	registry := dispatch.NewRegistry()
	registry.Register(7, dispatch.NewFuncEntrypoint(func(ev dispatch.CallbackEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}))

	ctx := context.Background()
	c, err := bgloc.OpenFile(dir, provider.Sources(), fetcher.WithResolver(registry))
	require.NoError(t, err)
	require.NoError(t, c.Launch(ctx))

	mode := string(bgloc.ModePolling)
	interval := time.Second
	require.NoError(t, c.Configure(ctx, fetcher.ConfigUpdate{Mode: &mode, MinInterval: &interval}))
	require.NoError(t, c.SetCallback(ctx, 42, 7))
	require.NoError(t, c.Start(ctx))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) > 0
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	ev := events[0]
	mu.Unlock()
	assert.Equal(t, int64(42), ev.CallbackHandle)
	assert.Equal(t, 48.8566, ev.Latitude)
	assert.Equal(t, int32(64), ev.Battery)

	require.NoError(t, c.Close(ctx))

	// A new process over the same directory sees the activation.
	reopened, err := bgloc.OpenFile(dir, provider.Sources(), fetcher.WithResolver(registry))
	require.NoError(t, err)
	active, err := reopened.IsActivated(ctx)
	require.NoError(t, err)
	assert.True(t, active)
	cfg, err := reopened.Configuration(ctx)
	require.NoError(t, err)
	assert.Equal(t, bgloc.ModePolling, cfg.Mode)
	assert.Equal(t, time.Second, cfg.MinInterval)
}

func TestOpenMemory(t *testing.T) {
	_, err := bgloc.OpenMemory(replay.New(replay.Track{Points: []replay.Point{{}}}).Sources())
	assert.NoError(t, err)
}

// Package bgloc samples device location in the background and hands every
// fix to a long-lived callback environment.
//
// Example usage:
//
//	registry := dispatch.NewRegistry()
//	registry.Register(1, dispatch.NewFuncEntrypoint(func(ev dispatch.CallbackEvent) {
//	    fmt.Println(ev.Latitude, ev.Longitude)
//	}))
//	c, err := bgloc.OpenFile("/var/lib/bgloc", sources, fetcher.WithResolver(registry))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := c.Launch(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	_ = c.SetCallback(ctx, callbackHandle, 1)
//	_ = c.Start(ctx)
package bgloc

import (
	"github.com/bft-labs/bgloc/pkg/fetcher"
	"github.com/bft-labs/bgloc/pkg/location"
	"github.com/bft-labs/bgloc/pkg/store"
)

// Controller is the sampling controller.
type Controller = fetcher.Controller

// Option configures a Controller.
type Option = fetcher.Option

// SamplingConfig is the persisted sampling configuration.
type SamplingConfig = store.SamplingConfig

// Mode selects the location strategy.
type Mode = location.Mode

// Strategy modes.
const (
	ModePolling   = location.ModePolling
	ModeStreaming = location.ModeStreaming
	ModeHybrid    = location.ModeHybrid
)

// OpenFile creates a Controller whose settings persist as JSON under dir.
func OpenFile(dir string, src location.Sources, opts ...Option) (*Controller, error) {
	return open(store.NewFileBackend(dir), src, opts)
}

// OpenMemory creates a Controller whose settings live only in memory.
func OpenMemory(src location.Sources, opts ...Option) (*Controller, error) {
	return open(store.NewMemoryBackend(), src, opts)
}

func open(backend store.Backend, src location.Sources, opts []Option) (*Controller, error) {
	settings := store.NewSettings(store.NewKV(backend))
	all := append([]Option{fetcher.WithSources(src)}, opts...)
	return fetcher.New(settings, all...)
}

// Package fetcher is the background location sampling controller.
//
// A Controller owns at most one sampling session. A session wires a
// location.Strategy through a throttle.Gate into the callback environment
// launched by dispatch.Gate, optionally holding a keepalive lease. All
// state that must survive a restart lives in a store.Settings.
//
// # Usage
//
//	settings := store.NewSettings(store.NewKV(store.NewFileBackend(dir)))
//	c, err := fetcher.New(settings,
//	    fetcher.WithSources(location.Sources{Manager: mgr, Feed: feed}),
//	    fetcher.WithResolver(registry),
//	    fetcher.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := c.Launch(ctx); err != nil { // resumes if previously active
//	    return err
//	}
//	defer c.Close(context.Background())
//
//	if err := c.SetCallback(ctx, callbackHandle, dispatcherHandle); err != nil {
//	    return err
//	}
//	if err := c.Start(ctx); err != nil {
//	    return err
//	}
//
// # Commands
//
// SetCallback, Configure, Start, Stop, IsActivated and Configuration form
// the command surface. Commands are serialized; each one runs to
// completion before the next begins.
//
// # Signals
//
// OnBootCompleted, OnForeground, OnBackground, OnPermissionChanged and
// OnConfigChanged are called by the host when the corresponding platform
// event happens.
package fetcher

package configwatcher

import "github.com/bft-labs/bgloc/pkg/fetcher"

// WithConfigWatcher returns a fetcher Option that enables settings file
// watching. When the file changes, the controller re-reads its
// configuration and restarts a running session if needed.
//
// Usage:
//
//	c, err := fetcher.New(settings,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        Path:          backend.Path(),
//	        DebounceDelay: 100 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) fetcher.Option {
	plugin := New(cfg)
	return fetcher.WithPlugin(plugin)
}

package permissionwatch

import "github.com/bft-labs/bgloc/pkg/fetcher"

// WithPermissionWatch returns a fetcher Option that polls a permission
// source and reports grant or revoke transitions to the controller.
//
// Usage:
//
//	c, err := fetcher.New(settings,
//	    fetcher.WithPermission(source),
//	    permissionwatch.WithPermissionWatch(permissionwatch.Config{
//	        Source:   source,
//	        Interval: time.Second,
//	    }),
//	)
func WithPermissionWatch(cfg Config) fetcher.Option {
	return fetcher.WithPlugin(New(cfg))
}

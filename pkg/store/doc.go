// Package store persists controller state in a small key-value store so
// that it survives process restarts.
//
// Keys are stable across versions; see the Key constants. Values are
// stored as strings and converted by KV.
//
// # Usage
//
//	backend := store.NewFileBackend("/var/lib/bgloc")
//	settings := store.NewSettings(store.NewKV(backend))
//
//	cfg, err := settings.SamplingConfig(ctx)
//	if err != nil {
//	    return err
//	}
//
// # Backends
//
// MemoryBackend is for tests. FileBackend writes a JSON document
// atomically (temp file, then rename). PostgresBackend keeps the same keys
// in a table so several hosts can share one configuration.
package store

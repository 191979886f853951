package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

const settingsFileName = "settings.json"

// FileBackend implements Backend using a JSON file.
//
// The file is re-read on every Get so that edits made by other processes
// are picked up.
type FileBackend struct {
	dir string
	mu  sync.Mutex
}

// NewFileBackend creates a FileBackend for the given directory.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

// Get implements Backend.
func (f *FileBackend) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Set implements Backend.
func (f *FileBackend) Set(ctx context.Context, key, value string) error {
	return f.SetMany(ctx, map[string]string{key: value})
}

// SetMany implements Backend. All values land in a single atomic write.
func (f *FileBackend) SetMany(ctx context.Context, values map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.load()
	if err != nil {
		return err
	}
	for k, v := range values {
		current[k] = v
	}
	return f.save(current)
}

// Load returns every stored value.
func (f *FileBackend) Load(ctx context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

// Path returns the full path to the settings file.
func (f *FileBackend) Path() string {
	return filepath.Join(f.dir, settingsFileName)
}

// load returns an empty map if no file exists.
func (f *FileBackend) load() (map[string]string, error) {
	data, err := os.ReadFile(f.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}

	values := map[string]string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// save writes to a temp file, then renames it into place.
func (f *FileBackend) save(values map[string]string) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return err
	}

	path := f.Path()
	tmp := path + ".tmp"

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

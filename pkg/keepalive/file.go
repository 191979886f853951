package keepalive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gofrs/flock"
)

// ErrLeaseBusy is returned by FileLeaseProvider when another holder has
// the lock.
var ErrLeaseBusy = errors.New("keepalive: lease held by another process")

// FileLeaseProvider represents a lease as an advisory lock on Path. The
// locked file holds the holder's pid for supervisors to read. The lock is
// dropped by the OS if the process dies.
type FileLeaseProvider struct {
	Path string
}

// Acquire implements LeaseProvider.
func (p FileLeaseProvider) Acquire(ctx context.Context) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o700); err != nil {
		return nil, err
	}

	fl := flock.New(p.Path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock lease file: %w", err)
	}
	if !locked {
		return nil, ErrLeaseBusy
	}
	if err := os.WriteFile(p.Path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o600); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("write lease file: %w", err)
	}
	return &fileLease{lock: fl}, nil
}

type fileLease struct {
	lock *flock.Flock
	once sync.Once
	err  error
}

func (l *fileLease) Release() error {
	l.once.Do(func() {
		if err := os.Remove(l.lock.Path()); err != nil && !os.IsNotExist(err) {
			l.err = err
		}
		l.err = errors.Join(l.err, l.lock.Unlock())
	})
	return l.err
}

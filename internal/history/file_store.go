package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/torosent/provbench/internal/runner"
)

const lockRetryDelay = 50 * time.Millisecond

// FileStore keeps runs in a single JSON array file. A sibling .lock file
// serialises writers across processes; mu does so within one.
type FileStore struct {
	mu         sync.Mutex
	path       string
	maxEntries int
	lock       *flock.Flock
}

func NewFileStore(path string, maxEntries int) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("history file path is required")
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return &FileStore{
		path:       path,
		maxEntries: maxEntries,
		lock:       flock.New(path + ".lock"),
	}, nil
}

// Save prepends snap, replacing any run with the same id, and trims the file
// to the newest maxEntries runs.
func (s *FileStore) Save(ctx context.Context, snap runner.RunSnapshot) error {
	return s.withLock(ctx, true, func() error {
		runs, err := s.read()
		if err != nil {
			return err
		}
		kept := runs[:0]
		for _, r := range runs {
			if r.ID != snap.ID {
				kept = append(kept, r)
			}
		}
		runs = append([]runner.RunSnapshot{snap}, kept...)
		newestFirst(runs)
		if len(runs) > s.maxEntries {
			runs = runs[:s.maxEntries]
		}
		return s.write(runs)
	})
}

func (s *FileStore) List(ctx context.Context) ([]runner.RunSnapshot, error) {
	var runs []runner.RunSnapshot
	err := s.withLock(ctx, false, func() error {
		var err error
		runs, err = s.read()
		return err
	})
	if err != nil {
		return nil, err
	}
	newestFirst(runs)
	return runs, nil
}

func (s *FileStore) Get(ctx context.Context, id string) (runner.RunSnapshot, error) {
	runs, err := s.List(ctx)
	if err != nil {
		return runner.RunSnapshot{}, err
	}
	for _, r := range runs {
		if r.ID == id {
			return r, nil
		}
	}
	return runner.RunSnapshot{}, fmt.Errorf("%s: %w", id, ErrNotFound)
}

func (s *FileStore) Clear(ctx context.Context) error {
	return s.withLock(ctx, true, func() error {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("clear history: %w", err)
		}
		return nil
	})
}

// Close is a no-op; the lock is only held inside calls.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) withLock(ctx context.Context, exclusive bool, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = s.lock.TryLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = s.lock.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return fmt.Errorf("lock history: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock history: %s is busy", s.path)
	}
	defer s.lock.Unlock()
	return fn()
}

func (s *FileStore) read() ([]runner.RunSnapshot, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var runs []runner.RunSnapshot
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", s.path, err)
	}
	return runs, nil
}

// write replaces the file through a temp file and rename.
func (s *FileStore) write(runs []runner.RunSnapshot) error {
	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write history: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// Package history persists finished runs so they can be listed, inspected
// and cleared after the process exits. Both stores implement runner.Sink.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/torosent/provbench/internal/config"
	"github.com/torosent/provbench/internal/runner"
)

// DefaultMaxEntries caps how many runs a FileStore keeps.
const DefaultMaxEntries = 100

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

// Store is a finished-run sink that can be read back. List returns the
// newest run first.
type Store interface {
	runner.Sink
	List(ctx context.Context) ([]runner.RunSnapshot, error)
	Get(ctx context.Context, id string) (runner.RunSnapshot, error)
	Clear(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*BoltStore)(nil)
)

// Open returns the store cfg selects. It returns nil, nil when history is
// disabled.
func Open(cfg config.HistoryConfig) (Store, error) {
	switch cfg.Type {
	case "", config.HistoryTypeNone:
		return nil, nil
	case config.HistoryTypeJSON:
		return NewFileStore(cfg.Path, DefaultMaxEntries)
	case config.HistoryTypeBolt:
		return NewBoltStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported history type %q", cfg.Type)
	}
}

// newestFirst orders snapshots by start time, then id, descending.
func newestFirst(runs []runner.RunSnapshot) {
	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID > runs[j].ID
	})
}

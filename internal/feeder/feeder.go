// Package feeder rotates benchmark targets (wallet, chain, asset) read from
// a CSV or JSON file so iterations do not hit the same cached response.
package feeder

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/torosent/provbench/internal/provider"
)

// Record represents a single row of data with named fields.
type Record map[string]string

// Feeder provides per-request data from a dataset with deterministic round-robin selection.
// Implementations must be safe for concurrent use.
type Feeder interface {
	// Next returns the next record, wrapping to the first after the last.
	Next(ctx context.Context) (Record, error)

	// Close releases any resources held by the feeder.
	Close() error

	// Len returns the total number of records in the dataset.
	Len() int
}

// ErrEmpty is returned when a dataset holds no usable record.
var ErrEmpty = errors.New("feeder: no records")

// Open loads path as the given kind, "csv" or "json".
func Open(path, kind string) (Feeder, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "csv":
		return NewCSVFeeder(path)
	case "json":
		return NewJSONFeeder(path)
	default:
		return nil, fmt.Errorf("unsupported feeder type %q", kind)
	}
}

// rotation hands out records round-robin under a mutex.
type rotation struct {
	records []Record
	index   int
	mu      sync.Mutex
}

func (r *rotation) next(ctx context.Context) (Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.records) == 0 {
		return nil, ErrEmpty
	}
	record := r.records[r.index]
	r.index = (r.index + 1) % len(r.records)
	return record, nil
}

// fieldAliases lists the accepted column names per Target field, in
// priority order: the first non-empty column wins.
var fieldAliases = []struct {
	set   func(*provider.Target, string)
	names []string
}{
	{func(t *provider.Target, v string) { t.Address = v }, []string{"address", "wallet", "owner"}},
	{func(t *provider.Target, v string) { t.Chain = v }, []string{"chain", "network"}},
	{func(t *provider.Target, v string) { t.Asset = v }, []string{"asset"}},
	{func(t *provider.Target, v string) { t.Symbol = v }, []string{"symbol"}},
	{func(t *provider.Target, v string) { t.Contract = v }, []string{"contract", "token"}},
}

// TargetFromRecord maps a record onto a Target. Column names match
// case-insensitively, unknown columns are ignored and missing ones fall back
// to the provider defaults.
func TargetFromRecord(rec Record) provider.Target {
	columns := make(map[string]string, len(rec))
	for _, key := range slices.Sorted(maps.Keys(rec)) {
		name := strings.ToLower(strings.TrimSpace(key))
		if _, seen := columns[name]; seen {
			continue
		}
		if value := strings.TrimSpace(rec[key]); value != "" {
			columns[name] = value
		}
	}

	var t provider.Target
	for _, field := range fieldAliases {
		for _, name := range field.names {
			if value, ok := columns[name]; ok {
				field.set(&t, value)
				break
			}
		}
	}
	return t.WithDefaults()
}

// Targets adapts a Feeder to runner.TargetSource.
type Targets struct {
	feeder Feeder
}

func NewTargets(f Feeder) *Targets {
	return &Targets{feeder: f}
}

func (t *Targets) Next(ctx context.Context) (provider.Target, error) {
	rec, err := t.feeder.Next(ctx)
	if err != nil {
		return provider.Target{}, err
	}
	return TargetFromRecord(rec), nil
}

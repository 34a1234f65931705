package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/torosent/provbench/internal/runner"
)

const BucketRuns = "runs"

// BoltStore keeps one JSON document per run in a bbolt bucket keyed by run
// id. ULID ids sort by creation time, so cursor order is run order.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, fmt.Errorf("history database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketRuns))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BoltStore) Save(_ context.Context, snap runner.RunSnapshot) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketRuns))

		data, err := json.Marshal(snap)
		if err != nil {
			return err
		}

		return b.Put([]byte(snap.ID), data)
	})
}

// List returns every stored run, newest first. Undecodable entries are
// skipped.
func (s *BoltStore) List(_ context.Context) ([]runner.RunSnapshot, error) {
	var runs []runner.RunSnapshot

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketRuns))
		c := b.Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var snap runner.RunSnapshot
			if err := json.Unmarshal(v, &snap); err == nil {
				runs = append(runs, snap)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	newestFirst(runs)
	return runs, nil
}

func (s *BoltStore) Get(_ context.Context, id string) (runner.RunSnapshot, error) {
	var snap runner.RunSnapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketRuns))
		v := b.Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(v, &snap)
	})
	if err != nil {
		return runner.RunSnapshot{}, err
	}
	return snap, nil
}

func (s *BoltStore) Clear(_ context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(BucketRuns)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(BucketRuns))
		return err
	})
}

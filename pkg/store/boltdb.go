package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/kingsdgreat/sundial-evaluation-api/pkg/types"
)

var (
	bucketCycles = []byte("cycles")
)

// BoltStore persists finished restart cycles in BoltDB. Cycle records are
// written once after completion and never mutated.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the cycle history database under dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "sundial.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCycles)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SaveCycle appends a finished cycle record. Keys are the cycle start time
// in RFC3339Nano so iteration order is chronological.
func (s *BoltStore) SaveCycle(cycle *types.RestartCycle) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCycles)
		data, err := json.Marshal(cycle)
		if err != nil {
			return fmt.Errorf("failed to marshal cycle: %w", err)
		}
		key := []byte(cycle.StartTime.UTC().Format(time.RFC3339Nano))
		return b.Put(key, data)
	})
}

// RecentCycles returns up to limit most recent cycles, newest first
func (s *BoltStore) RecentCycles(limit int) ([]*types.RestartCycle, error) {
	var cycles []*types.RestartCycle

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketCycles).Cursor()
		for k, v := c.Last(); k != nil && len(cycles) < limit; k, v = c.Prev() {
			var cycle types.RestartCycle
			if err := json.Unmarshal(v, &cycle); err != nil {
				return fmt.Errorf("failed to unmarshal cycle %s: %w", k, err)
			}
			cycles = append(cycles, &cycle)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return cycles, nil
}

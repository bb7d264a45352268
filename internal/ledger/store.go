// Package ledger persists rounds, ticket positions, vaults, user profiles and
// the transfer journal in a bbolt database. bbolt allows a single read-write
// transaction at a time, which is the serialization point for every
// state-changing lottery operation.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/logger"
	bolt "go.etcd.io/bbolt"
)

var (
	ErrNotFound       = errors.New("ledger: record not found")
	ErrExists         = errors.New("ledger: record already exists")
	ErrAlreadyClaimed = errors.New("ledger: ticket position already claimed")
)

var (
	bucketRounds     = []byte("rounds")
	bucketRoundIndex = []byte("round_index")
	bucketPositions  = []byte("ticket_positions")
	bucketVaults     = []byte("vaults")
	bucketProfiles   = []byte("user_profiles")
	bucketTransfers  = []byte("transfers")
	bucketMeta       = []byte("meta")

	allBuckets = [][]byte{
		bucketRounds, bucketRoundIndex, bucketPositions, bucketVaults,
		bucketProfiles, bucketTransfers, bucketMeta,
	}

	keyFeeSink = []byte("fee_sink")
)

// Store is the durable ledger.
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens or creates the ledger file at path. timeout bounds the wait
// for the file lock held by another process.
func Open(path string, timeout time.Duration) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Infof("Opened ledger at %s", path)
	return &Store{db: db, path: path}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Update runs fn in the single read-write transaction. Any error returned by
// fn rolls back every write fn made.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(btx *bolt.Tx) error {
		return fn(&Tx{btx: btx})
	})
}

// View runs fn in a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(btx *bolt.Tx) error {
		return fn(&Tx{btx: btx})
	})
}

// WriteSnapshot writes a consistent copy of the database to w.
func (s *Store) WriteSnapshot(w io.Writer) (int64, error) {
	var n int64
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		n, err = tx.WriteTo(w)
		return err
	})
	return n, err
}

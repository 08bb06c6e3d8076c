// Package store persists the savings ledger in a bolthold database on the
// worker's persistent disk.
package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/timshannon/bolthold"
	bolt "go.etcd.io/bbolt"

	"github.com/cameronsjo/savingsbot/internal/savings"
)

const (
	defaultFileMode = 0600
	openTimeout     = 5 * time.Second
)

var sequenceBucket = []byte("sequences")

// Store implements savings.Repository.
type Store struct {
	db *bolthold.Store
}

var _ savings.Repository = (*Store)(nil)

// Options controls how the database file is opened.
type Options struct {
	// ReadOnly opens the file with a shared lock so the CLI can read while
	// nothing else writes.
	ReadOnly bool
}

// Open opens (or creates) the database at path, creating parent directories.
func Open(path string, opts Options) (*Store, error) {
	if !opts.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := bolthold.Open(path, defaultFileMode, &bolthold.Options{
		Options: &bolt.Options{
			Timeout:  openTimeout,
			ReadOnly: opts.ReadOnly,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Bolt().Path()
}

// WriteTo streams a consistent copy of the database to w.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	var n int64
	err := s.db.Bolt().View(func(tx *bolt.Tx) error {
		var err error
		n, err = tx.WriteTo(w)
		return err
	})
	if err != nil {
		return n, fmt.Errorf("copying database: %w", err)
	}
	return n, nil
}

// nextID hands out a per-type sequence value inside tx.
func nextID(tx *bolt.Tx, name string) (uint64, error) {
	b, err := tx.CreateBucketIfNotExists(sequenceBucket)
	if err != nil {
		return 0, err
	}

	key := []byte(name)
	var cur uint64
	if raw := b.Get(key); len(raw) == 8 {
		cur = binary.BigEndian.Uint64(raw)
	}
	cur++

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, cur)
	if err := b.Put(key, buf); err != nil {
		return 0, err
	}
	return cur, nil
}

func (s *Store) InsertGoal(ctx context.Context, g *savings.Goal) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Bolt().Update(func(tx *bolt.Tx) error {
		var existing []savings.Goal
		if err := s.db.TxFind(tx, &existing, bolthold.Where("Name").Eq(g.Name)); err != nil {
			return fmt.Errorf("checking goal name: %w", err)
		}
		if len(existing) > 0 {
			return fmt.Errorf("%w: %q", savings.ErrDuplicateName, g.Name)
		}

		id, err := nextID(tx, "goal")
		if err != nil {
			return fmt.Errorf("allocating goal id: %w", err)
		}
		g.ID = id

		if err := s.db.TxInsert(tx, id, g); err != nil {
			return fmt.Errorf("inserting goal: %w", err)
		}
		return nil
	})
}

func (s *Store) Goals(ctx context.Context, userID int64) ([]savings.Goal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var goals []savings.Goal
	if err := s.db.Find(&goals, bolthold.Where("UserID").Eq(userID).Index("UserID")); err != nil {
		return nil, fmt.Errorf("finding goals: %w", err)
	}
	return goals, nil
}

func (s *Store) Goal(ctx context.Context, id uint64) (*savings.Goal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var g savings.Goal
	if err := s.db.Get(id, &g); err != nil {
		if errors.Is(err, bolthold.ErrNotFound) {
			return nil, savings.ErrNotFound
		}
		return nil, fmt.Errorf("getting goal: %w", err)
	}
	return &g, nil
}

func (s *Store) DeleteGoal(ctx context.Context, id uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Bolt().Update(func(tx *bolt.Tx) error {
		var g savings.Goal
		if err := s.db.TxGet(tx, id, &g); err != nil {
			if errors.Is(err, bolthold.ErrNotFound) {
				return savings.ErrNotFound
			}
			return fmt.Errorf("getting goal: %w", err)
		}

		if err := s.db.TxDeleteMatching(tx, &savings.Entry{}, bolthold.Where("GoalID").Eq(id).Index("GoalID")); err != nil {
			return fmt.Errorf("deleting entries: %w", err)
		}
		if err := s.db.TxDelete(tx, id, &savings.Goal{}); err != nil {
			return fmt.Errorf("deleting goal: %w", err)
		}
		return nil
	})
}

func (s *Store) AddEntry(ctx context.Context, goalID uint64, amount float64, at time.Time) (*savings.Goal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var g savings.Goal
	err := s.db.Bolt().Update(func(tx *bolt.Tx) error {
		if err := s.db.TxGet(tx, goalID, &g); err != nil {
			if errors.Is(err, bolthold.ErrNotFound) {
				return savings.ErrNotFound
			}
			return fmt.Errorf("getting goal: %w", err)
		}

		total := g.Current + amount
		if math.IsInf(total, 0) || math.IsNaN(total) {
			return fmt.Errorf("%w: total for %q overflows", savings.ErrInvalidAmount, g.Name)
		}

		id, err := nextID(tx, "entry")
		if err != nil {
			return fmt.Errorf("allocating entry id: %w", err)
		}
		entry := savings.Entry{ID: id, GoalID: goalID, Amount: amount, SavedAt: at}
		if err := s.db.TxInsert(tx, id, &entry); err != nil {
			return fmt.Errorf("inserting entry: %w", err)
		}

		g.Current = total
		if err := s.db.TxUpdate(tx, goalID, &g); err != nil {
			return fmt.Errorf("updating goal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) SetNotified90(ctx context.Context, id uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Bolt().Update(func(tx *bolt.Tx) error {
		var g savings.Goal
		if err := s.db.TxGet(tx, id, &g); err != nil {
			if errors.Is(err, bolthold.ErrNotFound) {
				return savings.ErrNotFound
			}
			return fmt.Errorf("getting goal: %w", err)
		}
		g.Notified90 = true
		if err := s.db.TxUpdate(tx, id, &g); err != nil {
			return fmt.Errorf("updating goal: %w", err)
		}
		return nil
	})
}

func (s *Store) Entries(ctx context.Context, goalID uint64) ([]savings.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []savings.Entry
	if err := s.db.Find(&entries, bolthold.Where("GoalID").Eq(goalID).Index("GoalID")); err != nil {
		return nil, fmt.Errorf("finding entries: %w", err)
	}
	return entries, nil
}

func (s *Store) SaveReminder(ctx context.Context, r savings.Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.db.Upsert(r.ChatID, &r); err != nil {
		return fmt.Errorf("saving reminder: %w", err)
	}
	return nil
}

func (s *Store) DeleteReminder(ctx context.Context, chatID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Delete(chatID, &savings.Reminder{})
	if err != nil && !errors.Is(err, bolthold.ErrNotFound) {
		return fmt.Errorf("deleting reminder: %w", err)
	}
	return nil
}

func (s *Store) Reminders(ctx context.Context) ([]savings.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var reminders []savings.Reminder
	if err := s.db.Find(&reminders, nil); err != nil {
		return nil, fmt.Errorf("finding reminders: %w", err)
	}
	return reminders, nil
}

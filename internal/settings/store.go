// Package settings persists the naming policy and the imported mapping text in Badger.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/scanshelf/scanshelf/internal/logger"
	"github.com/scanshelf/scanshelf/internal/naming"
)

const (
	keyPolicy      = "settings:policy"
	keyMapping     = "settings:mapping"
	keyMappingMeta = "settings:mapping:meta"
)

// MappingMeta describes the stored mapping import.
type MappingMeta struct {
	ImportedAt time.Time `json:"imported_at"`
	Entries    int       `json:"entries"`
	Skipped    int       `json:"skipped"`
}

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) the settings database at path.
func Open(path string, log *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Settings are small and must survive crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup
	return open(opts, log)
}

// OpenInMemory opens a settings store that lives only as long as the process.
func OpenInMemory(log *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, log)
}

func open(opts badger.Options, log *slog.Logger) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	s := &Store{db: db, logger: logger.OrDiscard(log)}
	s.logger.Info("settings database opened", "path", opts.Dir, "in_memory", opts.InMemory)
	return s, nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	s.logger.Info("closing settings database")
	return s.db.Close()
}

// LoadPolicy returns the stored policy, or def if none was saved.
func (s *Store) LoadPolicy(ctx context.Context, def naming.Policy) (naming.Policy, error) {
	if err := ctx.Err(); err != nil {
		return naming.Policy{}, err
	}
	var p naming.Policy
	found, err := s.get([]byte(keyPolicy), &p)
	if err != nil {
		return naming.Policy{}, fmt.Errorf("load policy: %w", err)
	}
	if !found {
		return def.Normalized(), nil
	}
	return p.Normalized(), nil
}

// SavePolicy stores the policy.
func (s *Store) SavePolicy(ctx context.Context, p naming.Policy) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.set([]byte(keyPolicy), p); err != nil {
		return fmt.Errorf("save policy: %w", err)
	}
	return nil
}

// LoadMapping returns the stored mapping text. ok is false when nothing was imported.
func (s *Store) LoadMapping(ctx context.Context) (text string, meta MappingMeta, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return "", MappingMeta{}, false, err
	}
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyMapping))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		text = string(raw)

		metaItem, err := txn.Get([]byte(keyMappingMeta))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return metaItem.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", MappingMeta{}, false, nil
	}
	if err != nil {
		return "", MappingMeta{}, false, fmt.Errorf("load mapping: %w", err)
	}
	return text, meta, true, nil
}

// SaveMapping stores the mapping text and its metadata in one transaction.
func (s *Store) SaveMapping(ctx context.Context, text string, meta MappingMeta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping meta: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(keyMapping), []byte(text)); err != nil {
			return err
		}
		return txn.Set([]byte(keyMappingMeta), metaData)
	})
	if err != nil {
		return fmt.Errorf("save mapping: %w", err)
	}
	return nil
}

// ClearMapping removes the stored mapping.
func (s *Store) ClearMapping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(keyMapping)); err != nil {
			return err
		}
		return txn.Delete([]byte(keyMappingMeta))
	})
	if err != nil {
		return fmt.Errorf("clear mapping: %w", err)
	}
	return nil
}

// get reads a JSON value. found is false when the key does not exist.
func (s *Store) get(key []byte, dest any) (found bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// set stores a JSON value.
func (s *Store) set(key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"lemoncrawl/internal/domain"
)

// BadgerLedger implements the Ledger interface using BadgerDB.
type BadgerLedger struct {
	db  *badger.DB
	log logrus.FieldLogger
}

// NewBadgerLedger opens the ledger at dbPath. An empty path opens an in-memory ledger.
func NewBadgerLedger(dbPath string, logger logrus.FieldLogger) (*BadgerLedger, error) {
	opts := badger.DefaultOptions(dbPath)
	if dbPath == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.WithField("path", dbPath).Debug("Run ledger opened")

	return &BadgerLedger{
		db:  db,
		log: logger.WithField("component", "ledger"),
	}, nil
}

// Close closes the BadgerDB database.
func (l *BadgerLedger) Close() error {
	err := l.db.Close()
	if err != nil {
		l.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	l.log.Debug("Run ledger closed.")
	return nil
}

// itemKey format: item:{kind}:{id}
func itemKey(kind domain.ItemKind, id string) []byte {
	return []byte(fmt.Sprintf("item:%s:%s", kind, id))
}

// kindPrefix format: item:{kind}: or item: for every kind.
func kindPrefix(kind domain.ItemKind) []byte {
	if kind == "" {
		return []byte("item:")
	}
	return []byte(fmt.Sprintf("item:%s:", kind))
}

// RecordAttempt stores attempt and bumps the attempt counter in one transaction.
func (l *BadgerLedger) RecordAttempt(ctx context.Context, attempt domain.ItemAttempt) (domain.ItemAttempt, error) {
	log := l.log.WithFields(logrus.Fields{
		"kind":   attempt.Kind,
		"id":     attempt.ID,
		"status": attempt.Status,
	})
	if attempt.Kind == "" || attempt.ID == "" {
		return domain.ItemAttempt{}, errors.New("ledger entry needs a kind and an id")
	}
	if attempt.UpdatedAt.IsZero() {
		attempt.UpdatedAt = time.Now()
	}

	key := itemKey(attempt.Kind, attempt.ID)
	err := l.db.Update(func(txn *badger.Txn) error {
		previous := 0
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			err = item.Value(func(val []byte) error {
				var prev domain.ItemAttempt
				if err := json.Unmarshal(val, &prev); err != nil {
					return fmt.Errorf("failed to unmarshal ledger entry %s: %w", string(key), err)
				}
				previous = prev.Attempts
				return nil
			})
			if err != nil {
				return err
			}
		}
		attempt.Attempts = previous + 1

		raw, err := json.Marshal(attempt)
		if err != nil {
			return fmt.Errorf("failed to marshal ledger entry: %w", err)
		}
		return txn.SetEntry(badger.NewEntry(key, raw))
	})
	if err != nil {
		log.WithError(err).Error("Failed to record attempt")
		return domain.ItemAttempt{}, fmt.Errorf("failed to record attempt for %s %s: %w", attempt.Kind, attempt.ID, err)
	}

	log.WithField("attempts", attempt.Attempts).Debug("Attempt recorded")
	return attempt, nil
}

// Get returns the latest entry for one item.
func (l *BadgerLedger) Get(ctx context.Context, kind domain.ItemKind, id string) (domain.ItemAttempt, bool, error) {
	var attempt domain.ItemAttempt
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(itemKey(kind, id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &attempt)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.ItemAttempt{}, false, nil
	}
	if err != nil {
		return domain.ItemAttempt{}, false, fmt.Errorf("failed to get ledger entry %s %s: %w", kind, id, err)
	}
	return attempt, true, nil
}

// List returns the entries of kind, newest first.
func (l *BadgerLedger) List(ctx context.Context, kind domain.ItemKind) ([]domain.ItemAttempt, error) {
	var attempts []domain.ItemAttempt

	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := kindPrefix(kind)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var attempt domain.ItemAttempt
				if err := json.Unmarshal(val, &attempt); err != nil {
					return fmt.Errorf("failed to unmarshal ledger entry %s: %w", string(item.Key()), err)
				}
				attempts = append(attempts, attempt)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		l.log.WithError(err).Error("Failed to list ledger entries")
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	sort.SliceStable(attempts, func(i, j int) bool {
		return attempts[i].UpdatedAt.After(attempts[j].UpdatedAt)
	})
	return attempts, nil
}

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}

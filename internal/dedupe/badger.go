package dedupe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/bakkerme/digestbot/internal/core"
)

const badgerKeyPrefix = "seen:"

// BadgerStore keeps one key per link in an embedded Badger database.
// With a positive TTL, keys expire that long after they were first saved.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
	now func() time.Time
}

func NewBadgerStore(path string, ttl time.Duration) (*BadgerStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("badger path is required")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("badger ttl must be >= 0")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create badger directory: %w", err)
	}
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *BadgerStore) Load(ctx context.Context) (core.SeenSet, error) {
	seen := core.NewSeenSet()
	prefix := []byte(badgerKeyPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			seen.Add(strings.TrimPrefix(string(it.Item().Key()), badgerKeyPrefix))
		}
		return nil
	})
	if err != nil {
		return core.NewSeenSet(), &core.StoreLoadError{Err: fmt.Errorf("badger scan: %w", err)}
	}
	return seen, nil
}

// Save adds links that are not stored yet. Existing keys keep their original
// timestamp so the TTL counts from first publication.
func (s *BadgerStore) Save(ctx context.Context, seen core.SeenSet) error {
	var missing []string
	err := s.db.View(func(txn *badger.Txn) error {
		for _, link := range seen.Links() {
			_, err := txn.Get([]byte(badgerKeyPrefix + link))
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				missing = append(missing, link)
			case err != nil:
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger lookup: %w", err)
	}
	if len(missing) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	stamp := []byte(s.now().Format(time.RFC3339))
	for _, link := range missing {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry := badger.NewEntry([]byte(badgerKeyPrefix+link), stamp)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		if err := wb.SetEntry(entry); err != nil {
			return fmt.Errorf("badger write %s: %w", link, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("badger flush: %w", err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

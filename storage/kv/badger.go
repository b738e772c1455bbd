package kv

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tathmini/core/cache"
)

type BadgerStore struct {
	db         *badger.DB
	maxEntries int
}

var _ cache.Store = (*BadgerStore)(nil)

// OpenBadger opens (creating it if needed) the badger database in dir.
// An empty dir keeps everything in memory.
func OpenBadger(dir string, maxEntries int) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "opening badger")
	}
	return &BadgerStore{db: db, maxEntries: maxEntries}, nil
}

func (s *BadgerStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading %q", key)
	}
	return value, true, nil
}

func countKeys(txn *badger.Txn, prefix []byte) int {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var n int
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		n++
	}
	return n
}

func (s *BadgerStore) Set(key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if s.maxEntries > 0 {
			_, err := txn.Get([]byte(key))
			if err == badger.ErrKeyNotFound && countKeys(txn, nil) >= s.maxEntries {
				return cache.ErrQuotaExceeded
			}
			if err != nil && err != badger.ErrKeyNotFound {
				return err
			}
		}
		return txn.Set([]byte(key), value)
	})
	if err == cache.ErrQuotaExceeded {
		return err
	}
	return errors.Wrapf(err, "writing %q", key)
}

func (s *BadgerStore) Remove(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	return errors.Wrapf(err, "removing %q", key)
}

func (s *BadgerStore) Keys(prefix string) ([]string, error) {
	keys := make([]string, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, errors.Wrap(err, "listing keys")
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

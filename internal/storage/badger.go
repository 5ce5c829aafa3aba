package storage

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const docPrefix = "doc:"

// BadgerGateway is the default document store, one badger entry per key.
type BadgerGateway struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a badger-backed gateway at path.
func OpenBadger(path string) (*BadgerGateway, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithNumVersionsToKeep(1).
		WithCompactL0OnClose(true).
		WithValueLogFileSize(16 << 20).
		WithMemTableSize(16 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &BadgerGateway{db: db}, nil
}

func (g *BadgerGateway) Get(key string) ([]byte, error) {
	var val []byte
	err := g.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(docPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			val = append([]byte{}, v...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	return val, err
}

func (g *BadgerGateway) Set(key string, value []byte) error {
	return g.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(docPrefix+key), value)
	})
}

func (g *BadgerGateway) Delete(key string) error {
	return g.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(docPrefix + key))
	})
}

func (g *BadgerGateway) Keys() ([]string, error) {
	var keys []string
	err := g.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(docPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, strings.TrimPrefix(string(it.Item().Key()), docPrefix))
		}
		return nil
	})
	return keys, err
}

func (g *BadgerGateway) Close() error {
	return g.db.Close()
}

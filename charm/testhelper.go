// ABOUTME: Test utilities for creating isolated charm clients
// ABOUTME: Backs the client with a BadgerDB in a temp directory, no server needed

package charm

import (
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v3"
)

// badgerStore provides the charm/kv surface on a plain BadgerDB.
type badgerStore struct {
	db *badger.DB
}

func (b *badgerStore) Get(key []byte) ([]byte, error) {
	var result []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		result, err = item.ValueCopy(nil)
		return err
	})
	return result, err
}

func (b *badgerStore) Set(key, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (b *badgerStore) Delete(key []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (b *badgerStore) Keys() ([][]byte, error) {
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

func (b *badgerStore) Sync() error { return nil }

func (b *badgerStore) Reset() error {
	return b.db.DropAll()
}

// NewTestClient creates a charm client on a temporary BadgerDB. The database
// is closed when the test finishes.
func NewTestClient(t *testing.T) *Client {
	t.Helper()
	return NewTestClientAt(t, t.TempDir())
}

// NewTestClientAt opens a test client on the BadgerDB under dir, so
// sequential clients in one test see the same records.
func NewTestClientAt(t *testing.T, dir string) *Client {
	t.Helper()

	opts := badger.DefaultOptions(filepath.Join(dir, AppName)).
		WithLogger(nil) // Suppress badger logs in tests

	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("Failed to open badger: %v", err)
	}

	c := &Client{
		kv:     &badgerStore{db: db},
		config: &Config{Host: "localhost", AutoSync: false},
		id:     func() (string, error) { return "test-device", nil },
		close:  db.Close,
	}

	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Logf("Warning: failed to close test database: %v", err)
		}
	})

	return c
}

package jsembed

import (
	"database/sql"
	"fmt"

	// Pure-Go SQLite driver for database/sql.
	_ "github.com/glebarez/sqlite"
)

// Store is a SQLite-backed key/value store that scripts reach through a
// bound host object. All operations run synchronously on the calling
// goroutine; SQLite queries are fast local I/O.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) a store at the given path. Use ":memory:"
// for an ephemeral store.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing store schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Get returns the stored value, or ok=false when the key is absent.
func (s *Store) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store get: %w", err)
	}
	return value, true, nil
}

func (s *Store) Put(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("store put: %w", err)
	}
	return nil
}

func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("store delete: %w", err)
	}
	return nil
}

// List returns keys with the given prefix, in key order.
func (s *Store) List(prefix string) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT key FROM kv WHERE key LIKE ? || '%' ORDER BY key", prefix)
	if err != nil {
		return nil, fmt.Errorf("store list: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("store list: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Bind builds a host object exposing get/put/delete/list to scripts. A
// missing key reads as null; errors surface as undefined.
func (s *Store) Bind() *Object {
	obj := NewObject()
	obj.SetMethod("get", func(this Value, args []Value) Value {
		if len(args) < 1 {
			return Undefined()
		}
		value, ok, err := s.Get(args[0].String())
		if err != nil || !ok {
			return Void()
		}
		return String(value)
	})
	obj.SetMethod("put", func(this Value, args []Value) Value {
		if len(args) < 2 {
			return Bool(false)
		}
		return Bool(s.Put(args[0].String(), args[1].String()) == nil)
	})
	obj.SetMethod("delete", func(this Value, args []Value) Value {
		if len(args) < 1 {
			return Bool(false)
		}
		return Bool(s.Delete(args[0].String()) == nil)
	})
	obj.SetMethod("list", func(this Value, args []Value) Value {
		prefix := ""
		if len(args) > 0 {
			prefix = args[0].String()
		}
		keys, err := s.List(prefix)
		if err != nil {
			return Undefined()
		}
		out := NewArray()
		for _, k := range keys {
			out.Append(String(k))
		}
		return ArrayValue(out)
	})
	return obj
}

// SetupStore is a pool setup function binding a shared store under the
// given global name.
func SetupStore(name string, store *Store) SetupFunc {
	return func(e *Engine) error {
		return e.RegisterObject(name, store.Bind())
	}
}

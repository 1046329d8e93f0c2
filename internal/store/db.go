package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a SQLite database connection for the profile-owned kanux.db.
type DB struct {
	*sql.DB
	now func() time.Time
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Verify connection.
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{DB: db, now: time.Now}, nil
}

// OpenMemory opens an in-memory store used as the degraded fallback when the
// on-disk database cannot be opened. Data does not survive a restart.
func OpenMemory() (*DB, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	// A :memory: database exists per connection; keep the pool at one.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping memory db: %w", err)
	}
	return &DB{DB: db, now: time.Now}, nil
}

// ClearAll wipes every table. Used only on sign-out.
func (db *DB) ClearAll() error {
	tx, err := db.Begin()
	if err != nil {
		return storageErr("clear all", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"messages", "tickets", "pending_ops", "cache"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return storageErr("clear "+table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storageErr("clear all", err)
	}
	return nil
}

// Package db opens the analyzer's sqlite database and manages its schema
// through versioned migrations.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the sql connection so schema management hangs off the same
// handle the stores use.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the sqlite database at path. The schema
// is managed by MigrateUp, not here.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// modernc sqlite serializes writes internally; a single connection
	// avoids SQLITE_BUSY under concurrent store access.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	return &DB{sqlDB}, nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/pqload/internal/importer"
)

// sqliteMaxParams is SQLITE_MAX_VARIABLE_NUMBER for SQLite 3.32 and later.
const sqliteMaxParams = 32766

// SQLite is an insert-only destination. SQLite has no TRUNCATE, so it
// implements importer.Truncater with DELETE FROM.
type SQLite struct {
	sqlDest
}

var (
	_ Destination        = (*SQLite)(nil)
	_ importer.Truncater = (*SQLite)(nil)
)

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; this also keeps :memory: databases on a single
	// connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply PRAGMA: %w", err)
	}

	return &SQLite{sqlDest{
		db:        db,
		driver:    DriverSQLite,
		maxParams: sqliteMaxParams,
		ph:        questionMark,
	}}, nil
}

func (s *SQLite) Truncate(ctx context.Context, quotedTable string) error {
	return s.Exec(ctx, "DELETE FROM "+quotedTable)
}

package importer

import (
	"context"

	"github.com/JonMunkholm/pqload/internal/source"
)

// Conn is the destination connection an import writes through.
// Satisfied by every destination in internal/database.
type Conn interface {
	// Exec runs a statement that returns no rows (TRUNCATE, SET, DDL).
	Exec(ctx context.Context, sql string) error

	// InsertRows inserts rows as ordinary INSERT statements. table is the
	// already-quoted identifier; columns are raw validated names; each row
	// holds values in column order. A single call must be all-or-nothing.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) error
}

// BulkLoader is implemented by connections that can stream COPY data.
// SupportsBulkLoad lets a destination opt out at runtime (e.g. poolers
// that reject COPY) without changing its type.
type BulkLoader interface {
	SupportsBulkLoad() bool
	BeginBulk(ctx context.Context) (BulkTx, error)
}

// BulkTx is a transaction scoped to a single COPY batch.
type BulkTx interface {
	Exec(ctx context.Context, sql string) error
	CopyFrom(ctx context.Context, req CopyRequest) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Truncater is an optional Conn extension for databases without
// TRUNCATE TABLE. When absent the importer executes TRUNCATE TABLE.
type Truncater interface {
	Truncate(ctx context.Context, quotedTable string) error
}

// CopyRequest carries one rendered batch to the bulk-load primitive.
// Table and Columns are raw (unquoted) validated identifiers.
type CopyRequest struct {
	Table     string
	Columns   []string
	Lines     []string
	Delimiter string
	Null      string
}

// Config holds the tunables of an Importer.
type Config struct {
	// BatchSize is the number of rows sent per flush. Values below 1 are raised to 1.
	BatchSize int

	// CopyTimeoutSeconds bounds each COPY statement. Values below 1 are raised to 1.
	CopyTimeoutSeconds int
}

// Defaults used when the caller has no configuration of its own.
const (
	DefaultBatchSize          = 5000
	DefaultCopyTimeoutSeconds = 300
)

// Request describes a single import run.
type Request struct {
	Path      string            // source file; must exist
	Table     string            // target table, optionally schema-qualified
	ColumnMap map[string]string // source column -> target column
	Source    source.RowSource  // optional; opened from Path when nil
	Truncate  bool              // truncate the table before reading any row
}

// Package source provides the row readers an import consumes.
//
// A RowSource exposes an ordered column list and a single-pass row
// sequence. Adapters exist for Parquet, XLSX and CSV files plus an
// in-memory source used by callers that already hold their rows.
package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Row maps a source column name to its value.
type Row map[string]any

// RowSource is the contract between a file reader and the importer.
type RowSource interface {
	// Columns returns the source columns in file order.
	Columns(ctx context.Context) ([]string, error)

	// Rows starts the single pass over the data. A RowSource is not
	// restartable; open a fresh one to read again.
	Rows(ctx context.Context) (Rows, error)
}

// Rows iterates over a source, database/sql style.
//
//	rows, err := src.Rows(ctx)
//	if err != nil { ... }
//	defer rows.Close()
//	for rows.Next() {
//	    row := rows.Row()
//	}
//	if err := rows.Err(); err != nil { ... }
type Rows interface {
	Next() bool
	Row() Row
	Err() error
	Close() error
}

// Options tune the file adapters.
type Options struct {
	// Sheet selects the XLSX worksheet. Empty means the first sheet.
	Sheet string
}

// Open picks an adapter by file extension. The returned source owns any
// open file handles and implements io.Closer.
func Open(ctx context.Context, path string, opts Options) (RowSource, error) {
	var (
		src RowSource
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".parquet", ".pq":
		src, err = OpenParquet(path)
	case ".xlsx", ".xlsm":
		src, err = OpenXLSX(path, opts.Sheet)
	case ".csv":
		src, err = OpenCSV(path)
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

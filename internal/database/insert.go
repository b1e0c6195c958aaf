package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/pqload/internal/importer"
)

// placeholderFunc renders the n-th (1-based) bind parameter.
type placeholderFunc func(n int) string

func questionMark(int) string { return "?" }

func dollar(n int) string { return "$" + strconv.Itoa(n) }

// rowsPerStatement returns how many rows fit in one INSERT without
// exceeding the driver's bind parameter limit.
func rowsPerStatement(columns, maxParams int) int {
	if columns <= 0 {
		return 1
	}
	n := maxParams / columns
	if n < 1 {
		return 1
	}
	return n
}

// buildInsert renders a multi-row INSERT for nrows rows. table must already
// be quoted; columns are raw validated names.
func buildInsert(table string, columns []string, nrows int, ph placeholderFunc) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(importer.QuoteColumns(columns), ", "))
	b.WriteString(") VALUES ")

	param := 1
	for r := 0; r < nrows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range columns {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(ph(param))
			param++
		}
		b.WriteByte(')')
	}
	return b.String()
}

// flattenArgs lays out rows as one argument list in row-major order.
func flattenArgs(rows [][]any) []any {
	if len(rows) == 0 {
		return nil
	}
	args := make([]any, 0, len(rows)*len(rows[0]))
	for _, row := range rows {
		args = append(args, row...)
	}
	return args
}

// sqlDest is an insert-only destination on database/sql.
type sqlDest struct {
	db        *sql.DB
	driver    string
	maxParams int
	ph        placeholderFunc
}

func (d *sqlDest) Driver() string { return d.driver }

func (d *sqlDest) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

func (d *sqlDest) Close() error { return d.db.Close() }

// DB exposes the underlying pool.
func (d *sqlDest) DB() *sql.DB { return d.db }

func (d *sqlDest) Exec(ctx context.Context, query string) error {
	_, err := d.db.ExecContext(ctx, query)
	return err
}

// InsertRows writes all rows in one transaction, chunked to respect the
// bind parameter limit. Either every row lands or none does.
func (d *sqlDest) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	step := rowsPerStatement(len(columns), d.maxParams)
	for start := 0; start < len(rows); start += step {
		end := min(start+step, len(rows))
		chunk := rows[start:end]
		query := buildInsert(table, columns, len(chunk), d.ph)
		if _, err := tx.ExecContext(ctx, query, flattenArgs(chunk)...); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/pqload/internal/logging"
	"github.com/JonMunkholm/pqload/internal/source"
)

// Opener turns a file path into a RowSource.
type Opener func(ctx context.Context, path string) (source.RowSource, error)

// Importer streams rows from a RowSource into a destination table.
// An Importer holds no per-run state and is safe for concurrent use;
// each Import call is independent.
type Importer struct {
	conn Conn
	cfg  Config
	open Opener
}

// Option configures an Importer.
type Option func(*Importer)

// WithOpener replaces the default extension-based opener.
func WithOpener(open Opener) Option {
	return func(im *Importer) {
		im.open = open
	}
}

// WithSourceOptions configures the default opener (e.g. the XLSX sheet).
func WithSourceOptions(opts source.Options) Option {
	return func(im *Importer) {
		im.open = func(ctx context.Context, path string) (source.RowSource, error) {
			return source.Open(ctx, path, opts)
		}
	}
}

// New creates an Importer writing through conn. Batch size and COPY
// timeout below 1 are raised to 1.
func New(conn Conn, cfg Config, opts ...Option) *Importer {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.CopyTimeoutSeconds < 1 {
		cfg.CopyTimeoutSeconds = 1
	}

	im := &Importer{
		conn: conn,
		cfg:  cfg,
		open: func(ctx context.Context, path string) (source.RowSource, error) {
			return source.Open(ctx, path, source.Options{})
		},
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Config returns the effective (clamped) configuration.
func (im *Importer) Config() Config {
	return im.cfg
}

// run carries the state of one Import call.
type run struct {
	req     Request
	columns []string // source columns, file order
	targets []string // target columns, same order
	bulk    BulkLoader
	logger  *slog.Logger
	batches int
}

// Import loads every row of req's source into req.Table.
//
// Rows are flushed in batches of Config.BatchSize. Each COPY batch runs in
// its own transaction, so a failure leaves earlier batches committed and
// the failing batch rolled back. No Result is returned on failure.
func (im *Importer) Import(ctx context.Context, req Request) (*Result, error) {
	if err := checkFile(req.Path); err != nil {
		return nil, err
	}
	if err := ValidateTableName(req.Table); err != nil {
		return nil, err
	}

	src := req.Source
	if src == nil {
		opened, err := im.open(ctx, req.Path)
		if err != nil {
			return nil, sourceError(req.Path, "open source", err)
		}
		if c, ok := opened.(io.Closer); ok {
			defer c.Close()
		}
		src = opened
	}

	columns, err := src.Columns(ctx)
	if err != nil {
		return nil, sourceError(req.Path, "read columns", err)
	}
	if len(columns) == 0 {
		return nil, sourceError(req.Path, "source has no columns", nil)
	}

	targets, err := TargetColumns(columns, req.ColumnMap)
	if err != nil {
		return nil, err
	}

	r := &run{
		req:     req,
		columns: columns,
		targets: targets,
		logger: logging.WithFields(ctx,
			"run_id", uuid.NewString(),
			"table", req.Table,
			"path", req.Path,
		),
	}
	if bl, ok := im.conn.(BulkLoader); ok && bl.SupportsBulkLoad() {
		r.bulk = bl
	}

	if req.Truncate {
		if err := im.truncate(ctx, req.Table); err != nil {
			return nil, err
		}
		r.logger.Info("table truncated")
	}

	r.logger.Info("import started",
		"columns", len(targets),
		"batch_size", im.cfg.BatchSize,
		"bulk_load", r.bulk != nil,
	)
	start := time.Now()

	rows, err := src.Rows(ctx)
	if err != nil {
		return nil, sourceError(req.Path, "read rows", err)
	}
	defer rows.Close()

	var imported int64
	batch := make([][]any, 0, im.cfg.BatchSize)
	for rows.Next() {
		batch = append(batch, project(rows.Row(), columns))
		if len(batch) < im.cfg.BatchSize {
			continue
		}
		if err := im.flush(ctx, r, batch); err != nil {
			return nil, err
		}
		imported += int64(len(batch))
		batch = make([][]any, 0, im.cfg.BatchSize)
	}
	if err := rows.Err(); err != nil {
		return nil, sourceError(req.Path, "read rows", err)
	}
	if err := im.flush(ctx, r, batch); err != nil {
		return nil, err
	}
	imported += int64(len(batch))

	result := &Result{
		SourcePath:      req.Path,
		Table:           req.Table,
		RowsImported:    imported,
		DurationSeconds: time.Since(start).Seconds(),
	}
	r.logger.Info("import completed",
		"rows", result.RowsImported,
		"batches", r.batches,
		"duration_seconds", result.DurationSeconds,
	)
	return result, nil
}

// checkFile requires path to name an existing, readable regular file.
func checkFile(path string) error {
	if path == "" {
		return invalidInput(path)
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return invalidInput(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return invalidInput(path)
	}
	return f.Close()
}

// TargetColumns applies columnMap to the source columns, keeping source
// order, and validates every resulting name.
func TargetColumns(columns []string, columnMap map[string]string) ([]string, error) {
	targets := make([]string, len(columns))
	seen := make(map[string]struct{}, len(columns))
	for i, col := range columns {
		target := col
		if mapped, ok := columnMap[col]; ok {
			target = mapped
		}
		if err := ValidateColumnName(target); err != nil {
			return nil, err
		}
		if _, dup := seen[target]; dup {
			return nil, &Error{
				Kind:    KindInvalidIdentifier,
				Subject: target,
				Msg:     "duplicate column name: " + target,
			}
		}
		seen[target] = struct{}{}
		targets[i] = target
	}
	return targets, nil
}

// project returns row's values in source-column order, normalized.
// Missing keys become nil.
func project(row source.Row, columns []string) []any {
	values := make([]any, len(columns))
	for i, col := range columns {
		values[i] = NormalizeValue(row[col])
	}
	return values
}

func (im *Importer) truncate(ctx context.Context, table string) error {
	quoted := QuoteIdentifier(table)

	var err error
	if t, ok := im.conn.(Truncater); ok {
		err = t.Truncate(ctx, quoted)
	} else {
		err = im.conn.Exec(ctx, "TRUNCATE TABLE "+quoted)
	}
	if err != nil {
		return fmt.Errorf("truncate %s: %w", table, err)
	}
	return nil
}

// flush writes one batch. Empty batches are a no-op.
func (im *Importer) flush(ctx context.Context, r *run, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	start := time.Now()
	mode := "insert"
	var err error
	if r.bulk != nil {
		mode = "copy"
		err = im.copyBatch(ctx, r.bulk, r.req.Table, r.targets, rows)
	} else if err = im.conn.InsertRows(ctx, QuoteIdentifier(r.req.Table), r.targets, rows); err != nil {
		err = fallbackInsertError(r.req.Table, err)
	}
	if err != nil {
		r.logger.Error("batch failed", "batch", r.batches+1, "rows", len(rows), "mode", mode, "error", err)
		return err
	}

	r.batches++
	r.logger.Debug("batch flushed",
		"batch", r.batches,
		"rows", len(rows),
		"mode", mode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// copyBatch loads rows with COPY inside a transaction bounded by
// statement_timeout. The transaction is rolled back on every path that
// does not reach Commit, panics included.
func (im *Importer) copyBatch(ctx context.Context, bl BulkLoader, table string, columns []string, rows [][]any) error {
	tx, err := bl.BeginBulk(ctx)
	if err != nil {
		return bulkLoadError(table, "begin transaction", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	timeout := fmt.Sprintf("SET LOCAL statement_timeout = %d", im.cfg.CopyTimeoutSeconds*1000)
	if err := tx.Exec(ctx, timeout); err != nil {
		return bulkLoadError(table, "set statement timeout", err)
	}

	n, err := tx.CopyFrom(ctx, CopyRequest{
		Table:     table,
		Columns:   columns,
		Lines:     BuildCopyLines(rows),
		Delimiter: CopyDelimiter,
		Null:      CopyNull,
	})
	if err != nil {
		return bulkLoadError(table, "COPY command failed", err)
	}
	if n != int64(len(rows)) {
		return bulkLoadError(table, fmt.Sprintf("COPY command failed: loaded %d of %d rows", n, len(rows)), nil)
	}

	if err := tx.Commit(ctx); err != nil {
		return bulkLoadError(table, "commit failed", err)
	}
	committed = true
	return nil
}

package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/pqload/internal/importer"
)

// postgresMaxParams is the protocol limit on bind parameters per statement.
const postgresMaxParams = 65535

// Postgres is a pgx pool destination. It loads batches with COPY unless
// bulk loading is disabled (e.g. behind a pooler that rejects COPY).
type Postgres struct {
	pool *pgxpool.Pool
	bulk bool
}

var (
	_ Destination         = (*Postgres)(nil)
	_ importer.BulkLoader = (*Postgres)(nil)
)

// OpenPostgres creates a pool from url, applies opts and pings.
func OpenPostgres(ctx context.Context, url string, opts Options) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return NewPostgres(pool, opts.BulkLoad), nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool, bulk bool) *Postgres {
	return &Postgres{pool: pool, bulk: bulk}
}

func (p *Postgres) Driver() string { return DriverPostgres }

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Pool exposes the underlying pool.
func (p *Postgres) Pool() *pgxpool.Pool { return p.pool }

func (p *Postgres) Exec(ctx context.Context, sql string) error {
	_, err := p.pool.Exec(ctx, sql)
	return err
}

// InsertRows writes rows with multi-row INSERTs inside one transaction.
func (p *Postgres) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	step := rowsPerStatement(len(columns), postgresMaxParams)
	for start := 0; start < len(rows); start += step {
		end := min(start+step, len(rows))
		chunk := rows[start:end]
		if _, err := tx.Exec(ctx, buildInsert(table, columns, len(chunk), dollar), flattenArgs(chunk)...); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (p *Postgres) SupportsBulkLoad() bool { return p.bulk }

func (p *Postgres) BeginBulk(ctx context.Context) (importer.BulkTx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgBulkTx{tx: tx}, nil
}

type pgBulkTx struct {
	tx pgx.Tx
}

func (t *pgBulkTx) Exec(ctx context.Context, sql string) error {
	_, err := t.tx.Exec(ctx, sql)
	return err
}

// CopyFrom streams the pre-rendered lines through COPY FROM STDIN.
func (t *pgBulkTx) CopyFrom(ctx context.Context, req importer.CopyRequest) (int64, error) {
	data := strings.Join(req.Lines, "\n")
	if len(req.Lines) > 0 {
		data += "\n"
	}
	tag, err := t.tx.Conn().PgConn().CopyFrom(ctx, strings.NewReader(data), copyStatement(req))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *pgBulkTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgBulkTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// copyStatement renders COPY ... FROM STDIN for raw, validated names.
func copyStatement(req importer.CopyRequest) string {
	schema, leaf := importer.SplitIdentifier(req.Table)
	table := pgx.Identifier{leaf}
	if schema != "" {
		table = pgx.Identifier{schema, leaf}
	}

	cols := make([]string, len(req.Columns))
	for i, c := range req.Columns {
		cols[i] = pgx.Identifier{c}.Sanitize()
	}

	return fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT text, DELIMITER %s, NULL %s)",
		table.Sanitize(),
		strings.Join(cols, ", "),
		escapeLiteral(req.Delimiter),
		escapeLiteral(req.Null),
	)
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\t", `\t`, "\n", `\n`, "\r", `\r`)

// escapeLiteral renders s as an E'' string constant, which reads the same
// whatever standard_conforming_strings is set to.
func escapeLiteral(s string) string {
	return "E'" + literalEscaper.Replace(s) + "'"
}

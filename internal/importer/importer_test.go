package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/pqload/internal/source"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type insertCall struct {
	table   string
	columns []string
	rows    [][]any
}

// insertConn is an insert-only destination.
type insertConn struct {
	events    *[]string
	execs     []string
	inserts   []insertCall
	insertErr error
	execErr   error
}

func (c *insertConn) Exec(ctx context.Context, sql string) error {
	c.record("exec")
	c.execs = append(c.execs, sql)
	return c.execErr
}

func (c *insertConn) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) error {
	c.record("insert")
	c.inserts = append(c.inserts, insertCall{table: table, columns: columns, rows: rows})
	return c.insertErr
}

func (c *insertConn) record(event string) {
	if c.events != nil {
		*c.events = append(*c.events, event)
	}
}

// bulkConn adds COPY support on top of insertConn.
type bulkConn struct {
	insertConn
	enabled    bool
	txs        []*fakeTx
	copyErr    error
	copyPanic  bool
	countDelta int64
}

func (c *bulkConn) SupportsBulkLoad() bool { return c.enabled }

func (c *bulkConn) BeginBulk(ctx context.Context) (BulkTx, error) {
	c.record("begin")
	tx := &fakeTx{conn: c}
	c.txs = append(c.txs, tx)
	return tx, nil
}

type fakeTx struct {
	conn       *bulkConn
	execs      []string
	copies     []CopyRequest
	committed  bool
	rolledBack bool
}

func (tx *fakeTx) Exec(ctx context.Context, sql string) error {
	tx.execs = append(tx.execs, sql)
	return nil
}

func (tx *fakeTx) CopyFrom(ctx context.Context, req CopyRequest) (int64, error) {
	tx.conn.record("copy")
	tx.copies = append(tx.copies, req)
	if tx.conn.copyPanic {
		panic("driver exploded")
	}
	if tx.conn.copyErr != nil {
		return 0, tx.conn.copyErr
	}
	return int64(len(req.Lines)) + tx.conn.countDelta, nil
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	tx.rolledBack = true
	return nil
}

// truncConn implements Truncater in place of TRUNCATE TABLE.
type truncConn struct {
	insertConn
	truncated []string
}

func (c *truncConn) Truncate(ctx context.Context, quotedTable string) error {
	c.record("truncate")
	c.truncated = append(c.truncated, quotedTable)
	return nil
}

// recordingSource logs when the engine starts reading rows.
type recordingSource struct {
	source.RowSource
	events  *[]string
	rowsErr error
}

func (s *recordingSource) Rows(ctx context.Context) (source.Rows, error) {
	*s.events = append(*s.events, "rows")
	rows, err := s.RowSource.Rows(ctx)
	if err != nil || s.rowsErr == nil {
		return rows, err
	}
	return &failingRows{Rows: rows, err: s.rowsErr}, nil
}

// failingRows yields the underlying rows, then reports err.
type failingRows struct {
	source.Rows
	err error
}

func (r *failingRows) Err() error { return r.err }

// closingSource records whether the engine closed a source it opened.
type closingSource struct {
	*source.Memory
	closed bool
}

func (s *closingSource) Close() error {
	s.closed = true
	return nil
}

func tempFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.parquet")
	if err := os.WriteFile(path, []byte("PAR1"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func numberedRows(n int) []source.Row {
	rows := make([]source.Row, n)
	for i := range rows {
		rows[i] = source.Row{"id": i + 1, "name": fmt.Sprintf("user-%d", i+1)}
	}
	return rows
}

// ---------------------------------------------------------------------------
// COPY path
// ---------------------------------------------------------------------------

func TestImport_CopyPath(t *testing.T) {
	conn := &bulkConn{enabled: true}
	im := New(conn, Config{BatchSize: 100, CopyTimeoutSeconds: 5})

	res, err := im.Import(context.Background(), Request{
		Path:  tempFile(t),
		Table: "users",
		Source: source.FromRows([]string{"id", "name"}, []source.Row{
			{"id": 1, "name": "alice"},
			{"id": 2, "name": nil},
			{"id": 3},
		}),
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if res.RowsImported != 3 {
		t.Errorf("RowsImported = %d, want 3", res.RowsImported)
	}
	if res.Table != "users" || res.DurationSeconds < 0 {
		t.Errorf("unexpected result: %+v", res)
	}

	if len(conn.txs) != 1 {
		t.Fatalf("got %d transactions, want 1", len(conn.txs))
	}
	tx := conn.txs[0]
	if len(tx.execs) != 1 || tx.execs[0] != "SET LOCAL statement_timeout = 5000" {
		t.Errorf("tx execs = %v", tx.execs)
	}
	if !tx.committed || tx.rolledBack {
		t.Errorf("committed=%v rolledBack=%v, want commit only", tx.committed, tx.rolledBack)
	}

	req := tx.copies[0]
	if req.Table != "users" {
		t.Errorf("COPY table = %q, want raw name", req.Table)
	}
	if strings.Join(req.Columns, ",") != "id,name" {
		t.Errorf("COPY columns = %v", req.Columns)
	}
	if req.Delimiter != "\t" || req.Null != `\N` {
		t.Errorf("delimiter=%q null=%q", req.Delimiter, req.Null)
	}
	wantLines := []string{"1\talice", "2\t\\N", "3\t\\N"}
	if strings.Join(req.Lines, "|") != strings.Join(wantLines, "|") {
		t.Errorf("lines = %q, want %q", req.Lines, wantLines)
	}
	if len(conn.inserts) != 0 {
		t.Error("fallback insert used on a bulk-capable connection")
	}
}

func TestImport_CopyFailureRollsBack(t *testing.T) {
	boom := errors.New("boom")
	conn := &bulkConn{enabled: true, copyErr: boom}
	im := New(conn, Config{BatchSize: 10, CopyTimeoutSeconds: 1})

	res, err := im.Import(context.Background(), Request{
		Path:   tempFile(t),
		Table:  "users",
		Source: source.FromRows([]string{"id"}, []source.Row{{"id": 1}}),
	})
	if res != nil {
		t.Errorf("result returned on failure: %+v", res)
	}
	if !errors.Is(err, ErrBulkLoad) {
		t.Fatalf("expected ErrBulkLoad, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Error("driver error not reachable through errors.Is")
	}
	if !strings.HasSuffix(err.Error(), "boom") {
		t.Errorf("message %q should end with driver text", err.Error())
	}

	tx := conn.txs[0]
	if !tx.rolledBack || tx.committed {
		t.Errorf("committed=%v rolledBack=%v, want rollback only", tx.committed, tx.rolledBack)
	}
}

func TestImport_CopyPanicRollsBack(t *testing.T) {
	conn := &bulkConn{enabled: true, copyPanic: true}
	im := New(conn, Config{BatchSize: 10, CopyTimeoutSeconds: 1})

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_, _ = im.Import(context.Background(), Request{
			Path:   tempFile(t),
			Table:  "users",
			Source: source.FromRows([]string{"id"}, []source.Row{{"id": 1}}),
		})
	}()

	if tx := conn.txs[0]; !tx.rolledBack || tx.committed {
		t.Errorf("committed=%v rolledBack=%v, want rollback only", tx.committed, tx.rolledBack)
	}
}

func TestImport_CopyCountMismatch(t *testing.T) {
	conn := &bulkConn{enabled: true, countDelta: -1}
	im := New(conn, Config{BatchSize: 10, CopyTimeoutSeconds: 1})

	_, err := im.Import(context.Background(), Request{
		Path:   tempFile(t),
		Table:  "users",
		Source: source.FromRows([]string{"id"}, numberedRows(3)),
	})
	if !errors.Is(err, ErrBulkLoad) {
		t.Fatalf("expected ErrBulkLoad, got %v", err)
	}
	if !conn.txs[0].rolledBack {
		t.Error("transaction not rolled back")
	}
}

func TestImport_FailedBatchKeepsEarlierBatches(t *testing.T) {
	conn := &bulkConn{enabled: true}
	im := New(&secondCopyFails{bulkConn: conn}, Config{BatchSize: 2, CopyTimeoutSeconds: 1})

	_, err := im.Import(context.Background(), Request{
		Path:   tempFile(t),
		Table:  "users",
		Source: source.FromRows([]string{"id"}, numberedRows(3)),
	})
	if !errors.Is(err, ErrBulkLoad) {
		t.Fatalf("expected ErrBulkLoad, got %v", err)
	}
	if len(conn.txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(conn.txs))
	}
	if !conn.txs[0].committed {
		t.Error("first batch should stay committed")
	}
	if !conn.txs[1].rolledBack || conn.txs[1].committed {
		t.Error("second batch should be rolled back")
	}
}

type secondCopyFails struct {
	*bulkConn
}

func (c *secondCopyFails) BeginBulk(ctx context.Context) (BulkTx, error) {
	tx, err := c.bulkConn.BeginBulk(ctx)
	if len(c.txs) == 2 {
		c.copyErr = errors.New("canceling statement due to statement timeout")
	}
	return tx, err
}

// ---------------------------------------------------------------------------
// Fallback path
// ---------------------------------------------------------------------------

func TestImport_FallbackInsert(t *testing.T) {
	conn := &insertConn{}
	im := New(conn, Config{BatchSize: 10, CopyTimeoutSeconds: 1})

	created := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	res, err := im.Import(context.Background(), Request{
		Path:  tempFile(t),
		Table: "schema.users",
		Source: source.FromRows([]string{"id", "meta", "created_at", "active", "note"}, []source.Row{
			{"id": 1, "meta": map[string]any{"foo": "bar"}, "created_at": created, "active": true},
		}),
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if res.RowsImported != 1 {
		t.Errorf("RowsImported = %d, want 1", res.RowsImported)
	}

	if len(conn.inserts) != 1 {
		t.Fatalf("got %d inserts, want 1", len(conn.inserts))
	}
	call := conn.inserts[0]
	if call.table != `"schema"."users"` {
		t.Errorf("insert table = %s", call.table)
	}
	row := call.rows[0]
	if row[0] != 1 {
		t.Errorf("id = %#v", row[0])
	}
	if row[1] != `{"foo":"bar"}` {
		t.Errorf("meta = %#v", row[1])
	}
	if row[2] != "2023-01-02 03:04:05.000000+00:00" {
		t.Errorf("created_at = %#v", row[2])
	}
	if row[3] != true {
		t.Errorf("active = %#v, want native bool", row[3])
	}
	if row[4] != nil {
		t.Errorf("missing note = %#v, want nil", row[4])
	}
	if len(conn.execs) != 0 {
		t.Errorf("fallback issued statements: %v", conn.execs)
	}
}

func TestImport_BulkDisabledUsesFallback(t *testing.T) {
	conn := &bulkConn{enabled: false}
	im := New(conn, Config{BatchSize: 10, CopyTimeoutSeconds: 1})

	_, err := im.Import(context.Background(), Request{
		Path:   tempFile(t),
		Table:  "users",
		Source: source.FromRows([]string{"id"}, numberedRows(2)),
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(conn.txs) != 0 {
		t.Error("COPY attempted although bulk load is disabled")
	}
	if len(conn.inserts) != 1 {
		t.Errorf("got %d inserts, want 1", len(conn.inserts))
	}
}

func TestImport_FallbackFailure(t *testing.T) {
	conn := &insertConn{insertErr: errors.New("duplicate key value violates unique constraint")}
	im := New(conn, Config{BatchSize: 10, CopyTimeoutSeconds: 1})

	_, err := im.Import(context.Background(), Request{
		Path:   tempFile(t),
		Table:  "users",
		Source: source.FromRows([]string{"id"}, numberedRows(1)),
	})
	if !errors.Is(err, ErrFallbackInsert) {
		t.Fatalf("expected ErrFallbackInsert, got %v", err)
	}
	if got := MapError(err).Code; got != "DB001" {
		t.Errorf("MapError code = %s, want DB001", got)
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func TestImport_ValidationFailuresLeaveTableUntouched(t *testing.T) {
	path := tempFile(t)

	tests := []struct {
		name      string
		req       Request
		wantKind  error
		wantInMsg string
	}{
		{
			name:      "missing file",
			req:       Request{Path: filepath.Join(t.TempDir(), "nope.parquet"), Table: "users"},
			wantKind:  ErrInvalidInput,
			wantInMsg: "file not found",
		},
		{
			name:      "directory",
			req:       Request{Path: t.TempDir(), Table: "users"},
			wantKind:  ErrInvalidInput,
			wantInMsg: "file not found",
		},
		{
			name:      "invalid table",
			req:       Request{Path: path, Table: "bad.column.extra"},
			wantKind:  ErrInvalidIdentifier,
			wantInMsg: "invalid table name: bad.column.extra",
		},
		{
			name:      "invalid mapped column",
			req:       Request{Path: path, Table: "users", ColumnMap: map[string]string{"id": "bad.column"}},
			wantKind:  ErrInvalidIdentifier,
			wantInMsg: "invalid column name: bad.column",
		},
		{
			name:      "invalid source column",
			req:       Request{Path: path, Table: "users", ColumnMap: map[string]string{"id": "bad column"}},
			wantKind:  ErrInvalidIdentifier,
			wantInMsg: "bad column",
		},
		{
			name:      "duplicate target",
			req:       Request{Path: path, Table: "users", ColumnMap: map[string]string{"id": "name"}},
			wantKind:  ErrInvalidIdentifier,
			wantInMsg: "duplicate column name: name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := []string{}
			conn := &bulkConn{enabled: true, insertConn: insertConn{events: &events}}
			tt.req.Source = &recordingSource{
				RowSource: source.FromRows([]string{"id", "name"}, numberedRows(2)),
				events:    &events,
			}
			tt.req.Truncate = true

			_, err := New(conn, Config{BatchSize: 1, CopyTimeoutSeconds: 1}).Import(context.Background(), tt.req)
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("expected %v, got %v", tt.wantKind, err)
			}
			if !strings.Contains(err.Error(), tt.wantInMsg) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantInMsg)
			}
			if len(events) != 0 {
				t.Errorf("destination or rows touched: %v", events)
			}
		})
	}
}

func TestImport_UnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any file")
	}
	path := tempFile(t)
	if err := os.Chmod(path, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(path, 0o644) })

	events := []string{}
	conn := &bulkConn{enabled: true, insertConn: insertConn{events: &events}}
	_, err := New(conn, Config{}).Import(context.Background(), Request{Path: path, Table: "users", Truncate: true})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(events) != 0 {
		t.Errorf("destination touched: %v", events)
	}
}

func TestImport_ZeroColumns(t *testing.T) {
	conn := &insertConn{}
	_, err := New(conn, Config{}).Import(context.Background(), Request{
		Path:   tempFile(t),
		Table:  "users",
		Source: source.FromRows(nil, nil),
	})
	if !errors.Is(err, ErrSource) {
		t.Fatalf("expected ErrSource, got %v", err)
	}
}

func TestImport_RowsError(t *testing.T) {
	conn := &insertConn{}
	readErr := errors.New("corrupt page")
	_, err := New(conn, Config{BatchSize: 10}).Import(context.Background(), Request{
		Path:  tempFile(t),
		Table: "users",
		Source: &recordingSource{
			RowSource: source.FromRows([]string{"id"}, numberedRows(2)),
			events:    new([]string),
			rowsErr:   readErr,
		},
	})
	if !errors.Is(err, ErrSource) || !errors.Is(err, readErr) {
		t.Fatalf("expected ErrSource wrapping read error, got %v", err)
	}
	if len(conn.inserts) != 0 {
		t.Error("partial batch flushed after a read error")
	}
}

// ---------------------------------------------------------------------------
// Batching and projection
// ---------------------------------------------------------------------------

func TestImport_BatchBoundaries(t *testing.T) {
	for _, batchSize := range []int{1, 2, 3, 5, 7} {
		for _, n := range []int{0, 1, 4, 5, 6, 10, 21} {
			t.Run(fmt.Sprintf("B=%d/N=%d", batchSize, n), func(t *testing.T) {
				conn := &insertConn{}
				im := New(conn, Config{BatchSize: batchSize, CopyTimeoutSeconds: 1})

				res, err := im.Import(context.Background(), Request{
					Path:   tempFile(t),
					Table:  "users",
					Source: source.FromRows([]string{"id", "name"}, numberedRows(n)),
				})
				if err != nil {
					t.Fatalf("Import failed: %v", err)
				}

				wantBatches := (n + batchSize - 1) / batchSize
				if len(conn.inserts) != wantBatches {
					t.Errorf("flushes = %d, want %d", len(conn.inserts), wantBatches)
				}
				if res.RowsImported != int64(n) {
					t.Errorf("RowsImported = %d, want %d", res.RowsImported, n)
				}

				// Rows arrive in read order across batches.
				next := 1
				for i, call := range conn.inserts {
					if i < len(conn.inserts)-1 && len(call.rows) != batchSize {
						t.Errorf("batch %d has %d rows, want %d", i, len(call.rows), batchSize)
					}
					for _, row := range call.rows {
						if row[0] != next {
							t.Fatalf("row id %v, want %d", row[0], next)
						}
						next++
					}
				}
			})
		}
	}
}

func TestImport_ColumnMapping(t *testing.T) {
	conn := &bulkConn{enabled: true}
	im := New(conn, Config{BatchSize: 10, CopyTimeoutSeconds: 1})

	_, err := im.Import(context.Background(), Request{
		Path:      tempFile(t),
		Table:     "users",
		ColumnMap: map[string]string{"sourceA": "targetA"},
		Source: source.FromRows([]string{"sourceA", "sourceB"}, []source.Row{
			{"sourceA": "a1", "sourceB": "b1"},
		}),
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	req := conn.txs[0].copies[0]
	if strings.Join(req.Columns, ",") != "targetA,sourceB" {
		t.Errorf("columns = %v, want [targetA sourceB]", req.Columns)
	}
	if req.Lines[0] != "a1\tb1" {
		t.Errorf("line = %q", req.Lines[0])
	}
}

func TestTargetColumns(t *testing.T) {
	got, err := TargetColumns([]string{"a", "b", "c"}, map[string]string{"c": "z", "unused": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != "a,b,z" {
		t.Errorf("TargetColumns = %v", got)
	}
}

// ---------------------------------------------------------------------------
// Truncate
// ---------------------------------------------------------------------------

func TestImport_TruncateBeforeRows(t *testing.T) {
	events := []string{}
	conn := &insertConn{events: &events}
	im := New(conn, Config{BatchSize: 10, CopyTimeoutSeconds: 1})

	_, err := im.Import(context.Background(), Request{
		Path:     tempFile(t),
		Table:    "public.users",
		Truncate: true,
		Source: &recordingSource{
			RowSource: source.FromRows([]string{"id"}, numberedRows(1)),
			events:    &events,
		},
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if want := "exec,rows,insert"; strings.Join(events, ",") != want {
		t.Errorf("events = %v, want %s", events, want)
	}
	if conn.execs[0] != `TRUNCATE TABLE "public"."users"` {
		t.Errorf("truncate statement = %s", conn.execs[0])
	}
}

func TestImport_TruncaterPreferred(t *testing.T) {
	events := []string{}
	conn := &truncConn{insertConn: insertConn{events: &events}}
	im := New(conn, Config{BatchSize: 10, CopyTimeoutSeconds: 1})

	_, err := im.Import(context.Background(), Request{
		Path:     tempFile(t),
		Table:    "users",
		Truncate: true,
		Source: &recordingSource{
			RowSource: source.FromRows([]string{"id"}, numberedRows(1)),
			events:    &events,
		},
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if want := "truncate,rows,insert"; strings.Join(events, ",") != want {
		t.Errorf("events = %v, want %s", events, want)
	}
	if len(conn.truncated) != 1 || conn.truncated[0] != `"users"` {
		t.Errorf("truncated = %v", conn.truncated)
	}
}

func TestImport_TruncateFailureAborts(t *testing.T) {
	events := []string{}
	conn := &insertConn{events: &events, execErr: errors.New(`relation "users" does not exist`)}

	_, err := New(conn, Config{}).Import(context.Background(), Request{
		Path:     tempFile(t),
		Table:    "users",
		Truncate: true,
		Source: &recordingSource{
			RowSource: source.FromRows([]string{"id"}, numberedRows(1)),
			events:    &events,
		},
	})
	if err == nil || !strings.HasPrefix(err.Error(), "truncate users:") {
		t.Fatalf("expected truncate error, got %v", err)
	}
	if strings.Join(events, ",") != "exec" {
		t.Errorf("events = %v, want only the truncate", events)
	}
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNew_ClampsConfig(t *testing.T) {
	conn := &bulkConn{enabled: true}
	im := New(conn, Config{BatchSize: 0, CopyTimeoutSeconds: -5})

	if cfg := im.Config(); cfg.BatchSize != 1 || cfg.CopyTimeoutSeconds != 1 {
		t.Fatalf("Config = %+v, want both clamped to 1", cfg)
	}

	_, err := im.Import(context.Background(), Request{
		Path:   tempFile(t),
		Table:  "users",
		Source: source.FromRows([]string{"id"}, numberedRows(3)),
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(conn.txs) != 3 {
		t.Errorf("got %d transactions, want one per row", len(conn.txs))
	}
	if conn.txs[0].execs[0] != "SET LOCAL statement_timeout = 1000" {
		t.Errorf("timeout statement = %s", conn.txs[0].execs[0])
	}
}

func TestImport_OpensAndClosesSource(t *testing.T) {
	src := &closingSource{Memory: source.FromRows([]string{"id"}, numberedRows(2))}
	var openedPath string
	opener := func(ctx context.Context, path string) (source.RowSource, error) {
		openedPath = path
		return src, nil
	}

	conn := &insertConn{}
	path := tempFile(t)
	res, err := New(conn, Config{BatchSize: 10}, WithOpener(opener)).Import(context.Background(), Request{
		Path:  path,
		Table: "users",
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if openedPath != path {
		t.Errorf("opened %q, want %q", openedPath, path)
	}
	if !src.closed {
		t.Error("opened source was not closed")
	}
	if res.SourcePath != path || res.RowsImported != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestImport_OpenFailure(t *testing.T) {
	opener := func(ctx context.Context, path string) (source.RowSource, error) {
		return nil, errors.New("not a parquet file")
	}
	_, err := New(&insertConn{}, Config{}, WithOpener(opener)).Import(context.Background(), Request{
		Path:  tempFile(t),
		Table: "users",
	})
	if !errors.Is(err, ErrSource) {
		t.Fatalf("expected ErrSource, got %v", err)
	}
	if got := MapError(err).Code; got != "IMP003" {
		t.Errorf("MapError code = %s, want IMP003", got)
	}
}

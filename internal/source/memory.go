package source

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrConsumed is returned when a single-pass source is read a second time.
var ErrConsumed = errors.New("source already consumed")

// Memory is a RowSource over rows already held in memory.
type Memory struct {
	columns []string
	rows    []Row

	mu       sync.Mutex
	consumed bool
}

// FromRows builds an in-memory source. When columns is nil they are taken
// from the first row's keys in sorted order.
func FromRows(columns []string, rows []Row) *Memory {
	if columns == nil && len(rows) > 0 {
		for k := range rows[0] {
			columns = append(columns, k)
		}
		sort.Strings(columns)
	}
	return &Memory{columns: columns, rows: rows}
}

func (m *Memory) Columns(ctx context.Context) ([]string, error) {
	return append([]string(nil), m.columns...), nil
}

func (m *Memory) Rows(ctx context.Context) (Rows, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.consumed {
		return nil, ErrConsumed
	}
	m.consumed = true
	return &memoryRows{ctx: ctx, rows: m.rows, pos: -1}, nil
}

type memoryRows struct {
	ctx  context.Context
	rows []Row
	pos  int
	err  error
}

func (r *memoryRows) Next() bool {
	if r.err != nil {
		return false
	}
	if err := r.ctx.Err(); err != nil {
		r.err = err
		return false
	}
	r.pos++
	return r.pos < len(r.rows)
}

func (r *memoryRows) Row() Row {
	if r.pos < 0 || r.pos >= len(r.rows) {
		return nil
	}
	return r.rows[r.pos]
}

func (r *memoryRows) Err() error {
	return r.err
}

func (r *memoryRows) Close() error {
	r.pos = len(r.rows)
	return nil
}

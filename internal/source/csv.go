package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// CSV reads a comma-separated file whose first record is the header.
// Empty fields are read as NULL.
type CSV struct {
	file    *os.File
	reader  *csv.Reader
	columns []string

	mu       sync.Mutex
	consumed bool
}

// OpenCSV opens path and reads its header.
func OpenCSV(path string) (*CSV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}

	reader := csv.NewReader(newTextReader(f))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		f.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read csv header: empty file")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	return &CSV{file: f, reader: reader, columns: columns}, nil
}

func (c *CSV) Columns(ctx context.Context) ([]string, error) {
	return append([]string(nil), c.columns...), nil
}

func (c *CSV) Rows(ctx context.Context) (Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.consumed {
		return nil, ErrConsumed
	}
	c.consumed = true
	return &csvRows{ctx: ctx, src: c}, nil
}

// Close releases the file. Safe to call more than once.
func (c *CSV) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}

type csvRows struct {
	ctx  context.Context
	src  *CSV
	row  Row
	line int
	err  error
	done bool
}

func (r *csvRows) Next() bool {
	if r.done {
		return false
	}
	if err := r.ctx.Err(); err != nil {
		r.err = err
		r.done = true
		return false
	}

	record, err := r.src.reader.Read()
	if err == io.EOF {
		r.done = true
		return false
	}
	if err != nil {
		r.err = fmt.Errorf("read csv record %d: %w", r.line+1, err)
		r.done = true
		return false
	}
	r.line++

	row := make(Row, len(r.src.columns))
	for i, col := range r.src.columns {
		if i < len(record) && record[i] != "" {
			row[col] = record[i]
		} else {
			row[col] = nil
		}
	}
	r.row = row
	return true
}

func (r *csvRows) Row() Row     { return r.row }
func (r *csvRows) Err() error   { return r.err }
func (r *csvRows) Close() error { r.done = true; return r.src.Close() }

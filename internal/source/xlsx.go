package source

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
)

// XLSX reads one worksheet of an Excel workbook. The first row is the
// header; empty cells are read as NULL.
type XLSX struct {
	file    *excelize.File
	sheet   string
	columns []string

	mu       sync.Mutex
	consumed bool
	closed   bool
}

// OpenXLSX opens path and reads the header of sheet, or of the first
// sheet when sheet is empty.
func OpenXLSX(path, sheet string) (*XLSX, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, fmt.Errorf("no sheets found in workbook")
	}
	if sheet == "" {
		sheet = sheets[0]
	} else if !containsString(sheets, sheet) {
		f.Close()
		return nil, fmt.Errorf("sheet %q not found (have %s)", sheet, strings.Join(sheets, ", "))
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	var header []string
	if rows.Next() {
		if header, err = rows.Columns(); err != nil {
			f.Close()
			return nil, fmt.Errorf("read header of sheet %s: %w", sheet, err)
		}
	}

	columns := make([]string, 0, len(header))
	for _, h := range header {
		columns = append(columns, strings.TrimSpace(h))
	}
	// Trailing blank header cells are formatting, not columns.
	for len(columns) > 0 && columns[len(columns)-1] == "" {
		columns = columns[:len(columns)-1]
	}

	return &XLSX{file: f, sheet: sheet, columns: columns}, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Sheet returns the worksheet being read.
func (x *XLSX) Sheet() string {
	return x.sheet
}

func (x *XLSX) Columns(ctx context.Context) ([]string, error) {
	return append([]string(nil), x.columns...), nil
}

func (x *XLSX) Rows(ctx context.Context) (Rows, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.consumed {
		return nil, ErrConsumed
	}
	x.consumed = true

	rows, err := x.file.Rows(x.sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", x.sheet, err)
	}
	// Skip the header.
	if rows.Next() {
		if _, err := rows.Columns(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("read header of sheet %s: %w", x.sheet, err)
		}
	}
	return &xlsxRows{ctx: ctx, src: x, rows: rows}, nil
}

// Close releases the workbook. Safe to call more than once.
func (x *XLSX) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil
	}
	x.closed = true
	return x.file.Close()
}

type xlsxRows struct {
	ctx  context.Context
	src  *XLSX
	rows *excelize.Rows
	row  Row
	err  error
	done bool
}

func (r *xlsxRows) Next() bool {
	for !r.done {
		if err := r.ctx.Err(); err != nil {
			r.err = err
			r.done = true
			return false
		}
		if !r.rows.Next() {
			if err := r.rows.Error(); err != nil {
				r.err = fmt.Errorf("read sheet %s: %w", r.src.sheet, err)
			}
			r.done = true
			return false
		}

		cells, err := r.rows.Columns()
		if err != nil {
			r.err = fmt.Errorf("read sheet %s: %w", r.src.sheet, err)
			r.done = true
			return false
		}
		if isBlankRecord(cells) {
			continue
		}

		row := make(Row, len(r.src.columns))
		for i, col := range r.src.columns {
			if i < len(cells) && cells[i] != "" {
				row[col] = cells[i]
			} else {
				row[col] = nil
			}
		}
		r.row = row
		return true
	}
	return false
}

// isBlankRecord reports whether every cell is empty. Excel keeps such rows
// around after their content is deleted.
func isBlankRecord(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func (r *xlsxRows) Row() Row   { return r.row }
func (r *xlsxRows) Err() error { return r.err }

func (r *xlsxRows) Close() error {
	r.done = true
	_ = r.rows.Close()
	return r.src.Close()
}

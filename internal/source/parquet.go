package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/deprecated"
	"github.com/parquet-go/parquet-go/format"
)

// parquetReadBatch is how many rows are decoded per ReadRows call.
const parquetReadBatch = 256

// Parquet reads rows from a Parquet file, one row group at a time.
//
// Columns are the schema's leaf columns in file order. Nested leaves are
// named by joining their path with "_"; the "list.element" wrapper of a
// standard LIST is dropped, so a list column keeps its field name.
// Repeated leaves yield a []any per row: nil for a null list, an empty
// slice for an empty one.
type Parquet struct {
	file    *os.File
	pf      *parquet.File
	leaves  []parquetLeaf
	columns []string

	mu       sync.Mutex
	consumed bool
}

type parquetLeaf struct {
	name      string
	index     int
	repeated  bool
	// elemLevel is the definition level at which a list element exists.
	// Lower levels mean the list, or something above it, is empty or null.
	elemLevel int
	decode    func(parquet.Value) any
}

// OpenParquet opens path and reads the file footer.
func OpenParquet(path string) (*Parquet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat parquet: %w", err)
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read parquet footer: %w", err)
	}

	schema := pf.Schema()
	paths := schema.Columns()
	p := &Parquet{file: f, pf: pf}
	for _, path := range paths {
		leaf, ok := schema.Lookup(path...)
		if !ok {
			f.Close()
			return nil, fmt.Errorf("parquet column %s not found in schema", strings.Join(path, "."))
		}
		name := parquetColumnName(path)
		p.leaves = append(p.leaves, parquetLeaf{
			name:      name,
			index:     leaf.ColumnIndex,
			repeated:  leaf.MaxRepetitionLevel > 0,
			elemLevel: elementLevel(schema, path),
			decode:    valueDecoder(leaf.Node.Type()),
		})
		p.columns = append(p.columns, name)
	}
	return p, nil
}

// elementLevel walks path from root and returns the definition level of
// the innermost repeated node, or 0 when there is none.
func elementLevel(root parquet.Node, path []string) int {
	node, level, elem := root, 0, 0
	for _, name := range path {
		for _, f := range node.Fields() {
			if f.Name() == name {
				node = f
				break
			}
		}
		if node.Optional() || node.Repeated() {
			level++
		}
		if node.Repeated() {
			elem = level
		}
	}
	return elem
}

func parquetColumnName(path []string) string {
	if n := len(path); n >= 3 && path[n-2] == "list" && path[n-1] == "element" {
		path = path[:n-2]
	}
	return strings.Join(path, "_")
}

// NumRows returns the row count recorded in the footer.
func (p *Parquet) NumRows() int64 {
	return p.pf.NumRows()
}

func (p *Parquet) Columns(ctx context.Context) ([]string, error) {
	return append([]string(nil), p.columns...), nil
}

func (p *Parquet) Rows(ctx context.Context) (Rows, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.consumed {
		return nil, ErrConsumed
	}
	p.consumed = true
	return &parquetRows{
		ctx:    ctx,
		src:    p,
		groups: p.pf.RowGroups(),
		buf:    make([]parquet.Row, parquetReadBatch),
	}, nil
}

// Close releases the file. Safe to call more than once.
func (p *Parquet) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}

type parquetRows struct {
	ctx    context.Context
	src    *Parquet
	groups []parquet.RowGroup
	cur    parquet.Rows // rows of the current row group

	buf []parquet.Row
	n   int // decoded rows in buf
	pos int // next row in buf

	row  Row
	err  error
	done bool
}

func (r *parquetRows) Next() bool {
	for !r.done {
		if r.pos < r.n {
			r.row = r.src.decodeRow(r.buf[r.pos])
			r.pos++
			return true
		}
		if err := r.ctx.Err(); err != nil {
			r.fail(err)
			return false
		}
		r.fill()
	}
	return false
}

// fill decodes the next slice of rows, moving across row groups.
func (r *parquetRows) fill() {
	r.n, r.pos = 0, 0
	if r.cur == nil {
		if len(r.groups) == 0 {
			r.done = true
			return
		}
		r.cur = r.groups[0].Rows()
		r.groups = r.groups[1:]
	}

	n, err := r.cur.ReadRows(r.buf)
	r.n = n
	if errors.Is(err, io.EOF) {
		r.closeGroup()
		return
	}
	if err != nil {
		r.fail(fmt.Errorf("read parquet rows: %w", err))
	}
}

func (r *parquetRows) closeGroup() {
	if r.cur != nil {
		_ = r.cur.Close()
		r.cur = nil
	}
}

func (r *parquetRows) fail(err error) {
	r.err = err
	r.done = true
	r.n, r.pos = 0, 0
	r.closeGroup()
}

func (r *parquetRows) Row() Row   { return r.row }
func (r *parquetRows) Err() error { return r.err }

func (r *parquetRows) Close() error {
	r.done = true
	r.closeGroup()
	return r.src.Close()
}

func (p *Parquet) decodeRow(values parquet.Row) Row {
	byColumn := make(map[int][]parquet.Value, len(p.leaves))
	for _, v := range values {
		byColumn[v.Column()] = append(byColumn[v.Column()], v)
	}

	row := make(Row, len(p.leaves))
	for _, leaf := range p.leaves {
		vals := byColumn[leaf.index]
		if !leaf.repeated {
			if len(vals) == 0 || vals[0].IsNull() {
				row[leaf.name] = nil
			} else {
				row[leaf.name] = leaf.decode(vals[0])
			}
			continue
		}

		// An empty or null list comes back as a single value below the
		// element level. A list holding one null element does not.
		if len(vals) == 1 && vals[0].DefinitionLevel() < leaf.elemLevel {
			if vals[0].DefinitionLevel() == leaf.elemLevel-1 {
				row[leaf.name] = []any{}
			} else {
				row[leaf.name] = nil
			}
			continue
		}
		list := make([]any, 0, len(vals))
		for _, v := range vals {
			if v.IsNull() {
				list = append(list, nil)
			} else {
				list = append(list, leaf.decode(v))
			}
		}
		row[leaf.name] = list
	}
	return row
}

// julianUnixEpoch is the Julian day number of 1970-01-01.
const julianUnixEpoch = 2440588

// valueDecoder picks the Go representation for a leaf's physical and
// logical type. Byte arrays are copied out since row buffers are reused.
// DECIMAL becomes exact decimal text and TIME becomes HH:MM:SS.ffffff.
func valueDecoder(t parquet.Type) func(parquet.Value) any {
	lt := t.LogicalType()
	if lt == nil {
		lt = &format.LogicalType{}
	}

	if lt.Decimal != nil {
		scale := int(lt.Decimal.Scale)
		switch t.Kind() {
		case parquet.Int32:
			return func(v parquet.Value) any { return formatDecimal(big.NewInt(int64(v.Int32())), scale) }
		case parquet.Int64:
			return func(v parquet.Value) any { return formatDecimal(big.NewInt(v.Int64()), scale) }
		case parquet.ByteArray, parquet.FixedLenByteArray:
			return func(v parquet.Value) any { return formatDecimal(signedBigEndian(v.ByteArray()), scale) }
		}
	}

	switch t.Kind() {
	case parquet.Boolean:
		return func(v parquet.Value) any { return v.Boolean() }

	case parquet.Int32:
		switch {
		case lt.Date != nil:
			return func(v parquet.Value) any {
				return time.Unix(int64(v.Int32())*86400, 0).UTC()
			}
		case lt.Time != nil:
			unit := unitDuration(lt.Time.Unit)
			return func(v parquet.Value) any { return formatTimeOfDay(time.Duration(v.Int32()) * unit) }
		case lt.Integer != nil && !lt.Integer.IsSigned:
			return func(v parquet.Value) any { return v.Uint32() }
		}
		return func(v parquet.Value) any { return v.Int32() }

	case parquet.Int64:
		switch {
		case lt.Timestamp != nil:
			unit := lt.Timestamp.Unit
			return func(v parquet.Value) any {
				n := v.Int64()
				switch {
				case unit.Millis != nil:
					return time.UnixMilli(n).UTC()
				case unit.Micros != nil:
					return time.UnixMicro(n).UTC()
				default:
					return time.Unix(0, n).UTC()
				}
			}
		case lt.Time != nil:
			unit := unitDuration(lt.Time.Unit)
			return func(v parquet.Value) any { return formatTimeOfDay(time.Duration(v.Int64()) * unit) }
		case lt.Integer != nil && !lt.Integer.IsSigned:
			return func(v parquet.Value) any { return v.Uint64() }
		}
		return func(v parquet.Value) any { return v.Int64() }

	case parquet.Int96:
		// Legacy Impala/Spark timestamps: nanoseconds of day + Julian day.
		return func(v parquet.Value) any {
			a := v.Int96()
			nanos := uint64(a[1])<<32 | uint64(a[0])
			days := int64(a[2]) - julianUnixEpoch
			return time.Unix(days*86400, int64(nanos)).UTC()
		}

	case parquet.Float:
		return func(v parquet.Value) any { return v.Float() }

	case parquet.Double:
		return func(v parquet.Value) any { return v.Double() }

	case parquet.ByteArray, parquet.FixedLenByteArray:
		if lt.UUID != nil {
			return func(v parquet.Value) any {
				id, err := uuid.FromBytes(v.ByteArray())
				if err != nil {
					return bytes.Clone(v.ByteArray())
				}
				return id.String()
			}
		}
		if isTextType(t, lt) {
			return func(v parquet.Value) any { return string(v.ByteArray()) }
		}
		return func(v parquet.Value) any { return bytes.Clone(v.ByteArray()) }
	}

	return func(v parquet.Value) any { return v.String() }
}

// signedBigEndian reads b as a two's-complement big-endian integer.
func signedBigEndian(b []byte) *big.Int {
	n := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(len(b))*8))
	}
	return n
}

// formatDecimal renders unscaled * 10^-scale without rounding.
func formatDecimal(unscaled *big.Int, scale int) string {
	if scale <= 0 {
		if scale < 0 {
			exp := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-scale)), nil)
			unscaled = new(big.Int).Mul(unscaled, exp)
		}
		return unscaled.String()
	}

	digits := new(big.Int).Abs(unscaled).String()
	if len(digits) <= scale {
		digits = strings.Repeat("0", scale-len(digits)+1) + digits
	}
	point := len(digits) - scale
	text := digits[:point] + "." + digits[point:]
	if unscaled.Sign() < 0 {
		text = "-" + text
	}
	return text
}

func unitDuration(u format.TimeUnit) time.Duration {
	switch {
	case u.Millis != nil:
		return time.Millisecond
	case u.Micros != nil:
		return time.Microsecond
	default:
		return time.Nanosecond
	}
}

// formatTimeOfDay renders d as a time of day with microsecond precision.
func formatTimeOfDay(d time.Duration) string {
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second
	d -= sec * time.Second
	return fmt.Sprintf("%02d:%02d:%02d.%06d", int64(h), int64(m), int64(sec), int64(d/time.Microsecond))
}

func isTextType(t parquet.Type, lt *format.LogicalType) bool {
	if lt.UTF8 != nil || lt.Enum != nil || lt.Json != nil {
		return true
	}
	if ct := t.ConvertedType(); ct != nil {
		switch *ct {
		case deprecated.UTF8, deprecated.Enum, deprecated.Json:
			return true
		}
	}
	return false
}

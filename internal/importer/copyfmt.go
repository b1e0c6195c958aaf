package importer

// copyfmt.go renders batches in PostgreSQL's COPY text format:
//
//   - one line per row, fields separated by CopyDelimiter
//   - NULL written as CopyNull
//   - backslash, tab, CR and LF escaped as \\, \t, \r, \n
//
// Lines carry neither a trailing delimiter nor a line terminator; the
// destination joins them.

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	CopyDelimiter = "\t"
	CopyNull      = `\N`
)

// copyEscaper performs all substitutions in one left-to-right pass, so the
// backslashes it introduces are never escaped a second time.
var copyEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\t", `\t`,
	"\r", `\r`,
	"\n", `\n`,
)

// EscapeCopyText escapes s for use as a COPY text field.
func EscapeCopyText(s string) string {
	if !strings.ContainsAny(s, "\\\t\r\n") {
		return s
	}
	return copyEscaper.Replace(s)
}

// FormatCopyValue renders one value as a COPY text field.
func FormatCopyValue(v any) string {
	switch x := v.(type) {
	case nil:
		return CopyNull
	case bool:
		if x {
			return "1"
		}
		return "0"
	case string:
		return EscapeCopyText(x)
	case []byte:
		return EscapeCopyText(string(x))
	case time.Time:
		return x.Format(TimestampLayout)
	case int:
		return strconv.Itoa(x)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return formatFloat(float64(x), 32)
	case float64:
		return formatFloat(x, 64)
	}

	// Anything else goes through the normalizer first (structs to JSON,
	// handles to NULL, text marshalers to text).
	n := NormalizeValue(v)
	switch n.(type) {
	case nil, bool, string, []byte:
		return FormatCopyValue(n)
	}
	return EscapeCopyText(fmt.Sprint(n))
}

// formatFloat uses the spellings PostgreSQL accepts for special values.
func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}

// FormatCopyLine renders a row whose values are in target-column order.
func FormatCopyLine(row []any) string {
	var b strings.Builder
	for i, v := range row {
		if i > 0 {
			b.WriteString(CopyDelimiter)
		}
		b.WriteString(FormatCopyValue(v))
	}
	return b.String()
}

// BuildCopyLines renders a batch, preserving row order.
func BuildCopyLines(rows [][]any) []string {
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = FormatCopyLine(row)
	}
	return lines
}

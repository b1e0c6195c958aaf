package importer

import (
	"bytes"
	"encoding"
	"encoding/json"
	"io"
	"reflect"
	"time"
)

// TimestampLayout renders timestamps with microsecond precision and a
// numeric UTC offset, e.g. "2023-01-02 03:04:05.000000+00:00".
const TimestampLayout = "2006-01-02 15:04:05.000000-07:00"

// NormalizeValue converts a source value into something every destination
// accepts as a parameter:
//
//   - time.Time            -> TimestampLayout text
//   - bool                 -> unchanged
//   - encoding.TextMarshaler (UUIDs, IPs, decimals) -> its text form
//   - maps, slices, arrays, structs -> compact JSON, HTML escaping off
//   - readers, writers, closers, channels, funcs -> nil
//   - everything else      -> unchanged
//
// []byte is treated as a scalar (binary payload), not as a sequence.
// NormalizeValue performs no I/O.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return x.Format(TimestampLayout)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.Format(TimestampLayout)
	case bool, string, []byte,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return x
	case json.RawMessage:
		return compactJSON(x)
	case io.Reader, io.Writer, io.Closer:
		return nil
	case encoding.TextMarshaler:
		text, err := x.MarshalText()
		if err != nil {
			return nil
		}
		return string(text)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return NormalizeValue(rv.Elem().Interface())
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return nil
	case reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		return encodeJSON(v)
	case reflect.Array, reflect.Struct:
		return encodeJSON(v)
	}
	return v
}

// encodeJSON renders structured values as compact JSON without HTML
// escaping. Map keys come out sorted, so equal inputs give equal text.
func encodeJSON(v any) any {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

func compactJSON(raw json.RawMessage) any {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

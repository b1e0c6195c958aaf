package source

// textread.go cleans up text input before the CSV parser sees it:
//
//   - a leading UTF-8 BOM (0xEF 0xBB 0xBF), common in files saved on Windows,
//     is dropped
//   - invalid UTF-8 bytes are replaced with '?'
//
// Both transforms stream, so memory stays bounded by the buffer size.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// newTextReader wraps r with BOM removal and UTF-8 sanitization.
func newTextReader(r io.Reader) io.Reader {
	br := bufio.NewReaderSize(r, 64*1024)
	if head, _ := br.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return &utf8Sanitizer{r: br}
}

// utf8Sanitizer passes valid UTF-8 through and turns every invalid byte
// into '?'. A genuine U+FFFD in the input is valid and kept.
type utf8Sanitizer struct {
	r *bufio.Reader

	// Encoded bytes of a rune that did not fit in the caller's buffer.
	out []byte
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	n := copy(p, s.out)
	s.out = s.out[n:]

	for n < len(p) {
		r, size, err := s.r.ReadRune()
		if err != nil {
			if err == io.EOF && n > 0 {
				return n, nil
			}
			return n, err
		}
		if r == utf8.RuneError && size == 1 {
			r = '?'
		}

		var buf [utf8.UTFMax]byte
		w := utf8.EncodeRune(buf[:], r)
		c := copy(p[n:], buf[:w])
		n += c
		if c < w {
			s.out = append(s.out[:0], buf[c:w]...)
		}
	}
	return n, nil
}

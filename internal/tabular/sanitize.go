package tabular

// sanitize.go cleans CSV bytes as they stream into encoding/csv:
//
//   - A leading UTF-8 BOM (0xEF 0xBB 0xBF), common in Excel exports, is dropped
//   - Invalid UTF-8 bytes are replaced with '?' so a stray Latin-1 byte does
//     not break the column header match
//
// Replacement uses a single byte so the output never grows past the input.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CleanReader wraps an io.Reader, skipping a UTF-8 BOM and sanitizing invalid
// UTF-8 on the fly. Multi-byte runes split across reads of the underlying
// reader are reassembled by the internal buffer.
type CleanReader struct {
	br         *bufio.Reader
	bomChecked bool
}

// NewCleanReader returns a CleanReader reading from r.
func NewCleanReader(r io.Reader) *CleanReader {
	return &CleanReader{br: bufio.NewReader(r)}
}

// Read implements io.Reader.
func (c *CleanReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if !c.bomChecked {
		c.bomChecked = true
		if head, err := c.br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			c.br.Discard(len(utf8BOM))
		}
	}

	n := 0
	for n < len(p) {
		r, size, err := c.br.ReadRune()
		if err != nil {
			if n > 0 && err == io.EOF {
				return n, nil
			}
			return n, err
		}

		if r == utf8.RuneError && size == 1 {
			p[n] = '?'
			n++
			continue
		}

		if utf8.RuneLen(r) > len(p)-n {
			c.br.UnreadRune()
			if n == 0 {
				return 0, io.ErrShortBuffer
			}
			break
		}
		n += utf8.EncodeRune(p[n:], r)
	}
	return n, nil
}

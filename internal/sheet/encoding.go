package sheet

// encoding.go prepares CSV input for decoding.
//
// Spreadsheet exports from Windows tools commonly arrive either as UTF-8 with
// a byte order mark, or as Windows-1252 without one. The first sniffSize bytes
// decide: valid UTF-8 passes through (BOM stripped), anything else is decoded
// from Windows-1252.

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

const sniffSize = 64 << 10

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText returns a reader yielding UTF-8 text for r.
func decodeText(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffSize)

	head, err := br.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, err
	}

	if bytes.HasPrefix(head, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, err
		}
		return br, nil
	}

	atEOF := len(head) < sniffSize
	if !atEOF {
		head = head[:len(head)-incompleteTrailingBytes(head)]
	}
	if utf8.Valid(head) {
		return br, nil
	}

	return transform.NewReader(br, charmap.Windows1252.NewDecoder()), nil
}

// incompleteTrailingBytes returns how many bytes at the end of data belong to
// a multi-byte sequence cut off by the sniff window.
func incompleteTrailingBytes(data []byte) int {
	for i := 1; i < utf8.UTFMax && i <= len(data); i++ {
		b := data[len(data)-i]
		if b < 0x80 {
			return 0
		}
		if utf8.RuneStart(b) {
			if utf8.FullRune(data[len(data)-i:]) {
				return 0
			}
			return i
		}
	}
	return 0
}

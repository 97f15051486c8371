package sheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrNoHeader is returned when the first row of the sheet has no headers.
	ErrNoHeader = errors.New("no header row")

	// ErrEmptyFile is returned for zero-byte input.
	ErrEmptyFile = errors.New("empty file")
)

// zipMagic is the local file header signature every xlsx package starts with.
var zipMagic = []byte("PK\x03\x04")

// Format identifies the container format of the input.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// Sheet is the parsed content of one worksheet.
type Sheet struct {
	Name    string
	Format  Format
	Headers []string
	Rows    []Row
}

// Read parses r as xlsx when it starts with a ZIP signature and as CSV
// otherwise. Only the first worksheet of a workbook is read.
func Read(r io.Reader) (*Sheet, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(zipMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if len(head) == 0 {
		return nil, ErrEmptyFile
	}

	if bytes.Equal(head, zipMagic) {
		return ReadXLSX(br)
	}
	return ReadCSV(br)
}

// ReadXLSX parses the first worksheet of an xlsx workbook.
func ReadXLSX(r io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	names := f.GetSheetList()
	if len(names) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	name := names[0]

	rows, err := f.Rows(name)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", name, err)
	}
	defer rows.Close()

	b := newBuilder(name, FormatXLSX)
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("sheet %q row %d: %w", name, b.rowNumber+1, err)
		}
		if err := b.add(b.rowNumber+1, cols); err != nil {
			return nil, err
		}
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("sheet %q: %w", name, err)
	}

	return b.finish()
}

// ReadCSV parses comma-separated input. See decodeText for encoding handling.
func ReadCSV(r io.Reader) (*Sheet, error) {
	text, err := decodeText(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	cr := csv.NewReader(text)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	b := newBuilder("", FormatCSV)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		// Rows are numbered by record, as a spreadsheet would show them,
		// so quoted newlines inside a cell do not shift later rows.
		if err := b.add(b.rowNumber+1, record); err != nil {
			return nil, err
		}
	}

	return b.finish()
}

// builder accumulates raw records into a Sheet. The first record becomes the
// header; every later record is one data row.
type builder struct {
	sheet     *Sheet
	rowNumber int // number of the last record added
	header    bool
}

func newBuilder(name string, format Format) *builder {
	return &builder{sheet: &Sheet{Name: name, Format: format}}
}

func (b *builder) add(number int, record []string) error {
	b.rowNumber = number

	if !b.header {
		headers, err := parseHeader(record)
		if err != nil {
			return err
		}
		b.sheet.Headers = headers
		b.header = true
		return nil
	}

	cells := make(map[string]string, len(b.sheet.Headers))
	for i, h := range b.sheet.Headers {
		if h == "" || i >= len(record) {
			continue
		}
		cells[h] = record[i]
	}

	row := NewRow(b.rowNumber, cells)
	if row.Len() == 0 {
		return nil
	}
	b.sheet.Rows = append(b.sheet.Rows, row)
	return nil
}

func (b *builder) finish() (*Sheet, error) {
	if !b.header {
		if b.rowNumber == 0 {
			return nil, ErrEmptyFile
		}
		return nil, ErrNoHeader
	}
	return b.sheet, nil
}

// parseHeader cleans header cells and rejects duplicates (case-insensitive).
// Blank header cells are kept as "" so column positions line up.
func parseHeader(record []string) ([]string, error) {
	headers := make([]string, len(record))
	seen := make(map[string]bool, len(record))
	named := 0

	for i, raw := range record {
		h := CleanCell(raw)
		headers[i] = h
		if h == "" {
			continue
		}
		key := strings.ToLower(h)
		if seen[key] {
			return nil, fmt.Errorf("duplicate column %q in header row", h)
		}
		seen[key] = true
		named++
	}

	if named == 0 {
		return nil, ErrNoHeader
	}
	return headers, nil
}

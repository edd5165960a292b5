package events

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jszwec/csvutil"
)

// RowReader streams rows from a consolidated event file
type RowReader struct {
	f    *os.File
	dec  *csvutil.Decoder
	line int
}

// OpenRows opens a consolidated file and validates its header
func OpenRows(path string) (*RowReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	dec, err := newDecoder(f, rowHeader)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &RowReader{f: f, dec: dec, line: 1}, nil
}

// Next returns the next row. It returns io.EOF after the last row.
func (r *RowReader) Next() (Row, error) {
	var row Row
	if err := r.dec.Decode(&row); err != nil {
		if errors.Is(err, io.EOF) {
			return row, io.EOF
		}
		return row, fmt.Errorf("line %d: %w", r.line+1, err)
	}
	r.line++
	return row, nil
}

// Line returns the file line number of the last row returned by Next
func (r *RowReader) Line() int {
	return r.line
}

// Close closes the underlying file
func (r *RowReader) Close() error {
	return r.f.Close()
}

// ReadRows loads every row of a consolidated file
func ReadRows(path string) ([]Row, error) {
	r, err := OpenRows(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var rows []Row
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}

package events

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/franz/playlog/internal/util"
	"github.com/jszwec/csvutil"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Result summarizes one consolidation run
type Result struct {
	Files        int
	RowsRead     int
	RowsSkipped  int
	RowsWritten  int
	BytesWritten int64
	Dest         string
}

// Discover walks dir and returns every *.csv file below it, sorted by path.
func Discover(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("events directory %s: %w", dir, util.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to stat events directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk error: %w", err)
	}

	sort.Strings(paths)
	return paths, nil
}

// Consolidate reads every source file, drops events without an artist, and
// writes the remaining rows to dest with the fixed consolidated header.
// dest is overwritten. Any read or write failure aborts the run.
func Consolidate(paths []string, dest string) (*Result, error) {
	result := &Result{Dest: dest}

	out, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer out.Close()

	counter := &countingWriter{w: out}
	w := newQuotedWriter(counter)

	if err := w.Write(rowHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for _, path := range paths {
		read, skipped, err := consolidateFile(path, w)
		result.RowsRead += read
		result.RowsSkipped += skipped
		result.RowsWritten += read - skipped
		if err != nil {
			return result, fmt.Errorf("%s: %w", path, err)
		}
		result.Files++
		util.DebugLog("Consolidated %s: %d rows, %d skipped", path, read, skipped)
	}

	if err := w.Flush(); err != nil {
		return result, fmt.Errorf("failed to flush %s: %w", dest, err)
	}
	if err := out.Sync(); err != nil {
		return result, fmt.Errorf("failed to sync %s: %w", dest, err)
	}

	result.BytesWritten = counter.n
	return result, nil
}

// consolidateFile copies the valid rows of one source file into w
func consolidateFile(path string, w *quotedWriter) (read, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	dec, err := newDecoder(f, eventHeader)
	if err != nil {
		return 0, 0, err
	}

	for {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				return read, skipped, nil
			}
			return read, skipped, fmt.Errorf("row %d: %w", read+2, err)
		}
		read++

		if !ev.Valid() {
			skipped++
			continue
		}

		row := ev.Row()
		if err := w.Write(row.Values()); err != nil {
			return read, skipped, fmt.Errorf("write: %w", err)
		}
	}
}

// newDecoder reads and validates the header of r and returns a decoder
// positioned at the first data row. A UTF-8 byte order mark is dropped.
func newDecoder(r io.Reader, required []string) (*csvutil.Decoder, error) {
	bom := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	cr := csv.NewReader(transform.NewReader(r, bom))

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header row", util.ErrInvalidSchema)
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	if err := checkHeader(header, required); err != nil {
		return nil, err
	}

	dec, err := csvutil.NewDecoder(cr, header...)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	dec.DisallowMissingColumns = true
	return dec, nil
}

// countingWriter counts bytes passed through to w
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// quotedWriter writes CSV records with every field quoted and CRLF line
// endings. encoding/csv only quotes fields that need it.
type quotedWriter struct {
	w *bufio.Writer
}

func newQuotedWriter(w io.Writer) *quotedWriter {
	return &quotedWriter{w: bufio.NewWriter(w)}
}

func (q *quotedWriter) Write(fields []string) error {
	for i, field := range fields {
		if i > 0 {
			if err := q.w.WriteByte(','); err != nil {
				return err
			}
		}
		if err := q.w.WriteByte('"'); err != nil {
			return err
		}
		if _, err := q.w.WriteString(strings.ReplaceAll(field, `"`, `""`)); err != nil {
			return err
		}
		if err := q.w.WriteByte('"'); err != nil {
			return err
		}
	}
	_, err := q.w.WriteString("\r\n")
	return err
}

func (q *quotedWriter) Flush() error {
	return q.w.Flush()
}

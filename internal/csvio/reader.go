// Package csvio reads delimited point tables (CSV and friends) as chunk
// sources.
package csvio

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/point"
)

// Reader streams rows of a delimited text file as point chunks. The
// first row names the columns; the delimiter is sniffed from it.
type Reader struct {
	f      *os.File
	cr     *csv.Reader
	fields []string
	row    int64
}

// Open opens a delimited point table and reads its header row.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvio: opening %s: %w", path, err)
	}
	br := bufio.NewReaderSize(f, 1<<16)
	header, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		f.Close()
		return nil, fmt.Errorf("csvio: reading header of %s: %w", path, err)
	}
	delim := sniffDelimiter(header)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	br.Reset(f)

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.ReuseRecord = true
	fields, err := cr.Read()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csvio: reading header of %s: %w", path, err)
	}
	if len(fields) < 3 {
		f.Close()
		return nil, fmt.Errorf("csvio: %s has %d columns, need at least 3 coordinate columns", path, len(fields))
	}
	names := make([]string, len(fields))
	for i, name := range fields {
		names[i] = strings.TrimSpace(name)
	}
	return &Reader{f: f, cr: cr, fields: names}, nil
}

// sniffDelimiter picks the separator that splits the header row into the
// most columns.
func sniffDelimiter(header string) rune {
	best, count := ',', strings.Count(header, ",")
	for _, c := range []rune{'\t', ';'} {
		if n := strings.Count(header, string(c)); n > count {
			best, count = c, n
		}
	}
	return best
}

// Fields returns the column names from the header row.
func (r *Reader) Fields() []string { return r.fields }

// Metadata returns nil: delimited tables carry no embedded metadata.
func (r *Reader) Metadata() []string { return nil }

// Count reports that the total row count is unknown without a full scan.
func (r *Reader) Count() (int64, bool) { return 0, false }

// Next reads up to n rows into a fresh chunk, returning io.EOF once the
// table is exhausted.
func (r *Reader) Next(n int) (*point.Chunk, error) {
	chunk := point.NewChunk(r.fields, n)
	vals := make([]float64, len(r.fields))
	for i := 0; i < n; i++ {
		rec, err := r.cr.Read()
		if err == io.EOF {
			if chunk.Len() == 0 {
				return nil, io.EOF
			}
			return chunk, nil
		}
		if err != nil {
			return nil, fmt.Errorf("csvio: reading row %d: %w", r.row+int64(i)+1, err)
		}
		if len(rec) != len(r.fields) {
			return nil, fmt.Errorf("csvio: row %d has %d values, header has %d", r.row+int64(i)+1, len(rec), len(r.fields))
		}
		for j, cell := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("csvio: row %d column %q: %w", r.row+int64(i)+1, r.fields[j], err)
			}
			vals[j] = v
		}
		if err := chunk.Append(vals...); err != nil {
			return nil, err
		}
	}
	r.row += int64(chunk.Len())
	return chunk, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error { return r.f.Close() }

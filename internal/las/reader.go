package las

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/point"
)

// Reader streams point records out of a LAS file one chunk at a time.
type Reader struct {
	f      *os.File
	br     *bufio.Reader
	format uint8
	recLen int
	count  int64
	pos    int64

	scale  [3]float64
	offset [3]float64

	fields []string
	wkt    []string
}

// Open opens a LAS file, parses the header, and positions the reader at
// the first point record.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("las: opening %s: %w", path, err)
	}
	r := &Reader{f: f}
	if err := r.parseHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) parseHeader() error {
	hdr := make([]byte, headerSize12)
	if _, err := io.ReadFull(r.f, hdr); err != nil {
		return fmt.Errorf("las: reading header: %w", err)
	}
	if string(hdr[0:4]) != "LASF" {
		return fmt.Errorf("las: missing LASF signature")
	}
	le := binary.LittleEndian
	version, err := versionOf(hdr[24], hdr[25])
	if err != nil {
		return err
	}
	headerSize := int(le.Uint16(hdr[94:]))
	pointOffset := int64(le.Uint32(hdr[96:]))
	vlrCount := int(le.Uint32(hdr[100:]))
	r.format = hdr[104]
	if r.format&0x80 != 0 {
		return ErrCompressed
	}
	if _, ok := recordLengths[r.format]; !ok {
		return fmt.Errorf("las: unsupported point record format %d", r.format)
	}
	r.recLen = int(le.Uint16(hdr[105:]))
	if r.recLen < recordLengths[r.format] {
		return fmt.Errorf("las: record length %d too short for format %d", r.recLen, r.format)
	}
	r.count = int64(le.Uint32(hdr[107:]))
	for i := 0; i < 3; i++ {
		r.scale[i] = math.Float64frombits(le.Uint64(hdr[131+8*i:]))
		r.offset[i] = math.Float64frombits(le.Uint64(hdr[155+8*i:]))
	}

	// 1.4 keeps the authoritative count past the legacy header.
	if version == "1.4" && headerSize >= headerSize14 {
		ext := make([]byte, headerSize14-headerSize12)
		if _, err := io.ReadFull(r.f, ext); err != nil {
			return fmt.Errorf("las: reading 1.4 header: %w", err)
		}
		if n := int64(le.Uint64(ext[247-headerSize12:])); n != 0 {
			r.count = n
		}
	}

	if err := r.readVLRs(int64(headerSize), vlrCount, pointOffset); err != nil {
		return err
	}
	if _, err := r.f.Seek(pointOffset, io.SeekStart); err != nil {
		return fmt.Errorf("las: seeking to point data: %w", err)
	}
	r.br = bufio.NewReaderSize(r.f, 1<<16)
	r.fields = fieldsFor(r.format)
	return nil
}

// readVLRs scans the variable length records for a coordinate system WKT
// record.
func (r *Reader) readVLRs(at int64, n int, limit int64) error {
	if _, err := r.f.Seek(at, io.SeekStart); err != nil {
		return fmt.Errorf("las: seeking to VLRs: %w", err)
	}
	le := binary.LittleEndian
	hdr := make([]byte, 54)
	for i := 0; i < n && at+54 <= limit; i++ {
		if _, err := io.ReadFull(r.f, hdr); err != nil {
			return fmt.Errorf("las: reading VLR %d: %w", i, err)
		}
		userID := strings.TrimRight(string(hdr[2:18]), "\x00")
		recordID := le.Uint16(hdr[18:])
		payloadLen := int(le.Uint16(hdr[20:]))
		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(r.f, payload); err != nil {
			return fmt.Errorf("las: reading VLR %d payload: %w", i, err)
		}
		if userID == wktUserID && recordID == wktRecordID {
			r.wkt = append(r.wkt, strings.TrimRight(string(payload), "\x00"))
		}
		at += 54 + int64(payloadLen)
	}
	return nil
}

// Fields returns the column names this file's point format produces.
func (r *Reader) Fields() []string { return r.fields }

// Metadata returns any coordinate system WKT records from the header.
func (r *Reader) Metadata() []string { return r.wkt }

// Count returns the total number of point records.
func (r *Reader) Count() (int64, bool) { return r.count, true }

// Next reads up to n records into a fresh chunk. It returns io.EOF once
// all points have been read.
func (r *Reader) Next(n int) (*point.Chunk, error) {
	if r.pos >= r.count {
		return nil, io.EOF
	}
	remaining := r.count - r.pos
	if int64(n) > remaining {
		n = int(remaining)
	}
	chunk := point.NewChunk(r.fields, n)
	le := binary.LittleEndian
	rec := make([]byte, r.recLen)
	vals := make([]float64, len(r.fields))
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(r.br, rec); err != nil {
			return nil, fmt.Errorf("las: reading point %d: %w", r.pos+int64(i), err)
		}
		vals[0] = float64(int32(le.Uint32(rec[0:])))*r.scale[0] + r.offset[0]
		vals[1] = float64(int32(le.Uint32(rec[4:])))*r.scale[1] + r.offset[1]
		vals[2] = float64(int32(le.Uint32(rec[8:])))*r.scale[2] + r.offset[2]
		vals[3] = float64(le.Uint16(rec[12:]))
		k := 4
		if formatHasTime(r.format) {
			vals[k] = math.Float64frombits(le.Uint64(rec[20:]))
			k++
		}
		if formatHasColor(r.format) {
			base := 20
			if formatHasTime(r.format) {
				base = 28
			}
			vals[k] = float64(le.Uint16(rec[base:]))
			vals[k+1] = float64(le.Uint16(rec[base+2:]))
			vals[k+2] = float64(le.Uint16(rec[base+4:]))
		}
		if err := chunk.Append(vals...); err != nil {
			return nil, err
		}
	}
	r.pos += int64(n)
	return chunk, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error { return r.f.Close() }

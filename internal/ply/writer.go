package ply

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/point"
)

// Writer streams vertex records into a binary little-endian PLY file. The
// vertex count and comments must be known up front: PLY keeps both in the
// header.
type Writer struct {
	f     *os.File
	bw    *bufio.Writer
	props []Property
	count int64
	n     int64
}

// NewWriter creates the target file and writes the header.
func NewWriter(path string, props []Property, count int64, comments []string) (*Writer, error) {
	canonical := make([]Property, len(props))
	for i, p := range props {
		t, err := canonicalType(p.Type)
		if err != nil {
			return nil, err
		}
		canonical[i] = Property{Name: p.Name, Type: t}
	}
	props = canonical
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("ply: creating %s: %w", path, err)
	}
	w := &Writer{f: f, bw: bufio.NewWriterSize(f, 1<<16), props: props, count: count}

	fmt.Fprintln(w.bw, "ply")
	fmt.Fprintln(w.bw, "format binary_little_endian 1.0")
	for _, c := range comments {
		fmt.Fprintf(w.bw, "comment %s\n", c)
	}
	fmt.Fprintf(w.bw, "element vertex %d\n", count)
	for _, p := range props {
		fmt.Fprintf(w.bw, "property %s %s\n", p.Type, p.Name)
	}
	fmt.Fprintln(w.bw, "end_header")
	if err := w.bw.Flush(); err != nil {
		f.Close()
		return nil, fmt.Errorf("ply: writing header: %w", err)
	}
	return w, nil
}

// Append writes one chunk of vertices. Chunks must contain a column for
// every property.
func (w *Writer) Append(chunk *point.Chunk) error {
	n := chunk.Len()
	cols := make([][]float64, len(w.props))
	for i, p := range w.props {
		cols[i] = chunk.Column(p.Name)
		if cols[i] == nil {
			return fmt.Errorf("ply: chunk is missing property %s", p.Name)
		}
	}
	var buf [8]byte
	for i := 0; i < n; i++ {
		for j, p := range w.props {
			size := encodeScalar(buf[:], cols[j][i], p.Type)
			if _, err := w.bw.Write(buf[:size]); err != nil {
				return fmt.Errorf("ply: writing vertex %d: %w", w.n+int64(i), err)
			}
		}
	}
	w.n += int64(n)
	return nil
}

// Close flushes and closes the file, verifying the promised vertex count
// was written.
func (w *Writer) Close() error {
	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("ply: flushing: %w", err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("ply: closing: %w", err)
	}
	if w.n != w.count {
		return fmt.Errorf("ply: header promised %d vertices, wrote %d", w.count, w.n)
	}
	return nil
}

func encodeScalar(b []byte, v float64, t string) int {
	switch t {
	case "char":
		b[0] = byte(int8(math.Round(v)))
		return 1
	case "uchar":
		b[0] = byte(uint8(math.Round(v)))
		return 1
	case "short":
		binary.LittleEndian.PutUint16(b, uint16(int16(math.Round(v))))
		return 2
	case "ushort":
		binary.LittleEndian.PutUint16(b, uint16(math.Round(v)))
		return 2
	case "int":
		binary.LittleEndian.PutUint32(b, uint32(int32(math.Round(v))))
		return 4
	case "uint":
		binary.LittleEndian.PutUint32(b, uint32(math.Round(v)))
		return 4
	case "float":
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
		return 4
	default: // double
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
		return 8
	}
}

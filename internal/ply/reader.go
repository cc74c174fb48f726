package ply

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/point"
)

// Reader streams vertex records out of a PLY file one chunk at a time.
type Reader struct {
	f        *os.File
	br       *bufio.Reader
	ascii    bool
	props    []Property
	comments []string
	count    int64
	pos      int64
	rowSize  int
}

// Open opens a PLY file and parses its header. The vertex element must be
// the first element in the file; list properties are not supported.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ply: opening %s: %w", path, err)
	}
	r := &Reader{f: f, br: bufio.NewReaderSize(f, 1<<16)}
	if err := r.parseHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) parseHeader() error {
	line, err := r.readLine()
	if err != nil || line != "ply" {
		return fmt.Errorf("ply: missing magic line")
	}
	inVertex := false
	sawElement := false
	for {
		line, err := r.readLine()
		if err != nil {
			return fmt.Errorf("ply: truncated header: %w", err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 {
				return fmt.Errorf("ply: malformed format line %q", line)
			}
			switch fields[1] {
			case "ascii":
				r.ascii = true
			case "binary_little_endian":
				r.ascii = false
			default:
				return fmt.Errorf("ply: unsupported format %q", fields[1])
			}
		case "comment", "obj_info":
			r.comments = append(r.comments, strings.TrimSpace(strings.TrimPrefix(line, fields[0])))
		case "element":
			if len(fields) != 3 {
				return fmt.Errorf("ply: malformed element line %q", line)
			}
			if fields[1] == "vertex" {
				if sawElement {
					return fmt.Errorf("ply: vertex element must come first")
				}
				n, err := strconv.ParseInt(fields[2], 10, 64)
				if err != nil {
					return fmt.Errorf("ply: bad vertex count %q", fields[2])
				}
				r.count = n
				inVertex = true
			} else {
				inVertex = false
			}
			sawElement = true
		case "property":
			if !inVertex {
				continue
			}
			if len(fields) < 3 {
				return fmt.Errorf("ply: malformed property line %q", line)
			}
			if fields[1] == "list" {
				return fmt.Errorf("ply: list properties are not supported")
			}
			t, err := canonicalType(fields[1])
			if err != nil {
				return err
			}
			r.props = append(r.props, Property{Name: fields[len(fields)-1], Type: t})
			r.rowSize += typeSizes[t]
		case "end_header":
			if len(r.props) == 0 {
				return fmt.Errorf("ply: no vertex properties")
			}
			return nil
		}
	}
}

func (r *Reader) readLine() (string, error) {
	line, err := r.br.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Fields returns the vertex property names in file order.
func (r *Reader) Fields() []string {
	names := make([]string, len(r.props))
	for i, p := range r.props {
		names[i] = p.Name
	}
	return names
}

// Metadata returns the header comment lines.
func (r *Reader) Metadata() []string { return r.comments }

// Count returns the total number of vertices.
func (r *Reader) Count() (int64, bool) { return r.count, true }

// Next reads up to n records into a fresh chunk. It returns io.EOF once
// all vertices have been read.
func (r *Reader) Next(n int) (*point.Chunk, error) {
	if r.pos >= r.count {
		return nil, io.EOF
	}
	remaining := r.count - r.pos
	if int64(n) > remaining {
		n = int(remaining)
	}
	chunk := point.NewChunk(r.Fields(), n)
	if r.ascii {
		if err := r.readASCII(chunk, n); err != nil {
			return nil, err
		}
	} else {
		if err := r.readBinary(chunk, n); err != nil {
			return nil, err
		}
	}
	r.pos += int64(n)
	return chunk, nil
}

func (r *Reader) readASCII(chunk *point.Chunk, n int) error {
	vals := make([]float64, len(r.props))
	for i := 0; i < n; i++ {
		line, err := r.readLine()
		if err != nil {
			return fmt.Errorf("ply: reading vertex %d: %w", r.pos+int64(i), err)
		}
		fields := strings.Fields(line)
		if len(fields) != len(r.props) {
			return fmt.Errorf("ply: vertex %d has %d values, want %d", r.pos+int64(i), len(fields), len(r.props))
		}
		for j, s := range fields {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("ply: vertex %d property %s: %w", r.pos+int64(i), r.props[j].Name, err)
			}
			vals[j] = v
		}
		if err := chunk.Append(vals...); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) readBinary(chunk *point.Chunk, n int) error {
	row := make([]byte, r.rowSize)
	vals := make([]float64, len(r.props))
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(r.br, row); err != nil {
			return fmt.Errorf("ply: reading vertex %d: %w", r.pos+int64(i), err)
		}
		off := 0
		for j, p := range r.props {
			vals[j] = decodeScalar(row[off:], p.Type)
			off += typeSizes[p.Type]
		}
		if err := chunk.Append(vals...); err != nil {
			return err
		}
	}
	return nil
}

func decodeScalar(b []byte, t string) float64 {
	switch t {
	case "char":
		return float64(int8(b[0]))
	case "uchar":
		return float64(b[0])
	case "short":
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case "ushort":
		return float64(binary.LittleEndian.Uint16(b))
	case "int":
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case "uint":
		return float64(binary.LittleEndian.Uint32(b))
	case "float":
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	default: // double
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error { return r.f.Close() }

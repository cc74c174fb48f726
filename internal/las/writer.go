package las

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/point"
)

// WriterConfig controls the shape of the output file.
type WriterConfig struct {
	Version     string     `yaml:"version"`
	PointFormat uint8      `yaml:"point_format"`
	Scale       [3]float64 `yaml:"scale"`
}

func (c *WriterConfig) withDefaults() (WriterConfig, error) {
	out := *c
	if out.Version == "" {
		out.Version = "1.2"
	}
	switch out.Version {
	case "1.2", "1.3", "1.4":
	default:
		return out, fmt.Errorf("las: cannot write version %s", out.Version)
	}
	if _, ok := recordLengths[out.PointFormat]; !ok {
		return out, fmt.Errorf("las: cannot write point format %d", out.PointFormat)
	}
	for i := range out.Scale {
		if out.Scale[i] == 0 {
			out.Scale[i] = 0.001
		}
	}
	return out, nil
}

func headerSizeFor(version string) int {
	switch version {
	case "1.3":
		return headerSize13
	case "1.4":
		return headerSize14
	default:
		return headerSize12
	}
}

// Writer streams point records into a LAS file. Coordinate offsets are
// taken from the first chunk; the offsets, record count, and bounding box
// are patched into the header on Close.
type Writer struct {
	f      *os.File
	bw     *bufio.Writer
	cfg    WriterConfig
	fields []string
	recLen int

	offset    [3]float64
	haveFirst bool
	count     int64
	min, max  [3]float64
}

// NewWriter creates path and writes the file header and, when wkt is
// non-empty, a coordinate system VLR.
func NewWriter(path string, cfg WriterConfig, wkt string) (*Writer, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("las: creating %s: %w", path, err)
	}
	w := &Writer{
		f:      f,
		bw:     bufio.NewWriterSize(f, 1<<16),
		cfg:    cfg,
		fields: fieldsFor(cfg.PointFormat),
		recLen: recordLengths[cfg.PointFormat],
	}
	for i := range w.min {
		w.min[i] = math.Inf(1)
		w.max[i] = math.Inf(-1)
	}
	if err := w.writeHeader(wkt); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return w, nil
}

func (w *Writer) writeHeader(wkt string) error {
	le := binary.LittleEndian
	headerSize := headerSizeFor(w.cfg.Version)
	hdr := make([]byte, headerSize)
	copy(hdr[0:], "LASF")
	if w.cfg.Version == "1.4" && wkt != "" {
		le.PutUint16(hdr[6:], 0x10)
	}
	major, minor := w.cfg.Version[0]-'0', w.cfg.Version[2]-'0'
	hdr[24], hdr[25] = major, minor
	copy(hdr[26:], "point cloud converter")
	copy(hdr[58:], "point-cloud-to-cf-netcdf")
	now := time.Now().UTC()
	le.PutUint16(hdr[90:], uint16(now.YearDay()))
	le.PutUint16(hdr[92:], uint16(now.Year()))
	le.PutUint16(hdr[94:], uint16(headerSize))

	vlrBytes := 0
	vlrCount := 0
	if wkt != "" {
		vlrBytes = 54 + len(wkt) + 1
		vlrCount = 1
	}
	le.PutUint32(hdr[96:], uint32(headerSize+vlrBytes))
	le.PutUint32(hdr[100:], uint32(vlrCount))
	hdr[104] = w.cfg.PointFormat
	le.PutUint16(hdr[105:], uint16(w.recLen))
	for i := 0; i < 3; i++ {
		le.PutUint64(hdr[131+8*i:], math.Float64bits(w.cfg.Scale[i]))
	}
	if _, err := w.bw.Write(hdr); err != nil {
		return fmt.Errorf("las: writing header: %w", err)
	}
	if wkt != "" {
		vlr := make([]byte, 54)
		copy(vlr[2:], wktUserID)
		le.PutUint16(vlr[18:], wktRecordID)
		le.PutUint16(vlr[20:], uint16(len(wkt)+1))
		copy(vlr[22:], "coordinate system WKT")
		if _, err := w.bw.Write(vlr); err != nil {
			return fmt.Errorf("las: writing VLR: %w", err)
		}
		if _, err := w.bw.WriteString(wkt); err != nil {
			return fmt.Errorf("las: writing VLR payload: %w", err)
		}
		if err := w.bw.WriteByte(0); err != nil {
			return fmt.Errorf("las: writing VLR payload: %w", err)
		}
	}
	return nil
}

// Fields returns the column names the configured point format consumes.
func (w *Writer) Fields() []string { return w.fields }

// Append encodes one chunk of records. The chunk must carry x, y and z
// columns; remaining format columns are zero-filled when absent.
func (w *Writer) Append(chunk *point.Chunk) error {
	n := chunk.Len()
	if n == 0 {
		return nil
	}
	cols := make([][]float64, len(w.fields))
	for i, name := range w.fields {
		cols[i] = chunk.Column(name)
		if cols[i] == nil && i < 3 {
			return fmt.Errorf("las: chunk is missing column %q", name)
		}
	}
	if !w.haveFirst {
		for i := 0; i < 3; i++ {
			w.offset[i] = math.Floor(cols[i][0])
		}
		w.haveFirst = true
	}
	le := binary.LittleEndian
	rec := make([]byte, w.recLen)
	for row := 0; row < n; row++ {
		for i := range rec {
			rec[i] = 0
		}
		for i := 0; i < 3; i++ {
			v := cols[i][row]
			if v < w.min[i] {
				w.min[i] = v
			}
			if v > w.max[i] {
				w.max[i] = v
			}
			le.PutUint32(rec[4*i:], uint32(int32(math.Round((v-w.offset[i])/w.cfg.Scale[i]))))
		}
		if col := cols[3]; col != nil {
			le.PutUint16(rec[12:], clampU16(col[row]))
		}
		k := 4
		if formatHasTime(w.cfg.PointFormat) {
			if col := cols[k]; col != nil {
				le.PutUint64(rec[20:], math.Float64bits(col[row]))
			}
			k++
		}
		if formatHasColor(w.cfg.PointFormat) {
			base := 20
			if formatHasTime(w.cfg.PointFormat) {
				base = 28
			}
			for i := 0; i < 3; i++ {
				if col := cols[k+i]; col != nil {
					le.PutUint16(rec[base+2*i:], clampU16(col[row]))
				}
			}
		}
		if _, err := w.bw.Write(rec); err != nil {
			return fmt.Errorf("las: writing point %d: %w", w.count+int64(row), err)
		}
	}
	w.count += int64(n)
	return nil
}

func clampU16(v float64) uint16 {
	r := math.Round(v)
	if r < 0 {
		return 0
	}
	if r > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(r)
}

// Close flushes buffered records and patches the record count, the
// coordinate offsets, and the bounding box into the header.
func (w *Writer) Close() error {
	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("las: flushing: %w", err)
	}
	le := binary.LittleEndian
	buf := make([]byte, 8)
	legacy := w.count
	if w.cfg.Version == "1.4" {
		le.PutUint64(buf, uint64(w.count))
		if _, err := w.f.WriteAt(buf, 247); err != nil {
			w.f.Close()
			return fmt.Errorf("las: patching count: %w", err)
		}
		if legacy > math.MaxUint32 {
			legacy = 0
		}
	}
	le.PutUint32(buf, uint32(legacy))
	if _, err := w.f.WriteAt(buf[:4], 107); err != nil {
		w.f.Close()
		return fmt.Errorf("las: patching count: %w", err)
	}
	offs := make([]byte, 24)
	for i := 0; i < 3; i++ {
		le.PutUint64(offs[8*i:], math.Float64bits(w.offset[i]))
	}
	if _, err := w.f.WriteAt(offs, 155); err != nil {
		w.f.Close()
		return fmt.Errorf("las: patching offsets: %w", err)
	}
	bbox := make([]byte, 48)
	for i := 0; i < 3; i++ {
		lo, hi := w.min[i], w.max[i]
		if w.count == 0 {
			lo, hi = 0, 0
		}
		le.PutUint64(bbox[16*i:], math.Float64bits(hi))
		le.PutUint64(bbox[16*i+8:], math.Float64bits(lo))
	}
	if _, err := w.f.WriteAt(bbox, 179); err != nil {
		w.f.Close()
		return fmt.Errorf("las: patching bounds: %w", err)
	}
	return w.f.Close()
}

package ncpoint

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/ctessum/cdf"

	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/acdd"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/crs"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/point"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/schema"
)

// CRSVarName is the name of the spatial reference variable.
const CRSVarName = "crs"

// VarDef describes one point variable of the output file.
type VarDef struct {
	Name  string
	DType schema.DType
	Attrs []schema.Attr
}

// Writer streams point records into a NetCDF classic file along the record
// dimension. Records are appended chunk by chunk; the composed global
// attributes are fixed into the header at Finalize.
type Writer struct {
	path      string
	copyBatch int

	ff   *os.File
	f    *cdf.File
	vars []VarDef
	desc *crs.Descriptor
	n    int
	done bool
}

// NewWriter creates (or truncates) the target file and writes a header
// defining the record dimension and one variable per definition. The caller
// must have finished all pre-flight resolution before calling this: from
// here on the target is clobbered.
func NewWriter(path string, vars []VarDef, desc *crs.Descriptor, copyBatch int) (*Writer, error) {
	if copyBatch <= 0 {
		copyBatch = 1 << 20
	}
	w := &Writer{path: path, vars: vars, desc: desc, copyBatch: copyBatch}

	h := cdf.NewHeader([]string{DimName}, []int{0})
	for _, v := range vars {
		h.AddVariable(v.Name, []string{DimName}, cdfPrototype(v.DType))
		for _, a := range v.Attrs {
			h.AddAttribute(v.Name, a.Name, attrValue(a.Value))
		}
		if desc != nil {
			h.AddAttribute(v.Name, "grid_mapping", CRSVarName)
		}
	}
	if desc != nil {
		addCRSVariable(h, desc)
	}
	h.Define()

	ff, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("ncpoint: creating %s: %w", path, err)
	}
	f, err := cdf.Create(ff, h)
	if err != nil {
		ff.Close()
		return nil, fmt.Errorf("ncpoint: writing header: %w", err)
	}
	w.ff, w.f = ff, f
	if desc != nil {
		// The strider reports io.EOF when a write lands exactly on a fixed
		// variable's last byte, which a scalar write always does.
		cw := f.Writer(CRSVarName, nil, nil)
		if _, err := cw.Write([]int32{0}); err != nil && err != io.EOF {
			ff.Close()
			return nil, fmt.Errorf("ncpoint: writing %s variable: %w", CRSVarName, err)
		}
	}
	return w, nil
}

func addCRSVariable(h *cdf.Header, desc *crs.Descriptor) {
	h.AddVariable(CRSVarName, nil, []int32{0})
	h.AddAttribute(CRSVarName, "long_name", "coordinate reference system")
	h.AddAttribute(CRSVarName, "spatial_ref", desc.String())
	if desc.Definition != "" {
		h.AddAttribute(CRSVarName, "proj4text", desc.Definition)
	}
	if desc.Code != 0 {
		h.AddAttribute(CRSVarName, "epsg_code", []int32{int32(desc.Code)})
	}
}

// Append writes one chunk to the end of the record dimension. Chunks must
// contain every defined variable.
func (w *Writer) Append(chunk *point.Chunk) error {
	n := chunk.Len()
	if n == 0 {
		return nil
	}
	for _, v := range w.vars {
		col := chunk.Column(v.Name)
		if col == nil {
			return fmt.Errorf("ncpoint: chunk is missing variable %s", v.Name)
		}
		cw := w.f.Writer(v.Name, []int{w.n}, []int{w.n + n})
		if _, err := cw.Write(packColumn(col, v.DType)); err != nil {
			return fmt.Errorf("ncpoint: appending %d records to %s: %w", n, v.Name, err)
		}
	}
	w.n += n
	return nil
}

// Len returns the number of records appended so far.
func (w *Writer) Len() int { return w.n }

// Finalize fixes the record count, then rewrites the file with the composed
// global attributes in the header and atomically replaces the target.
// NetCDF classic keeps attributes ahead of the data, so attributes composed
// after streaming require one chunk-wise copy of the records.
func (w *Writer) Finalize(attrs *acdd.Set) error {
	if w.done {
		return fmt.Errorf("ncpoint: writer already finalized")
	}
	w.done = true
	if err := cdf.UpdateNumRecs(w.ff); err != nil {
		w.ff.Close()
		return fmt.Errorf("ncpoint: updating record count: %w", err)
	}
	if err := w.ff.Close(); err != nil {
		return fmt.Errorf("ncpoint: closing %s: %w", w.path, err)
	}
	if err := w.rewriteWithAttrs(attrs); err != nil {
		return err
	}
	return nil
}

// Close releases the underlying file without finalizing. Used on abort;
// whatever chunks were flushed stay on disk.
func (w *Writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	cdf.UpdateNumRecs(w.ff)
	return w.ff.Close()
}

func (w *Writer) rewriteWithAttrs(attrs *acdd.Set) error {
	rf, err := os.Open(w.path)
	if err != nil {
		return fmt.Errorf("ncpoint: reopening %s: %w", w.path, err)
	}
	defer rf.Close()
	old, err := cdf.Open(rf)
	if err != nil {
		return fmt.Errorf("ncpoint: reopening %s: %w", w.path, err)
	}

	h := cdf.NewHeader([]string{DimName}, []int{0})
	for _, v := range w.vars {
		h.AddVariable(v.Name, []string{DimName}, cdfPrototype(v.DType))
		for _, a := range v.Attrs {
			h.AddAttribute(v.Name, a.Name, attrValue(a.Value))
		}
		if w.desc != nil {
			h.AddAttribute(v.Name, "grid_mapping", CRSVarName)
		}
	}
	if w.desc != nil {
		addCRSVariable(h, w.desc)
	}
	for _, a := range attrs.Attributes() {
		if a.Value == nil {
			continue
		}
		h.AddAttribute("", a.Key, attrValue(a.Value))
	}
	h.Define()

	tmp := w.path + ".tmp"
	tf, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("ncpoint: creating %s: %w", tmp, err)
	}
	defer func() {
		tf.Close()
		os.Remove(tmp)
	}()
	nf, err := cdf.Create(tf, h)
	if err != nil {
		return fmt.Errorf("ncpoint: writing final header: %w", err)
	}

	if w.desc != nil {
		cw := nf.Writer(CRSVarName, nil, nil)
		if _, err := cw.Write([]int32{0}); err != nil && err != io.EOF {
			return fmt.Errorf("ncpoint: writing %s variable: %w", CRSVarName, err)
		}
	}
	for _, v := range w.vars {
		if err := w.copyVariable(old, nf, v); err != nil {
			return err
		}
	}
	if err := cdf.UpdateNumRecs(tf); err != nil {
		return fmt.Errorf("ncpoint: updating final record count: %w", err)
	}
	if err := tf.Close(); err != nil {
		return fmt.Errorf("ncpoint: closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return fmt.Errorf("ncpoint: replacing %s: %w", w.path, err)
	}
	return nil
}

// copyVariable streams one record variable between files in bounded
// windows.
func (w *Writer) copyVariable(src, dst *cdf.File, v VarDef) error {
	for begin := 0; begin < w.n; begin += w.copyBatch {
		end := begin + w.copyBatch
		if end > w.n {
			end = w.n
		}
		buf := cdfBuffer(v.DType, end-begin)
		r := src.Reader(v.Name, []int{begin}, []int{end})
		if _, err := r.Read(buf); err != nil {
			return fmt.Errorf("ncpoint: copying %s [%d:%d]: %w", v.Name, begin, end, err)
		}
		cw := dst.Writer(v.Name, []int{begin}, []int{end})
		if _, err := cw.Write(buf); err != nil {
			return fmt.Errorf("ncpoint: copying %s [%d:%d]: %w", v.Name, begin, end, err)
		}
	}
	return nil
}

// attrValue converts an attribute value to the representation the cdf
// library writes: strings as-is, numbers as slices.
func attrValue(v any) any {
	switch vv := v.(type) {
	case string:
		return vv
	case float64:
		return []float64{vv}
	case []float64:
		return vv
	case []int32:
		return vv
	case int:
		return []int32{int32(vv)}
	default:
		return fmt.Sprint(vv)
	}
}

// cdfPrototype returns a prototype slice selecting the NetCDF classic
// storage type for a dtype. Classic files have no unsigned kinds, and the
// cdf library's byte type is unsigned, so every 8-bit and unsigned dtype
// widens to the next signed type that holds its range.
func cdfPrototype(d schema.DType) any {
	switch d {
	case schema.Float32:
		return []float32{0}
	case schema.Float64:
		return []float64{0}
	case schema.Int8, schema.UInt8, schema.Int16:
		return []int16{0}
	case schema.UInt16, schema.Int32:
		return []int32{0}
	default:
		return []float64{0}
	}
}

func cdfBuffer(d schema.DType, n int) any {
	switch cdfPrototype(d).(type) {
	case []float32:
		return make([]float32, n)
	case []float64:
		return make([]float64, n)
	case []int16:
		return make([]int16, n)
	default:
		return make([]int32, n)
	}
}

// packColumn narrows a float64 column to the storage type for d.
func packColumn(col []float64, d schema.DType) any {
	switch cdfPrototype(d).(type) {
	case []float32:
		out := make([]float32, len(col))
		for i, v := range col {
			out[i] = float32(v)
		}
		return out
	case []float64:
		out := make([]float64, len(col))
		copy(out, col)
		return out
	case []int16:
		out := make([]int16, len(col))
		for i, v := range col {
			out[i] = int16(math.Round(v))
		}
		return out
	default:
		out := make([]int32, len(col))
		for i, v := range col {
			out[i] = int32(math.Round(v))
		}
		return out
	}
}

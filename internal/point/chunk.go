// Package point holds the transient in-memory representation of a batch of
// point records as it moves between a decoder, the conversion pipeline, and
// an encoder.
package point

import "fmt"

// Chunk is a bounded, ordered batch of point records in columnar form.
// Every column has the same length. A chunk lives for exactly one pipeline
// iteration; values are held as float64 and narrowed to each variable's
// declared type at the encoding boundary.
type Chunk struct {
	fields []string
	cols   map[string][]float64
}

// NewChunk creates an empty chunk with one column per field, each with
// capacity for n records.
func NewChunk(fields []string, n int) *Chunk {
	c := &Chunk{
		fields: append([]string(nil), fields...),
		cols:   make(map[string][]float64, len(fields)),
	}
	for _, f := range c.fields {
		c.cols[f] = make([]float64, 0, n)
	}
	return c
}

// Fields returns the column names in their declared order.
func (c *Chunk) Fields() []string { return c.fields }

// Len returns the number of records in the chunk.
func (c *Chunk) Len() int {
	if len(c.fields) == 0 {
		return 0
	}
	return len(c.cols[c.fields[0]])
}

// Column returns the values for the named field.
func (c *Chunk) Column(name string) []float64 { return c.cols[name] }

// SetColumn replaces the values for the named field, adding the column if it
// is not present yet.
func (c *Chunk) SetColumn(name string, vals []float64) {
	if _, ok := c.cols[name]; !ok {
		c.fields = append(c.fields, name)
	}
	c.cols[name] = vals
}

// Append adds one record given in field order. It is the decoder-side
// counterpart of Column and must receive exactly one value per field.
func (c *Chunk) Append(vals ...float64) error {
	if len(vals) != len(c.fields) {
		return fmt.Errorf("point: record has %d values, chunk has %d fields", len(vals), len(c.fields))
	}
	for i, f := range c.fields {
		c.cols[f] = append(c.cols[f], vals[i])
	}
	return nil
}

// Rename changes a column's name, keeping its position in the field order.
func (c *Chunk) Rename(from, to string) {
	if from == to {
		return
	}
	vals, ok := c.cols[from]
	if !ok {
		return
	}
	delete(c.cols, from)
	c.cols[to] = vals
	for i, f := range c.fields {
		if f == from {
			c.fields[i] = to
			return
		}
	}
}

// Drop removes a column.
func (c *Chunk) Drop(name string) {
	if _, ok := c.cols[name]; !ok {
		return
	}
	delete(c.cols, name)
	for i, f := range c.fields {
		if f == name {
			c.fields = append(c.fields[:i], c.fields[i+1:]...)
			return
		}
	}
}

// Reset empties all columns, keeping their capacity for reuse.
func (c *Chunk) Reset() {
	for f, col := range c.cols {
		c.cols[f] = col[:0]
	}
}

package acdd

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ctessum/geom/proj"
	"gonum.org/v1/gonum/floats"

	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/point"
)

// protected keys are always computed from the data or the run itself; a
// user-supplied value for one of them is discarded at finalize.
var protected = []string{
	"geospatial_lat_min", "geospatial_lat_max",
	"geospatial_lon_min", "geospatial_lon_max",
	"geospatial_vertical_min", "geospatial_vertical_max",
	"date_created", "history",
}

// strictProtected extends the protected set in the strict configuration.
var strictProtected = []string{"featureType", "Conventions"}

const (
	conventions = "CF-1.8, ACDD-1.3"
	featureType = "point"
)

// Compositor merges the user attribute tier with values computed while
// chunks stream through a conversion. Update is called once per chunk;
// Finalize once at the end. The full coordinate set is never buffered.
type Compositor struct {
	logger  *slog.Logger
	user    *Set
	source  string
	strict  bool
	created time.Time

	// toWGS84 converts planar x/y to longitude/latitude for the extent
	// reduction. Nil when the data already carries geographic coordinates.
	toWGS84 proj.Transformer

	latMin, latMax   float64
	lonMin, lonMax   float64
	vertMin, vertMax float64
	haveGeo, haveVert bool
}

// NewCompositor creates a compositor for one conversion job. source is the
// input filename recorded in the history trail. toWGS84 may be nil when
// latitude/longitude columns are present directly.
func NewCompositor(logger *slog.Logger, user *Set, source string, strict bool, toWGS84 proj.Transformer) *Compositor {
	if user == nil {
		user = &Set{}
	}
	return &Compositor{
		logger:  logger,
		user:    user,
		source:  source,
		strict:  strict,
		created: time.Now().UTC(),
		toWGS84: toWGS84,
		latMin:  math.Inf(1), latMax: math.Inf(-1),
		lonMin: math.Inf(1), lonMax: math.Inf(-1),
		vertMin: math.Inf(1), vertMax: math.Inf(-1),
	}
}

// Update folds one chunk into the running spatial extent.
func (c *Compositor) Update(chunk *point.Chunk) error {
	if chunk.Len() == 0 {
		return nil
	}
	lat, lon := chunk.Column("latitude"), chunk.Column("longitude")
	switch {
	case lat != nil && lon != nil:
		c.latMin = math.Min(c.latMin, floats.Min(lat))
		c.latMax = math.Max(c.latMax, floats.Max(lat))
		c.lonMin = math.Min(c.lonMin, floats.Min(lon))
		c.lonMax = math.Max(c.lonMax, floats.Max(lon))
		c.haveGeo = true
	case c.toWGS84 != nil:
		x, y := chunk.Column("x"), chunk.Column("y")
		if x == nil || y == nil {
			break
		}
		for i := range x {
			lo, la, err := c.toWGS84(x[i], y[i])
			if err != nil {
				return fmt.Errorf("acdd: transforming extent to WGS84: %w", err)
			}
			c.lonMin = math.Min(c.lonMin, lo)
			c.lonMax = math.Max(c.lonMax, lo)
			c.latMin = math.Min(c.latMin, la)
			c.latMax = math.Max(c.latMax, la)
		}
		c.haveGeo = true
	}

	vert := chunk.Column("altitude")
	if vert == nil {
		vert = chunk.Column("z")
	}
	if vert != nil {
		c.vertMin = math.Min(c.vertMin, floats.Min(vert))
		c.vertMax = math.Max(c.vertMax, floats.Max(vert))
		c.haveVert = true
	}
	return nil
}

// Finalize merges the user tier with the computed values and returns the
// attribute set to write. Computed values win for the protected keys.
// Missing required attributes are reported as warnings only.
func (c *Compositor) Finalize() *Set {
	out := c.user.Clone()

	attrs := out.Attributes()
	for i := range attrs {
		if attrs[i].Value == nil || !c.isProtected(attrs[i].Key) {
			continue
		}
		c.logger.Warn("user value for protected attribute discarded, computed value wins", "attribute", attrs[i].Key)
		attrs[i].Value = nil
	}

	if c.haveGeo {
		out.Set("geospatial_lat_min", c.latMin)
		out.Set("geospatial_lat_max", c.latMax)
		out.Set("geospatial_lon_min", c.lonMin)
		out.Set("geospatial_lon_max", c.lonMax)
	}
	if c.haveVert {
		out.Set("geospatial_vertical_min", c.vertMin)
		out.Set("geospatial_vertical_max", c.vertMax)
	}

	now := c.created.Format("2006-01-02T15:04:05Z")
	out.Set("date_created", now)
	line := fmt.Sprintf("%s: converted %s to CF-NetCDF", now, c.source)
	if prev, ok := c.user.Get("history").(string); ok && prev != "" {
		out.Set("history", prev+"\n"+line)
	} else {
		out.Set("history", line)
	}

	if c.strict || out.Get("Conventions") == nil {
		out.Set("Conventions", conventions)
	}
	if c.strict || out.Get("featureType") == nil {
		out.Set("featureType", featureType)
	}

	for _, a := range out.Attributes() {
		if a.Requirement == Required && a.Value == nil && !c.isProtected(a.Key) {
			c.logger.Warn("required global attribute has no value", "attribute", a.Key)
		}
	}
	return out
}

func (c *Compositor) isProtected(key string) bool {
	for _, k := range protected {
		if k == key {
			return true
		}
	}
	if c.strict {
		for _, k := range strictProtected {
			if k == key {
				return true
			}
		}
	}
	return false
}

// Package crs resolves the coordinate reference system for a conversion job
// and exposes the transforms needed to derive geographic bounding attributes
// from planar coordinates.
package crs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ctessum/geom/proj"
)

// ErrMissing is returned when coordinates are planar and no CRS is declared
// anywhere: without a datum the geographic bounding attributes of the output
// cannot be computed.
var ErrMissing = errors.New("crs: planar coordinates but no CRS configured or declared in the input")

// Descriptor is the resolved coordinate reference system for one job.
// Immutable once resolved.
type Descriptor struct {
	// Authority and Code identify the CRS when it was given as an
	// authority code, e.g. EPSG 4326. Code is zero for raw proj4 or WKT
	// definitions.
	Authority string
	Code      int
	// Definition is the proj4 or WKT string the descriptor was parsed
	// from, suitable for writing into the output's spatial reference
	// variable.
	Definition string

	sr *proj.SR
}

// IsGeographic reports whether coordinates in this CRS are angular
// (degrees) rather than planar (meters).
func (d *Descriptor) IsGeographic() bool { return d.sr.Name == "longlat" }

// String returns the authority form when known, else the raw definition.
func (d *Descriptor) String() string {
	if d.Code != 0 {
		return fmt.Sprintf("%s:%d", d.Authority, d.Code)
	}
	return d.Definition
}

// ToWGS84 returns a transform from this CRS to geographic WGS84
// coordinates. The transform takes (x, y) and returns (longitude,
// latitude).
func (d *Descriptor) ToWGS84() (proj.Transformer, error) {
	dst, err := proj.Parse(wgs84)
	if err != nil {
		return nil, fmt.Errorf("crs: %w", err)
	}
	t, err := d.sr.NewTransform(dst)
	if err != nil {
		return nil, fmt.Errorf("crs: building transform: %w", err)
	}
	return t, nil
}

const wgs84 = "+proj=longlat +datum=WGS84 +no_defs"

// WGS84 returns the default geographic descriptor used when the input
// already carries latitude/longitude fields and nothing else is declared.
func WGS84() *Descriptor {
	d, err := FromAuthority("EPSG", 4326)
	if err != nil {
		panic(err) // the built-in table always resolves 4326
	}
	return d
}

// FromDefinition parses a proj4 or WKT CRS definition.
func FromDefinition(def string) (*Descriptor, error) {
	sr, err := proj.Parse(def)
	if err != nil {
		return nil, fmt.Errorf("crs: parsing %q: %w", def, err)
	}
	return &Descriptor{Definition: def, sr: sr}, nil
}

// FromAuthority resolves an authority code against the built-in EPSG table.
func FromAuthority(authority string, code int) (*Descriptor, error) {
	if !strings.EqualFold(authority, "EPSG") {
		return nil, fmt.Errorf("crs: unsupported authority %q", authority)
	}
	def, err := epsgDefinition(code)
	if err != nil {
		return nil, err
	}
	sr, err := proj.Parse(def)
	if err != nil {
		return nil, fmt.Errorf("crs: EPSG:%d: %w", code, err)
	}
	return &Descriptor{Authority: "EPSG", Code: code, Definition: def, sr: sr}, nil
}

// epsgDefinition maps the EPSG codes seen in survey and scanner data to
// proj4 definitions. Not a full EPSG database; unlisted codes must be given
// as proj4 or WKT instead.
func epsgDefinition(code int) (string, error) {
	switch {
	case code == 4326:
		return wgs84, nil
	case code == 4258:
		return "+proj=longlat +ellps=GRS80 +towgs84=0,0,0 +no_defs", nil
	case code == 4269:
		return "+proj=longlat +datum=NAD83 +no_defs", nil
	case code == 4267:
		return "+proj=longlat +datum=NAD27 +no_defs", nil
	case code == 3857:
		return "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +nadgrids=@null +no_defs", nil
	case code >= 32601 && code <= 32660: // WGS84 UTM north
		return fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", code-32600), nil
	case code >= 32701 && code <= 32760: // WGS84 UTM south
		return fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", code-32700), nil
	case code >= 25828 && code <= 25838: // ETRS89 UTM
		return fmt.Sprintf("+proj=utm +zone=%d +ellps=GRS80 +towgs84=0,0,0 +units=m +no_defs", code-25800), nil
	default:
		return "", fmt.Errorf("crs: EPSG:%d is not in the built-in table; supply a proj4 or WKT definition", code)
	}
}

// ParseDeclaration parses a CRS declaration found in input file metadata.
// Accepted forms are an authority code ("EPSG:32633"), a proj4 string, or
// WKT.
func ParseDeclaration(decl string) (*Descriptor, error) {
	decl = strings.TrimSpace(decl)
	if decl == "" {
		return nil, fmt.Errorf("crs: empty declaration")
	}
	if rest, ok := cutPrefixFold(decl, "EPSG:"); ok {
		code, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil {
			return nil, fmt.Errorf("crs: bad EPSG code in %q", decl)
		}
		return FromAuthority("EPSG", code)
	}
	return FromDefinition(decl)
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return "", false
}

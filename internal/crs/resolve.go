package crs

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is an explicit CRS configuration supplied by the caller. Exactly
// one of the three forms should be filled in.
type Config struct {
	Authority string `yaml:"authority"`
	Code      int    `yaml:"code"`
	Proj4     string `yaml:"proj4"`
	WKT       string `yaml:"wkt"`
}

// LoadConfig reads a CRS configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("crs: reading config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("crs: parsing config: %w", err)
	}
	return &c, nil
}

// Descriptor resolves the configuration into a descriptor.
func (c *Config) Descriptor() (*Descriptor, error) {
	switch {
	case c.Code != 0:
		auth := c.Authority
		if auth == "" {
			auth = "EPSG"
		}
		return FromAuthority(auth, c.Code)
	case c.Proj4 != "":
		return FromDefinition(c.Proj4)
	case c.WKT != "":
		return FromDefinition(c.WKT)
	default:
		return nil, fmt.Errorf("crs: config has neither an authority code, proj4, nor WKT definition")
	}
}

// declarationKeys are the metadata keys recognized as CRS declarations in
// input file headers. PLY files written by this converter carry
// "crs_info=..." comment segments; other producers use "crs" or "epsg".
var declarationKeys = []string{"crs_info", "crs", "epsg", "datum"}

// FromMetadata scans header metadata lines (PLY comments, LAS WKT records)
// for a CRS declaration. It returns (nil, nil) when no recognized key is
// present; a declaration that is present but unparseable is an error.
func FromMetadata(lines []string) (*Descriptor, error) {
	for _, line := range lines {
		for _, seg := range strings.Split(line, ";") {
			seg = strings.TrimSpace(seg)
			if seg == "" {
				continue
			}
			// WKT records, proj4 definitions, and bare authority codes
			// are full declarations rather than key=value pairs.
			if strings.HasPrefix(seg, "GEOGCS") || strings.HasPrefix(seg, "PROJCS") ||
				strings.HasPrefix(seg, "+proj=") {
				return FromDefinition(seg)
			}
			if _, ok := cutPrefixFold(seg, "EPSG:"); ok {
				return ParseDeclaration(seg)
			}
			key, val, ok := strings.Cut(seg, "=")
			if !ok {
				continue
			}
			key = strings.ToLower(strings.TrimSpace(key))
			for _, want := range declarationKeys {
				if key != want {
					continue
				}
				if key == "epsg" {
					val = "EPSG:" + val
				}
				d, err := ParseDeclaration(strings.TrimSpace(val))
				if err != nil {
					return nil, fmt.Errorf("crs: declaration %q in input metadata: %w", seg, err)
				}
				return d, nil
			}
		}
	}
	return nil, nil
}

// Resolve produces the single CRS descriptor for a job. Priority: explicit
// configuration, then a declaration embedded in the input's metadata, then
// geographic WGS84 when the coordinates in use are latitude/longitude.
// Planar coordinates with no declared CRS fail with ErrMissing.
func Resolve(cfg *Config, metadata []string, hasLatLon bool) (*Descriptor, error) {
	if cfg != nil {
		return cfg.Descriptor()
	}
	d, err := FromMetadata(metadata)
	if err != nil {
		return nil, err
	}
	if d != nil {
		return d, nil
	}
	if hasLatLon {
		return WGS84(), nil
	}
	return nil, ErrMissing
}

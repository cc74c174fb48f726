// Package mapping reconciles the field names actually present in an input
// file against the variable registry and resolves coordinate-axis
// semantics.
package mapping

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/crs"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/schema"
)

// AxisRole is the semantic meaning assigned to a coordinate field.
type AxisRole string

const (
	RoleNone      AxisRole = ""
	RoleLongitude AxisRole = "longitude"
	RoleLatitude  AxisRole = "latitude"
	RoleAltitude  AxisRole = "altitude"
	RoleX         AxisRole = "x"
	RoleY         AxisRole = "y"
	RoleZ         AxisRole = "z"
)

// ResolvedField binds one input field to a canonical output variable.
type ResolvedField struct {
	// Source is the field's name in the input file.
	Source string
	// Canonical is the output variable name after axis mapping.
	Canonical string
	// Role is the axis semantic of the field, RoleNone for data fields.
	Role AxisRole
	// Spec is the registry entry for Canonical.
	Spec *schema.VariableSpec
}

// AxisOverride is an explicit caller-supplied assignment of axis roles to
// the scanner X/Y/Z coordinates. When used, all three must be given,
// distinct, and cover exactly latitude, longitude, and altitude.
type AxisOverride struct {
	X, Y, Z AxisRole
}

// AxisError reports an invalid axis override. It is always raised before
// any data is read.
type AxisError struct {
	Reason string
}

func (e *AxisError) Error() string { return "mapping: invalid axis mapping: " + e.Reason }

// Validate checks the override covers exactly {latitude, longitude,
// altitude} with no duplicates.
func (o *AxisOverride) Validate() error {
	roles := []AxisRole{o.X, o.Y, o.Z}
	covered := make(map[AxisRole]bool, 3)
	for _, r := range roles {
		switch r {
		case RoleLatitude, RoleLongitude, RoleAltitude:
		case RoleNone:
			return &AxisError{Reason: "all three of x, y, and z must be assigned"}
		default:
			return &AxisError{Reason: fmt.Sprintf("%q is not one of latitude, longitude, altitude", r)}
		}
		if covered[r] {
			return &AxisError{Reason: fmt.Sprintf("role %q assigned to more than one axis", r)}
		}
		covered[r] = true
	}
	return nil
}

// ParseAxisOverride builds an override from the three coordinate role
// names, as given on a command line. All empty means no override; anything
// else is validated strictly.
func ParseAxisOverride(x, y, z string) (*AxisOverride, error) {
	if x == "" && y == "" && z == "" {
		return nil, nil
	}
	o := &AxisOverride{
		X: AxisRole(strings.ToLower(x)),
		Y: AxisRole(strings.ToLower(y)),
		Z: AxisRole(strings.ToLower(z)),
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Resolution is the immutable outcome of field resolution for one job.
type Resolution struct {
	// Fields holds the resolved fields in input order. Each canonical
	// name appears at most once.
	Fields []ResolvedField
	// Dropped lists input fields that matched no registry entry.
	Dropped []string
}

// Canonical returns the resolved field for an output variable name.
func (r *Resolution) Canonical(name string) (ResolvedField, bool) {
	for _, f := range r.Fields {
		if f.Canonical == name {
			return f, true
		}
	}
	return ResolvedField{}, false
}

// HasGeographic reports whether both latitude and longitude are among the
// resolved output variables.
func (r *Resolution) HasGeographic() bool {
	_, lat := r.Canonical("latitude")
	_, lon := r.Canonical("longitude")
	return lat && lon
}

// ResolveNames matches input field names against the registry. Unmatched
// fields are dropped with a warning; a field name matching more than one
// registry entry is reported and the first entry wins; a second input field
// mapping to an already-claimed canonical name is dropped with a warning.
// The outcome depends only on the registry order and the input field order.
func ResolveNames(logger *slog.Logger, reg *schema.Registry, fields []string) *Resolution {
	res := &Resolution{}
	claimed := make(map[string]string) // canonical -> source
	for _, f := range fields {
		specs := reg.Match(f)
		if len(specs) == 0 {
			logger.Warn("input field matches no registry entry, dropping", "field", f)
			res.Dropped = append(res.Dropped, f)
			continue
		}
		if len(specs) > 1 {
			names := make([]string, len(specs))
			for i, s := range specs {
				names[i] = s.Name
			}
			logger.Warn("input field matches multiple registry entries, first wins",
				"field", f, "matches", names)
		}
		spec := specs[0]
		if src, ok := claimed[spec.Name]; ok {
			logger.Warn("canonical variable already mapped, dropping duplicate input field",
				"field", f, "canonical", spec.Name, "mapped_from", src)
			res.Dropped = append(res.Dropped, f)
			continue
		}
		claimed[spec.Name] = f
		res.Fields = append(res.Fields, ResolvedField{
			Source:    f,
			Canonical: spec.Name,
			Role:      RoleNone,
			Spec:      spec,
		})
	}
	return res
}

// ResolveAxes assigns axis roles to the resolved fields. Precedence:
// explicit override, then fields that already resolved to geographic
// coordinates, then the CRS kind: a geographic CRS maps scanner X/Y/Z onto
// longitude/latitude/altitude, a planar one keeps them as x/y/z with no
// geographic role.
func ResolveAxes(reg *schema.Registry, res *Resolution, override *AxisOverride, desc *crs.Descriptor) error {
	if override != nil {
		if err := override.Validate(); err != nil {
			return err
		}
		assignments := []struct {
			axis string
			role AxisRole
		}{{"x", override.X}, {"y", override.Y}, {"z", override.Z}}
		for _, a := range assignments {
			if err := reassign(reg, res, a.axis, a.role); err != nil {
				return err
			}
		}
		markGeographicRoles(res)
		return nil
	}

	if res.HasGeographic() {
		markGeographicRoles(res)
		return nil
	}

	if desc.IsGeographic() {
		assignments := []struct {
			axis string
			role AxisRole
		}{{"x", RoleLongitude}, {"y", RoleLatitude}, {"z", RoleAltitude}}
		for _, a := range assignments {
			if _, ok := res.Canonical(a.axis); !ok {
				continue
			}
			if err := reassign(reg, res, a.axis, a.role); err != nil {
				return err
			}
		}
		markGeographicRoles(res)
		return nil
	}

	// Planar CRS: x/y/z keep their planar roles.
	for i := range res.Fields {
		switch res.Fields[i].Canonical {
		case "x":
			res.Fields[i].Role = RoleX
		case "y":
			res.Fields[i].Role = RoleY
		case "z":
			res.Fields[i].Role = RoleZ
		}
	}
	return nil
}

// reassign renames the field currently resolved to the canonical axis name
// onto the variable named by role, adopting that variable's registry spec.
func reassign(reg *schema.Registry, res *Resolution, axis string, role AxisRole) error {
	for i := range res.Fields {
		if res.Fields[i].Canonical != axis {
			continue
		}
		spec := reg.Lookup(string(role))
		if spec == nil {
			return &AxisError{Reason: fmt.Sprintf("registry has no %q variable", role)}
		}
		if _, taken := res.Canonical(string(role)); taken {
			return &AxisError{Reason: fmt.Sprintf("cannot map %s to %s: %s is already present in the input", axis, role, role)}
		}
		res.Fields[i].Canonical = string(role)
		res.Fields[i].Role = role
		res.Fields[i].Spec = spec
		return nil
	}
	return &AxisError{Reason: fmt.Sprintf("axis override names %s but the input has no %s coordinate", axis, axis)}
}

func markGeographicRoles(res *Resolution) {
	for i := range res.Fields {
		switch res.Fields[i].Canonical {
		case "longitude":
			res.Fields[i].Role = RoleLongitude
		case "latitude":
			res.Fields[i].Role = RoleLatitude
		case "altitude":
			res.Fields[i].Role = RoleAltitude
		}
	}
}

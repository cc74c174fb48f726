// Package ply reads and writes PLY point clouds: ASCII and binary
// little-endian vertex elements with scalar properties.
package ply

import "fmt"

// Property types in header order of preference. PLY allows both the short
// and the sized spellings; parsing accepts either, writing uses the short
// ones.
var typeSizes = map[string]int{
	"char": 1, "int8": 1,
	"uchar": 1, "uint8": 1,
	"short": 2, "int16": 2,
	"ushort": 2, "uint16": 2,
	"int": 4, "int32": 4,
	"uint": 4, "uint32": 4,
	"float": 4, "float32": 4,
	"double": 8, "float64": 8,
}

func canonicalType(t string) (string, error) {
	switch t {
	case "char", "int8":
		return "char", nil
	case "uchar", "uint8":
		return "uchar", nil
	case "short", "int16":
		return "short", nil
	case "ushort", "uint16":
		return "ushort", nil
	case "int", "int32":
		return "int", nil
	case "uint", "uint32":
		return "uint", nil
	case "float", "float32":
		return "float", nil
	case "double", "float64":
		return "double", nil
	default:
		return "", fmt.Errorf("ply: unsupported property type %q", t)
	}
}

// Property is one scalar vertex property.
type Property struct {
	Name string
	Type string
}

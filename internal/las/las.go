// Package las reads and writes LAS point clouds, point record formats 0-3.
// Coordinates are unpacked from and packed to the header's fixed-point
// scale and offset. LAZ compression is recognized but not supported.
package las

import (
	"errors"
	"fmt"
)

// ErrCompressed is returned for LAZ input: the compression codec is not
// implemented and must be undone with external tooling first.
var ErrCompressed = errors.New("las: LAZ-compressed input is not supported; decompress to LAS first")

const (
	headerSize12 = 227
	headerSize13 = 235
	headerSize14 = 375

	wktUserID   = "LASF_Projection"
	wktRecordID = 2112
)

// record lengths by point data record format.
var recordLengths = map[uint8]int{
	0: 20,
	1: 28,
	2: 26,
	3: 34,
}

func formatHasTime(f uint8) bool  { return f == 1 || f == 3 }
func formatHasColor(f uint8) bool { return f == 2 || f == 3 }

// fieldsFor returns the column names a point format produces, in record
// order.
func fieldsFor(f uint8) []string {
	fields := []string{"x", "y", "z", "intensity"}
	if formatHasTime(f) {
		fields = append(fields, "gps_time")
	}
	if formatHasColor(f) {
		fields = append(fields, "red", "green", "blue")
	}
	return fields
}

func versionOf(major, minor uint8) (string, error) {
	v := fmt.Sprintf("%d.%d", major, minor)
	switch v {
	case "1.0", "1.1", "1.2", "1.3", "1.4":
		return v, nil
	}
	return "", fmt.Errorf("las: unsupported version %s", v)
}

// Package dxf reads DXF drawing exchange text as a stream of group code /
// value records, routes them by section, and groups the records of the
// ENTITIES section into entities.
package dxf

import (
	"strconv"
	"strings"

	"github.com/NERVsystems/dxfcropmcp/pkg/geo"
)

// Group codes the cropper cares about.
const (
	// InvalidCode marks a record whose code line is not an integer.
	InvalidCode = -1

	CodeStructure = 0
	CodeName      = 2
	CodeX         = 10
	CodeX2        = 11
	CodeY         = 20
	CodeY2        = 21
	CodeZ         = 30
	CodeZ2        = 31
	CodeRadius    = 40
)

// Structural values carried by code 0 and 2 records.
const (
	MarkerSection    = "SECTION"
	MarkerEndSection = "ENDSEC"
	SectionEntities  = "ENTITIES"
)

// Record is one group code / value pair. The original lines are kept
// verbatim so the record can be written back byte for byte.
type Record struct {
	Code      int
	CodeLine  string
	ValueLine string
}

// NewRecord builds a record from its two raw lines.
func NewRecord(codeLine, valueLine string) Record {
	code, err := strconv.Atoi(strings.TrimSpace(codeLine))
	if err != nil {
		code = InvalidCode
	}
	return Record{Code: code, CodeLine: codeLine, ValueLine: valueLine}
}

// Value returns the value with surrounding whitespace removed.
func (r Record) Value() string {
	return strings.TrimSpace(r.ValueLine)
}

// Float returns the value as a number, NaN when it is not one.
func (r Record) Float() float64 {
	return geo.ParseCoordinate(r.ValueLine)
}

// IsMarker reports whether r is a code 0 record with the given value.
func (r Record) IsMarker(value string) bool {
	return r.Code == CodeStructure && r.Value() == value
}

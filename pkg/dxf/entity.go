package dxf

import "github.com/NERVsystems/dxfcropmcp/pkg/geo"

// Entity is the group of records that starts at a code 0 record inside
// the ENTITIES section, with the geometry extracted from it.
type Entity struct {
	// Type is the trimmed value of the leading code 0 record. It is empty
	// for records that appeared before any entity started.
	Type     string
	Records  []Record
	Vertices []geo.Point
	Radius   float64
}

// FirstVertex returns the entity's first vertex, typically its insertion
// point or center.
func (e *Entity) FirstVertex() (geo.Point, bool) {
	if len(e.Vertices) == 0 {
		return geo.Point{}, false
	}
	return e.Vertices[0], true
}

// Kind groups entity types by the visibility rule that applies to them.
type Kind int

const (
	// KindOther covers unknown types: polyline rule when vertices exist,
	// kept otherwise.
	KindOther Kind = iota
	// KindPolyline is tested as a chain of segments.
	KindPolyline
	// KindCircular is tested by center and radius.
	KindCircular
	// KindPoint is tested by its insertion point.
	KindPoint
)

func (k Kind) String() string {
	switch k {
	case KindPolyline:
		return "polyline"
	case KindCircular:
		return "circular"
	case KindPoint:
		return "point"
	default:
		return "other"
	}
}

var kinds = map[string]Kind{
	"LINE":       KindPolyline,
	"LWPOLYLINE": KindPolyline,
	"POLYLINE":   KindPolyline,
	"SPLINE":     KindPolyline,
	"CIRCLE":     KindCircular,
	"ARC":        KindCircular,
	"POINT":      KindPoint,
	"INSERT":     KindPoint,
	"TEXT":       KindPoint,
	"MTEXT":      KindPoint,
}

// Classify maps an entity type name to its Kind. Names are matched
// exactly; DXF writes them in upper case.
func Classify(entityType string) Kind {
	if k, ok := kinds[entityType]; ok {
		return k
	}
	return KindOther
}

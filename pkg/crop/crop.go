// Package crop removes the entities of a DXF document that do not touch a
// clip polygon and reassembles everything else unchanged.
package crop

import (
	"github.com/NERVsystems/dxfcropmcp/pkg/dxf"
	"github.com/NERVsystems/dxfcropmcp/pkg/geo"
)

// Stats counts what a crop did.
type Stats struct {
	Records       int            `json:"records"`
	PassThrough   int            `json:"pass_through"`
	Entities      int            `json:"entities"`
	Kept          int            `json:"kept"`
	Removed       int            `json:"removed"`
	KeptByType    map[string]int `json:"kept_by_type"`
	RemovedByType map[string]int `json:"removed_by_type"`
}

// Result is a cropped document and its statistics.
type Result struct {
	Document string `json:"document"`
	Stats    Stats  `json:"stats"`
}

// Retain decides whether e stays in the output for the clip polygon poly.
//
//	LINE, LWPOLYLINE, POLYLINE, SPLINE  any vertex inside or any segment crossing an edge
//	CIRCLE, ARC                         circle test on the first vertex; dropped without one
//	POINT, INSERT, TEXT, MTEXT          first vertex inside; kept without one
//	anything else                       polyline test when it has vertices; kept otherwise
func Retain(e *dxf.Entity, poly geo.Polygon) bool {
	switch dxf.Classify(e.Type) {
	case dxf.KindPolyline:
		return geo.PolylineVisible(e.Vertices, poly)
	case dxf.KindCircular:
		center, ok := e.FirstVertex()
		if !ok {
			return false
		}
		return geo.CircleVisible(center, e.Radius, poly)
	case dxf.KindPoint:
		at, ok := e.FirstVertex()
		if !ok {
			return true
		}
		return geo.PointInPolygon(at, poly)
	default:
		if len(e.Vertices) == 0 {
			return true
		}
		return geo.PolylineVisible(e.Vertices, poly)
	}
}

// filter is the dxf.Handler that writes pass-through records directly and
// buffers entity records until each entity can be judged.
type filter struct {
	poly  geo.Polygon
	out   *dxf.Writer
	acc   dxf.Accumulator
	stats Stats
}

func (f *filter) PassThrough(rec dxf.Record) {
	f.stats.Records++
	f.stats.PassThrough++
	f.out.WriteRecord(rec)
}

func (f *filter) Entity(rec dxf.Record) {
	f.stats.Records++
	f.judge(f.acc.FeedRecord(rec))
}

func (f *filter) EndEntities() {
	f.judge(f.acc.Flush())
}

func (f *filter) judge(e *dxf.Entity) {
	if e == nil {
		return
	}
	f.stats.Entities++
	if Retain(e, f.poly) {
		f.stats.Kept++
		f.stats.KeptByType[e.Type]++
		f.out.WriteEntity(e)
		return
	}
	f.stats.Removed++
	f.stats.RemovedByType[e.Type]++
}

// Crop filters the ENTITIES section of doc against poly in one pass. It
// does not check that poly is a valid ring; use Process for that.
func Crop(doc string, poly geo.Polygon) Result {
	r := dxf.NewReader(doc)
	f := &filter{
		poly: poly,
		out:  dxf.NewWriter(r.Layout()),
		stats: Stats{
			KeptByType:    map[string]int{},
			RemovedByType: map[string]int{},
		},
	}
	dxf.Walk(r, f)
	return Result{Document: f.out.String(), Stats: f.stats}
}

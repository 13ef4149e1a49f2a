package crop

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/NERVsystems/dxfcropmcp/pkg/dxf"
	"github.com/NERVsystems/dxfcropmcp/pkg/geo"
)

const (
	square     = "POLYGON ((10 10, 20 10, 20 20, 10 20, 10 10))"
	farSquare  = "POLYGON ((200 200, 210 200, 210 210, 200 210, 200 210))"
	unitBox    = "POLYGON ((0 0, 10 0, 10 10, 0 10))"
	twoPoints  = "POLYGON ((1 1, 2 2))"
	headerPart = "0\nSECTION\n2\nHEADER\n9\n$ACADVER\n1\nAC1015\n0\nENDSEC\n"
)

func lines(l ...string) string {
	return strings.Join(l, "\n") + "\n"
}

func document(entities ...string) string {
	return headerPart +
		"0\nSECTION\n2\nENTITIES\n" +
		strings.Join(entities, "") +
		"0\nENDSEC\n0\nEOF\n"
}

func line(x1, y1, x2, y2 string) string {
	return lines("0", "LINE", "8", "0", "10", x1, "20", y1, "30", "0", "11", x2, "21", y2, "31", "0")
}

func circle(x, y, r string) string {
	return lines("0", "CIRCLE", "8", "0", "10", x, "20", y, "30", "0", "40", r)
}

func mustProcess(t *testing.T, doc, clip string) Result {
	t.Helper()
	res, err := Process(doc, clip)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	return res
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name   string
		entity string
		clip   string
		kept   bool
	}{
		{"line crossing square", line("0", "0", "100", "100"), square, true},
		{"line away from square", line("0", "0", "100", "100"), farSquare, false},
		{"circle outside box", circle("50", "50", "5"), unitBox, false},
		{"circle bounds overlap box", circle("50", "50", "60"), unitBox, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := document(tt.entity)
			res := mustProcess(t, doc, tt.clip)

			want := document()
			if tt.kept {
				want = doc
			}
			if res.Document != want {
				t.Errorf("Document =\n%q\nwant\n%q", res.Document, want)
			}
			if res.Stats.Entities != 1 {
				t.Errorf("Entities = %d, want 1", res.Stats.Entities)
			}
		})
	}
}

func TestProcessInvalidGeometry(t *testing.T) {
	for _, clip := range []string{twoPoints, "", "not a polygon", "POLYGON ((0 0, 1 0, 1 1), (0 0, 1 0, 1 1))"} {
		res, err := Process(document(line("0", "0", "1", "1")), clip)
		if !errors.Is(err, ErrInvalidGeometry) {
			t.Errorf("Process(%q) error = %v, want ErrInvalidGeometry", clip, err)
		}
		if res.Document != "" {
			t.Errorf("Process(%q) produced output on invalid geometry", clip)
		}
	}
}

func TestRetain(t *testing.T) {
	poly := geo.Polygon{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}
	in := geo.Point{X: 5, Y: 5}
	out := geo.Point{X: 50, Y: 50}

	tests := []struct {
		name   string
		entity dxf.Entity
		want   bool
	}{
		{"polyline inside", dxf.Entity{Type: "LWPOLYLINE", Vertices: []geo.Point{in, out}}, true},
		{"polyline outside", dxf.Entity{Type: "SPLINE", Vertices: []geo.Point{out, {X: 60, Y: 60}}}, false},
		{"polyline without vertices", dxf.Entity{Type: "LINE"}, false},
		{"arc center inside", dxf.Entity{Type: "ARC", Vertices: []geo.Point{in}}, true},
		{"circle without center", dxf.Entity{Type: "CIRCLE", Radius: 100}, false},
		{"text inside", dxf.Entity{Type: "TEXT", Vertices: []geo.Point{in}}, true},
		{"insert outside", dxf.Entity{Type: "INSERT", Vertices: []geo.Point{out}}, false},
		{"mtext without position", dxf.Entity{Type: "MTEXT"}, true},
		{"unknown without vertices", dxf.Entity{Type: "HATCH"}, true},
		{"unknown outside", dxf.Entity{Type: "DIMENSION", Vertices: []geo.Point{out}}, false},
		{"unknown crossing", dxf.Entity{Type: "LEADER", Vertices: []geo.Point{{X: -5, Y: 5}, {X: 15, Y: 5}}}, true},
		{"point with NaN", dxf.Entity{Type: "POINT", Vertices: []geo.Point{{X: nan(), Y: 5}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retain(&tt.entity, poly); got != tt.want {
				t.Errorf("Retain() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCropMixedDocument(t *testing.T) {
	inside := line("12", "12", "18", "18")
	outside := line("100", "100", "120", "100")
	text := lines("0", "TEXT", "8", "0", "1", "no position")
	point := lines("0", "POINT", "10", "500", "20", "500")
	doc := document(inside, outside, text, point, circle("15", "15", "1"))

	res := mustProcess(t, doc, square)

	if want := document(inside, text, circle("15", "15", "1")); res.Document != want {
		t.Errorf("Document =\n%q\nwant\n%q", res.Document, want)
	}

	want := Stats{
		Records:       37,
		PassThrough:   9,
		Entities:      5,
		Kept:          3,
		Removed:       2,
		KeptByType:    map[string]int{"LINE": 1, "TEXT": 1, "CIRCLE": 1},
		RemovedByType: map[string]int{"LINE": 1, "POINT": 1},
	}
	if diff := cmp.Diff(want, res.Stats); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
}

func TestCropIdempotent(t *testing.T) {
	doc := document(
		line("0", "0", "100", "100"),
		line("300", "300", "400", "400"),
		circle("15", "15", "2"),
		circle("90", "90", "3"),
	)

	once := mustProcess(t, doc, square)
	twice := mustProcess(t, once.Document, square)

	if once.Document != twice.Document {
		t.Errorf("second crop changed the document:\n%q\n%q", once.Document, twice.Document)
	}
	if twice.Stats.Removed != 0 {
		t.Errorf("second crop removed %d entities", twice.Stats.Removed)
	}
}

func TestCropPassThroughIdentity(t *testing.T) {
	tables := "0\r\nSECTION\r\n  2\r\nTABLES\r\n  0\r\nLAYER\r\n  2\r\n Walls \r\n0\r\nENDSEC\r\n"
	doc := tables +
		"0\r\nSECTION\r\n2\r\nENTITIES\r\n" +
		"0\r\nLINE\r\n10\r\n500\r\n20\r\n500\r\n11\r\n600\r\n21\r\n600\r\n" +
		"0\r\nENDSEC\r\n0\r\nEOF\r\n"

	res := mustProcess(t, doc, square)

	want := tables + "0\r\nSECTION\r\n2\r\nENTITIES\r\n0\r\nENDSEC\r\n0\r\nEOF\r\n"
	if res.Document != want {
		t.Errorf("Document =\n%q\nwant\n%q", res.Document, want)
	}
}

func TestCropNoEntitiesSection(t *testing.T) {
	doc := headerPart + "0\nEOF"
	res := mustProcess(t, doc, square)
	if res.Document != doc {
		t.Errorf("Document = %q, want input unchanged", res.Document)
	}
	if res.Stats.Entities != 0 || res.Stats.PassThrough != 6 {
		t.Errorf("Stats = %+v", res.Stats)
	}
}

func TestCropTruncatedTrailingLine(t *testing.T) {
	doc := document(line("12", "12", "18", "18")) + "999\n"
	res := mustProcess(t, doc, square)
	if want := document(line("12", "12", "18", "18")); res.Document != want {
		t.Errorf("Document = %q, want %q", res.Document, want)
	}
}

func TestCropUnterminatedEntities(t *testing.T) {
	doc := "0\nSECTION\n2\nENTITIES\n" + line("0", "0", "1", "1") + line("12", "12", "18", "18")
	res := mustProcess(t, doc, square)
	if want := "0\nSECTION\n2\nENTITIES\n" + line("12", "12", "18", "18"); res.Document != want {
		t.Errorf("Document = %q, want %q", res.Document, want)
	}
}

func TestCheckFormat(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"plan.dxf", false},
		{"PLAN.DXF", false},
		{"dir/site.Dxf", false},
		{"plan.dwg", true},
		{"plan", true},
		{"plan.dxf.bak", true},
	}
	for _, tt := range tests {
		err := CheckFormat(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("CheckFormat(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("CheckFormat(%q) error = %v, want ErrUnsupportedFormat", tt.name, err)
		}
	}
}

func TestOutputName(t *testing.T) {
	tests := map[string]string{
		"plan.dxf":           "cropped_plan.dxf",
		"/tmp/site/a.DXF":    "cropped_a.DXF",
		"relative/dir/b.dxf": "cropped_b.dxf",
	}
	for in, want := range tests {
		if got := OutputName(in); got != want {
			t.Errorf("OutputName(%q) = %q, want %q", in, got, want)
		}
	}
}

func nan() float64 {
	return geo.ParseCoordinate("nan?")
}

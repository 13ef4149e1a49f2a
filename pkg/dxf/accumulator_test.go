package dxf

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/NERVsystems/dxfcropmcp/pkg/geo"
)

func feed(a *Accumulator, pairs ...string) []*Entity {
	var closed []*Entity
	for i := 0; i+1 < len(pairs); i += 2 {
		if e := a.FeedRecord(NewRecord(pairs[i], pairs[i+1])); e != nil {
			closed = append(closed, e)
		}
	}
	return closed
}

func TestAccumulatorVertices(t *testing.T) {
	tests := []struct {
		name     string
		pairs    []string
		wantType string
		want     []geo.Point
		radius   float64
	}{
		{
			name:     "line start and end",
			pairs:    []string{"0", "LINE", "8", "0", "10", "1.5", "20", "2", "30", "0", "11", "3", "21", "4", "31", "0"},
			wantType: "LINE",
			want:     []geo.Point{{X: 1.5, Y: 2}, {X: 3, Y: 4}},
		},
		{
			name:     "y before x",
			pairs:    []string{"0", "LWPOLYLINE", "20", "5", "10", "6"},
			wantType: "LWPOLYLINE",
			want:     []geo.Point{{X: 6, Y: 5}},
		},
		{
			name:     "x without y is not committed",
			pairs:    []string{"0", "POINT", "10", "1"},
			wantType: "POINT",
		},
		{
			name:     "repeated x overwrites pending x",
			pairs:    []string{"0", "LWPOLYLINE", "10", "1", "10", "2", "20", "3"},
			wantType: "LWPOLYLINE",
			want:     []geo.Point{{X: 2, Y: 3}},
		},
		{
			name:     "circle radius",
			pairs:    []string{"0", "CIRCLE", "10", "0", "20", "0", "40", "2.5"},
			wantType: "CIRCLE",
			want:     []geo.Point{{X: 0, Y: 0}},
			radius:   2.5,
		},
		{
			name:     "malformed number is NaN",
			pairs:    []string{"0", "POINT", "10", "abc", "20", "1"},
			wantType: "POINT",
			want:     []geo.Point{{X: math.NaN(), Y: 1}},
		},
		{
			name:     "type is trimmed",
			pairs:    []string{"  0", "  TEXT  "},
			wantType: "TEXT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Accumulator
			if closed := feed(&a, tt.pairs...); len(closed) != 0 {
				t.Fatalf("unexpected closed entities: %d", len(closed))
			}
			e := a.Flush()
			if e == nil {
				t.Fatal("Flush() returned nil")
			}
			if e.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", e.Type, tt.wantType)
			}
			if len(e.Records) != len(tt.pairs)/2 {
				t.Errorf("Records = %d, want %d", len(e.Records), len(tt.pairs)/2)
			}
			if diff := cmp.Diff(tt.want, e.Vertices, cmpopts.EquateNaNs(), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Vertices mismatch (-want +got):\n%s", diff)
			}
			if e.Radius != tt.radius {
				t.Errorf("Radius = %v, want %v", e.Radius, tt.radius)
			}
		})
	}
}

func TestAccumulatorTransitions(t *testing.T) {
	var a Accumulator

	if e := a.Flush(); e != nil {
		t.Errorf("Flush() on empty accumulator = %+v, want nil", e)
	}

	closed := feed(&a, "0", "LINE", "10", "1", "0", "CIRCLE", "20", "2")
	if len(closed) != 1 || closed[0].Type != "LINE" {
		t.Fatalf("closed = %+v, want one LINE", closed)
	}
	// Pending x from the LINE must not leak into the CIRCLE.
	if len(closed[0].Vertices) != 0 {
		t.Errorf("LINE vertices = %v, want none", closed[0].Vertices)
	}
	circle := a.Flush()
	if circle == nil || circle.Type != "CIRCLE" || len(circle.Vertices) != 0 {
		t.Errorf("CIRCLE = %+v, want no vertices", circle)
	}

	if a.Open() != nil {
		t.Error("entity still open after Flush")
	}
}

func TestAccumulatorOrphanRecords(t *testing.T) {
	var a Accumulator
	feed(&a, "8", "LAYER1", "10", "1", "20", "2")

	e := a.Flush()
	if e == nil {
		t.Fatal("orphan records were dropped")
	}
	if e.Type != "" || len(e.Records) != 3 {
		t.Errorf("orphan entity = %+v", e)
	}
	if Classify(e.Type) != KindOther {
		t.Errorf("orphan entity classified as %v", Classify(e.Type))
	}
}

func TestClassify(t *testing.T) {
	tests := map[string]Kind{
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
		"HATCH":      KindOther,
		"line":       KindOther,
		"":           KindOther,
	}
	for name, want := range tests {
		if got := Classify(name); got != want {
			t.Errorf("Classify(%q) = %v, want %v", name, got, want)
		}
	}
}

package advisor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/planar"

	"github.com/NERVsystems/dxfcropmcp/pkg/monitoring"
	cropwkt "github.com/NERVsystems/dxfcropmcp/pkg/wkt"
)

var sridPrefix = regexp.MustCompile(`(?i)^\s*SRID=\d+\s*;`)

// Local validates geometry text offline with orb's WKT decoder and
// reports whether the cropper can use it as a clip polygon.
type Local struct{}

// Name implements Validator.
func (Local) Name() string { return "local" }

// Validate implements Validator.
func (l Local) Validate(ctx context.Context, text string) (Verdict, error) {
	start := time.Now()
	text, err := checkLength(text)
	if err != nil {
		return Verdict{}, err
	}

	v := l.judge(text)
	monitoring.RecordAdvisorRequest(l.Name(), time.Since(start), true)
	return v, nil
}

func (Local) judge(text string) Verdict {
	normalized := strings.Join(strings.Fields(sridPrefix.ReplaceAllString(text, "")), " ")

	g, err := wkt.Unmarshal(normalized)
	if err != nil {
		return Verdict{
			Valid:        false,
			GeometryType: GeometryUnknown,
			Description:  fmt.Sprintf("Not well-formed WKT: %v.", err),
		}
	}

	v := Verdict{Valid: true, GeometryType: g.GeoJSONType()}

	poly, ok := g.(orb.Polygon)
	if !ok {
		v.Description = fmt.Sprintf("Well-formed %s; only single-ring POLYGON text can be used for cropping.", v.GeometryType)
		return v
	}

	if len(poly) == 0 || len(poly[0]) < 3 {
		v.Valid = false
		v.Description = "Polygon has fewer than 3 points."
		return v
	}

	centroid, area := planar.CentroidArea(poly)
	b := poly.Bound()
	v.Description = fmt.Sprintf("Polygon with %d rings and %d outer points, area %.4g, centroid (%.4g %.4g), extent (%.4g %.4g)-(%.4g %.4g).",
		len(poly), len(poly[0]), area, centroid[0], centroid[1], b.Min[0], b.Min[1], b.Max[0], b.Max[1])

	if _, err := cropwkt.Parse(text); err != nil {
		v.Description += fmt.Sprintf(" The cropper cannot use it: %v.", err)
	}
	return v
}

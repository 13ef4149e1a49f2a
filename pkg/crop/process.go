package crop

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/NERVsystems/dxfcropmcp/pkg/geo"
	"github.com/NERVsystems/dxfcropmcp/pkg/wkt"
)

// Extension is the only file extension the cropper reads.
const Extension = ".dxf"

// OutputPrefix is prepended to the base name of a cropped file.
const OutputPrefix = "cropped_"

var (
	// ErrInvalidGeometry is returned when the clip text yields fewer than
	// three points.
	ErrInvalidGeometry = errors.New("invalid clip geometry")
	// ErrUnsupportedFormat is returned for files that are not DXF.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// ClipPolygon parses clip text into a polygon usable for cropping.
func ClipPolygon(clip string) (geo.Polygon, error) {
	poly := geo.Polygon(wkt.ParsePoints(clip))
	if !poly.Valid() {
		return nil, fmt.Errorf("%w: %d points parsed, need at least %d", ErrInvalidGeometry, len(poly), geo.MinPolygonPoints)
	}
	return poly, nil
}

// Process crops doc against the polygon described by clip. No output is
// produced when the polygon is invalid.
func Process(doc, clip string) (Result, error) {
	poly, err := ClipPolygon(clip)
	if err != nil {
		return Result{}, err
	}
	return Crop(doc, poly), nil
}

// CheckFormat rejects names that do not end in .dxf, ignoring case.
func CheckFormat(name string) error {
	ext := filepath.Ext(name)
	if !strings.EqualFold(ext, Extension) {
		if ext == "" {
			ext = "(none)"
		}
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return nil
}

// OutputName returns the file name a cropped copy of name is saved under.
func OutputName(name string) string {
	return OutputPrefix + filepath.Base(name)
}

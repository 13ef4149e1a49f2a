// Package advisor comments on whether clip geometry text looks
// well-formed. Its verdicts are informational: cropping never consults
// them.
package advisor

import (
	"context"
	"errors"
	"strings"
)

// MinLength is the shortest input worth analysing.
const MinLength = 10

// ErrTooShort is returned for inputs shorter than MinLength.
var ErrTooShort = errors.New("geometry text too short to analyse")

// Geometry type labels used when no real type could be determined.
const (
	GeometryUnknown    = "Unknown"
	GeometryUnverified = "Unverified"
)

// Verdict is an advisory opinion about a piece of geometry text.
type Verdict struct {
	Valid        bool   `json:"isValid"`
	GeometryType string `json:"type"`
	Description  string `json:"description"`
}

// Validator produces a Verdict for geometry text.
type Validator interface {
	Name() string
	Validate(ctx context.Context, text string) (Verdict, error)
}

// checkLength trims text and rejects it when it is too short.
func checkLength(text string) (string, error) {
	text = strings.TrimSpace(text)
	if len(text) < MinLength {
		return "", ErrTooShort
	}
	return text, nil
}

// missingKey is reported when the remote validator has no credentials.
func missingKey() Verdict {
	return Verdict{
		Valid:        true,
		GeometryType: GeometryUnknown,
		Description:  "API key missing, skipping AI validation.",
	}
}

// unverified is reported when the remote validator fails for any reason.
func unverified() Verdict {
	return Verdict{
		Valid:        true,
		GeometryType: GeometryUnverified,
		Description:  "AI validation failed, proceeding with raw input.",
	}
}

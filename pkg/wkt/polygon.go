package wkt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/NERVsystems/dxfcropmcp/pkg/geo"
)

// Keyword introduces the only geometry type the parser accepts.
const Keyword = "POLYGON"

var (
	// ErrNoPolygon means the text contains no POLYGON keyword.
	ErrNoPolygon = errors.New("wkt: no POLYGON literal found")

	// ErrSyntax means the literal is not shaped like POLYGON ((...)).
	ErrSyntax = errors.New("wkt: malformed polygon literal")

	// ErrMultipleRings means the literal carries interior rings.
	ErrMultipleRings = errors.New("wkt: polygons with interior rings are not supported")
)

// Parse extracts the ring of the first POLYGON literal in text.
//
// Each comma-separated vertex contributes its first two whitespace
// separated fields as x and y; further fields (Z, M) are ignored and
// vertices with fewer than two fields are skipped. Fields that are not
// numbers become NaN rather than errors. The returned ring may still
// have fewer than geo.MinPolygonPoints points; callers decide whether
// that is acceptable.
func Parse(text string) (geo.Polygon, error) {
	p := &parser{lex: lexer{src: text}}
	return p.polygon()
}

// ParsePoints is the lenient form of Parse: any structural problem yields
// an empty point list instead of an error.
func ParsePoints(text string) []geo.Point {
	poly, err := Parse(text)
	if err != nil {
		return nil
	}
	return poly
}

type parser struct {
	lex lexer
}

func (p *parser) expect(kind tokenKind) (token, error) {
	tok := p.lex.next()
	if tok.kind != kind {
		return tok, fmt.Errorf("%w: expected %s at offset %d, found %s", ErrSyntax, kind, tok.pos, tok)
	}
	return tok, nil
}

func (p *parser) polygon() (geo.Polygon, error) {
	for {
		tok := p.lex.next()
		if tok.kind == tokEOF {
			return nil, ErrNoPolygon
		}
		if tok.kind == tokAtom && strings.EqualFold(tok.text, Keyword) {
			break
		}
	}

	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}

	ring, err := p.ring()
	if err != nil {
		return nil, err
	}

	tok := p.lex.next()
	switch tok.kind {
	case tokRParen:
		return ring, nil
	case tokComma:
		return nil, ErrMultipleRings
	default:
		return nil, fmt.Errorf("%w: unterminated polygon at offset %d, found %s", ErrSyntax, tok.pos, tok)
	}
}

// ring reads vertices up to and including the ring's closing parenthesis.
func (p *parser) ring() (geo.Polygon, error) {
	var (
		ring   geo.Polygon
		fields []string
	)
	for {
		tok := p.lex.next()
		switch tok.kind {
		case tokAtom:
			fields = append(fields, tok.text)
		case tokComma, tokRParen:
			if len(fields) >= 2 {
				ring = append(ring, geo.Point{X: geo.ParseCoordinate(fields[0]), Y: geo.ParseCoordinate(fields[1])})
			}
			fields = fields[:0]
			if tok.kind == tokRParen {
				return ring, nil
			}
		default:
			return nil, fmt.Errorf("%w: unexpected %s at offset %d", ErrSyntax, tok, tok.pos)
		}
	}
}

// Format renders a ring as a POLYGON literal, closing it when the last
// point does not repeat the first.
func Format(poly geo.Polygon) string {
	var b strings.Builder
	b.WriteString(Keyword)
	b.WriteString(" ((")

	pts := poly
	if len(pts) > 0 && pts[0] != pts[len(pts)-1] {
		pts = append(pts[:len(pts):len(pts)], pts[0])
	}
	for i, pt := range pts {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(pt.X, 'f', -1, 64))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(pt.Y, 'f', -1, 64))
	}
	b.WriteString("))")
	return b.String()
}

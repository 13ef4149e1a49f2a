package dxf

import "strings"

// Layout describes the line structure of a document so that a rewritten
// document keeps the original line endings.
type Layout struct {
	// LineEnding is "\r\n" when the first line ends that way, "\n" otherwise.
	LineEnding string
	// FinalNewline is true when the document ends with a line ending.
	FinalNewline bool
	// Truncated is true when a trailing code line had no value line and
	// was dropped.
	Truncated bool
}

// Reader yields the records of an in-memory document in order.
type Reader struct {
	lines  []string
	pos    int
	layout Layout
}

// NewReader splits text into lines. Both "\n" and "\r\n" terminate a line.
func NewReader(text string) *Reader {
	layout := Layout{LineEnding: "\n"}
	if i := strings.IndexByte(text, '\n'); i > 0 && text[i-1] == '\r' {
		layout.LineEnding = "\r\n"
	}

	var lines []string
	if text != "" {
		body := text
		if strings.HasSuffix(body, "\n") {
			layout.FinalNewline = true
			body = strings.TrimSuffix(body, "\n")
		}
		lines = strings.Split(body, "\n")
		for i, line := range lines {
			lines[i] = strings.TrimSuffix(line, "\r")
		}
	}
	layout.Truncated = len(lines)%2 == 1

	return &Reader{lines: lines, layout: layout}
}

// Layout returns the line structure detected in the document.
func (r *Reader) Layout() Layout {
	return r.layout
}

// Next returns the next complete record. A trailing line without a
// partner is never returned.
func (r *Reader) Next() (Record, bool) {
	rec, ok := r.Peek()
	if ok {
		r.pos += 2
	}
	return rec, ok
}

// Peek returns the next record without consuming it.
func (r *Reader) Peek() (Record, bool) {
	if r.pos+1 >= len(r.lines) {
		return Record{}, false
	}
	return NewRecord(r.lines[r.pos], r.lines[r.pos+1]), true
}

// Handler receives the records routed by Walk.
type Handler interface {
	// PassThrough receives every record outside the ENTITIES section,
	// including all SECTION and ENDSEC markers and the section name record.
	PassThrough(rec Record)
	// Entity receives every record inside the ENTITIES section.
	Entity(rec Record)
	// EndEntities is called when the ENTITIES section closes, before its
	// ENDSEC marker is passed through, or when input ends inside it.
	EndEntities()
}

// Walk reads every record from r and routes it to h.
//
// A SECTION marker immediately followed by a code 2 ENTITIES record opens
// the entities section; the next ENDSEC closes it. A SECTION marker met
// while the entities section is still open closes it first.
func Walk(r *Reader, h Handler) {
	inEntities := false
	closeEntities := func() {
		if inEntities {
			h.EndEntities()
			inEntities = false
		}
	}

	for {
		rec, ok := r.Next()
		if !ok {
			break
		}

		switch {
		case rec.IsMarker(MarkerSection):
			closeEntities()
			h.PassThrough(rec)
			if name, ok := r.Peek(); ok && name.Code == CodeName && name.Value() == SectionEntities {
				r.Next()
				h.PassThrough(name)
				inEntities = true
			}
		case rec.IsMarker(MarkerEndSection):
			closeEntities()
			h.PassThrough(rec)
		case inEntities:
			h.Entity(rec)
		default:
			h.PassThrough(rec)
		}
	}

	closeEntities()
}

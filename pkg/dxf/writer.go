package dxf

import "strings"

// Writer reassembles records into document text using the line layout of
// the source document.
type Writer struct {
	b       strings.Builder
	layout  Layout
	records int
}

// NewWriter returns a Writer that reproduces layout's line endings.
func NewWriter(layout Layout) *Writer {
	if layout.LineEnding == "" {
		layout.LineEnding = "\n"
	}
	return &Writer{layout: layout}
}

// WriteRecord appends rec's original two lines.
func (w *Writer) WriteRecord(rec Record) {
	if w.records > 0 {
		w.b.WriteString(w.layout.LineEnding)
	}
	w.b.WriteString(rec.CodeLine)
	w.b.WriteString(w.layout.LineEnding)
	w.b.WriteString(rec.ValueLine)
	w.records++
}

// WriteEntity appends every record of e in order.
func (w *Writer) WriteEntity(e *Entity) {
	for _, rec := range e.Records {
		w.WriteRecord(rec)
	}
}

// Records returns the number of records written so far.
func (w *Writer) Records() int {
	return w.records
}

// String returns the document text.
func (w *Writer) String() string {
	if w.layout.FinalNewline && w.records > 0 {
		return w.b.String() + w.layout.LineEnding
	}
	return w.b.String()
}

package dxf

import "github.com/NERVsystems/dxfcropmcp/pkg/geo"

// Accumulator groups consecutive entity records into entities. At most one
// entity is open at a time; it is handed back when the next entity starts
// or when Flush is called.
//
// Coordinates arrive as separate x (10, 11) and y (20, 21) records. A
// vertex is committed once both halves are pending, after which both are
// cleared. Elevation records (30, 31) are kept with the entity but not
// interpreted.
type Accumulator struct {
	open     *Entity
	pendingX float64
	pendingY float64
	hasX     bool
	hasY     bool
}

// Open returns the entity currently being accumulated, or nil.
func (a *Accumulator) Open() *Entity {
	return a.open
}

// StartEntity closes the open entity, returning it, and opens a new one
// typed by rec's value with rec as its first record.
func (a *Accumulator) StartEntity(rec Record) *Entity {
	prev := a.Flush()
	a.open = &Entity{
		Type:    rec.Value(),
		Records: []Record{rec},
	}
	return prev
}

// FeedRecord adds one record from the entities section. A code 0 record
// starts a new entity and the previous one is returned; any other record
// extends the open entity and nil is returned. Records that arrive with
// no entity open start an untyped one so they are not lost.
func (a *Accumulator) FeedRecord(rec Record) *Entity {
	if rec.Code == CodeStructure {
		return a.StartEntity(rec)
	}

	if a.open == nil {
		a.open = &Entity{}
	}
	e := a.open
	e.Records = append(e.Records, rec)

	switch rec.Code {
	case CodeX, CodeX2:
		a.pendingX, a.hasX = rec.Float(), true
	case CodeY, CodeY2:
		a.pendingY, a.hasY = rec.Float(), true
	case CodeRadius:
		e.Radius = rec.Float()
	}

	if a.hasX && a.hasY {
		e.Vertices = append(e.Vertices, geo.Point{X: a.pendingX, Y: a.pendingY})
		a.hasX, a.hasY = false, false
	}
	return nil
}

// Flush closes the open entity and returns it. It returns nil when no
// entity is open or the open entity holds no records.
func (a *Accumulator) Flush() *Entity {
	e := a.open
	a.open = nil
	a.pendingX, a.pendingY = 0, 0
	a.hasX, a.hasY = false, false

	if e == nil || len(e.Records) == 0 {
		return nil
	}
	return e
}

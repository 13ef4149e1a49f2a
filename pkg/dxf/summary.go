package dxf

// Summary describes the structure of a document without changing it.
type Summary struct {
	Sections    []string       `json:"sections"`
	Records     int            `json:"records"`
	Entities    int            `json:"entities"`
	EntityTypes map[string]int `json:"entity_types"`
	HasEntities bool           `json:"has_entities"`
	CRLF        bool           `json:"crlf"`
	Truncated   bool           `json:"truncated"`
	Extents     *Extents       `json:"extents,omitempty"`
}

// Extents is the bounding box of every finite vertex in the ENTITIES
// section.
type Extents struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

type summarizer struct {
	sum        *Summary
	acc        Accumulator
	lastMarker bool
}

func (s *summarizer) PassThrough(rec Record) {
	s.sum.Records++
	if s.lastMarker && rec.Code == CodeName {
		s.sum.Sections = append(s.sum.Sections, rec.Value())
		if rec.Value() == SectionEntities {
			s.sum.HasEntities = true
		}
	}
	s.lastMarker = rec.IsMarker(MarkerSection)
}

func (s *summarizer) Entity(rec Record) {
	s.sum.Records++
	s.lastMarker = false
	s.add(s.acc.FeedRecord(rec))
}

func (s *summarizer) EndEntities() {
	s.add(s.acc.Flush())
}

func (s *summarizer) add(e *Entity) {
	if e == nil {
		return
	}
	s.sum.Entities++
	s.sum.EntityTypes[e.Type]++
	for _, v := range e.Vertices {
		s.extend(v.X, v.Y)
	}
}

func (s *summarizer) extend(x, y float64) {
	if !finite(x) || !finite(y) {
		return
	}
	ext := s.sum.Extents
	if ext == nil {
		s.sum.Extents = &Extents{MinX: x, MinY: y, MaxX: x, MaxY: y}
		return
	}
	ext.MinX = min(ext.MinX, x)
	ext.MinY = min(ext.MinY, y)
	ext.MaxX = max(ext.MaxX, x)
	ext.MaxY = max(ext.MaxY, y)
}

func finite(f float64) bool {
	return f == f && f-f == 0
}

// Summarize walks text once and reports its sections, record count and
// entity counts per type.
func Summarize(text string) Summary {
	r := NewReader(text)
	layout := r.Layout()
	sum := Summary{
		EntityTypes: map[string]int{},
		CRLF:        layout.LineEnding == "\r\n",
		Truncated:   layout.Truncated,
	}
	Walk(r, &summarizer{sum: &sum})
	return sum
}

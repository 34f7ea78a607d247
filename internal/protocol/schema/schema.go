package schema

import (
	"github.com/danmuck/canextract/internal/protocol/hooks"
)

// DefaultFrameLen is the classic CAN payload size.
const DefaultFrameLen = 8

// Field describes how to extract and convert one output field.
type Field struct {
	Name        string
	Kind        Kind
	Offset      int
	Width       int
	Order       Order
	DecoderName string
	Decoder     hooks.Hook
}

// HasDecoder reports whether the field bypasses scalar conversion.
func (f Field) HasDecoder() bool {
	return f.Decoder != nil
}

// Schema is an ordered, validated, immutable set of fields. It is safe to
// share across goroutines.
type Schema struct {
	name     string
	id       uint32
	hasID    bool
	frameLen int
	layout   Layout
	fields   []Field
	index    map[string]int
}

func (s *Schema) Name() string {
	return s.name
}

// ID returns the bus identifier the schema is bound to, if any.
func (s *Schema) ID() (uint32, bool) {
	return s.id, s.hasID
}

// FrameLen is the nominal frame length; 0 means any length.
func (s *Schema) FrameLen() int {
	return s.frameLen
}

func (s *Schema) Layout() Layout {
	return s.layout
}

func (s *Schema) Len() int {
	return len(s.fields)
}

// Field returns the i-th field in declaration order.
func (s *Schema) Field(i int) Field {
	return s.fields[i]
}

// Fields returns a copy of the field list.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Lookup finds a field and its index by name.
func (s *Schema) Lookup(name string) (Field, int, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, -1, false
	}
	return s.fields[i], i, true
}

// Span returns the smallest frame length every field fits into. For
// sequential schemas it is the sum of the widths.
func (s *Schema) Span() int {
	n := 0
	for _, f := range s.fields {
		end := f.Offset + f.Width
		if s.layout == LayoutSequential {
			end = n + f.Width
		}
		if end > n {
			n = end
		}
	}
	return n
}

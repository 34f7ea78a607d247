package schema

import (
	"fmt"
	"strings"

	"github.com/danmuck/canextract/internal/protocol"
	"github.com/danmuck/canextract/internal/protocol/hooks"
	"github.com/rs/zerolog/log"
)

// Spec is the declarative description of one field, as produced by a
// builder chain, a struct tag or a configuration file. Width 0 means the
// natural size of Kind.
type Spec struct {
	Name      string
	Kind      Kind
	Offset    int
	Width     int
	BigEndian bool
	Decoder   string
	Hook      hooks.Hook
}

// Builder assembles a Schema. Nothing is checked until Validate or Build.
type Builder struct {
	name     string
	id       uint32
	hasID    bool
	frameLen int
	layout   Layout
	resolver hooks.Resolver
	specs    []Spec
}

// FieldStep configures the most recently added field.
type FieldStep struct {
	b *Builder
	i int
}

// New starts a schema with the default frame length and explicit offsets.
func New(name string) *Builder {
	return &Builder{
		name:     name,
		frameLen: DefaultFrameLen,
		layout:   LayoutExplicit,
		resolver: hooks.Default(),
	}
}

// FrameLen sets the nominal frame length; 0 accepts frames of any length.
func (b *Builder) FrameLen(n int) *Builder {
	b.frameLen = n
	return b
}

// ID binds the schema to a bus identifier.
func (b *Builder) ID(id uint32) *Builder {
	b.id = id
	b.hasID = true
	return b
}

// Sequential switches to cursor-based layout: offsets are ignored and each
// field starts where the previous one ended.
func (b *Builder) Sequential() *Builder {
	b.layout = LayoutSequential
	return b
}

func (b *Builder) Layout(l Layout) *Builder {
	b.layout = l
	return b
}

// Hooks sets the resolver used for decoder names. Defaults to hooks.Default().
func (b *Builder) Hooks(r hooks.Resolver) *Builder {
	b.resolver = r
	return b
}

// Add appends a field spec.
func (b *Builder) Add(spec Spec) *Builder {
	b.specs = append(b.specs, spec)
	return b
}

// Field appends a little-endian field at offset 0 and returns a step to
// refine it.
func (b *Builder) Field(name string, kind Kind) *FieldStep {
	b.specs = append(b.specs, Spec{Name: name, Kind: kind})
	return &FieldStep{b: b, i: len(b.specs) - 1}
}

func (f *FieldStep) spec() *Spec { return &f.b.specs[f.i] }

// At sets the byte offset.
func (f *FieldStep) At(offset int) *FieldStep {
	f.spec().Offset = offset
	return f
}

// Extract overrides the number of bytes taken from the frame.
func (f *FieldStep) Extract(width int) *FieldStep {
	f.spec().Width = width
	return f
}

func (f *FieldStep) BigEndian() *FieldStep {
	f.spec().BigEndian = true
	return f
}

func (f *FieldStep) LittleEndian() *FieldStep {
	f.spec().BigEndian = false
	return f
}

// Decoder names a hook resolved when the schema is built.
func (f *FieldStep) Decoder(name string) *FieldStep {
	f.spec().Decoder = name
	return f
}

// DecodeWith attaches a hook directly; name is kept for error attribution.
func (f *FieldStep) DecodeWith(name string, h hooks.Hook) *FieldStep {
	s := f.spec()
	s.Decoder = name
	s.Hook = h
	return f
}

func (f *FieldStep) Field(name string, kind Kind) *FieldStep { return f.b.Field(name, kind) }
func (f *FieldStep) Add(spec Spec) *Builder                   { return f.b.Add(spec) }
func (f *FieldStep) Done() *Builder                           { return f.b }
func (f *FieldStep) Validate() error                          { return f.b.Validate() }
func (f *FieldStep) Build() (*Schema, error)                  { return f.b.Build() }
func (f *FieldStep) MustBuild() *Schema                       { return f.b.MustBuild() }

// Validate checks the schema shape without building it. It does not look at
// any frame: overlapping fields, gaps and windows that run past the nominal
// frame length are accepted, the latter being caught per decode call.
func (b *Builder) Validate() error {
	_, err := b.compile()
	return err
}

// Build validates and freezes the schema.
func (b *Builder) Build() (*Schema, error) {
	s, err := b.compile()
	if err != nil {
		log.Debug().Err(err).Str("schema", b.name).Msg("schema.Build rejected")
		return nil, err
	}
	log.Debug().
		Str("schema", s.name).
		Int("fields", len(s.fields)).
		Int("frame_len", s.frameLen).
		Str("layout", s.layout.String()).
		Msg("schema.Build ok")
	return s, nil
}

// MustBuild is like Build but panics on error. Intended for schemas that are
// part of the program.
func (b *Builder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

func (b *Builder) schemaErr(reason string, a ...any) error {
	return &protocol.SchemaError{Schema: b.name, Index: -1, Reason: fmt.Sprintf(reason, a...)}
}

func (b *Builder) fieldErr(i int, name, reason string, a ...any) error {
	return &protocol.SchemaError{Schema: b.name, Field: name, Index: i, Reason: fmt.Sprintf(reason, a...)}
}

func (b *Builder) compile() (*Schema, error) {
	if strings.TrimSpace(b.name) == "" {
		return nil, b.schemaErr("missing schema name")
	}
	if b.frameLen < 0 {
		return nil, b.schemaErr("negative frame length %d", b.frameLen)
	}
	if b.layout != LayoutExplicit && b.layout != LayoutSequential {
		return nil, b.schemaErr("unknown layout %d", b.layout)
	}
	if len(b.specs) == 0 {
		return nil, b.schemaErr("no fields")
	}

	fields := make([]Field, 0, len(b.specs))
	index := make(map[string]int, len(b.specs))
	for i, sp := range b.specs {
		f, err := b.compileField(i, sp)
		if err != nil {
			return nil, err
		}
		if _, dup := index[f.Name]; dup {
			return nil, b.fieldErr(i, f.Name, "duplicate field name")
		}
		index[f.Name] = i
		fields = append(fields, f)
	}

	return &Schema{
		name:     b.name,
		id:       b.id,
		hasID:    b.hasID,
		frameLen: b.frameLen,
		layout:   b.layout,
		fields:   fields,
		index:    index,
	}, nil
}

func (b *Builder) compileField(i int, sp Spec) (Field, error) {
	name := strings.TrimSpace(sp.Name)
	if name == "" {
		return Field{}, b.fieldErr(i, "", "missing field name")
	}
	if !sp.Kind.Valid() {
		return Field{}, b.fieldErr(i, name, "unknown scalar kind %d", sp.Kind)
	}

	f := Field{
		Name:        name,
		Kind:        sp.Kind,
		Offset:      sp.Offset,
		Width:       sp.Width,
		DecoderName: strings.TrimSpace(sp.Decoder),
		Decoder:     sp.Hook,
	}
	if sp.BigEndian {
		f.Order = BigEndian
	}

	if f.Decoder == nil && f.DecoderName != "" {
		if b.resolver == nil {
			return Field{}, b.fieldErr(i, name, "decoder %q with no hook resolver", f.DecoderName)
		}
		h, ok := b.resolver.Lookup(f.DecoderName)
		if !ok {
			return Field{}, b.fieldErr(i, name, "unknown decoder %q", f.DecoderName)
		}
		f.Decoder = h
	}
	if f.Decoder != nil && f.DecoderName == "" {
		f.DecoderName = name
	}

	if f.Width < 0 {
		return Field{}, b.fieldErr(i, name, "negative width %d", f.Width)
	}
	if f.Width == 0 {
		f.Width = f.Kind.Size()
	}
	if f.Width == 0 {
		if f.Decoder != nil {
			return Field{}, b.fieldErr(i, name, "decoder field needs an explicit width")
		}
		if f.Kind == Bytes {
			return Field{}, b.fieldErr(i, name, "bytes field needs an explicit width")
		}
		return Field{}, b.fieldErr(i, name, "field needs a scalar kind or a decoder")
	}
	if f.Decoder == nil && f.Kind != Bytes && f.Width != f.Kind.Size() {
		return Field{}, b.fieldErr(i, name, "width %d does not match %s size %d", f.Width, f.Kind, f.Kind.Size())
	}

	switch b.layout {
	case LayoutSequential:
		if f.Offset != 0 {
			return Field{}, b.fieldErr(i, name, "offset %d set in sequential layout", f.Offset)
		}
	default:
		if f.Offset < 0 {
			return Field{}, b.fieldErr(i, name, "negative offset %d", f.Offset)
		}
		if b.frameLen > 0 && f.Offset >= b.frameLen {
			return Field{}, b.fieldErr(i, name, "offset %d must be less than frame length %d", f.Offset, b.frameLen)
		}
	}
	return f, nil
}

// Package bind derives record schemas from tagged Go structs and copies
// decoded records into them.
//
//	type Ding struct {
//	    A uint32  `can:"offset=0"`
//	    B uint32  `can:"offset=4"`
//	    C float64 `can:"offset=6,extract=2,decoder=milli_u16be"`
//	}
//	d, err := bind.Decode[Ding](frame)
//
// A blank field carries container options:
//
//	_ struct{} `can:"sequential,frame_len=8,id=0x120,name=dong"`
package bind

import (
	"fmt"
	"math"
	"reflect"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/danmuck/canextract/internal/protocol"
	"github.com/danmuck/canextract/internal/protocol/decode"
	"github.com/danmuck/canextract/internal/protocol/hooks"
	"github.com/danmuck/canextract/internal/protocol/schema"
)

const cacheSize = 256

var cache, _ = lru.New[reflect.Type, *binding](cacheSize)

type binding struct {
	schema *schema.Schema
	rt     reflect.Type
	// idx[i] is the struct field index for schema field i.
	idx []int
}

// Binding couples a schema with struct type T.
type Binding[T any] struct {
	b *binding
}

func (b *Binding[T]) Schema() *schema.Schema {
	return b.b.schema
}

// Decode decodes frame and assigns every field into a new T.
func (b *Binding[T]) Decode(frame []byte) (T, error) {
	var zero T
	rec, err := decode.Decode(b.b.schema, frame)
	if err != nil {
		return zero, err
	}
	return b.Assign(rec)
}

// Assign copies a decoded record into a new T.
func (b *Binding[T]) Assign(rec decode.Record) (T, error) {
	var zero T
	rv := reflect.New(b.b.rt).Elem()
	for i, v := range rec.Values {
		if i >= len(b.b.idx) {
			break
		}
		f := b.b.schema.Field(i)
		if err := assign(rv.Field(b.b.idx[i]), v.Value, i, f); err != nil {
			return zero, err
		}
	}
	return rv.Interface().(T), nil
}

// SchemaOf returns the schema derived from T's tags.
func SchemaOf[T any]() (*schema.Schema, error) {
	b, err := cached(reflect.TypeOf((*T)(nil)).Elem(), hooks.Default())
	if err != nil {
		return nil, err
	}
	return b.schema, nil
}

// For returns the tag-derived binding for T, resolving decoder names against
// r (hooks.Default() when nil). Only bindings built with the default
// resolver are cached.
func For[T any](r hooks.Resolver) (*Binding[T], error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if r == nil {
		b, err := cached(rt, hooks.Default())
		if err != nil {
			return nil, err
		}
		return &Binding[T]{b: b}, nil
	}
	b, err := derive(rt, r)
	if err != nil {
		return nil, err
	}
	return &Binding[T]{b: b}, nil
}

// Decode decodes frame into T using the schema derived from T's tags.
func Decode[T any](frame []byte) (T, error) {
	b, err := For[T](nil)
	if err != nil {
		var zero T
		return zero, err
	}
	return b.Decode(frame)
}

// Bind checks a hand-built schema against T: every schema field must name an
// exported field of T (by `can:"name=..."` or Go field name), and a field
// without a decoder must land in a Go type that holds every value of its kind.
func Bind[T any](s *schema.Schema) (*Binding[T], error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if s == nil {
		return nil, &protocol.SchemaError{Index: -1, Reason: "nil schema"}
	}
	if rt.Kind() != reflect.Struct {
		return nil, &protocol.SchemaError{Schema: s.Name(), Index: -1, Reason: fmt.Sprintf("bind requires a struct, got %s", rt)}
	}
	byName := map[string]int{}
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := sf.Name
		if raw, ok := sf.Tag.Lookup(TagName); ok && raw != "-" {
			if ft, err := parseFieldTag(raw); err == nil && ft.name != "" {
				name = ft.name
			}
		}
		byName[name] = i
	}
	idx := make([]int, s.Len())
	for i := 0; i < s.Len(); i++ {
		f := s.Field(i)
		j, ok := byName[f.Name]
		if !ok {
			return nil, &protocol.SchemaError{Schema: s.Name(), Field: f.Name, Index: i, Reason: fmt.Sprintf("unknown field for %s", rt)}
		}
		if !f.HasDecoder() && f.Kind != schema.KindNone {
			if ft := rt.Field(j).Type; !storable(f.Kind, f.Width, ft) {
				return nil, &protocol.SchemaError{Schema: s.Name(), Field: f.Name, Index: i, Reason: fmt.Sprintf("kind %s (width %d) cannot be stored in %s", f.Kind, f.Width, ft)}
			}
		}
		idx[i] = j
	}
	return &Binding[T]{b: &binding{schema: s, rt: rt, idx: idx}}, nil
}

func cached(rt reflect.Type, r hooks.Resolver) (*binding, error) {
	if b, ok := cache.Get(rt); ok {
		return b, nil
	}
	b, err := derive(rt, r)
	if err != nil {
		return nil, err
	}
	cache.Add(rt, b)
	return b, nil
}

func derive(rt reflect.Type, r hooks.Resolver) (*binding, error) {
	if rt.Kind() != reflect.Struct {
		return nil, &protocol.SchemaError{Schema: rt.String(), Index: -1, Reason: "tags require a struct type"}
	}

	var ct containerTag
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if sf.Name != "_" {
			continue
		}
		raw, ok := sf.Tag.Lookup(TagName)
		if !ok {
			continue
		}
		parsed, err := parseContainerTag(raw)
		if err != nil {
			return nil, &protocol.SchemaError{Schema: rt.Name(), Index: -1, Reason: err.Error()}
		}
		ct = parsed
	}

	name := ct.name
	if name == "" {
		name = rt.Name()
	}
	b := schema.New(name).Hooks(r)
	if ct.sequential {
		b.Sequential()
	}
	if ct.hasLen {
		b.FrameLen(ct.frameLen)
	}
	if ct.hasID {
		b.ID(ct.id)
	}

	var idx []int
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if sf.Name == "_" || !sf.IsExported() {
			continue
		}
		raw, ok := sf.Tag.Lookup(TagName)
		if !ok || raw == "-" {
			continue
		}
		pos := len(idx)
		ft, err := parseFieldTag(raw)
		if err != nil {
			return nil, &protocol.SchemaError{Schema: name, Field: sf.Name, Index: pos, Reason: err.Error()}
		}
		fieldName := sf.Name
		if ft.name != "" {
			fieldName = ft.name
		}
		if !ct.sequential && !ft.hasOffset {
			return nil, &protocol.SchemaError{Schema: name, Field: fieldName, Index: pos, Reason: "missing offset"}
		}

		kind, width, ok := kindOf(sf.Type)
		if !ok {
			if ft.decoder == "" {
				return nil, &protocol.SchemaError{Schema: name, Field: fieldName, Index: pos, Reason: fmt.Sprintf("unsupported field type %s", sf.Type)}
			}
			kind = schema.KindNone
		}
		if ft.extract > 0 {
			width = ft.extract
		}
		if ft.decoder == "" && kind == schema.Bytes && sf.Type.Kind() == reflect.Array && width != sf.Type.Len() {
			return nil, &protocol.SchemaError{Schema: name, Field: fieldName, Index: pos, Reason: fmt.Sprintf("extract %d does not match %s", width, sf.Type)}
		}
		b.Add(schema.Spec{
			Name:      fieldName,
			Kind:      kind,
			Offset:    ft.offset,
			Width:     width,
			BigEndian: ft.bigEndian,
			Decoder:   ft.decoder,
		})
		idx = append(idx, i)
	}

	s, err := b.Build()
	if err != nil {
		return nil, err
	}
	return &binding{schema: s, rt: rt, idx: idx}, nil
}

func assign(dst reflect.Value, v any, i int, f schema.Field) error {
	fail := func(reason string) error {
		return &protocol.ConversionError{Field: f.Name, Index: i, Offset: f.Offset, Reason: reason}
	}
	if v == nil {
		switch dst.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map:
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		return fail(fmt.Sprintf("nil value for %s", dst.Type()))
	}
	vv := reflect.ValueOf(v)
	switch {
	case vv.Type().AssignableTo(dst.Type()):
		dst.Set(vv)
	case dst.Kind() == reflect.Array && dst.Type().Elem().Kind() == reflect.Uint8 && vv.Kind() == reflect.Slice:
		if vv.Len() != dst.Len() {
			return fail(fmt.Sprintf("cannot copy %d bytes into %s", vv.Len(), dst.Type()))
		}
		reflect.Copy(dst, vv)
	case isNumeric(vv.Kind()) && isNumeric(dst.Kind()):
		if reason := setNumber(dst, vv); reason != "" {
			return fail(reason)
		}
	case vv.Type().ConvertibleTo(dst.Type()) && vv.Kind() == dst.Kind():
		dst.Set(vv.Convert(dst.Type()))
	default:
		return fail(fmt.Sprintf("cannot assign %T to %s", v, dst.Type()))
	}
	return nil
}

// setNumber stores v into dst only when the value survives unchanged: no
// overflow, no sign flip, no dropped fraction.
func setNumber(dst, v reflect.Value) string {
	switch {
	case isInt(v.Kind()):
		n := v.Int()
		switch {
		case isInt(dst.Kind()):
			if dst.OverflowInt(n) {
				return fmt.Sprintf("%d overflows %s", n, dst.Type())
			}
			dst.SetInt(n)
		case isUint(dst.Kind()):
			if n < 0 {
				return fmt.Sprintf("negative value %d for %s", n, dst.Type())
			}
			if dst.OverflowUint(uint64(n)) {
				return fmt.Sprintf("%d overflows %s", n, dst.Type())
			}
			dst.SetUint(uint64(n))
		default:
			f := float64(n)
			if f >= 0x1p63 || int64(f) != n {
				return fmt.Sprintf("%d is not exact in %s", n, dst.Type())
			}
			return setFloat(dst, f)
		}
	case isUint(v.Kind()):
		u := v.Uint()
		switch {
		case isInt(dst.Kind()):
			if u > math.MaxInt64 || dst.OverflowInt(int64(u)) {
				return fmt.Sprintf("%d overflows %s", u, dst.Type())
			}
			dst.SetInt(int64(u))
		case isUint(dst.Kind()):
			if dst.OverflowUint(u) {
				return fmt.Sprintf("%d overflows %s", u, dst.Type())
			}
			dst.SetUint(u)
		default:
			f := float64(u)
			if f >= 0x1p64 || uint64(f) != u {
				return fmt.Sprintf("%d is not exact in %s", u, dst.Type())
			}
			return setFloat(dst, f)
		}
	default:
		f := v.Float()
		if !isInt(dst.Kind()) && !isUint(dst.Kind()) {
			return setFloat(dst, f)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Sprintf("%v has no %s value", f, dst.Type())
		}
		if f != math.Trunc(f) {
			return fmt.Sprintf("%v has a fractional part for %s", f, dst.Type())
		}
		if isInt(dst.Kind()) {
			if f < -0x1p63 || f >= 0x1p63 || dst.OverflowInt(int64(f)) {
				return fmt.Sprintf("%v overflows %s", f, dst.Type())
			}
			dst.SetInt(int64(f))
			return ""
		}
		if f < 0 {
			return fmt.Sprintf("negative value %v for %s", f, dst.Type())
		}
		if f >= 0x1p64 || dst.OverflowUint(uint64(f)) {
			return fmt.Sprintf("%v overflows %s", f, dst.Type())
		}
		dst.SetUint(uint64(f))
	}
	return ""
}

func setFloat(dst reflect.Value, f float64) string {
	if !math.IsInf(f, 0) && dst.OverflowFloat(f) {
		return fmt.Sprintf("%v overflows %s", f, dst.Type())
	}
	dst.SetFloat(f)
	return ""
}

func isInt(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUint(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

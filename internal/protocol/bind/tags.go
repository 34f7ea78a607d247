package bind

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/danmuck/canextract/internal/protocol/schema"
)

// TagName is the struct tag read by SchemaOf.
const TagName = "can"

// fieldTag is the parsed form of `can:"offset=0,extract=2,big_endian,decoder=x"`.
type fieldTag struct {
	name      string
	offset    int
	hasOffset bool
	extract   int
	bigEndian bool
	decoder   string
}

// containerTag is read from a blank `_ struct{}` field.
type containerTag struct {
	name       string
	sequential bool
	frameLen   int
	hasLen     bool
	id         uint32
	hasID      bool
}

func splitTag(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseFieldTag(raw string) (fieldTag, error) {
	var ft fieldTag
	for _, p := range splitTag(raw) {
		key, val, isProp := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if !isProp {
			switch key {
			case "big_endian", "use_big_endian":
				ft.bigEndian = true
			case "little_endian":
				ft.bigEndian = false
			default:
				return fieldTag{}, fmt.Errorf("unknown field attribute %q", key)
			}
			continue
		}
		switch key {
		case "offset":
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return fieldTag{}, fmt.Errorf("invalid offset value %q", val)
			}
			ft.offset = n
			ft.hasOffset = true
		case "extract":
			n, err := strconv.Atoi(val)
			if err != nil || n <= 0 {
				return fieldTag{}, fmt.Errorf("invalid extract value %q", val)
			}
			ft.extract = n
		case "decoder", "use_decoder":
			if val == "" {
				return fieldTag{}, fmt.Errorf("empty decoder name")
			}
			ft.decoder = val
		case "name":
			ft.name = val
		default:
			return fieldTag{}, fmt.Errorf("unknown field attribute %q", key)
		}
	}
	return ft, nil
}

func parseContainerTag(raw string) (containerTag, error) {
	var ct containerTag
	for _, p := range splitTag(raw) {
		key, val, isProp := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if !isProp {
			switch key {
			case "sequential":
				ct.sequential = true
			default:
				return containerTag{}, fmt.Errorf("unknown container attribute %q", key)
			}
			continue
		}
		switch key {
		case "name":
			ct.name = val
		case "frame_len":
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return containerTag{}, fmt.Errorf("invalid frame_len value %q", val)
			}
			ct.frameLen = n
			ct.hasLen = true
		case "id":
			n, err := strconv.ParseUint(val, 0, 32)
			if err != nil {
				return containerTag{}, fmt.Errorf("invalid id value %q", val)
			}
			ct.id = uint32(n)
			ct.hasID = true
		default:
			return containerTag{}, fmt.Errorf("unknown container attribute %q", key)
		}
	}
	return ct, nil
}

// kindOf maps a Go field type to a scalar kind. Width is non-zero only for
// byte arrays.
func kindOf(t reflect.Type) (schema.Kind, int, bool) {
	switch t.Kind() {
	case reflect.Uint8:
		return schema.Uint8, 0, true
	case reflect.Uint16:
		return schema.Uint16, 0, true
	case reflect.Uint32:
		return schema.Uint32, 0, true
	case reflect.Uint64:
		return schema.Uint64, 0, true
	case reflect.Int8:
		return schema.Int8, 0, true
	case reflect.Int16:
		return schema.Int16, 0, true
	case reflect.Int32:
		return schema.Int32, 0, true
	case reflect.Int64:
		return schema.Int64, 0, true
	case reflect.Float32:
		return schema.Float32, 0, true
	case reflect.Float64:
		return schema.Float64, 0, true
	case reflect.Bool:
		return schema.Bool, 0, true
	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return schema.Bytes, t.Len(), true
		}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return schema.Bytes, 0, true
		}
	}
	return schema.KindNone, 0, false
}

// storable reports whether every value of kind k (width bytes for Bytes) fits
// in a field of type t without loss.
func storable(k schema.Kind, width int, t reflect.Type) bool {
	if t.Kind() == reflect.Interface {
		return t.NumMethod() == 0
	}
	got, n, ok := kindOf(t)
	if !ok {
		return false
	}
	if got == k {
		return k != schema.Bytes || t.Kind() == reflect.Slice || n == width
	}
	switch {
	case isUnsignedKind(k):
		if isUnsignedKind(got) || isSignedKind(got) {
			return got.Size() > k.Size()
		}
		return fitsFloat(k, got)
	case isSignedKind(k):
		if isSignedKind(got) {
			return got.Size() > k.Size()
		}
		return fitsFloat(k, got)
	case k == schema.Float32:
		return got == schema.Float64
	}
	return false
}

// fitsFloat reports whether integer kind k is exact in float kind f.
func fitsFloat(k, f schema.Kind) bool {
	switch f {
	case schema.Float32:
		return k.Size() <= 2
	case schema.Float64:
		return k.Size() <= 4
	}
	return false
}

func isUnsignedKind(k schema.Kind) bool {
	return k >= schema.Uint8 && k <= schema.Uint64
}

func isSignedKind(k schema.Kind) bool {
	return k >= schema.Int8 && k <= schema.Int64
}

package schema

import "strings"

// Kind is the scalar type a field converts to when no decoder hook is set.
type Kind uint8

const (
	KindNone Kind = iota // only valid together with a decoder hook
	Uint8
	Uint16
	Uint32
	Uint64
	Int8
	Int16
	Int32
	Int64
	Float32
	Float64
	Bool
	Bytes // raw copy; width must be given explicitly
)

var kindNames = [...]string{
	KindNone: "none",
	Uint8:    "u8",
	Uint16:   "u16",
	Uint32:   "u32",
	Uint64:   "u64",
	Int8:     "i8",
	Int16:    "i16",
	Int32:    "i32",
	Int64:    "i64",
	Float32:  "f32",
	Float64:  "f64",
	Bool:     "bool",
	Bytes:    "bytes",
}

// Size is the native byte size of the kind; 0 for KindNone and Bytes.
func (k Kind) Size() int {
	switch k {
	case Uint8, Int8, Bool:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32, Float32:
		return 4
	case Uint64, Int64, Float64:
		return 8
	default:
		return 0
	}
}

func (k Kind) Valid() bool {
	return k <= Bytes
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// ParseKind accepts the short names (u16, f32) and the Go names (uint16,
// float32). An empty string yields KindNone.
func ParseKind(raw string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "none":
		return KindNone, true
	case "u8", "uint8", "byte":
		return Uint8, true
	case "u16", "uint16":
		return Uint16, true
	case "u32", "uint32":
		return Uint32, true
	case "u64", "uint64":
		return Uint64, true
	case "i8", "int8":
		return Int8, true
	case "i16", "int16":
		return Int16, true
	case "i32", "int32":
		return Int32, true
	case "i64", "int64":
		return Int64, true
	case "f32", "float32":
		return Float32, true
	case "f64", "float64":
		return Float64, true
	case "bool":
		return Bool, true
	case "bytes", "raw":
		return Bytes, true
	default:
		return KindNone, false
	}
}

// Order is the byte order of a scalar field.
type Order uint8

const (
	LittleEndian Order = iota
	BigEndian
)

func (o Order) String() string {
	if o == BigEndian {
		return "big"
	}
	return "little"
}

// Layout selects how field positions are resolved.
type Layout uint8

const (
	// LayoutExplicit uses each field's declared offset.
	LayoutExplicit Layout = iota
	// LayoutSequential ignores offsets and walks a cursor through the frame.
	LayoutSequential
)

func (l Layout) String() string {
	if l == LayoutSequential {
		return "sequential"
	}
	return "explicit"
}

func ParseLayout(raw string) (Layout, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "explicit", "offset":
		return LayoutExplicit, true
	case "sequential", "cursor":
		return LayoutSequential, true
	default:
		return LayoutExplicit, false
	}
}

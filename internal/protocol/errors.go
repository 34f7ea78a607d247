package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrSlicing    = errors.New("protocol: invalid slicing length")
	ErrConversion = errors.New("protocol: invalid bytes conversion")
	ErrHook       = errors.New("protocol: decoder hook failed")
	ErrSchema     = errors.New("protocol: invalid schema")
)

// SlicingError reports a window [Offset, Offset+Width) that does not fit the
// frame. Field is empty and Index is -1 when raised outside a decode call.
type SlicingError struct {
	Field  string
	Index  int
	Offset int
	Width  int
	Len    int
}

func (e *SlicingError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("protocol: slice [%d:%d] out of range for frame length %d", e.Offset, e.Offset+e.Width, e.Len)
	}
	return fmt.Sprintf(
		"protocol: field %q (#%d): slice [%d:%d] out of range for frame length %d",
		e.Field, e.Index, e.Offset, e.Offset+e.Width, e.Len,
	)
}

func (e *SlicingError) Is(target error) bool { return target == ErrSlicing }

// ConversionError reports an extracted byte count that does not match the
// native size of the target scalar, or a value that cannot be stored in the
// destination type.
type ConversionError struct {
	Field  string
	Index  int
	Offset int
	Want   int
	Got    int
	Reason string
}

func (e *ConversionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("protocol: field %q (#%d) at offset %d: %s", e.Field, e.Index, e.Offset, e.Reason)
	}
	return fmt.Sprintf(
		"protocol: field %q (#%d) at offset %d: cannot convert %d bytes, want %d",
		e.Field, e.Index, e.Offset, e.Got, e.Want,
	)
}

func (e *ConversionError) Is(target error) bool { return target == ErrConversion }

// HookError wraps the failure of a custom decoder hook.
type HookError struct {
	Field   string
	Index   int
	Offset  int
	Decoder string
	Err     error
}

func (e *HookError) Error() string {
	return fmt.Sprintf(
		"protocol: field %q (#%d) at offset %d: decoder %q: %v",
		e.Field, e.Index, e.Offset, e.Decoder, e.Err,
	)
}

func (e *HookError) Is(target error) bool { return target == ErrHook }

func (e *HookError) Unwrap() error { return e.Err }

// SchemaError is raised when a schema is built, never while decoding.
// Index is -1 for schema-level problems.
type SchemaError struct {
	Schema string
	Field  string
	Index  int
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" && e.Index < 0 {
		return fmt.Sprintf("protocol: schema %q: %s", e.Schema, e.Reason)
	}
	return fmt.Sprintf("protocol: schema %q field %q (#%d): %s", e.Schema, e.Field, e.Index, e.Reason)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// FieldOf returns the field name attributed by any engine or schema error.
func FieldOf(err error) (string, bool) {
	var se *SlicingError
	if errors.As(err, &se) {
		return se.Field, se.Field != ""
	}
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Field, true
	}
	var he *HookError
	if errors.As(err, &he) {
		return he.Field, true
	}
	var sc *SchemaError
	if errors.As(err, &sc) {
		return sc.Field, sc.Field != ""
	}
	return "", false
}

// Kind names the taxonomy bucket of err, for logs and metric labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSlicing):
		return "slicing"
	case errors.Is(err, ErrConversion):
		return "conversion"
	case errors.Is(err, ErrHook):
		return "hook"
	case errors.Is(err, ErrSchema):
		return "schema"
	default:
		return "other"
	}
}

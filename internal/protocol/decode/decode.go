// Package decode applies a record schema to a raw frame.
//
// Decode is synchronous and side-effect-free: it performs no I/O, holds no
// locks and allocates only the output record and private copies handed to
// decoder hooks. One schema may be shared by any number of concurrent calls.
package decode

import (
	"errors"
	"fmt"

	"github.com/danmuck/canextract/internal/protocol"
	"github.com/danmuck/canextract/internal/protocol/schema"
	"github.com/danmuck/canextract/internal/protocol/window"
	"github.com/rs/zerolog/log"
)

// Func is the shape of Decode, used by wrappers that add metrics or logging.
type Func func(s *schema.Schema, frame []byte) (Record, error)

// Decode converts frame into a record. The first failing field aborts the
// call; no partial record is returned.
func Decode(s *schema.Schema, frame []byte) (Record, error) {
	if s == nil {
		return Record{}, &protocol.SchemaError{Index: -1, Reason: "nil schema"}
	}

	var cur *window.Cursor
	if s.Layout() == schema.LayoutSequential {
		cur = window.NewCursor(0)
	}

	values := make([]Value, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		f := s.Field(i)
		v, err := decodeField(i, f, frame, cur)
		if err != nil {
			log.Debug().
				Err(err).
				Str("schema", s.Name()).
				Str("field", f.Name).
				Int("index", i).
				Int("frame_len", len(frame)).
				Msg("decode.Decode failed")
			return Record{}, err
		}
		values = append(values, Value{Name: f.Name, Value: v})
	}
	return Record{Schema: s.Name(), Values: values}, nil
}

func decodeField(i int, f schema.Field, frame []byte, cur *window.Cursor) (any, error) {
	offset := f.Offset
	var (
		raw []byte
		err error
	)
	if cur != nil {
		offset = cur.Pos()
		raw, err = cur.Advance(frame, f.Width)
	} else {
		raw, err = window.Extract(frame, offset, f.Width)
	}
	if err != nil {
		return nil, attributeSlicing(err, i, f.Name)
	}

	if f.Decoder != nil {
		return runHook(i, f, offset, raw)
	}
	return convert(i, f, offset, raw)
}

func attributeSlicing(err error, i int, name string) error {
	var se *protocol.SlicingError
	if !errors.As(err, &se) {
		return err
	}
	out := *se
	out.Field = name
	out.Index = i
	return &out
}

func runHook(i int, f schema.Field, offset int, raw []byte) (v any, err error) {
	buf := make([]byte, len(raw))
	copy(buf, raw)

	defer func() {
		if r := recover(); r != nil {
			v = nil
			err = &protocol.HookError{
				Field:   f.Name,
				Index:   i,
				Offset:  offset,
				Decoder: f.DecoderName,
				Err:     fmt.Errorf("panic: %v", r),
			}
		}
	}()

	v, err = f.Decoder(buf)
	if err != nil {
		return nil, &protocol.HookError{
			Field:   f.Name,
			Index:   i,
			Offset:  offset,
			Decoder: f.DecoderName,
			Err:     err,
		}
	}
	return v, nil
}

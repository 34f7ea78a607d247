package decode

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"

	"github.com/danmuck/canextract/internal/protocol"
	"github.com/danmuck/canextract/internal/protocol/hooks"
	"github.com/danmuck/canextract/internal/protocol/schema"
	"github.com/danmuck/canextract/internal/testutil/testlog"
)

func TestDecodeTwoU32LittleEndian(t *testing.T) {
	testlog.Start(t)
	s := schema.New("ding").
		Field("a", schema.Uint32).At(0).
		Field("b", schema.Uint32).At(4).
		MustBuild()

	rec, err := Decode(s, []byte{0, 0, 0, 0, 1, 0, 0, 0})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Schema != "ding" || rec.Len() != 2 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if a, _ := rec.Get("a"); a != uint32(0) {
		t.Fatalf("a: got %#v", a)
	}
	if b, _ := rec.Get("b"); b != uint32(1) {
		t.Fatalf("b: got %#v", b)
	}
}

func TestDecodeMixedEndiannessAndHook(t *testing.T) {
	testlog.Start(t)
	s := schema.New("mixed").
		Field("a", schema.Uint16).At(0).
		Field("b", schema.Uint16).At(2).BigEndian().
		Field("c", schema.KindNone).At(6).Extract(2).Decoder("milli_u16be").
		MustBuild()

	rec, err := Decode(s, []byte{5, 0, 0, 5, 0, 0, 0, 1})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a, _ := rec.Get("a"); a != uint16(5) {
		t.Fatalf("a: got %#v", a)
	}
	if b, _ := rec.Get("b"); b != uint16(5) {
		t.Fatalf("b: got %#v", b)
	}
	c, _ := rec.Get("c")
	if f, ok := c.(float64); !ok || math.Abs(f-0.001) > 1e-9 {
		t.Fatalf("c: got %#v", c)
	}
	if !reflect.DeepEqual(rec.Names(), []string{"a", "b", "c"}) {
		t.Fatalf("unexpected order: %v", rec.Names())
	}
}

func TestDecodeWindowPastFrameIsSlicingError(t *testing.T) {
	testlog.Start(t)
	s := schema.New("spill").
		Field("head", schema.Uint8).At(0).
		Field("tail", schema.Uint32).At(6).
		MustBuild()

	rec, err := Decode(s, make([]byte, 8))
	if !errors.Is(err, protocol.ErrSlicing) {
		t.Fatalf("expected ErrSlicing, got %v", err)
	}
	var se *protocol.SlicingError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SlicingError, got %T", err)
	}
	if se.Field != "tail" || se.Index != 1 || se.Offset != 6 || se.Width != 4 || se.Len != 8 {
		t.Fatalf("unexpected attribution: %+v", se)
	}
	if rec.Len() != 0 {
		t.Fatalf("partial record returned: %+v", rec)
	}
	if name, ok := protocol.FieldOf(err); !ok || name != "tail" {
		t.Fatalf("FieldOf: %q %v", name, ok)
	}
}

func TestDecodeHookRejectsWidthOverride(t *testing.T) {
	testlog.Start(t)
	s := schema.New("hookwidth").
		Field("c", schema.KindNone).At(4).Extract(3).Decoder("milli_u16be").
		MustBuild()

	_, err := Decode(s, make([]byte, 8))
	if !errors.Is(err, protocol.ErrHook) {
		t.Fatalf("expected ErrHook, got %v", err)
	}
	if errors.Is(err, protocol.ErrSlicing) || errors.Is(err, protocol.ErrConversion) {
		t.Fatalf("hook failure must be distinguishable: %v", err)
	}
	var he *protocol.HookError
	if !errors.As(err, &he) {
		t.Fatalf("expected *HookError, got %T", err)
	}
	if he.Field != "c" || he.Index != 0 || he.Offset != 4 || he.Decoder != "milli_u16be" {
		t.Fatalf("unexpected attribution: %+v", he)
	}
	if !errors.Is(err, hooks.ErrWidth) {
		t.Fatalf("expected wrapped hooks.ErrWidth, got %v", err)
	}
}

func TestDecodeNeverRunsOnInvalidSchema(t *testing.T) {
	testlog.Start(t)
	called := false
	s, err := schema.New("bad").
		Field("x", schema.Uint32).At(0).Extract(3).
		Field("y", schema.KindNone).At(4).Extract(1).DecodeWith("probe", func([]byte) (any, error) {
		called = true
		return nil, nil
	}).
		Build()
	if !errors.Is(err, protocol.ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
	if s != nil {
		t.Fatalf("invalid schema must not be returned")
	}
	if _, err := Decode(s, make([]byte, 8)); !errors.Is(err, protocol.ErrSchema) {
		t.Fatalf("expected nil schema to be rejected, got %v", err)
	}
	if called {
		t.Fatalf("hook ran for an invalid schema")
	}
}

func TestDecodeWidthOverrideHonoredForHook(t *testing.T) {
	testlog.Start(t)
	var seen []byte
	s := schema.New("override").
		Field("w", schema.Uint16).At(1).Extract(5).DecodeWith("grab", func(raw []byte) (any, error) {
		seen = raw
		return len(raw), nil
	}).
		MustBuild()

	frame := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	rec, err := Decode(s, frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w, _ := rec.Get("w"); w != 5 {
		t.Fatalf("expected hook to see 5 bytes, got %v", w)
	}
	if !bytes.Equal(seen, []byte{1, 2, 3, 4, 5}) {
		t.Fatalf("unexpected hook input: %v", seen)
	}
	seen[0] = 0xFF
	if frame[1] != 1 {
		t.Fatalf("hook input aliases the frame")
	}
}

func TestDecodeHookPanicBecomesHookError(t *testing.T) {
	testlog.Start(t)
	s := schema.New("panicky").
		Field("p", schema.KindNone).Extract(1).DecodeWith("boom", func([]byte) (any, error) {
		panic("boom")
	}).
		MustBuild()
	_, err := Decode(s, []byte{1})
	var he *protocol.HookError
	if !errors.As(err, &he) || he.Field != "p" || he.Decoder != "boom" {
		t.Fatalf("expected attributed HookError, got %v", err)
	}
}

func TestDecodeScalarKinds(t *testing.T) {
	testlog.Start(t)
	s := schema.New("kinds").FrameLen(16).
		Field("u8", schema.Uint8).At(0).
		Field("i8", schema.Int8).At(1).
		Field("flag", schema.Bool).At(2).
		Field("i16be", schema.Int16).At(2).BigEndian().
		Field("i32", schema.Int32).At(4).
		Field("f32", schema.Float32).At(4).
		Field("u64be", schema.Uint64).At(8).BigEndian().
		Field("i64", schema.Int64).At(8).
		Field("f64", schema.Float64).At(8).
		Field("raw", schema.Bytes).At(14).Extract(2).
		MustBuild()

	frame := []byte{
		0xFE, 0xFE, 0x80, 0x01,
		0x00, 0x00, 0x80, 0x3F, // 1.0 as f32 LE, 0x3F800000 as i32
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xF0, 0x3F, // 1.0 as f64 LE
	}
	rec, err := Decode(s, frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]any{
		"u8":    uint8(0xFE),
		"i8":    int8(-2),
		"flag":  true,
		"i16be": int16(-32767),
		"i32":   int32(0x3F800000),
		"f32":   float32(1),
		"u64be": uint64(0xF03F),
		"i64":   int64(0x3FF0000000000000),
		"f64":   float64(1),
		"raw":   []byte{0xF0, 0x3F},
	}
	if got := rec.Map(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected values:\n got=%#v\nwant=%#v", got, want)
	}
}

func TestDecodeNaNIsNotAnError(t *testing.T) {
	testlog.Start(t)
	s := schema.New("nan").Field("f", schema.Float32).At(0).MustBuild()
	rec, err := Decode(s, []byte{0x00, 0x00, 0xC0, 0x7F})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f, _ := rec.Get("f"); !math.IsNaN(float64(f.(float32))) {
		t.Fatalf("expected NaN, got %v", f)
	}
}

func TestDecodeSequentialLayout(t *testing.T) {
	testlog.Start(t)
	s := schema.New("dong").Sequential().
		Field("a", schema.Uint32).
		Field("b", schema.Uint32).
		MustBuild()

	rec, err := Decode(s, []byte{0, 0, 0, 0, 1, 0, 0, 0})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a, _ := rec.Get("a"); a != uint32(0) {
		t.Fatalf("a: %#v", a)
	}
	if b, _ := rec.Get("b"); b != uint32(1) {
		t.Fatalf("b: %#v", b)
	}

	_, err = Decode(s, []byte{0, 0, 0, 0, 1, 0})
	var se *protocol.SlicingError
	if !errors.As(err, &se) || se.Field != "b" || se.Offset != 4 || se.Len != 6 {
		t.Fatalf("expected SlicingError on b at cursor 4, got %v", err)
	}
}

func TestDecodeShortFrameWithSameSchema(t *testing.T) {
	testlog.Start(t)
	s := schema.New("varlen").
		Field("a", schema.Uint16).At(0).
		Field("b", schema.Uint16).At(2).
		MustBuild()

	if _, err := Decode(s, []byte{1, 0, 2, 0}); err != nil {
		t.Fatalf("4-byte frame should decode: %v", err)
	}
	_, err := Decode(s, []byte{1, 0, 2})
	if name, _ := protocol.FieldOf(err); !errors.Is(err, protocol.ErrSlicing) || name != "b" {
		t.Fatalf("expected slicing on b, got %v", err)
	}
	if _, err := Decode(s, nil); !errors.Is(err, protocol.ErrSlicing) {
		t.Fatalf("expected slicing on empty frame, got %v", err)
	}
}

func TestDecodeIsDeterministic(t *testing.T) {
	testlog.Start(t)
	s := schema.New("det").
		Field("a", schema.Uint32).At(0).
		Field("b", schema.Uint16).At(2).BigEndian().
		Field("c", schema.KindNone).At(6).Extract(2).Decoder("milli_u16le").
		MustBuild()
	frame := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	orig := append([]byte(nil), frame...)

	first, err := Decode(s, frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := Decode(s, frame)
		if err != nil {
			t.Fatalf("decode #%d: %v", i, err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("decode #%d differs: %+v vs %+v", i, first, again)
		}
	}
	if !bytes.Equal(frame, orig) {
		t.Fatalf("frame mutated")
	}
}

func TestDecodeConcurrentSharedSchema(t *testing.T) {
	testlog.Start(t)
	s := schema.New("shared").
		Field("n", schema.Uint32).At(0).
		Field("m", schema.Uint32).At(4).BigEndian().
		MustBuild()

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				v := byte(g*31 + i)
				rec, err := Decode(s, []byte{v, 0, 0, 0, 0, 0, 0, v})
				if err != nil {
					errs <- err
					return
				}
				n, _ := rec.Get("n")
				m, _ := rec.Get("m")
				if n != uint32(v) || m != uint32(v) {
					errs <- errors.New("cross-talk between concurrent decodes")
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent decode: %v", err)
	}
}

func TestConvertLengthMismatchIsConversionError(t *testing.T) {
	f := schema.Field{Name: "x", Kind: schema.Uint32, Offset: 2, Width: 3}
	_, err := convert(5, f, 2, []byte{1, 2, 3})
	if !errors.Is(err, protocol.ErrConversion) {
		t.Fatalf("expected ErrConversion, got %v", err)
	}
	var ce *protocol.ConversionError
	if !errors.As(err, &ce) || ce.Field != "x" || ce.Index != 5 || ce.Offset != 2 || ce.Want != 4 || ce.Got != 3 {
		t.Fatalf("unexpected attribution: %+v", ce)
	}

	_, err = convert(0, schema.Field{Name: "none"}, 0, []byte{1})
	if !errors.Is(err, protocol.ErrConversion) {
		t.Fatalf("expected ErrConversion for missing kind, got %v", err)
	}
	if protocol.Kind(err) != "conversion" {
		t.Fatalf("unexpected kind label: %s", protocol.Kind(err))
	}
}

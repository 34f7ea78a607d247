package hooks

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestRegistryRegisterLookup(t *testing.T) {
	r := NewRegistry()
	h := func(raw []byte) (any, error) { return len(raw), nil }
	if err := r.Register("len", h); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("len", h); !errors.Is(err, ErrDuplicateHook) {
		t.Fatalf("expected ErrDuplicateHook, got %v", err)
	}
	if err := r.Register(" ", h); !errors.Is(err, ErrInvalidHook) {
		t.Fatalf("expected ErrInvalidHook for blank name, got %v", err)
	}
	if err := r.Register("nil", nil); !errors.Is(err, ErrInvalidHook) {
		t.Fatalf("expected ErrInvalidHook for nil hook, got %v", err)
	}

	got, ok := r.Lookup("len")
	if !ok {
		t.Fatalf("expected hook")
	}
	v, err := got([]byte{1, 2, 3})
	if err != nil || v != 3 {
		t.Fatalf("unexpected hook result v=%v err=%v", v, err)
	}
	if _, err := r.Resolve("missing"); !errors.Is(err, ErrUnknownHook) {
		t.Fatalf("expected ErrUnknownHook, got %v", err)
	}
	if names := r.Names(); len(names) != 1 || names[0] != "len" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestChainPrefersFirstResolver(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()
	a.MustRegister("x", func([]byte) (any, error) { return "a", nil })
	b.MustRegister("x", func([]byte) (any, error) { return "b", nil })
	b.MustRegister("y", func([]byte) (any, error) { return "b", nil })

	c := Chain{nil, a, b}
	hx, ok := c.Lookup("x")
	if !ok {
		t.Fatalf("expected x")
	}
	if v, _ := hx(nil); v != "a" {
		t.Fatalf("expected first resolver to win, got %v", v)
	}
	if _, ok := c.Lookup("y"); !ok {
		t.Fatalf("expected fallback lookup of y")
	}
	if _, ok := c.Lookup("z"); ok {
		t.Fatalf("unexpected z")
	}
}

func TestDefaultMilliU16BE(t *testing.T) {
	h, ok := Default().Lookup("milli_u16be")
	if !ok {
		t.Fatalf("milli_u16be not registered")
	}
	v, err := h([]byte{0, 1})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f, ok := v.(float64); !ok || math.Abs(f-0.001) > 1e-12 {
		t.Fatalf("unexpected value: %#v", v)
	}
	_, err = h([]byte{0, 1, 2})
	if !errors.Is(err, ErrWidth) {
		t.Fatalf("expected ErrWidth, got %v", err)
	}
	var we WidthError
	if !errors.As(err, &we) || we.Want != 2 || we.Got != 3 {
		t.Fatalf("unexpected width error: %+v", we)
	}
}

func TestScaledSignedAndValidation(t *testing.T) {
	h, err := Scaled(2, true, binary.LittleEndian, 100)
	if err != nil {
		t.Fatalf("scaled: %v", err)
	}
	v, err := h([]byte{0x9C, 0xFF}) // -100
	if err != nil || v.(float64) != -1 {
		t.Fatalf("unexpected value v=%v err=%v", v, err)
	}
	if _, err := Scaled(3, false, binary.LittleEndian, 1); !errors.Is(err, ErrInvalidHook) {
		t.Fatalf("expected ErrInvalidHook for size 3, got %v", err)
	}
	if _, err := Scaled(2, false, binary.LittleEndian, 0); !errors.Is(err, ErrInvalidHook) {
		t.Fatalf("expected ErrInvalidHook for zero divisor, got %v", err)
	}
}

func TestFlag(t *testing.T) {
	h, err := Flag(3)
	if err != nil {
		t.Fatalf("flag: %v", err)
	}
	v, err := h([]byte{0x08})
	if err != nil || v != true {
		t.Fatalf("expected bit 3 set, v=%v err=%v", v, err)
	}
	v, err = h([]byte{0x07})
	if err != nil || v != false {
		t.Fatalf("expected bit 3 clear, v=%v err=%v", v, err)
	}
	if _, err := h(nil); !errors.Is(err, ErrWidth) {
		t.Fatalf("expected ErrWidth, got %v", err)
	}
}

func TestFlagRejectsBitOutsideByte(t *testing.T) {
	for _, bit := range []uint{8, 9, 64} {
		if _, err := Flag(bit); !errors.Is(err, ErrInvalidHook) {
			t.Fatalf("bit %d: expected ErrInvalidHook, got %v", bit, err)
		}
	}
	h, err := Flag(7)
	if err != nil {
		t.Fatalf("flag 7: %v", err)
	}
	if v, _ := h([]byte{0x80}); v != true {
		t.Fatalf("expected bit 7 set, got %v", v)
	}
}

func TestRegistryBuildIsQuiet(t *testing.T) {
	var buf bytes.Buffer
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	defer func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	}()

	r := newDefaultRegistry()
	r.MustRegister("extra", func(raw []byte) (any, error) { return nil, nil })
	if buf.Len() != 0 {
		t.Fatalf("registry setup logged: %s", buf.String())
	}
}

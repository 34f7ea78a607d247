package window

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/danmuck/canextract/internal/protocol"
)

func TestExtractWithinBounds(t *testing.T) {
	buf := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	cases := []struct {
		offset, width int
		want          []byte
	}{
		{0, 4, []byte{0, 1, 2, 3}},
		{4, 4, []byte{4, 5, 6, 7}},
		{7, 1, []byte{7}},
		{8, 0, []byte{}},
		{2, 0, []byte{}},
	}
	for _, tc := range cases {
		got, err := Extract(buf, tc.offset, tc.width)
		if err != nil {
			t.Fatalf("extract(%d,%d): %v", tc.offset, tc.width, err)
		}
		if !bytes.Equal(got, tc.want) {
			t.Fatalf("extract(%d,%d): got %v want %v", tc.offset, tc.width, got, tc.want)
		}
	}
}

func TestExtractOutOfBoundsIsSlicingError(t *testing.T) {
	buf := make([]byte, 8)
	cases := []struct {
		name          string
		offset, width int
	}{
		{"past end", 6, 4},
		{"offset beyond", 9, 0},
		{"negative offset", -1, 2},
		{"negative width", 2, -1},
		{"overflow", 1, math.MaxInt},
	}
	for _, tc := range cases {
		_, err := Extract(buf, tc.offset, tc.width)
		if !errors.Is(err, protocol.ErrSlicing) {
			t.Fatalf("%s: expected ErrSlicing, got %v", tc.name, err)
		}
		var se *protocol.SlicingError
		if !errors.As(err, &se) {
			t.Fatalf("%s: expected *SlicingError, got %T", tc.name, err)
		}
		if se.Offset != tc.offset || se.Width != tc.width || se.Len != 8 {
			t.Fatalf("%s: unexpected attribution: %+v", tc.name, se)
		}
	}
}

func TestExtractDoesNotMutateOrLeakCapacity(t *testing.T) {
	buf := []byte{9, 8, 7, 6}
	got, err := Extract(buf, 1, 2)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if cap(got) != 2 {
		t.Fatalf("expected capped window, cap=%d", cap(got))
	}
	got = append(got, 0xFF)
	if !bytes.Equal(buf, []byte{9, 8, 7, 6}) {
		t.Fatalf("buffer mutated: %v", buf)
	}
}

func TestCursorAdvancesOnlyOnSuccess(t *testing.T) {
	buf := []byte{0, 0, 0, 0, 1, 0, 0, 0}
	c := NewCursor(0)

	a, err := c.Advance(buf, 4)
	if err != nil {
		t.Fatalf("advance a: %v", err)
	}
	if !bytes.Equal(a, []byte{0, 0, 0, 0}) || c.Pos() != 4 {
		t.Fatalf("unexpected first window=%v pos=%d", a, c.Pos())
	}

	if _, err := c.Advance(buf, 5); !errors.Is(err, protocol.ErrSlicing) {
		t.Fatalf("expected ErrSlicing, got %v", err)
	}
	if c.Pos() != 4 {
		t.Fatalf("cursor moved on failure: pos=%d", c.Pos())
	}
	if c.Remaining(buf) != 4 {
		t.Fatalf("unexpected remaining: %d", c.Remaining(buf))
	}

	b, err := c.Advance(buf, 4)
	if err != nil {
		t.Fatalf("advance b: %v", err)
	}
	if !bytes.Equal(b, []byte{1, 0, 0, 0}) || c.Pos() != 8 || c.Remaining(buf) != 0 {
		t.Fatalf("unexpected second window=%v pos=%d", b, c.Pos())
	}

	c.Reset()
	if c.Pos() != 0 {
		t.Fatalf("reset failed: pos=%d", c.Pos())
	}
}

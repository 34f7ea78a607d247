// Package window provides bounds-checked byte extraction from fixed buffers.
package window

import "github.com/danmuck/canextract/internal/protocol"

// Extract returns buf[offset:offset+width] or a *protocol.SlicingError when
// the window does not fit. The returned slice aliases buf.
func Extract(buf []byte, offset, width int) ([]byte, error) {
	end, ok := bound(len(buf), offset, width)
	if !ok {
		return nil, &protocol.SlicingError{Index: -1, Offset: offset, Width: width, Len: len(buf)}
	}
	return buf[offset:end:end], nil
}

// bound computes offset+width and reports whether it lies within n.
func bound(n, offset, width int) (int, bool) {
	if offset < 0 || width < 0 || offset > n {
		return 0, false
	}
	// offset <= n here, so width > n-offset also catches overflow.
	if width > n-offset {
		return 0, false
	}
	return offset + width, true
}

// Cursor tracks a running position for sequential extraction.
// It is not safe for concurrent use.
type Cursor struct {
	pos int
}

// NewCursor returns a cursor positioned at start.
func NewCursor(start int) *Cursor {
	return &Cursor{pos: start}
}

// Pos returns the current position.
func (c *Cursor) Pos() int {
	return c.pos
}

// Reset moves the cursor back to the start of the buffer.
func (c *Cursor) Reset() {
	c.pos = 0
}

// Remaining reports how many bytes of buf lie after the cursor.
func (c *Cursor) Remaining(buf []byte) int {
	if c.pos >= len(buf) {
		return 0
	}
	return len(buf) - c.pos
}

// Advance extracts width bytes at the cursor and moves the cursor past them.
// On failure the cursor is left where it was.
func (c *Cursor) Advance(buf []byte, width int) ([]byte, error) {
	out, err := Extract(buf, c.pos, width)
	if err != nil {
		return nil, err
	}
	c.pos += width
	return out, nil
}

package hooks

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrWidth = errors.New("hooks: unexpected input width")

// WidthError is returned by hooks that require an exact input width.
type WidthError struct {
	Want int
	Got  int
}

func (e WidthError) Error() string {
	return fmt.Sprintf("hooks: need %d bytes, got %d", e.Want, e.Got)
}

func (e WidthError) Is(target error) bool { return target == ErrWidth }

// ExactWidth returns an error unless len(raw) == n.
func ExactWidth(raw []byte, n int) error {
	if len(raw) != n {
		return WidthError{Want: n, Got: len(raw)}
	}
	return nil
}

// Scaled returns a hook that reads a size-byte integer in the given byte
// order and divides it by divisor, producing a float64. size must be 1, 2, 4
// or 8.
func Scaled(size int, signed bool, order binary.ByteOrder, divisor float64) (Hook, error) {
	switch size {
	case 1, 2, 4, 8:
	default:
		return nil, fmt.Errorf("%w: unsupported integer size %d", ErrInvalidHook, size)
	}
	if divisor == 0 {
		return nil, fmt.Errorf("%w: zero divisor", ErrInvalidHook)
	}
	return func(raw []byte) (any, error) {
		if err := ExactWidth(raw, size); err != nil {
			return nil, err
		}
		var v float64
		switch size {
		case 1:
			if signed {
				v = float64(int8(raw[0]))
			} else {
				v = float64(raw[0])
			}
		case 2:
			u := order.Uint16(raw)
			if signed {
				v = float64(int16(u))
			} else {
				v = float64(u)
			}
		case 4:
			u := order.Uint32(raw)
			if signed {
				v = float64(int32(u))
			} else {
				v = float64(u)
			}
		case 8:
			u := order.Uint64(raw)
			if signed {
				v = float64(int64(u))
			} else {
				v = float64(u)
			}
		}
		return v / divisor, nil
	}, nil
}

func mustScaled(size int, signed bool, order binary.ByteOrder, divisor float64) Hook {
	h, err := Scaled(size, signed, order, divisor)
	if err != nil {
		panic(err)
	}
	return h
}

// Flag returns a hook that reports whether bit (0 = least significant) of a
// single byte is set. bit must be 0..7.
func Flag(bit uint) (Hook, error) {
	if bit > 7 {
		return nil, fmt.Errorf("%w: bit %d outside one byte", ErrInvalidHook, bit)
	}
	mask := byte(1) << bit
	return func(raw []byte) (any, error) {
		if err := ExactWidth(raw, 1); err != nil {
			return nil, err
		}
		return raw[0]&mask != 0, nil
	}, nil
}

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister("milli_u16be", mustScaled(2, false, binary.BigEndian, 1000))
	r.MustRegister("milli_u16le", mustScaled(2, false, binary.LittleEndian, 1000))
	r.MustRegister("centi_i16le", mustScaled(2, true, binary.LittleEndian, 100))
	r.MustRegister("deci_u16le", mustScaled(2, false, binary.LittleEndian, 10))
	r.MustRegister("milli_i32le", mustScaled(4, true, binary.LittleEndian, 1000))
	r.MustRegister("hex", func(raw []byte) (any, error) {
		return fmt.Sprintf("%x", raw), nil
	})
	return r
}

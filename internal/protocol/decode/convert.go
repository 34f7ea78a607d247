package decode

import (
	"encoding/binary"
	"math"

	"github.com/danmuck/canextract/internal/protocol"
	"github.com/danmuck/canextract/internal/protocol/schema"
)

func byteOrder(o schema.Order) binary.ByteOrder {
	if o == schema.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// convert reinterprets raw as the field's scalar kind. The length check runs
// before any conversion routine sees the bytes.
func convert(i int, f schema.Field, offset int, raw []byte) (any, error) {
	if f.Kind == schema.Bytes {
		out := make([]byte, len(raw))
		copy(out, raw)
		return out, nil
	}

	size := f.Kind.Size()
	if size == 0 {
		return nil, &protocol.ConversionError{
			Field:  f.Name,
			Index:  i,
			Offset: offset,
			Got:    len(raw),
			Reason: "field has no scalar kind and no decoder",
		}
	}
	if len(raw) != size {
		return nil, &protocol.ConversionError{Field: f.Name, Index: i, Offset: offset, Want: size, Got: len(raw)}
	}

	order := byteOrder(f.Order)
	switch f.Kind {
	case schema.Uint8:
		return raw[0], nil
	case schema.Int8:
		return int8(raw[0]), nil
	case schema.Bool:
		return raw[0] != 0, nil
	case schema.Uint16:
		return order.Uint16(raw), nil
	case schema.Int16:
		return int16(order.Uint16(raw)), nil
	case schema.Uint32:
		return order.Uint32(raw), nil
	case schema.Int32:
		return int32(order.Uint32(raw)), nil
	case schema.Uint64:
		return order.Uint64(raw), nil
	case schema.Int64:
		return int64(order.Uint64(raw)), nil
	case schema.Float32:
		return math.Float32frombits(order.Uint32(raw)), nil
	case schema.Float64:
		return math.Float64frombits(order.Uint64(raw)), nil
	default:
		return nil, &protocol.ConversionError{
			Field:  f.Name,
			Index:  i,
			Offset: offset,
			Got:    len(raw),
			Reason: "unsupported scalar kind " + f.Kind.String(),
		}
	}
}

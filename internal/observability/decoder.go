package observability

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/canextract/internal/protocol"
	"github.com/danmuck/canextract/internal/protocol/decode"
	"github.com/danmuck/canextract/internal/protocol/schema"
)

// Decoder wraps a decode function with metrics and failure logging. The
// zero value is not usable; use NewDecoder.
type Decoder struct {
	next   decode.Func
	logger zerolog.Logger
}

func NewDecoder(next decode.Func, logger zerolog.Logger) *Decoder {
	if next == nil {
		next = decode.Decode
	}
	return &Decoder{next: next, logger: logger}
}

func (d *Decoder) Decode(s *schema.Schema, frame []byte) (decode.Record, error) {
	start := time.Now()
	rec, err := d.next(s, frame)
	elapsed := time.Since(start)

	name := "<nil>"
	if s != nil {
		name = s.Name()
	}
	result := protocol.Kind(err)
	RecordDecode(name, result, elapsed)
	if err != nil {
		field, _ := protocol.FieldOf(err)
		d.logger.Warn().
			Err(err).
			Str("schema", name).
			Str("field", field).
			Str("kind", result).
			Int("frame_len", len(frame)).
			Msg("decode_failed")
	}
	return rec, err
}

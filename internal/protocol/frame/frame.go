// Package frame reads and writes CAN frames in the Linux SocketCAN
// `struct can_frame` layout and parses candump-style text lines.
package frame

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// WireLen is sizeof(struct can_frame).
	WireLen = 16
	// MaxDataLen is the classic CAN payload limit.
	MaxDataLen = 8

	FlagExtended uint32 = 0x80000000
	FlagRemote   uint32 = 0x40000000
	FlagError    uint32 = 0x20000000

	MaskStandard uint32 = 0x000007FF
	MaskExtended uint32 = 0x1FFFFFFF
)

var (
	ErrShortFrame  = errors.New("frame: short can_frame")
	ErrDataTooLong = errors.New("frame: data longer than 8 bytes")
	ErrBadLine     = errors.New("frame: malformed candump line")
)

// Frame is one classic CAN frame. ID carries no flag bits.
type Frame struct {
	ID         uint32
	Data       []byte
	IsExtended bool
	IsRemote   bool
	IsError    bool
}

// rawID folds the flag bits back into the identifier word.
func (f Frame) rawID() uint32 {
	id := f.ID & MaskExtended
	if !f.IsExtended {
		id &= MaskStandard
	} else {
		id |= FlagExtended
	}
	if f.IsRemote {
		id |= FlagRemote
	}
	if f.IsError {
		id |= FlagError
	}
	return id
}

// Encode lays f out as a can_frame. The identifier word uses order, which
// is the host byte order of the machine that produced the stream.
func Encode(f Frame, order binary.ByteOrder) ([]byte, error) {
	if len(f.Data) > MaxDataLen {
		return nil, ErrDataTooLong
	}
	buf := make([]byte, WireLen)
	order.PutUint32(buf[0:4], f.rawID())
	buf[4] = byte(len(f.Data))
	copy(buf[8:], f.Data)
	return buf, nil
}

func Decode(b []byte, order binary.ByteOrder) (Frame, error) {
	if len(b) != WireLen {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(b))
	}
	raw := order.Uint32(b[0:4])
	dlc := int(b[4])
	if dlc > MaxDataLen {
		return Frame{}, fmt.Errorf("%w: dlc %d", ErrDataTooLong, dlc)
	}
	f := Frame{
		IsExtended: raw&FlagExtended != 0,
		IsRemote:   raw&FlagRemote != 0,
		IsError:    raw&FlagError != 0,
		Data:       make([]byte, dlc),
	}
	if f.IsExtended {
		f.ID = raw & MaskExtended
	} else {
		f.ID = raw & MaskStandard
	}
	copy(f.Data, b[8:8+dlc])
	return f, nil
}

// ReadFrame reads one can_frame. A clean end of stream returns io.EOF; a
// partial frame returns ErrShortFrame.
func ReadFrame(r io.Reader, order binary.ByteOrder) (Frame, error) {
	var buf [WireLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrShortFrame
		}
		return Frame{}, err
	}
	return Decode(buf[:], order)
}

func WriteFrame(w io.Writer, f Frame, order binary.ByteOrder) error {
	b, err := Encode(f, order)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// ParseLine parses the cansend/candump form `ID#DATA`, optionally prefixed
// by candump's `(timestamp) iface ` columns. Three hex digits mean a
// standard id, eight an extended one. `ID#R` marks a remote frame.
func ParseLine(line string) (Frame, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return Frame{}, ErrBadLine
	}
	tok := fields[len(fields)-1]
	idText, dataText, ok := strings.Cut(tok, "#")
	if !ok || idText == "" {
		return Frame{}, fmt.Errorf("%w: %q", ErrBadLine, line)
	}

	id, err := strconv.ParseUint(idText, 16, 32)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: id %q", ErrBadLine, idText)
	}
	f := Frame{ID: uint32(id), IsExtended: len(idText) == 8}
	if f.IsExtended {
		f.ID &= MaskExtended
	} else if f.ID > MaskStandard {
		return Frame{}, fmt.Errorf("%w: standard id 0x%X out of range", ErrBadLine, f.ID)
	}

	if strings.HasPrefix(strings.ToUpper(dataText), "R") {
		f.IsRemote = true
		f.Data = []byte{}
		return f, nil
	}
	data, err := hex.DecodeString(strings.ReplaceAll(dataText, ".", ""))
	if err != nil {
		return Frame{}, fmt.Errorf("%w: data %q", ErrBadLine, dataText)
	}
	if len(data) > MaxDataLen {
		return Frame{}, ErrDataTooLong
	}
	f.Data = data
	return f, nil
}

// Line is the inverse of ParseLine.
func (f Frame) Line() string {
	var id string
	if f.IsExtended {
		id = fmt.Sprintf("%08X", f.ID&MaskExtended)
	} else {
		id = fmt.Sprintf("%03X", f.ID&MaskStandard)
	}
	if f.IsRemote {
		return id + "#R"
	}
	return id + "#" + strings.ToUpper(hex.EncodeToString(f.Data))
}

// Package wire implements the two serialization formats the engine and
// grader exchange: a fixed-width binary frame for engine input, and a
// line-oriented text format for engine output.
package wire

import (
	"encoding/binary"
	"fmt"

	"matchbook/internal/book"
)

// FrameSize is the fixed size, in bytes, of one input command frame.
const FrameSize = 28

// Kind identifies which of the three input commands a frame carries.
type Kind byte

const (
	KindBuy    Kind = 'B'
	KindSell   Kind = 'S'
	KindCancel Kind = 'C'
)

func (k Kind) valid() bool {
	return k == KindBuy || k == KindSell || k == KindCancel
}

// Command is a single decoded input frame.
type Command struct {
	Kind       Kind
	OrderID    book.OrderID
	Price      book.Price
	Count      book.Quantity
	Instrument string // only meaningful for KindBuy/KindSell
}

// frame layout, all fields little-endian, total 28 bytes:
//
//	offset 0:  1 byte  command kind
//	offset 1:  3 bytes padding
//	offset 4:  4 bytes order id
//	offset 8:  4 bytes price
//	offset 12: 4 bytes count
//	offset 16: 9 bytes instrument, NUL-terminated, trailing bytes zero
//	offset 25: 3 bytes padding
const (
	offKind       = 0
	offOrderID    = 4
	offPrice      = 8
	offCount      = 12
	offInstrument = 16
	instrumentLen = 9
)

// DecodeCommand parses exactly one FrameSize-byte frame.
func DecodeCommand(frame []byte) (Command, error) {
	if len(frame) != FrameSize {
		return Command{}, fmt.Errorf("wire: frame must be %d bytes, got %d", FrameSize, len(frame))
	}

	kind := Kind(frame[offKind])
	if !kind.valid() {
		return Command{}, fmt.Errorf("wire: unknown command kind %q", frame[offKind])
	}

	cmd := Command{
		Kind:    kind,
		OrderID: binary.LittleEndian.Uint32(frame[offOrderID:]),
	}
	if kind == KindCancel {
		return cmd, nil
	}

	cmd.Price = binary.LittleEndian.Uint32(frame[offPrice:])
	cmd.Count = binary.LittleEndian.Uint32(frame[offCount:])
	cmd.Instrument = decodeInstrument(frame[offInstrument : offInstrument+instrumentLen])
	return cmd, nil
}

func decodeInstrument(raw []byte) string {
	n := 0
	for n < len(raw) && raw[n] != 0 {
		n++
	}
	return string(raw[:n])
}

// EncodeCommand is the inverse of DecodeCommand, used by the grader's
// client drivers to build frames to send to the engine.
func EncodeCommand(cmd Command) ([]byte, error) {
	if !cmd.Kind.valid() {
		return nil, fmt.Errorf("wire: unknown command kind %q", byte(cmd.Kind))
	}
	if cmd.Kind != KindCancel && len(cmd.Instrument) >= instrumentLen {
		return nil, fmt.Errorf("wire: instrument %q too long", cmd.Instrument)
	}

	frame := make([]byte, FrameSize)
	frame[offKind] = byte(cmd.Kind)
	binary.LittleEndian.PutUint32(frame[offOrderID:], cmd.OrderID)
	if cmd.Kind == KindCancel {
		return frame, nil
	}

	binary.LittleEndian.PutUint32(frame[offPrice:], cmd.Price)
	binary.LittleEndian.PutUint32(frame[offCount:], cmd.Count)
	copy(frame[offInstrument:offInstrument+instrumentLen], cmd.Instrument)
	return frame, nil
}

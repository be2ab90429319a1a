package peer_protocol

import (
	"encoding"
	"encoding/binary"
	"fmt"
	"io"
)

// This is a lazy union representing all the possible fields for messages. Fields are ordered to
// minimize struct size and padding.
type Message struct {
	Piece []byte
	// Raw bitfield payload, most significant bit of the first byte is piece 0. Interpret with
	// package bitfield, which knows the piece count.
	Bitfield             []byte
	Index, Begin, Length Integer
	Port                 uint16
	Type                 MessageType
	Keepalive            bool
}

var _ interface {
	encoding.BinaryUnmarshaler
	encoding.BinaryMarshaler
} = (*Message)(nil)

func MakeCancelMessage(piece, offset, length Integer) Message {
	return Message{
		Type:   Cancel,
		Index:  piece,
		Begin:  offset,
		Length: length,
	}
}

func (msg Message) String() string {
	if msg.Keepalive {
		return "Keepalive"
	}
	switch msg.Type {
	case Have:
		return fmt.Sprintf("Have(%d)", msg.Index)
	case Request, Cancel:
		return fmt.Sprintf("%v(%d, %d, %d)", msg.Type, msg.Index, msg.Begin, msg.Length)
	case Piece:
		return fmt.Sprintf("Piece(%d, %d, %d bytes)", msg.Index, msg.Begin, len(msg.Piece))
	case Bitfield:
		return fmt.Sprintf("Bitfield(%d bytes)", len(msg.Bitfield))
	case Port:
		return fmt.Sprintf("Port(%d)", msg.Port)
	default:
		return msg.Type.String()
	}
}

func (msg Message) MustMarshalBinary() []byte {
	b, err := msg.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return b
}

const (
	msgTypeLen  = 1 // byte
	msgIndexLen = 4 // uint32
	msgBeginLen = 4 // uint32
	msgPortLen  = 2 // uint16
)

// Length of the message excluding the 4 byte length prefix.
func (msg Message) GetDataLength() (length int, err error) {
	if msg.Keepalive {
		return
	}
	length += msgTypeLen
	switch msg.Type {
	case Choke, Unchoke, Interested, NotInterested:
	case Have:
		length += msgIndexLen
	case Request, Cancel:
		length += msgIndexLen + msgBeginLen + msgBeginLen
	case Bitfield:
		length += len(msg.Bitfield)
	case Piece:
		length += msgIndexLen + msgBeginLen + len(msg.Piece)
	case Port:
		length += msgPortLen
	default:
		err = fmt.Errorf("unknown message type: %v", msg.Type)
	}
	return
}

// Appends the framed message, including the length prefix, to b.
func (msg Message) AppendBinary(b []byte) ([]byte, error) {
	dataLen, err := msg.GetDataLength()
	if err != nil {
		return b, err
	}
	b = binary.BigEndian.AppendUint32(b, uint32(dataLen))
	if msg.Keepalive {
		return b, nil
	}
	b = append(b, byte(msg.Type))
	switch msg.Type {
	case Choke, Unchoke, Interested, NotInterested:
	case Have:
		b = binary.BigEndian.AppendUint32(b, msg.Index.Uint32())
	case Request, Cancel:
		for _, i := range []Integer{msg.Index, msg.Begin, msg.Length} {
			b = binary.BigEndian.AppendUint32(b, i.Uint32())
		}
	case Bitfield:
		b = append(b, msg.Bitfield...)
	case Piece:
		for _, i := range []Integer{msg.Index, msg.Begin} {
			b = binary.BigEndian.AppendUint32(b, i.Uint32())
		}
		b = append(b, msg.Piece...)
	case Port:
		b = binary.BigEndian.AppendUint16(b, msg.Port)
	}
	return b, nil
}

func (msg Message) MarshalBinary() ([]byte, error) {
	dataLen, err := msg.GetDataLength()
	if err != nil {
		return nil, err
	}
	return msg.AppendBinary(make([]byte, 0, 4+dataLen))
}

func (msg Message) WriteTo(w io.Writer) (n int64, err error) {
	b, err := msg.MarshalBinary()
	if err != nil {
		return
	}
	written, err := w.Write(b)
	n = int64(written)
	return
}

// Decodes exactly one message occupying all of b.
func (me *Message) UnmarshalBinary(b []byte) error {
	n, err := Unmarshal(b, Integer(len(b)), me)
	if err != nil {
		return err
	}
	if n != len(b) {
		return fmt.Errorf("%d trailing bytes", len(b)-n)
	}
	return nil
}

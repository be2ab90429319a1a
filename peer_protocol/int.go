package peer_protocol

import (
	"encoding/binary"
	"io"
)

type Integer uint32

func (i *Integer) Read(r io.Reader) error {
	return binary.Read(r, binary.BigEndian, i)
}

func (i *Integer) UnmarshalBinary(b []byte) error {
	if len(b) != 4 {
		return ProtocolViolation{Reason: "integer must be 4 bytes"}
	}
	*i = Integer(binary.BigEndian.Uint32(b))
	return nil
}

// Lengths are bounded by MaxLength so this never overflows on 64-bit.
func (i Integer) Int() int {
	return int(i)
}

func (i Integer) Int64() int64 {
	return int64(i)
}

func (i Integer) Uint32() uint32 {
	return uint32(i)
}

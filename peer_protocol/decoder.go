package peer_protocol

import (
	"bufio"
	"encoding/binary"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// Length prefix, not counted by the prefix itself.
const lengthPrefixLen = 4

// Decodes one message from the front of b. If b doesn't contain a whole message, nothing is
// consumed and a *NeedMoreError reports how many more bytes to wait for. Unknown message types are
// consumed whole and returned with only Type set. Piece and Bitfield payloads are copied out of b.
func Unmarshal(b []byte, maxLength Integer, msg *Message) (n int, err error) {
	return unmarshal(b, maxLength, msg, nil)
}

func unmarshal(b []byte, maxLength Integer, msg *Message, pool *sync.Pool) (n int, err error) {
	if len(b) < lengthPrefixLen {
		return 0, &NeedMoreError{N: lengthPrefixLen - len(b)}
	}
	length := Integer(binary.BigEndian.Uint32(b))
	if length > maxLength {
		return 0, violationf("message length %d exceeds maximum %d", length, maxLength)
	}
	total := lengthPrefixLen + length.Int()
	if len(b) < total {
		return 0, &NeedMoreError{N: total - len(b)}
	}
	*msg = Message{}
	if length == 0 {
		msg.Keepalive = true
		return total, nil
	}
	err = decodeBody(b[lengthPrefixLen:total], msg, pool)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func decodeBody(body []byte, msg *Message, pool *sync.Pool) error {
	msg.Type = MessageType(body[0])
	payload := body[1:]
	wantLen := func(n int) error {
		if len(payload) != n {
			return violationf("%v payload is %d bytes, expected %d", msg.Type, len(payload), n)
		}
		return nil
	}
	switch msg.Type {
	case Choke, Unchoke, Interested, NotInterested:
		return wantLen(0)
	case Have:
		if err := wantLen(4); err != nil {
			return err
		}
		msg.Index = Integer(binary.BigEndian.Uint32(payload))
	case Request, Cancel:
		if err := wantLen(12); err != nil {
			return err
		}
		msg.Index = Integer(binary.BigEndian.Uint32(payload[0:]))
		msg.Begin = Integer(binary.BigEndian.Uint32(payload[4:]))
		msg.Length = Integer(binary.BigEndian.Uint32(payload[8:]))
	case Bitfield:
		msg.Bitfield = append([]byte(nil), payload...)
	case Piece:
		if len(payload) < 8 {
			return violationf("piece payload is %d bytes, shorter than its header", len(payload))
		}
		msg.Index = Integer(binary.BigEndian.Uint32(payload[0:]))
		msg.Begin = Integer(binary.BigEndian.Uint32(payload[4:]))
		data := payload[8:]
		if pool == nil {
			msg.Piece = make([]byte, len(data))
		} else {
			msg.Piece = *pool.Get().(*[]byte)
			if cap(msg.Piece) < len(data) {
				msg.Piece = make([]byte, len(data))
			}
			msg.Piece = msg.Piece[:len(data)]
		}
		copy(msg.Piece, data)
	case Port:
		if err := wantLen(2); err != nil {
			return err
		}
		msg.Port = binary.BigEndian.Uint16(payload)
	default:
		// Forward compatibility: extension and unknown messages are skipped whole.
	}
	return nil
}

type Decoder struct {
	// Must be able to buffer MaxLength plus the length prefix, see NewDecoder.
	R *bufio.Reader
	// This must return *[]byte where the slices can fit data for piece messages. The chunk size
	// should not change for the life of the decoder.
	Pool *sync.Pool
	// Largest permitted length prefix. Protects against memory exhaustion from a hostile peer.
	MaxLength Integer
}

func NewDecoder(r io.Reader, maxLength Integer) *Decoder {
	return &Decoder{
		R:         bufio.NewReaderSize(r, lengthPrefixLen+maxLength.Int()),
		MaxLength: maxLength,
	}
}

// io.EOF is returned if the source terminates cleanly on a message boundary. Bytes are only
// consumed from R once a whole message is available, so a Decode interrupted by a read error
// leaves the stream positioned at the message boundary.
func (d *Decoder) Decode(msg *Message) error {
	b, err := d.R.Peek(lengthPrefixLen)
	if err != nil {
		if errors.Is(err, io.EOF) && len(b) != 0 {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	for {
		var n int
		n, err = unmarshal(b, d.MaxLength, msg, d.Pool)
		if err == nil {
			_, err = d.R.Discard(n)
			return err
		}
		more, ok := NeedMore(err)
		if !ok {
			return err
		}
		want := len(b) + more
		b, err = d.R.Peek(want)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			if errors.Is(err, bufio.ErrBufferFull) {
				err = violationf("message of %d bytes doesn't fit decoder buffer of %d", want, d.R.Size())
			}
			return err
		}
	}
}

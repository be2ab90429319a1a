package peer_protocol

import (
	"fmt"
)

type MessageType byte

const (
	Protocol = "\x13BitTorrent protocol"
)

const (
	Choke         MessageType = iota
	Unchoke                   // 1
	Interested                // 2
	NotInterested             // 3
	Have                      // 4
	Bitfield                  // 5
	Request                   // 6
	Piece                     // 7
	Cancel                    // 8
	Port                      // 9
)

// Length of the fixed handshake: pstrlen, pstr, reserved, infohash and peer ID.
const HandshakeLength = len(Protocol) + 8 + 20 + 20

// Message types this package decodes fields for. Anything else is skipped by its declared length.
func (mt MessageType) Known() bool {
	return mt <= Port
}

func (mt MessageType) String() string {
	switch mt {
	case Choke:
		return "Choke"
	case Unchoke:
		return "Unchoke"
	case Interested:
		return "Interested"
	case NotInterested:
		return "NotInterested"
	case Have:
		return "Have"
	case Bitfield:
		return "Bitfield"
	case Request:
		return "Request"
	case Piece:
		return "Piece"
	case Cancel:
		return "Cancel"
	case Port:
		return "Port"
	default:
		return fmt.Sprintf("MessageType(%d)", byte(mt))
	}
}

func protocolBytes() []byte {
	return []byte(Protocol)
}

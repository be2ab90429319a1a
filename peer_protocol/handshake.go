package peer_protocol

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"math/bits"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/anacrolix/peerwire/metainfo"
)

type ExtensionBit uint

// https://www.bittorrent.org/beps/bep_0004.html
// These are only reported. Extension negotiation isn't performed.
const (
	ExtensionBitDht  = 0 // http://www.bittorrent.org/beps/bep_0005.html
	ExtensionBitFast = 2 // http://www.bittorrent.org/beps/bep_0006.html
	// LibTorrent Extension Protocol, http://www.bittorrent.org/beps/bep_0010.html
	ExtensionBitLtep = 20
)

type PeerExtensionBits [8]byte

var bitTags = []struct {
	bit ExtensionBit
	tag string
}{
	// Ordered by their bit position left to right.
	{ExtensionBitLtep, "ltep"},
	{ExtensionBitFast, "fast"},
	{ExtensionBitDht, "dht"},
}

func (pex PeerExtensionBits) String() string {
	pexHex := hex.EncodeToString(pex[:])
	tags := make([]string, 0, len(bitTags)+1)
	for _, bitTag := range bitTags {
		if pex.GetBit(bitTag.bit) {
			tags = append(tags, bitTag.tag)
			pex.SetBit(bitTag.bit, false)
		}
	}
	unknownCount := 0
	for _, b := range pex {
		unknownCount += bits.OnesCount8(b)
	}
	if unknownCount != 0 {
		tags = append(tags, fmt.Sprintf("%v unknown", unknownCount))
	}
	return fmt.Sprintf("%v (%s)", pexHex, strings.Join(tags, ", "))
}

func NewPeerExtensionBytes(bits ...ExtensionBit) (ret PeerExtensionBits) {
	for _, b := range bits {
		ret.SetBit(b, true)
	}
	return
}

func (pex PeerExtensionBits) SupportsExtended() bool {
	return pex.GetBit(ExtensionBitLtep)
}

func (pex PeerExtensionBits) SupportsDHT() bool {
	return pex.GetBit(ExtensionBitDht)
}

func (pex PeerExtensionBits) SupportsFast() bool {
	return pex.GetBit(ExtensionBitFast)
}

func (pex *PeerExtensionBits) SetBit(bit ExtensionBit, on bool) {
	if on {
		pex[7-bit/8] |= 1 << (bit % 8)
	} else {
		pex[7-bit/8] &^= 1 << (bit % 8)
	}
}

func (pex PeerExtensionBits) GetBit(bit ExtensionBit) bool {
	return pex[7-bit/8]&(1<<(bit%8)) != 0
}

type HandshakeResult struct {
	PeerExtensionBits
	PeerID [20]byte
	metainfo.Hash
}

// The full 68 byte handshake.
func (me HandshakeResult) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, HandshakeLength)
	b = append(b, Protocol...)
	b = append(b, me.PeerExtensionBits[:]...)
	b = append(b, me.Hash[:]...)
	b = append(b, me.PeerID[:]...)
	return b, nil
}

func (me *HandshakeResult) UnmarshalBinary(b []byte) error {
	if len(b) != HandshakeLength {
		return violationf("handshake is %d bytes, expected %d", len(b), HandshakeLength)
	}
	p := b[:len(Protocol)]
	// This gets optimized to runtime.memequal
	if string(p) != Protocol {
		return violationf("unexpected protocol string %q", string(p))
	}
	b = b[len(p):]
	b = b[copy(me.PeerExtensionBits[:], b):]
	b = b[copy(me.Hash[:], b):]
	copy(me.PeerID[:], b)
	return nil
}

func handshakeWriter(w io.Writer, bb <-chan []byte, done chan<- error) {
	var err error
	for b := range bb {
		_, err = w.Write(b)
		if err != nil {
			break
		}
	}
	done <- err
}

type deadliner interface {
	SetDeadline(time.Time) error
}

// ih is nil if we expect the peer to declare the InfoHash, such as when the peer initiated the
// connection. The context deadline is applied to sock if it supports deadlines.
func Handshake(
	ctx context.Context,
	sock io.ReadWriter,
	ih *metainfo.Hash,
	peerID [20]byte,
	extensions PeerExtensionBits,
) (
	res HandshakeResult, err error,
) {
	if err = ctx.Err(); err != nil {
		return
	}
	if dl, ok := sock.(deadliner); ok {
		if deadline, ok := ctx.Deadline(); ok {
			dl.SetDeadline(deadline)
			defer dl.SetDeadline(time.Time{})
		}
	}
	// Bytes to be sent to the peer. Should never block the sender.
	postCh := make(chan []byte, 4)
	// A single error value sent when the writer completes.
	writeDone := make(chan error, 1)
	// Performs writes to the socket and ensures posts don't block.
	go handshakeWriter(sock, postCh, writeDone)

	defer func() {
		close(postCh) // Done writing.
		if err != nil {
			return
		}
		// Wait until writes complete before returning from handshake.
		err = <-writeDone
		if err != nil {
			err = errors.Wrap(err, "error writing")
		}
	}()

	post := func(bb []byte) {
		select {
		case postCh <- bb:
		default:
			panic("mustn't block while posting")
		}
	}

	post(protocolBytes())
	post(extensions[:])
	if ih != nil { // We already know what we want.
		post(ih[:])
		post(peerID[:])
	}

	// Read in one hit to avoid potential overhead in underlying reader.
	b := make([]byte, HandshakeLength)
	_, err = io.ReadFull(sock, b)
	if err != nil {
		return res, errors.Wrap(err, "while reading")
	}
	err = res.UnmarshalBinary(b)
	if err != nil {
		return
	}
	if ih != nil && res.Hash != *ih {
		return res, violationf("unexpected infohash %v", res.Hash)
	}
	if ih == nil { // We were waiting for the peer to tell us what they wanted.
		post(res.Hash[:])
		post(peerID[:])
	}
	return
}

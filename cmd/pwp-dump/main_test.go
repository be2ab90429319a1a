package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anacrolix/peerwire/metainfo"
	pp "github.com/anacrolix/peerwire/peer_protocol"
)

func TestDump(t *testing.T) {
	var stream bytes.Buffer
	hs := pp.HandshakeResult{
		PeerExtensionBits: pp.NewPeerExtensionBytes(pp.ExtensionBitFast),
		Hash:              metainfo.HashBytes([]byte("greeting")),
	}
	copy(hs.PeerID[:], "-PW0001-abcdefghijkl")
	b, err := hs.MarshalBinary()
	require.NoError(t, err)
	stream.Write(b)
	for _, msg := range []pp.Message{
		{Type: pp.Bitfield, Bitfield: []byte{0xe0}},
		{Keepalive: true},
		{Type: pp.Interested},
		{Type: pp.Piece, Index: 1, Begin: 0, Piece: []byte("world")},
		{Type: pp.Have, Index: 1},
	} {
		stream.Write(msg.MustMarshalBinary())
	}
	var out bytes.Buffer
	require.NoError(t, dump(&stream, &out, dumpArgs{Handshake: true, MaxLength: 1 << 10, Summary: true}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Contains(t, lines[0], hs.Hash.String())
	require.Equal(t, []string{
		"0: Bitfield(1 bytes)",
		"1: Keepalive",
		"2: Interested",
		"3: Piece(1, 0, 5 bytes)",
		"4: Have(1)",
		"Bitfield: 1",
		"Have: 1",
		"Interested: 1",
		"Keepalive: 1",
		"Piece: 1",
		"piece data: 5 B",
	}, lines[1:])
}

func TestDumpTruncated(t *testing.T) {
	msg := pp.Message{Type: pp.Have, Index: 3}.MustMarshalBinary()
	var out bytes.Buffer
	err := dump(bytes.NewReader(msg[:len(msg)-1]), &out, dumpArgs{MaxLength: 1 << 10})
	require.Error(t, err)
	require.Empty(t, out.String())
}

func TestDumpFields(t *testing.T) {
	msg := pp.Message{Type: pp.Request, Index: 2, Begin: 16384, Length: 16384}.MustMarshalBinary()
	var out bytes.Buffer
	require.NoError(t, dump(bytes.NewReader(msg), &out, dumpArgs{MaxLength: 1 << 10, Fields: true}))
	require.True(t, strings.HasPrefix(out.String(), "0: Request(2, 16384, 16384)\n"))
	require.Contains(t, out.String(), "(peer_protocol.Message)")
	require.Contains(t, out.String(), "Length: (peer_protocol.Integer) 16384")
}

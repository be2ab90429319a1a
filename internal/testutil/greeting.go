// Package testutil contains stuff for testing swarm behaviour.
//
// "greeting" is a torrent of the bytes "hello, world\n" in pieces of 5, so the last piece is short.
package testutil

import (
	"math/rand"
)

// Greeting torrent
var Greeting = Torrent{
	Data:        []byte(GreetingFileContents),
	PieceLength: 5,
}

const GreetingFileContents = "hello, world\n"

// RandomDataTorrent generates a torrent of n bytes from a seeded source.
func RandomDataTorrent(seed int64, n int, pieceLength int64) Torrent {
	data := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(data)
	return Torrent{
		Data:        data,
		PieceLength: pieceLength,
	}
}

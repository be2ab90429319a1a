package metainfo

import (
	"errors"
	"fmt"
)

// What the swarm needs to know about the content: produced by whatever parses the metadata.
type Info struct {
	PieceLength int64
	// Concatenated 20 byte SHA1 hashes, one per piece.
	Pieces      []byte
	TotalLength int64
}

// Builds an Info from content already held in memory. Used for seeding and testing.
func NewInfoFromBytes(data []byte, pieceLength int64) (info Info) {
	if pieceLength <= 0 {
		panic(pieceLength)
	}
	info.PieceLength = pieceLength
	info.TotalLength = int64(len(data))
	for off := int64(0); off < info.TotalLength; off += pieceLength {
		h := HashBytes(data[off:min(off+pieceLength, info.TotalLength)])
		info.Pieces = append(info.Pieces, h[:]...)
	}
	return
}

func (info *Info) Validate() error {
	if info.PieceLength <= 0 {
		return errors.New("piece length must be positive")
	}
	if len(info.Pieces)%HashSize != 0 {
		return errors.New("pieces has invalid length")
	}
	if info.TotalLength < 0 {
		return errors.New("negative total length")
	}
	if want := (info.TotalLength + info.PieceLength - 1) / info.PieceLength; int64(info.NumPieces()) != want {
		return fmt.Errorf("have %d piece hashes, total length implies %d", info.NumPieces(), want)
	}
	return nil
}

func (info *Info) NumPieces() int {
	return len(info.Pieces) / HashSize
}

func (info *Info) Piece(index PieceIndex) Piece {
	return Piece{info, index}
}

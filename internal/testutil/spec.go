package testutil

import (
	"testing"

	qt "github.com/go-quicktest/qt"

	"github.com/anacrolix/peerwire/metainfo"
	"github.com/anacrolix/peerwire/storage"
)

// High-level description of a torrent for testing purposes.
type Torrent struct {
	Data        []byte
	PieceLength int64
}

func (t *Torrent) Info() *metainfo.Info {
	info := metainfo.NewInfoFromBytes(t.Data, t.PieceLength)
	return &info
}

// Derived from the piece hashes, which is unique enough for tests.
func (t *Torrent) InfoHash() metainfo.Hash {
	return metainfo.HashBytes(t.Info().Pieces)
}

func (t *Torrent) NumPieces() int {
	return t.Info().NumPieces()
}

// A memory store with every piece present.
func (t *Torrent) SeederStore(tb testing.TB) storage.PieceStore {
	ps, err := storage.NewMemoryWithData(t.Info(), t.InfoHash(), t.Data)
	qt.Assert(tb, qt.IsNil(err))
	return ps
}

// An empty memory store.
func (t *Torrent) LeecherStore() storage.PieceStore {
	return storage.NewMemory(t.Info(), t.InfoHash(), nil)
}

// Bytes of a piece.
func (t *Torrent) PieceData(piece int) []byte {
	off := int64(piece) * t.PieceLength
	return t.Data[off:min(off+t.PieceLength, int64(len(t.Data)))]
}

package storage

import (
	"github.com/anacrolix/peerwire/metainfo"
)

// Piece data for one torrent. Offsets are relative to the start of the piece. Every method may
// fail with an *Error.
type PieceStore interface {
	ReadAt(piece int, b []byte, off int64) (n int, err error)
	WriteAt(piece int, b []byte, off int64) error
	// Hashes the piece against the expected hash and records the result in the completion store.
	// A mismatch is not an error.
	Verify(piece int) (ok bool, err error)
	// Whether the piece is known to be complete without hashing it.
	Has(piece int) (bool, error)
	Close() error
}

// Completion state of a piece.
type Completion struct {
	// The state is known or cached.
	Ok bool
	// If Ok, whether the data is correct.
	Complete bool
}

type PieceKey struct {
	InfoHash metainfo.Hash
	Index    int
}

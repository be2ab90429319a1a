package storage

import (
	"github.com/anacrolix/log"
)

type PieceCompletionGetSetter interface {
	Get(PieceKey) (Completion, error)
	Set(_ PieceKey, complete bool) error
}

// Implementations track the completion of pieces. It must be concurrent-safe.
type PieceCompletion interface {
	PieceCompletionGetSetter
	// Whether completion survives the process.
	Persistent() bool
	Close() error
}

// Falls back to in-memory completion if the database can't be opened.
func PieceCompletionForDir(dir string) (ret PieceCompletion) {
	ret, err := NewBoltPieceCompletion(dir)
	if err != nil {
		log.Default.Levelf(log.Warning, "couldn't open piece completion db in %q: %s", dir, err)
		ret = NewMapPieceCompletion()
	}
	return
}

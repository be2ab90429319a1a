package testutil

import (
	"errors"

	"github.com/anacrolix/peerwire/storage"
)

var errBadStorage = errors.New("bad storage")

// A store that has nothing and fails every read, write and hash check.
func NewBadStorage() storage.PieceStore {
	return badStorage{}
}

type badStorage struct{}

func (badStorage) ReadAt(int, []byte, int64) (int, error) {
	return 0, errBadStorage
}

func (badStorage) WriteAt(int, []byte, int64) error {
	return errBadStorage
}

func (badStorage) Verify(int) (bool, error) {
	return false, errBadStorage
}

func (badStorage) Has(int) (bool, error) {
	return false, nil
}

func (badStorage) Close() error {
	return nil
}

package storage

import (
	"fmt"
	"io"

	"github.com/anacrolix/peerwire/metainfo"
)

// A byte slice addressed by offset. Also the view over a mapped file.
type byteSpan []byte

func (me byteSpan) ReadAt(b []byte, off int64) (int, error) {
	if off >= int64(len(me)) {
		return 0, io.EOF
	}
	n := copy(b, me[off:])
	if n < len(b) {
		return n, io.EOF
	}
	return n, nil
}

func (me byteSpan) WriteAt(b []byte, off int64) (int, error) {
	if off+int64(len(b)) > int64(len(me)) {
		return 0, fmt.Errorf("write [%d, %d) past end %d", off, off+int64(len(b)), len(me))
	}
	return copy(me[off:], b), nil
}

// Holds all content in memory. If completion is nil, completion is tracked in memory too.
func NewMemory(info *metainfo.Info, infoHash metainfo.Hash, completion PieceCompletion) PieceStore {
	ret := &pieceStore{
		info:       info,
		infoHash:   infoHash,
		span:       make(byteSpan, info.TotalLength),
		completion: completion,
	}
	if ret.completion == nil {
		ret.completion = NewMapPieceCompletion()
		ret.ownsCompletion = true
	}
	return ret
}

// A memory store holding data, with every piece verified. For seeding content that is already
// present.
func NewMemoryWithData(info *metainfo.Info, infoHash metainfo.Hash, data []byte) (PieceStore, error) {
	if int64(len(data)) != info.TotalLength {
		return nil, fmt.Errorf("data is %d bytes, info has %d", len(data), info.TotalLength)
	}
	ret := NewMemory(info, infoHash, nil)
	copy(ret.(*pieceStore).span.(byteSpan), data)
	for i := range info.NumPieces() {
		if _, err := ret.Verify(i); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

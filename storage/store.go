package storage

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"io"

	"github.com/anacrolix/peerwire/metainfo"
)

// Backing for the whole torrent's contents, addressed by torrent offset.
type span interface {
	io.ReaderAt
	io.WriterAt
}

// Shared by the memory and mmap stores. Translates piece offsets to the span, and hashes and
// records completion.
type pieceStore struct {
	info           *metainfo.Info
	infoHash       metainfo.Hash
	span           span
	completion     PieceCompletion
	ownsCompletion bool
	closeSpan      func() error
}

var _ PieceStore = (*pieceStore)(nil)

func (me *pieceStore) pieceExtent(piece int, off int64, n int) (start int64, err error) {
	if piece < 0 || piece >= me.info.NumPieces() {
		return 0, fmt.Errorf("no such piece")
	}
	p := me.info.Piece(piece)
	if off < 0 || off+int64(n) > p.Length() {
		return 0, fmt.Errorf("range [%d, %d) outside piece of length %d", off, off+int64(n), p.Length())
	}
	return p.Offset() + off, nil
}

func (me *pieceStore) ReadAt(piece int, b []byte, off int64) (n int, err error) {
	start, err := me.pieceExtent(piece, off, len(b))
	if err != nil {
		return 0, wrapErr("read", piece, err)
	}
	n, err = me.span.ReadAt(b, start)
	if n == len(b) {
		err = nil
	}
	return n, wrapErr("read", piece, err)
}

func (me *pieceStore) WriteAt(piece int, b []byte, off int64) error {
	start, err := me.pieceExtent(piece, off, len(b))
	if err != nil {
		return wrapErr("write", piece, err)
	}
	_, err = me.span.WriteAt(b, start)
	return wrapErr("write", piece, err)
}

func (me *pieceStore) pieceKey(piece int) PieceKey {
	return PieceKey{InfoHash: me.infoHash, Index: piece}
}

func (me *pieceStore) Verify(piece int) (ok bool, err error) {
	if piece < 0 || piece >= me.info.NumPieces() {
		return false, wrapErr("verify", piece, fmt.Errorf("no such piece"))
	}
	p := me.info.Piece(piece)
	h := sha1.New()
	_, err = io.Copy(h, io.NewSectionReader(me.span, p.Offset(), p.Length()))
	if err != nil {
		return false, wrapErr("verify", piece, err)
	}
	want := p.Hash()
	ok = bytes.Equal(h.Sum(nil), want[:])
	err = me.completion.Set(me.pieceKey(piece), ok)
	return ok, wrapErr("verify", piece, err)
}

func (me *pieceStore) Has(piece int) (bool, error) {
	c, err := me.completion.Get(me.pieceKey(piece))
	if err != nil {
		return false, wrapErr("completion", piece, err)
	}
	return c.Ok && c.Complete, nil
}

func (me *pieceStore) Close() (err error) {
	if me.closeSpan != nil {
		err = me.closeSpan()
	}
	if me.ownsCompletion {
		if cerr := me.completion.Close(); err == nil {
			err = cerr
		}
	}
	return
}

package storage

import (
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"

	"github.com/anacrolix/peerwire/metainfo"
)

// Maps a single file holding the torrent's contents. If completion is nil, a bolt database in the
// file's directory is used, falling back to memory.
func NewMMap(
	name string,
	info *metainfo.Info,
	infoHash metainfo.Hash,
	completion PieceCompletion,
) (_ PieceStore, err error) {
	mm, err := mmapFile(name, info.TotalLength)
	if err != nil {
		return nil, errors.Wrapf(err, "mapping %q", name)
	}
	ret := &pieceStore{
		info:       info,
		infoHash:   infoHash,
		span:       byteSpan(mm),
		completion: completion,
		closeSpan: func() error {
			if mm == nil {
				return nil
			}
			err := mm.Flush()
			if unmapErr := mm.Unmap(); err == nil {
				err = unmapErr
			}
			return err
		},
	}
	if ret.completion == nil {
		ret.completion = PieceCompletionForDir(filepath.Dir(name))
		ret.ownsCompletion = true
	}
	return ret, nil
}

func mmapFile(name string, size int64) (ret mmap.MMap, err error) {
	dir := filepath.Dir(name)
	err = os.MkdirAll(dir, 0o777)
	if err != nil {
		err = errors.Wrapf(err, "making directory %q", dir)
		return
	}
	var file *os.File
	file, err = os.OpenFile(name, os.O_CREATE|os.O_RDWR, 0o666)
	if err != nil {
		return
	}
	defer file.Close()
	var fi os.FileInfo
	fi, err = file.Stat()
	if err != nil {
		return
	}
	if fi.Size() < size {
		// Mapping past the end of the file can SIGBUS.
		err = file.Truncate(size)
		if err != nil {
			return
		}
	}
	if size == 0 {
		// Can't mmap() regions with length 0.
		return
	}
	intLen := int(size)
	if int64(intLen) != size {
		err = errors.New("size too large for system")
		return
	}
	return mmap.MapRegion(file, intLen, mmap.RDWR, 0, 0)
}

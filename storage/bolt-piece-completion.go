package storage

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	boltDbCompleteValue   = "c"
	boltDbIncompleteValue = "i"
)

var completionBucketKey = []byte("completion")

type boltPieceCompletion struct {
	db *bbolt.DB
}

var _ PieceCompletion = (*boltPieceCompletion)(nil)

func NewBoltPieceCompletion(dir string) (ret PieceCompletion, err error) {
	err = os.MkdirAll(dir, 0o770)
	if err != nil {
		return
	}
	p := filepath.Join(dir, ".peerwire.bolt.db")
	db, err := bbolt.Open(p, 0o660, &bbolt.Options{
		Timeout: time.Second,
	})
	if err != nil {
		return
	}
	db.NoSync = true
	ret = &boltPieceCompletion{db}
	return
}

func pieceKeyIndexBytes(pk PieceKey) (key [4]byte) {
	binary.BigEndian.PutUint32(key[:], uint32(pk.Index))
	return
}

func (me *boltPieceCompletion) Get(pk PieceKey) (cn Completion, err error) {
	err = me.db.View(func(tx *bbolt.Tx) error {
		cb := tx.Bucket(completionBucketKey)
		if cb == nil {
			return nil
		}
		ih := cb.Bucket(pk.InfoHash[:])
		if ih == nil {
			return nil
		}
		key := pieceKeyIndexBytes(pk)
		cn.Ok = true
		switch string(ih.Get(key[:])) {
		case boltDbCompleteValue:
			cn.Complete = true
		case boltDbIncompleteValue:
			cn.Complete = false
		default:
			cn.Ok = false
		}
		return nil
	})
	return
}

func (me *boltPieceCompletion) Set(pk PieceKey, b bool) error {
	return me.db.Update(func(tx *bbolt.Tx) error {
		c, err := tx.CreateBucketIfNotExists(completionBucketKey)
		if err != nil {
			return err
		}
		ih, err := c.CreateBucketIfNotExists(pk.InfoHash[:])
		if err != nil {
			return err
		}
		key := pieceKeyIndexBytes(pk)
		value := boltDbIncompleteValue
		if b {
			value = boltDbCompleteValue
		}
		return ih.Put(key[:], []byte(value))
	})
}

func (*boltPieceCompletion) Persistent() bool {
	return true
}

func (me *boltPieceCompletion) Close() error {
	return me.db.Close()
}

package storage

import (
	"sync"

	g "github.com/anacrolix/generics"
)

type mapPieceCompletion struct {
	mu sync.RWMutex
	m  map[PieceKey]g.Option[bool]
}

var _ PieceCompletion = (*mapPieceCompletion)(nil)

func NewMapPieceCompletion() PieceCompletion {
	return &mapPieceCompletion{m: make(map[PieceKey]g.Option[bool])}
}

func (*mapPieceCompletion) Persistent() bool {
	return false
}

func (me *mapPieceCompletion) Close() error {
	me.mu.Lock()
	defer me.mu.Unlock()
	clear(me.m)
	return nil
}

func (me *mapPieceCompletion) Get(pk PieceKey) (c Completion, err error) {
	me.mu.RLock()
	defer me.mu.RUnlock()
	c.Complete, c.Ok = me.m[pk].AsTuple()
	return
}

func (me *mapPieceCompletion) Set(pk PieceKey, complete bool) error {
	me.mu.Lock()
	defer me.mu.Unlock()
	me.m[pk] = g.Some(complete)
	return nil
}

package requestStrategy

import (
	"iter"

	g "github.com/anacrolix/generics"

	"github.com/anacrolix/peerwire/internal/panicif"
)

type Btree interface {
	Delete(PieceRequestOrderItem)
	Add(PieceRequestOrderItem)
	Scan(func(PieceRequestOrderItem) bool)
}

// Pieces the local node still wants, in the order they should be requested.
func NewPieceOrder(btree Btree, cap int) *PieceRequestOrder {
	return &PieceRequestOrder{
		tree: btree,
		keys: make(map[PieceRequestOrderKey]PieceRequestOrderState, cap),
	}
}

type PieceRequestOrder struct {
	tree Btree
	keys map[PieceRequestOrderKey]PieceRequestOrderState
}

type PieceRequestOrderKey = pieceIndex

type PieceRequestOrderState struct {
	// Number of connected peers known to have the piece.
	Availability int
}

type PieceRequestOrderItem struct {
	Key   PieceRequestOrderKey
	State PieceRequestOrderState
}

func (me *PieceRequestOrderItem) Less(otherConcrete *PieceRequestOrderItem) bool {
	return pieceOrderLess(me, otherConcrete).Less()
}

// Returns the old state if the key was already present.
func (me *PieceRequestOrder) Add(
	key PieceRequestOrderKey,
	state PieceRequestOrderState,
) (old g.Option[PieceRequestOrderState]) {
	if old.Value, old.Ok = me.keys[key]; old.Ok {
		if state == old.Value {
			return
		}
		me.tree.Delete(PieceRequestOrderItem{key, old.Value})
	}
	me.tree.Add(PieceRequestOrderItem{key, state})
	me.keys[key] = state
	return
}

// Replaces the state of a piece that must already be present.
func (me *PieceRequestOrder) Update(
	key PieceRequestOrderKey,
	state PieceRequestOrderState,
) (changed bool) {
	_, ok := me.keys[key]
	panicif.False(ok)
	old := me.Add(key, state)
	return old.Value != state
}

// Applies delta to the availability of a piece if it's present.
func (me *PieceRequestOrder) AddAvailability(key PieceRequestOrderKey, delta int) bool {
	state, ok := me.keys[key]
	if !ok {
		return false
	}
	state.Availability += delta
	panicif.LessThan(state.Availability, 0)
	me.Update(key, state)
	return true
}

func (me *PieceRequestOrder) Get(key PieceRequestOrderKey) (PieceRequestOrderState, bool) {
	state, ok := me.keys[key]
	return state, ok
}

func (me *PieceRequestOrder) Delete(key PieceRequestOrderKey) (deleted bool) {
	state, ok := me.keys[key]
	if !ok {
		return false
	}
	me.tree.Delete(PieceRequestOrderItem{key, state})
	delete(me.keys, key)
	return true
}

func (me *PieceRequestOrder) Len() int {
	return len(me.keys)
}

func (me *PieceRequestOrder) Iter() iter.Seq[PieceRequestOrderItem] {
	return func(yield func(PieceRequestOrderItem) bool) {
		me.tree.Scan(func(item PieceRequestOrderItem) bool {
			return yield(item)
		})
	}
}

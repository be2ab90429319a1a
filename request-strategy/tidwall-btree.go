package requestStrategy

import (
	"github.com/tidwall/btree"

	"github.com/anacrolix/peerwire/internal/panicif"
)

type tidwallBtree struct {
	tree     *btree.BTreeG[PieceRequestOrderItem]
	PathHint *btree.PathHint
}

func (me *tidwallBtree) Scan(f func(PieceRequestOrderItem) bool) {
	me.tree.Scan(f)
}

func NewTidwallBtree() *tidwallBtree {
	return &tidwallBtree{
		tree: btree.NewBTreeGOptions(
			func(a, b PieceRequestOrderItem) bool {
				return a.Less(&b)
			},
			btree.Options{NoLocks: true}),
	}
}

func (me *tidwallBtree) Add(item PieceRequestOrderItem) {
	_, replaced := me.tree.SetHint(item, me.PathHint)
	panicif.True(replaced)
}

func (me *tidwallBtree) Delete(item PieceRequestOrderItem) {
	_, deleted := me.tree.DeleteHint(item, me.PathHint)
	panicif.False(deleted)
}

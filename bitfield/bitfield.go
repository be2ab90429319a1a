// Package bitfield is a fixed length set of piece indices with the wire encoding from BEP 3.
package bitfield

import (
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/anacrolix/peerwire/internal/panicif"
)

type Bitfield struct {
	bm roaring.Bitmap
	n  int
}

func New(n int) *Bitfield {
	panicif.LessThan(n, 0)
	return &Bitfield{n: n}
}

// A Bitfield of length n with the given indices set.
func FromIndices(n int, set ...int) *Bitfield {
	ret := New(n)
	for _, i := range set {
		ret.Set(i)
	}
	return ret
}

// Bytes needed on the wire for n bits.
func NumBytes(n int) int {
	return (n + 7) / 8
}

// Decodes a wire bitfield. Padding bits past n are ignored. The byte count must be exactly that
// needed for n bits.
func FromBytes(b []byte, n int) (*Bitfield, error) {
	if want := NumBytes(n); len(b) != want {
		return nil, fmt.Errorf("bitfield is %d bytes, expected %d for %d pieces", len(b), want, n)
	}
	ret := New(n)
	for i := range n {
		if b[i/8]&(0x80>>(i%8)) != 0 {
			ret.bm.Add(uint32(i))
		}
	}
	return ret, nil
}

// MSB first. Padding bits are zero.
func (me *Bitfield) Bytes() []byte {
	b := make([]byte, NumBytes(me.n))
	me.bm.Iterate(func(x uint32) bool {
		b[x/8] |= 0x80 >> (x % 8)
		return true
	})
	return b
}

func (me *Bitfield) Len() int {
	return me.n
}

func (me *Bitfield) checkIndex(i int) {
	if i < 0 || i >= me.n {
		panic(fmt.Sprintf("bit index %v out of range [0, %v)", i, me.n))
	}
}

func (me *Bitfield) Get(i int) bool {
	me.checkIndex(i)
	return me.bm.Contains(uint32(i))
}

// Returns true if the bit changed.
func (me *Bitfield) Set(i int) bool {
	me.checkIndex(i)
	return me.bm.CheckedAdd(uint32(i))
}

// Returns true if the bit changed.
func (me *Bitfield) Clear(i int) bool {
	me.checkIndex(i)
	return me.bm.CheckedRemove(uint32(i))
}

func (me *Bitfield) Count() int {
	return int(me.bm.GetCardinality())
}

func (me *Bitfield) IsComplete() bool {
	return me.Count() == me.n
}

func (me *Bitfield) IsEmpty() bool {
	return me.bm.IsEmpty()
}

// Set bits in ascending order until f returns false.
func (me *Bitfield) Iterate(f func(i int) bool) {
	me.bm.Iterate(func(x uint32) bool {
		return f(int(x))
	})
}

// Unset bits in ascending order until f returns false.
func (me *Bitfield) IterateMissing(f func(i int) bool) {
	for i := range me.n {
		if !me.bm.Contains(uint32(i)) && !f(i) {
			return
		}
	}
}

func (me *Bitfield) Copy() *Bitfield {
	return &Bitfield{bm: *me.bm.Clone(), n: me.n}
}

func (me *Bitfield) Equals(other *Bitfield) bool {
	return me.n == other.n && me.bm.Equals(&other.bm)
}

func (me *Bitfield) Bools() []bool {
	ret := make([]bool, me.n)
	me.Iterate(func(i int) bool {
		ret[i] = true
		return true
	})
	return ret
}

// Like "1011".
func (me *Bitfield) String() string {
	var sb strings.Builder
	sb.Grow(me.n)
	for _, b := range me.Bools() {
		if b {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

package bitfield

import (
	"testing"

	qt "github.com/go-quicktest/qt"
)

func TestEncodeMSBFirst(t *testing.T) {
	bf := FromIndices(37, 2, 7, 32)
	qt.Assert(t, qt.Equals(string(bf.Bytes()), "\x21\x00\x00\x00\x80"))
	qt.Assert(t, qt.Equals(bf.Count(), 3))
}

func TestPaddingIgnoredOnDecode(t *testing.T) {
	// 10 bits, the last 6 bits of the second byte are padding.
	bf, err := FromBytes([]byte{0xb0, 0xff}, 10)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(bf.String(), "1011000011"))
	qt.Assert(t, qt.Equals(bf.Count(), 5))
	// Re-encoding zeroes the padding.
	qt.Assert(t, qt.DeepEquals(bf.Bytes(), []byte{0xb0, 0xc0}))
}

func TestFromBytesWrongLength(t *testing.T) {
	_, err := FromBytes([]byte{0}, 9)
	qt.Assert(t, qt.IsNotNil(err))
	_, err = FromBytes([]byte{0, 0, 0}, 9)
	qt.Assert(t, qt.IsNotNil(err))
	bf, err := FromBytes(nil, 0)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(bf.IsComplete()))
}

func TestSetClear(t *testing.T) {
	bf := New(4)
	qt.Assert(t, qt.IsTrue(bf.IsEmpty()))
	qt.Assert(t, qt.IsTrue(bf.Set(1)))
	qt.Assert(t, qt.IsFalse(bf.Set(1)))
	qt.Assert(t, qt.IsTrue(bf.Get(1)))
	qt.Assert(t, qt.IsFalse(bf.Get(0)))
	for _, i := range []int{0, 2, 3} {
		bf.Set(i)
	}
	qt.Assert(t, qt.IsTrue(bf.IsComplete()))
	qt.Assert(t, qt.IsTrue(bf.Clear(2)))
	qt.Assert(t, qt.IsFalse(bf.Clear(2)))
	qt.Assert(t, qt.Equals(bf.String(), "1101"))
	var missing []int
	bf.IterateMissing(func(i int) bool {
		missing = append(missing, i)
		return true
	})
	qt.Assert(t, qt.DeepEquals(missing, []int{2}))
}

func TestOutOfRangePanics(t *testing.T) {
	bf := New(8)
	qt.Assert(t, qt.PanicMatches(func() { bf.Get(8) }, ".*out of range.*"))
	qt.Assert(t, qt.PanicMatches(func() { bf.Set(-1) }, ".*out of range.*"))
}

func TestCopyIsIndependent(t *testing.T) {
	a := FromIndices(3, 0)
	b := a.Copy()
	b.Set(1)
	qt.Assert(t, qt.Equals(a.String(), "100"))
	qt.Assert(t, qt.Equals(b.String(), "110"))
	qt.Assert(t, qt.IsFalse(a.Equals(b)))
	a.Set(1)
	qt.Assert(t, qt.IsTrue(a.Equals(b)))
}

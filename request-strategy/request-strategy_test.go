package requestStrategy

import (
	"testing"

	"github.com/bradfitz/iter"
	qt "github.com/go-quicktest/qt"

	"github.com/anacrolix/peerwire/bitfield"
	pp "github.com/anacrolix/peerwire/peer_protocol"
	"github.com/anacrolix/peerwire/types"
)

const testChunkSize = 4

type testTorrent struct {
	pieceLength int64
	missing     map[Request]bool
	requested   map[Request]int
	hashing     map[pieceIndex]bool
}

func newTestTorrent(numPieces int, pieceLength int64) *testTorrent {
	t := &testTorrent{
		pieceLength: pieceLength,
		missing:     make(map[Request]bool),
		requested:   make(map[Request]int),
		hashing:     make(map[pieceIndex]bool),
	}
	for p := range iter.N(numPieces) {
		for c := range iter.N(t.NumChunks(p)) {
			t.missing[t.request(p, c)] = true
		}
	}
	return t
}

func (me *testTorrent) NumChunks(piece pieceIndex) int {
	return types.NumChunks(me.pieceLength, testChunkSize)
}

func (me *testTorrent) ChunkSpec(piece pieceIndex, chunk int) ChunkSpec {
	return types.ChunkIndexSpec(chunk, me.pieceLength, testChunkSize)
}

func (me *testTorrent) PieceRequestable(piece pieceIndex) bool {
	return !me.hashing[piece]
}

func (me *testTorrent) ChunkMissing(piece pieceIndex, chunk int) bool {
	return me.missing[me.request(piece, chunk)]
}

func (me *testTorrent) ChunkRequestCount(r Request) int {
	return me.requested[r]
}

func (me *testTorrent) request(piece pieceIndex, chunk int) Request {
	return Request{Index: pp.Integer(piece), ChunkSpec: me.ChunkSpec(piece, chunk)}
}

func orderFromAvailability(avail ...int) *PieceRequestOrder {
	pro := NewPieceOrder(NewTidwallBtree(), len(avail))
	for i, a := range avail {
		pro.Add(i, PieceRequestOrderState{Availability: a})
	}
	return pro
}

func peerWithBitfield(bf *bitfield.Bitfield, maxRequests int) Peer {
	return Peer{
		HasPiece:           bf.Get,
		HasExistingRequest: func(Request) bool { return false },
		MaxRequests:        maxRequests,
	}
}

func pieceIndices(rs []Request) (ret []int) {
	for _, r := range rs {
		ret = append(ret, r.Index.Int())
	}
	return
}

// A single peer with 1011 and no local pieces: equal availability goes to piece 0 first, and piece 1
// is never chosen.
func TestRarestFirstTieBreaksOnIndex(t *testing.T) {
	bf, err := bitfield.FromBytes([]byte{0xb0}, 4)
	qt.Assert(t, qt.IsNil(err))
	tt := newTestTorrent(4, 8)
	pro := orderFromAvailability(1, 0, 1, 1)
	reqs := NextRequests(Input{Torrent: tt, Order: pro}, peerWithBitfield(bf, 6))
	qt.Assert(t, qt.DeepEquals(pieceIndices(reqs), []int{0, 0, 2, 2, 3, 3}))
	qt.Assert(t, qt.Equals(reqs[0], tt.request(0, 0)))
	qt.Assert(t, qt.Equals(reqs[1], tt.request(0, 1)))
}

func TestRarestFirst(t *testing.T) {
	tt := newTestTorrent(4, 4)
	pro := orderFromAvailability(3, 2, 1, 2)
	all := bitfield.FromIndices(4, 0, 1, 2, 3)
	reqs := NextRequests(Input{Torrent: tt, Order: pro}, peerWithBitfield(all, 10))
	qt.Assert(t, qt.DeepEquals(pieceIndices(reqs), []int{2, 1, 3, 0}))
	// Availability changes reorder.
	pro.AddAvailability(0, -3)
	pro.AddAvailability(2, 5)
	qt.Assert(t, qt.IsFalse(pro.AddAvailability(7, 1)))
	reqs = NextRequests(Input{Torrent: tt, Order: pro}, peerWithBitfield(all, 10))
	qt.Assert(t, qt.DeepEquals(pieceIndices(reqs), []int{1, 3, 2}))
}

func TestDeterministic(t *testing.T) {
	tt := newTestTorrent(16, 16)
	avail := make([]int, 16)
	for i := range avail {
		avail[i] = (i * 7) % 5
	}
	bf := bitfield.FromIndices(16, 1, 2, 3, 5, 8, 13)
	first := NextRequests(Input{Torrent: tt, Order: orderFromAvailability(avail...)}, peerWithBitfield(bf, 5))
	for range iter.N(10) {
		again := NextRequests(Input{Torrent: tt, Order: orderFromAvailability(avail...)}, peerWithBitfield(bf, 5))
		qt.Assert(t, qt.DeepEquals(again, first))
	}
}

func TestSkipsLocalAndUnrequestable(t *testing.T) {
	tt := newTestTorrent(3, 8)
	pro := orderFromAvailability(1, 1, 1)
	// The local node has piece 0, so it's not in the order.
	pro.Delete(0)
	tt.hashing[1] = true
	// First chunk of piece 2 is already written.
	delete(tt.missing, tt.request(2, 0))
	reqs := NextRequests(Input{Torrent: tt, Order: pro}, peerWithBitfield(bitfield.FromIndices(3, 0, 1, 2), 10))
	qt.Assert(t, qt.DeepEquals(reqs, []Request{tt.request(2, 1)}))
}

func TestPipelineBudget(t *testing.T) {
	tt := newTestTorrent(2, 16)
	pro := orderFromAvailability(1, 1)
	peer := peerWithBitfield(bitfield.FromIndices(2, 0, 1), 4)
	peer.ExistingRequests = 3
	qt.Assert(t, qt.HasLen(NextRequests(Input{Torrent: tt, Order: pro}, peer), 1))
	peer.ExistingRequests = 4
	qt.Assert(t, qt.HasLen(NextRequests(Input{Torrent: tt, Order: pro}, peer), 0))
	peer.ExistingRequests = 0
	peer.Choking = true
	qt.Assert(t, qt.HasLen(NextRequests(Input{Torrent: tt, Order: pro}, peer), 0))
}

func TestEndgameDuplicates(t *testing.T) {
	tt := newTestTorrent(1, 8)
	pro := orderFromAvailability(2)
	r0, r1 := tt.request(0, 0), tt.request(0, 1)
	tt.requested[r0] = 1
	tt.requested[r1] = 1
	peer := peerWithBitfield(bitfield.FromIndices(1, 0), 4)
	qt.Assert(t, qt.HasLen(NextRequests(Input{Torrent: tt, Order: pro}, peer), 0))
	reqs := NextRequests(Input{Torrent: tt, Order: pro, Endgame: true}, peer)
	qt.Assert(t, qt.DeepEquals(reqs, []Request{r0, r1}))
	// Never duplicate onto the session that already has it.
	peer.HasExistingRequest = func(r Request) bool { return r == r0 }
	reqs = NextRequests(Input{Torrent: tt, Order: pro, Endgame: true}, peer)
	qt.Assert(t, qt.DeepEquals(reqs, []Request{r1}))
	// Enough copies outstanding.
	tt.requested[r1] = 2
	reqs = NextRequests(Input{Torrent: tt, Order: pro, Endgame: true}, peer)
	qt.Assert(t, qt.HasLen(reqs, 0))
}

func TestPieceRequestOrderUpdate(t *testing.T) {
	pro := orderFromAvailability(0, 0)
	qt.Assert(t, qt.IsTrue(pro.Update(1, PieceRequestOrderState{Availability: 3})))
	qt.Assert(t, qt.IsFalse(pro.Update(1, PieceRequestOrderState{Availability: 3})))
	qt.Assert(t, qt.PanicMatches(func() { pro.Update(5, PieceRequestOrderState{}) }, ".*"))
	// Updating an absent piece doesn't add it.
	_, ok := pro.Get(5)
	qt.Assert(t, qt.IsFalse(ok))
	qt.Assert(t, qt.Equals(pro.Len(), 2))
	qt.Assert(t, qt.IsTrue(pro.Delete(1)))
	qt.Assert(t, qt.IsFalse(pro.Delete(1)))
	qt.Assert(t, qt.Equals(pro.Len(), 1))
}

func BenchmarkPieceRequestOrder(b *testing.B) {
	const numPieces = 10000
	b.ReportAllocs()
	for range iter.N(b.N) {
		pro := NewPieceOrder(NewTidwallBtree(), numPieces)
		for i := range iter.N(numPieces) {
			pro.Add(i, PieceRequestOrderState{})
		}
		for i := range iter.N(numPieces) {
			pro.AddAvailability(i, i%7)
		}
		for range pro.Iter() {
		}
		for i := range iter.N(numPieces) {
			pro.Delete(i)
		}
	}
}

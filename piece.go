package peerwire

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"github.com/anacrolix/peerwire/metainfo"
	pp "github.com/anacrolix/peerwire/peer_protocol"
	"github.com/anacrolix/peerwire/types"
)

// Download state of a piece. Guarded by the swarm lock.
type Piece struct {
	s     *Swarm
	index pieceIndex
	// Chunks that have data in storage.
	dirtyChunks roaring.Bitmap
	// Chunks being written to storage by some session. They aren't requested again meanwhile.
	writingChunks roaring.Bitmap
	// Set while a session hashes the piece. At most one hash check runs per piece.
	hashing bool
	// Sessions that wrote chunks since the piece was last hashed.
	dirtiers map[*PeerConn]struct{}
	// The session that wrote the final chunk.
	lastDirtier *PeerConn
}

type pieceIndex = types.PieceIndex

func (p *Piece) String() string {
	return fmt.Sprintf("piece %d", p.index)
}

func (p *Piece) Info() metainfo.Piece {
	return p.s.info.Piece(p.index)
}

func (p *Piece) length() int64 {
	return p.Info().Length()
}

func (p *Piece) numChunks() int {
	return types.NumChunks(p.length(), p.s.chunkSize)
}

func (p *Piece) chunkIndexSpec(chunk int) types.ChunkSpec {
	return types.ChunkIndexSpec(chunk, p.length(), p.s.chunkSize)
}

func (p *Piece) chunkIndexRequest(chunk int) types.Request {
	return types.Request{
		Index:     pp.Integer(p.index),
		ChunkSpec: p.chunkIndexSpec(chunk),
	}
}

func (p *Piece) numDirtyChunks() int {
	return int(p.dirtyChunks.GetCardinality())
}

func (p *Piece) allChunksDirty() bool {
	return p.numDirtyChunks() == p.numChunks()
}

func (p *Piece) chunkMissing(chunk int) bool {
	return !p.dirtyChunks.Contains(uint32(chunk)) && !p.writingChunks.Contains(uint32(chunk))
}

func (p *Piece) complete() bool {
	return p.s.localBitfield.Get(p.index)
}

// Neither complete nor hashing.
func (p *Piece) requestable() bool {
	return !p.hashing && !p.complete()
}

func (p *Piece) addDirtier(c *PeerConn) {
	if p.dirtiers == nil {
		p.dirtiers = make(map[*PeerConn]struct{})
	}
	p.dirtiers[c] = struct{}{}
}

// Forgets the assembled data so every chunk is missing again. The data itself is left in storage
// to be overwritten.
func (p *Piece) reset() {
	p.dirtyChunks.Clear()
	p.writingChunks.Clear()
	clear(p.dirtiers)
	p.lastDirtier = nil
}

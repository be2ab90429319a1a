package peerwire

import (
	requestStrategy "github.com/anacrolix/peerwire/request-strategy"
	"github.com/anacrolix/peerwire/types"
)

// Exposes a swarm's chunk state to the request selector. Only used with the swarm lock held.
type requestStrategyTorrent struct {
	s *Swarm
}

var _ requestStrategy.Torrent = requestStrategyTorrent{}

func (r requestStrategyTorrent) NumChunks(piece int) int {
	return r.s.pieces[piece].numChunks()
}

func (r requestStrategyTorrent) ChunkSpec(piece int, chunk int) types.ChunkSpec {
	return r.s.pieces[piece].chunkIndexSpec(chunk)
}

func (r requestStrategyTorrent) PieceRequestable(piece int) bool {
	return r.s.pieces[piece].requestable()
}

func (r requestStrategyTorrent) ChunkMissing(piece int, chunk int) bool {
	return r.s.pieces[piece].chunkMissing(chunk)
}

func (r requestStrategyTorrent) ChunkRequestCount(req types.Request) int {
	return r.s.requestCounts[req]
}

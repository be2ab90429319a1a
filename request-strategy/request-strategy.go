package requestStrategy

import (
	pp "github.com/anacrolix/peerwire/peer_protocol"
)

// Chunk state the selector needs from the swarm. Called with the swarm lock held.
type Torrent interface {
	NumChunks(piece pieceIndex) int
	ChunkSpec(piece pieceIndex, chunk int) ChunkSpec
	// False once a piece is being hashed or is complete.
	PieceRequestable(piece pieceIndex) bool
	// The chunk has no data yet.
	ChunkMissing(piece pieceIndex, chunk int) bool
	// Number of sessions with the chunk outstanding.
	ChunkRequestCount(Request) int
}

type Peer struct {
	HasPiece           func(pieceIndex) bool
	HasExistingRequest func(Request) bool
	// Requests the peer can have outstanding.
	MaxRequests      int
	ExistingRequests int
	Choking          bool
}

type Input struct {
	Torrent Torrent
	Order   *PieceRequestOrder
	// Allows requesting chunks already outstanding on another session.
	Endgame bool
}

// Endgame allows at most this many sessions to have the same chunk outstanding.
const maxDuplicateRequests = 2

// Requests the peer should be sent now, in order. Deterministic for the same input: pieces are
// walked rarest first, and chunks in ascending offset. Chunks nobody else has outstanding are
// preferred, duplicates are only considered in endgame.
func NextRequests(input Input, peer Peer) (ret []Request) {
	budget := peer.MaxRequests - peer.ExistingRequests
	if peer.Choking || budget <= 0 {
		return
	}
	t := input.Torrent
	consider := func(duplicates bool) {
		for item := range input.Order.Iter() {
			if budget <= 0 {
				return
			}
			piece := item.Key
			// No connected peer has it.
			if item.State.Availability == 0 {
				continue
			}
			if !peer.HasPiece(piece) || !t.PieceRequestable(piece) {
				continue
			}
			for ci := range t.NumChunks(piece) {
				if budget <= 0 {
					return
				}
				if !t.ChunkMissing(piece, ci) {
					continue
				}
				r := Request{Index: pp.Integer(piece), ChunkSpec: t.ChunkSpec(piece, ci)}
				if peer.HasExistingRequest(r) {
					continue
				}
				count := t.ChunkRequestCount(r)
				if duplicates {
					// Unrequested chunks were all taken on the first pass.
					if count == 0 || count >= maxDuplicateRequests {
						continue
					}
				} else if count != 0 {
					continue
				}
				ret = append(ret, r)
				budget--
			}
		}
	}
	consider(false)
	if input.Endgame {
		consider(true)
	}
	return
}

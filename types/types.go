// package types contains types shared between the request strategy, the choker and the swarm.
package types

import (
	"fmt"

	pp "github.com/anacrolix/peerwire/peer_protocol"
)

type PieceIndex = int

type ChunkSpec struct {
	Begin, Length pp.Integer
}

func (cs ChunkSpec) End() pp.Integer {
	return cs.Begin + cs.Length
}

type Request struct {
	Index pp.Integer
	ChunkSpec
}

func (r Request) String() string {
	return fmt.Sprintf("piece %v, %v bytes at %v", r.Index, r.Length, r.Begin)
}

func (r Request) ToMsg(mt pp.MessageType) pp.Message {
	return pp.Message{
		Type:   mt,
		Index:  r.Index,
		Begin:  r.Begin,
		Length: r.Length,
	}
}

func RequestFromMessage(msg *pp.Message) Request {
	return Request{msg.Index, ChunkSpec{msg.Begin, msg.Length}}
}

// Number of chunks in a piece of the given length. The last chunk may be short.
func NumChunks(pieceLength int64, chunkSize pp.Integer) int {
	return int((pieceLength + int64(chunkSize) - 1) / int64(chunkSize))
}

// The spec of chunk i within a piece.
func ChunkIndexSpec(i int, pieceLength int64, chunkSize pp.Integer) ChunkSpec {
	begin := int64(i) * int64(chunkSize)
	return ChunkSpec{
		Begin:  pp.Integer(begin),
		Length: pp.Integer(min(int64(chunkSize), pieceLength-begin)),
	}
}

// Which chunk index a spec starts at, and whether it's exactly that chunk.
func ChunkSpecIndex(cs ChunkSpec, pieceLength int64, chunkSize pp.Integer) (int, bool) {
	i := int(cs.Begin / chunkSize)
	if cs.Begin%chunkSize != 0 || int64(cs.Begin) >= pieceLength {
		return i, false
	}
	return i, ChunkIndexSpec(i, pieceLength, chunkSize) == cs
}

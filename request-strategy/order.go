package requestStrategy

import (
	"github.com/anacrolix/multiless"

	"github.com/anacrolix/peerwire/types"
)

type (
	Request    = types.Request
	ChunkSpec  = types.ChunkSpec
	pieceIndex = types.PieceIndex
)

// Rarest first. Equal availability goes to the lowest index so selection is deterministic.
func pieceOrderLess(i, j *PieceRequestOrderItem) multiless.Computation {
	return multiless.New().Int(
		i.State.Availability, j.State.Availability,
	).Int(
		i.Key, j.Key,
	)
}

package peerwire

import (
	"bufio"
	"io"
	"sync"

	pp "github.com/anacrolix/peerwire/peer_protocol"
)

// Buffers for piece payloads. Received chunks are returned once they're written to storage.
type chunkPool struct {
	pool sync.Pool
}

func newChunkPool(chunkSize pp.Integer) *chunkPool {
	return &chunkPool{
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, chunkSize)
				return &b
			},
		},
	}
}

func (me *chunkPool) put(b []byte) {
	me.pool.Put(&b)
}

func (s *Swarm) newDecoder(r io.Reader) *pp.Decoder {
	return &pp.Decoder{
		R:         bufio.NewReaderSize(r, 4+s.config.MaxMessageLength.Int()),
		MaxLength: s.config.MaxMessageLength,
		Pool:      &s.chunkPool.pool,
	}
}

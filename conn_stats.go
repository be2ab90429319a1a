package peerwire

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sync/atomic"

	pp "github.com/anacrolix/peerwire/peer_protocol"
)

// Various connection-level metrics. At the Swarm level these are aggregates. Chunks are messages
// with data payloads. Data is actual torrent content without any overhead. Useful is something we
// needed locally. Written is things sent to the peer, and Read is stuff received from them.
type ConnStats struct {
	// Total bytes on the wire. Includes handshakes.
	BytesWritten     Count
	BytesWrittenData Count

	BytesRead           Count
	BytesReadData       Count
	BytesReadUsefulData Count

	ChunksWritten Count

	ChunksRead       Count
	ChunksReadUseful Count
	ChunksReadWasted Count

	// Number of pieces data was written to, that subsequently passed verification.
	PiecesDirtiedGood Count
	// Number of pieces data was written to, that subsequently failed verification. Note that a
	// connection may not have been the sole dirtier of a piece.
	PiecesDirtiedBad Count
}

// Copy returns a copy of the connection stats.
func (t *ConnStats) Copy() (ret ConnStats) {
	for i := 0; i < reflect.TypeOf(ConnStats{}).NumField(); i++ {
		n := reflect.ValueOf(t).Elem().Field(i).Addr().Interface().(*Count).Int64()
		reflect.ValueOf(&ret).Elem().Field(i).Addr().Interface().(*Count).Add(n)
	}
	return
}

type Count struct {
	n int64
}

var _ fmt.Stringer = (*Count)(nil)

func (t *Count) Add(n int64) {
	atomic.AddInt64(&t.n, n)
}

func (t *Count) Int64() int64 {
	return atomic.LoadInt64(&t.n)
}

func (t *Count) String() string {
	return fmt.Sprintf("%v", t.Int64())
}

func (t *Count) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Int64())
}

func (t *ConnStats) wroteMsg(msg *pp.Message) {
	switch msg.Type {
	case pp.Piece:
		t.ChunksWritten.Add(1)
		t.BytesWrittenData.Add(int64(len(msg.Piece)))
	}
}

func (t *ConnStats) readMsg(msg *pp.Message) {
	switch msg.Type {
	case pp.Piece:
		t.ChunksRead.Add(1)
		t.BytesReadData.Add(int64(len(msg.Piece)))
	}
}

func (t *ConnStats) incrementPiecesDirtiedGood() {
	t.PiecesDirtiedGood.Add(1)
}

func (t *ConnStats) incrementPiecesDirtiedBad() {
	t.PiecesDirtiedBad.Add(1)
}

type connStatsReadWriter struct {
	rw io.ReadWriter
	c  *PeerConn
}

func (me connStatsReadWriter) Write(b []byte) (n int, err error) {
	n, err = me.rw.Write(b)
	me.c.wroteBytes(int64(n))
	return
}

func (me connStatsReadWriter) Read(b []byte) (n int, err error) {
	n, err = me.rw.Read(b)
	me.c.readBytes(int64(n))
	return
}

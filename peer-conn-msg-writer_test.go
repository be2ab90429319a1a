package peerwire

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/anacrolix/chansync"
	"github.com/anacrolix/log"
	"github.com/dustin/go-humanize"
	qt "github.com/go-quicktest/qt"

	pp "github.com/anacrolix/peerwire/peer_protocol"
)

func PieceMsg(length int64) pp.Message {
	return pp.Message{
		Type:  pp.Piece,
		Index: pp.Integer(0),
		Begin: pp.Integer(0),
		Piece: make([]byte, length),
	}
}

var benchmarkPieceLengths = []int{defaultChunkSize, 1 << 17}

func BenchmarkWritePieceMsg(b *testing.B) {
	for _, length := range benchmarkPieceLengths {
		b.Run(humanize.IBytes(uint64(length)), func(b *testing.B) {
			writer := &peerConnMsgWriter{
				writeBuffer: new(bytes.Buffer),
			}
			msg := PieceMsg(int64(length))
			b.SetBytes(int64(length))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				writer.writeBuffer.Reset()
				writer.write(msg)
			}
		})
	}
}

// A writer over one end of a pipe, with nothing to fill or upload.
func newTestMsgWriter(w io.Writer) *peerConnMsgWriter {
	return &peerConnMsgWriter{
		fillWriteBuffer: func() {},
		upload:          func() bool { return false },
		closed:          new(chansync.SetOnce),
		logger:          log.Default,
		w:               w,
		keepAlive:       func() bool { return true },
		writeBuffer:     new(bytes.Buffer),
	}
}

func TestMsgWriterWritesPostedMessagesInOrder(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	w := newTestMsgWriter(a)
	runErr := make(chan error, 1)
	go func() { runErr <- w.run(time.Minute) }()
	w.write(pp.Message{Type: pp.Interested})
	w.write(pp.Message{Type: pp.Have, Index: 3})
	d := pp.NewDecoder(b, 1<<10)
	var msg pp.Message
	qt.Assert(t, qt.IsNil(d.Decode(&msg)))
	qt.Check(t, qt.Equals(msg.Type, pp.Interested))
	qt.Assert(t, qt.IsNil(d.Decode(&msg)))
	qt.Check(t, qt.Equals(msg.Type, pp.Have))
	qt.Check(t, qt.Equals(msg.Index, pp.Integer(3)))
	w.closed.Set()
	qt.Assert(t, qt.IsNil(<-runErr))
}

func TestMsgWriterKeepAlive(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	w := newTestMsgWriter(a)
	go w.run(10 * time.Millisecond)
	d := pp.NewDecoder(b, 1<<10)
	var msg pp.Message
	qt.Assert(t, qt.IsNil(d.Decode(&msg)))
	qt.Assert(t, qt.IsTrue(msg.Keepalive))
	w.closed.Set()
}

func TestMsgWriterReturnsWriteError(t *testing.T) {
	a, b := net.Pipe()
	b.Close()
	w := newTestMsgWriter(a)
	w.write(pp.Message{Type: pp.Choke})
	qt.Assert(t, qt.IsNotNil(w.run(time.Minute)))
}

func TestMsgWriterHighWater(t *testing.T) {
	w := &peerConnMsgWriter{writeBuffer: new(bytes.Buffer)}
	qt.Assert(t, qt.IsTrue(w.write(PieceMsg(defaultChunkSize))))
	qt.Assert(t, qt.IsFalse(w.write(PieceMsg(writeBufferHighWaterLen))))
	qt.Assert(t, qt.IsTrue(w.bufferFull()))
}

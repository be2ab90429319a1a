package peerwire

import (
	"bytes"
	"io"
	"time"

	"github.com/anacrolix/chansync"
	"github.com/anacrolix/log"
	"github.com/anacrolix/sync"

	pp "github.com/anacrolix/peerwire/peer_protocol"
)

func (c *PeerConn) initMessageWriter() {
	w := &c.messageWriter
	*w = peerConnMsgWriter{
		fillWriteBuffer: func() {
			c.locker().Lock()
			defer c.locker().Unlock()
			if c.closed.IsSet() {
				return
			}
			c.fillWriteBuffer()
		},
		upload: c.uploadNext,
		closed: &c.closed,
		logger: c.logger,
		w:      connStatsReadWriter{c.conn, c},
		keepAlive: func() bool {
			return true
		},
		writeBuffer: new(bytes.Buffer),
	}
}

func (c *PeerConn) messageWriterRunner(keepAliveInterval time.Duration) {
	err := c.messageWriter.run(keepAliveInterval)
	c.locker().Lock()
	defer c.locker().Unlock()
	c.close(wrapTransportErr("write", err))
}

type peerConnMsgWriter struct {
	// Must not be called with the local mutex held, as it will call back into the write method.
	fillWriteBuffer func()
	// Reads and posts at most one piece reply. Returns false when there's nothing to do. Called
	// without the local mutex held.
	upload    func() bool
	closed    *chansync.SetOnce
	logger    log.Logger
	w         io.Writer
	keepAlive func() bool

	mu        sync.Mutex
	writeCond chansync.BroadcastCond
	// Pointer so we can swap with the "front buffer".
	writeBuffer *bytes.Buffer
}

// Routine that writes to the peer. Some of what to write is buffered by activity elsewhere in the
// Swarm, and some is determined locally when the connection is writable. Returns nil if the session
// was closed elsewhere.
func (cn *peerConnMsgWriter) run(keepAliveTimeout time.Duration) error {
	lastWrite := time.Now()
	keepAliveTimer := time.NewTimer(keepAliveTimeout)
	defer keepAliveTimer.Stop()
	frontBuf := new(bytes.Buffer)
	for {
		if cn.closed.IsSet() {
			return nil
		}
		cn.fillWriteBuffer()
		for !cn.bufferFull() && cn.upload() {
		}
		keepAlive := cn.keepAlive()
		cn.mu.Lock()
		if cn.writeBuffer.Len() == 0 && time.Since(lastWrite) >= keepAliveTimeout && keepAlive {
			cn.writeBuffer.Write(pp.Message{Keepalive: true}.MustMarshalBinary())
			postedKeepalives.Add(1)
		}
		if cn.writeBuffer.Len() == 0 {
			writeCond := cn.writeCond.Signaled()
			cn.mu.Unlock()
			select {
			case <-cn.closed.Done():
			case <-writeCond:
			case <-keepAliveTimer.C:
				keepAliveTimer.Reset(keepAliveTimeout)
			}
			continue
		}
		// Flip the buffers.
		frontBuf, cn.writeBuffer = cn.writeBuffer, frontBuf
		cn.mu.Unlock()
		if frontBuf.Len() == 0 {
			panic("expected non-empty front buffer")
		}
		_, err := frontBuf.WriteTo(cn.w)
		if err != nil {
			cn.logger.WithDefaultLevel(log.Debug).Printf("error writing: %v", err)
			return err
		}
		lastWrite = time.Now()
		if !keepAliveTimer.Stop() {
			select {
			case <-keepAliveTimer.C:
			default:
			}
		}
		keepAliveTimer.Reset(keepAliveTimeout)
	}
}

// Returns false if the buffer is now over the high water mark.
func (cn *peerConnMsgWriter) write(msg pp.Message) bool {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	cn.writeBuffer.Write(msg.MustMarshalBinary())
	cn.writeCond.Broadcast()
	return !cn.writeBufferFull()
}

func (cn *peerConnMsgWriter) bufferFull() bool {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	return cn.writeBufferFull()
}

func (cn *peerConnMsgWriter) writeBufferFull() bool {
	return cn.writeBuffer.Len() >= writeBufferHighWaterLen
}

// Wakes the writer so it refills requests and uploads.
func (cn *peerConnMsgWriter) tickle() {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	cn.writeCond.Broadcast()
}

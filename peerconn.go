package peerwire

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/anacrolix/chansync"
	g "github.com/anacrolix/generics"
	"github.com/anacrolix/log"
	"github.com/anacrolix/sync"
	"github.com/elliotchance/orderedmap"
	"golang.org/x/time/rate"

	"github.com/anacrolix/peerwire/bitfield"
	pp "github.com/anacrolix/peerwire/peer_protocol"
	"github.com/anacrolix/peerwire/types"
)

// What a session needs from the swarm it belongs to. Unless noted, methods are called with the
// lock returned by locker held.
type peerConnHost interface {
	locker() *sync.RWMutex
	numPieces() int
	pieceLength(piece pieceIndex) int64
	haveLocalPiece(piece pieceIndex) bool
	// The peer announced a piece for the first time.
	incPieceAvailability(piece pieceIndex)
	// Requests the session should post now.
	nextRequests(c *PeerConn) []types.Request
	requestIssued(r types.Request)
	requestReleased(r types.Request)
	// Handles piece data from the peer. May release the lock while storage is written.
	receiveChunk(c *PeerConn, msg *pp.Message) error
	// Reads a chunk for upload. Called without the lock.
	readChunk(r types.Request, b []byte) error
	// The session is closed and its requests are released.
	connClosed(c *PeerConn)
	// Wakes every session's writer.
	tickleWriters()
	// Aggregate stats the session's stats are added to.
	connStats() *ConnStats
	// Runs f on a goroutine the swarm waits for on Close.
	goroutine(f func())
	// Decoder for the session's incoming stream. Piece payloads come from a pool the swarm returns
	// them to.
	newDecoder(r io.Reader) *pp.Decoder
}

type connStage int

const (
	stageAwaitingHandshake connStage = iota
	stageConnected
	stageClosed
)

func (me connStage) String() string {
	switch me {
	case stageAwaitingHandshake:
		return "awaiting handshake"
	case stageConnected:
		return "connected"
	case stageClosed:
		return "closed"
	default:
		return fmt.Sprintf("stage %d", int(me))
	}
}

// Choke and interest in each direction. Sessions start choked and uninterested both ways.
type connFlags struct {
	amChoking      bool
	amInterested   bool
	peerChoking    bool
	peerInterested bool
}

func initialConnFlags() connFlags {
	return connFlags{
		amChoking:   true,
		peerChoking: true,
	}
}

func (me connFlags) String() string {
	b := make([]byte, 0, 4)
	flag := func(on bool, c byte) {
		if on {
			b = append(b, c)
		}
	}
	// Upper case is what we do, lower case is the peer.
	flag(me.amChoking, 'C')
	flag(me.amInterested, 'I')
	flag(me.peerChoking, 'c')
	flag(me.peerInterested, 'i')
	return string(b)
}

// A session with one remote peer.
type PeerConn struct {
	host     peerConnHost
	config   *SwarmConfig
	id       int64
	conn     net.Conn
	outgoing bool
	logger   log.Logger

	PeerID            types.PeerID
	PeerExtensionBits pp.PeerExtensionBits
	RemoteAddr        net.Addr

	stage connStage
	connFlags
	closed   chansync.SetOnce
	closeErr error
	// Cancelled on close. Interrupts upload rate limiting.
	ctx       context.Context
	cancelCtx context.CancelFunc

	peerPieces *bitfield.Bitfield
	// Our outstanding requests to the peer, and when they were posted.
	requests map[types.Request]time.Time
	// Requests from the peer in arrival order. Keys are types.Request.
	peerRequests *orderedmap.OrderedMap

	completedHandshake  time.Time
	lastMessageReceived time.Time
	unchokedAt          time.Time
	// Port from the most recent port message.
	dhtPort g.Option[uint16]
	// Corrupt pieces this peer was last to contribute to.
	integrityFailures int

	downloadRate rateSampler
	uploadRate   rateSampler
	stats        ConnStats

	uploadLimiter *rate.Limiter
	messageWriter peerConnMsgWriter
}

func newPeerConn(host peerConnHost, config *SwarmConfig, id int64, nc net.Conn, outgoing bool) *PeerConn {
	c := &PeerConn{
		host:          host,
		config:        config,
		id:            id,
		conn:          nc,
		outgoing:      outgoing,
		RemoteAddr:    nc.RemoteAddr(),
		stage:         stageAwaitingHandshake,
		connFlags:     initialConnFlags(),
		peerPieces:    bitfield.New(host.numPieces()),
		requests:      make(map[types.Request]time.Time),
		peerRequests:  orderedmap.NewOrderedMap(),
		uploadLimiter: config.UploadRateLimiter,
	}
	c.ctx, c.cancelCtx = context.WithCancel(context.Background())
	c.logger = config.Logger.WithContextText(fmt.Sprintf("peer %v", c.RemoteAddr))
	c.initMessageWriter()
	return c
}

func (c *PeerConn) String() string {
	return fmt.Sprintf("%v (%v %v)", c.RemoteAddr, c.stage, c.connFlags)
}

func (c *PeerConn) locker() *sync.RWMutex {
	return c.host.locker()
}

// Applies f to the session's stats and the swarm aggregate.
func (c *PeerConn) allStats(f func(*ConnStats)) {
	f(&c.stats)
	f(c.host.connStats())
}

func (c *PeerConn) wroteBytes(n int64) {
	c.allStats(add(n, func(cs *ConnStats) *Count { return &cs.BytesWritten }))
}

func (c *PeerConn) readBytes(n int64) {
	c.allStats(add(n, func(cs *ConnStats) *Count { return &cs.BytesRead }))
}

func add(n int64, f func(*ConnStats) *Count) func(*ConnStats) {
	return func(cs *ConnStats) {
		f(cs).Add(n)
	}
}

// Called once the handshake is done and the session is registered with the swarm.
func (c *PeerConn) start(now time.Time, local *bitfield.Bitfield) {
	c.stage = stageConnected
	c.completedHandshake = now
	c.lastMessageReceived = now
	// Must be the first message after the handshake if it's sent at all.
	if !local.IsEmpty() {
		c.write(pp.Message{
			Type:     pp.Bitfield,
			Bitfield: local.Bytes(),
		})
	}
	c.startMessageWriter(c.config.KeepAliveInterval)
	c.host.goroutine(c.mainReadLoopRunner)
}

func (c *PeerConn) startMessageWriter(keepAliveInterval time.Duration) {
	c.host.goroutine(func() {
		c.messageWriterRunner(keepAliveInterval)
	})
}

// Posts a message to the writer. Returns false if the write buffer is full.
func (c *PeerConn) write(msg pp.Message) bool {
	label := messageTypeLabel(&msg)
	messageTypesPosted.Add(label, 1)
	messagesWritten.WithLabelValues(label).Inc()
	c.allStats(func(cs *ConnStats) { cs.wroteMsg(&msg) })
	return c.messageWriter.write(msg)
}

func (c *PeerConn) tickleWriter() {
	c.messageWriter.tickle()
}

func (c *PeerConn) mainReadLoopRunner() {
	err := c.mainReadLoop()
	c.locker().Lock()
	defer c.locker().Unlock()
	c.close(err)
}

// Decodes messages until the connection fails or a message is fatal.
func (c *PeerConn) mainReadLoop() error {
	decoder := c.host.newDecoder(connStatsReadWriter{c.conn, c})
	for {
		var msg pp.Message
		err := decoder.Decode(&msg)
		if err != nil {
			return wrapTransportErr("read", err)
		}
		c.locker().Lock()
		if c.closed.IsSet() {
			c.locker().Unlock()
			return nil
		}
		err = c.onReadMsg(&msg)
		c.locker().Unlock()
		if err != nil {
			return err
		}
	}
}

func (c *PeerConn) onReadMsg(msg *pp.Message) error {
	c.lastMessageReceived = time.Now()
	label := messageTypeLabel(msg)
	messageTypesReceived.Add(label, 1)
	messagesRead.WithLabelValues(label).Inc()
	if msg.Keepalive {
		receivedKeepalives.Add(1)
		return nil
	}
	if c.stage != stageConnected {
		return violationf("%v received while %v", msg.Type, c.stage)
	}
	c.allStats(func(cs *ConnStats) { cs.readMsg(msg) })
	switch msg.Type {
	case pp.Choke:
		if c.peerChoking {
			return nil
		}
		c.peerChoking = true
		// Pending requests are implicitly discarded by the peer.
		c.deleteAllRequests()
	case pp.Unchoke:
		if !c.peerChoking {
			return nil
		}
		c.peerChoking = false
		c.tickleWriter()
	case pp.Interested:
		c.peerInterested = true
	case pp.NotInterested:
		c.peerInterested = false
	case pp.Have:
		return c.peerSentHave(pieceIndex(msg.Index))
	case pp.Bitfield:
		return c.peerSentBitfield(msg.Bitfield)
	case pp.Request:
		return c.onReadRequest(types.RequestFromMessage(msg))
	case pp.Cancel:
		c.onReadCancel(types.RequestFromMessage(msg))
	case pp.Piece:
		return c.host.receiveChunk(c, msg)
	case pp.Port:
		c.dhtPort = g.Some(msg.Port)
	default:
		c.logger.Levelf(log.Debug, "ignoring message type %v", msg.Type)
	}
	return nil
}

func (c *PeerConn) peerSentHave(piece pieceIndex) error {
	if piece < 0 || piece >= c.host.numPieces() {
		return violationf("have for piece %d of %d", piece, c.host.numPieces())
	}
	if c.peerPieces.Set(piece) {
		c.host.incPieceAvailability(piece)
	}
	c.tickleWriter()
	return nil
}

// A bitfield after other messages is merged with what we already know.
func (c *PeerConn) peerSentBitfield(b []byte) error {
	bf, err := bitfield.FromBytes(b, c.host.numPieces())
	if err != nil {
		return violationf("bitfield: %v", err)
	}
	bf.Iterate(func(piece int) bool {
		if c.peerPieces.Set(piece) {
			c.host.incPieceAvailability(piece)
		}
		return true
	})
	c.tickleWriter()
	return nil
}

func (c *PeerConn) onReadRequest(r types.Request) error {
	piece := pieceIndex(r.Index)
	if piece >= c.host.numPieces() {
		return requestViolation(r, "piece out of range")
	}
	if r.Length == 0 || r.Length > 2*c.config.ChunkSize {
		return requestViolation(r, "bad length")
	}
	// In int64 so a Begin near the top of the range can't wrap.
	if r.Begin.Int64()+r.Length.Int64() > c.host.pieceLength(piece) {
		return requestViolation(r, "beyond end of piece")
	}
	if c.amChoking {
		requestsReceivedWhileChoking.Add(1)
		return nil
	}
	if !c.host.haveLocalPiece(piece) {
		requestsReceivedForMissingPieces.Add(1)
		return nil
	}
	if _, ok := c.peerRequests.Get(r); ok {
		return nil
	}
	if c.peerRequests.Len() >= c.config.MaxPeerRequests {
		peerRequestsDropped.Add(1)
		c.logger.Levelf(log.Debug, "dropping %v: %v", r, CapacityExceeded{
			What:  "pending peer requests",
			Limit: c.config.MaxPeerRequests,
		})
		return nil
	}
	c.peerRequests.Set(r, nil)
	c.tickleWriter()
	return nil
}

func (c *PeerConn) onReadCancel(r types.Request) {
	if !c.peerRequests.Delete(r) {
		unexpectedCancels.Add(1)
	}
}

func (c *PeerConn) updateInterest() {
	interested := false
	c.peerPieces.Iterate(func(piece int) bool {
		interested = !c.host.haveLocalPiece(piece)
		return !interested
	})
	if interested == c.amInterested {
		return
	}
	c.amInterested = interested
	if interested {
		c.write(pp.Message{Type: pp.Interested})
	} else {
		c.write(pp.Message{Type: pp.NotInterested})
	}
}

// Called by the writer with the lock held.
func (c *PeerConn) fillWriteBuffer() {
	c.updateInterest()
	if c.peerChoking || !c.amInterested {
		return
	}
	for _, r := range c.host.nextRequests(c) {
		if !c.request(r) {
			break
		}
	}
}

func (c *PeerConn) request(r types.Request) bool {
	c.requests[r] = time.Now()
	c.host.requestIssued(r)
	return c.write(r.ToMsg(pp.Request))
}

func (c *PeerConn) deleteRequest(r types.Request) bool {
	if _, ok := c.requests[r]; !ok {
		return false
	}
	delete(c.requests, r)
	c.host.requestReleased(r)
	return true
}

func (c *PeerConn) deleteAllRequests() {
	if len(c.requests) == 0 {
		return
	}
	for r := range c.requests {
		c.deleteRequest(r)
	}
	c.host.tickleWriters()
}

// Retracts an outstanding request. Returns false if it wasn't outstanding.
func (c *PeerConn) cancel(r types.Request) bool {
	if !c.deleteRequest(r) {
		return false
	}
	c.write(r.ToMsg(pp.Cancel))
	return true
}

func (c *PeerConn) choke() {
	if c.amChoking {
		return
	}
	c.amChoking = true
	// Requests are discarded on choke, the peer must ask again.
	c.peerRequests = orderedmap.NewOrderedMap()
	c.write(pp.Message{Type: pp.Choke})
}

func (c *PeerConn) unchoke(now time.Time) {
	if !c.amChoking {
		return
	}
	c.amChoking = false
	c.unchokedAt = now
	c.write(pp.Message{Type: pp.Unchoke})
}

func (c *PeerConn) have(piece pieceIndex) {
	if c.stage != stageConnected {
		return
	}
	c.write(pp.Message{
		Type:  pp.Have,
		Index: pp.Integer(piece),
	})
}

// Closes the session if it's been silent too long, and retracts stale requests.
func (c *PeerConn) checkTimeouts(now time.Time) {
	if now.Sub(c.lastMessageReceived) >= c.config.ConnectionTimeout {
		c.close(TransportError{Op: "read", Err: fmt.Errorf("nothing received for %v", now.Sub(c.lastMessageReceived))})
		return
	}
	timedOut := false
	for r, at := range c.requests {
		if now.Sub(at) >= c.config.RequestTimeout {
			c.cancel(r)
			requestsTimedOut.Add(1)
			timedOut = true
		}
	}
	if timedOut {
		c.host.tickleWriters()
	}
}

// Reads and posts the oldest pending peer request. Returns false if there was nothing to do.
func (c *PeerConn) uploadNext() bool {
	c.locker().Lock()
	if c.closed.IsSet() || c.amChoking || c.config.NoUpload {
		c.locker().Unlock()
		return false
	}
	front := c.peerRequests.Front()
	if front == nil {
		c.locker().Unlock()
		return false
	}
	r := front.Key.(types.Request)
	c.peerRequests.Delete(r)
	c.locker().Unlock()

	if err := c.uploadLimiter.WaitN(c.ctx, int(r.Length)); err != nil {
		if c.ctx.Err() == nil {
			c.logger.Levelf(log.Warning, "dropping %v: %v", r, err)
		}
		return c.ctx.Err() == nil
	}
	b := make([]byte, r.Length)
	if err := c.host.readChunk(r, b); err != nil {
		c.logger.Levelf(log.Error, "reading %v for upload: %v", r, err)
		return true
	}

	c.locker().Lock()
	defer c.locker().Unlock()
	// Choked while reading. The peer has already discarded the request.
	if c.closed.IsSet() || c.amChoking {
		return false
	}
	c.write(pp.Message{
		Type:  pp.Piece,
		Index: r.Index,
		Begin: r.Begin,
		Piece: b,
	})
	uploadChunksPosted.Add(1)
	return true
}

// Ends the session. The first error is kept. Called with the lock held.
func (c *PeerConn) close(err error) {
	if !c.closed.Set() {
		return
	}
	c.stage = stageClosed
	c.closeErr = err
	c.cancelCtx()
	for r := range c.requests {
		c.deleteRequest(r)
	}
	c.peerRequests = orderedmap.NewOrderedMap()
	c.conn.Close()
	c.host.connClosed(c)
	level := log.Debug
	if pp.IsProtocolViolation(err) || closeCauseLabel(err) == "integrity_failure" {
		level = log.Warning
	}
	c.logger.Levelf(level, "closed: %v", err)
}

// Closed returns a channel that's closed when the session ends.
func (c *PeerConn) Closed() <-chan struct{} {
	return c.closed.Done()
}

// The reason the session ended. Nil until then, or if it was closed locally without one.
func (c *PeerConn) Err() error {
	c.locker().RLock()
	defer c.locker().RUnlock()
	return c.closeErr
}

// Port from the peer's most recent port message.
func (c *PeerConn) DhtPort() (port uint16, ok bool) {
	c.locker().RLock()
	defer c.locker().RUnlock()
	return c.dhtPort.AsTuple()
}

// Pieces the peer has announced.
func (c *PeerConn) PeerPieces() *bitfield.Bitfield {
	c.locker().RLock()
	defer c.locker().RUnlock()
	return c.peerPieces.Copy()
}

// Closes the session. It's removed from the swarm like any other disconnect.
func (c *PeerConn) Close() {
	c.locker().Lock()
	defer c.locker().Unlock()
	c.close(errSessionClosed)
}

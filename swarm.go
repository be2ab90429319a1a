package peerwire

import (
	"context"
	"fmt"
	"time"

	"github.com/anacrolix/chansync"
	"github.com/anacrolix/chansync/events"
	"github.com/anacrolix/log"
	"github.com/anacrolix/sync"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/anacrolix/peerwire/bitfield"
	"github.com/anacrolix/peerwire/choker"
	"github.com/anacrolix/peerwire/internal/panicif"
	"github.com/anacrolix/peerwire/metainfo"
	pp "github.com/anacrolix/peerwire/peer_protocol"
	requestStrategy "github.com/anacrolix/peerwire/request-strategy"
	"github.com/anacrolix/peerwire/storage"
	"github.com/anacrolix/peerwire/types"
	"github.com/anacrolix/peerwire/version"
)

// Downloads and seeds one torrent's pieces over any number of peer sessions. All session and piece
// state is guarded by a single lock. Storage reads, writes and hash checks happen with it released.
type Swarm struct {
	mu        sync.RWMutex
	config    *SwarmConfig
	logger    log.Logger
	info      *metainfo.Info
	infoHash  metainfo.Hash
	store     storage.PieceStore
	chunkSize pp.Integer
	chunkPool *chunkPool

	pieces        []Piece
	localBitfield *bitfield.Bitfield
	// Connected sessions that have announced each piece.
	availability []int
	// Pieces we don't have, rarest first.
	pieceRequestOrder *requestStrategy.PieceRequestOrder
	// Sessions with each chunk outstanding.
	requestCounts map[types.Request]int

	conns      map[*PeerConn]struct{}
	nextConnId int64
	choker     choker.Choker

	hashSem    *semaphore.Weighted
	goroutines errgroup.Group
	stats      ConnStats
	// Useful data received and piece data sent by all sessions, sampled each choke round.
	downloadRate rateSampler
	uploadRate   rateSampler

	stopped  bool
	closed   chansync.SetOnce
	complete chansync.SetOnce
}

// Pieces the store already has are treated as complete. cfg may be nil for the defaults, and its
// zero fields are defaulted.
func NewSwarm(info *metainfo.Info, infoHash metainfo.Hash, store storage.PieceStore, cfg *SwarmConfig) (*Swarm, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = NewDefaultSwarmConfig()
	} else {
		copied := *cfg
		cfg = &copied
	}
	cfg.setDefaults()
	setRateLimiterBurstIfZero(cfg.UploadRateLimiter, defaultUploadRateLimiterBurst)
	numPieces := info.NumPieces()
	s := &Swarm{
		config:            cfg,
		logger:            cfg.Logger.WithContextText(fmt.Sprintf("swarm %v", infoHash.HexString()[:8])),
		info:              info,
		infoHash:          infoHash,
		store:             store,
		chunkSize:         cfg.ChunkSize,
		chunkPool:         newChunkPool(cfg.ChunkSize),
		pieces:            make([]Piece, numPieces),
		localBitfield:     bitfield.New(numPieces),
		availability:      make([]int, numPieces),
		pieceRequestOrder: requestStrategy.NewPieceOrder(requestStrategy.NewTidwallBtree(), numPieces),
		requestCounts:     make(map[types.Request]int),
		conns:             make(map[*PeerConn]struct{}),
		choker: choker.Choker{
			Slots:    cfg.UnchokeSlots,
			Interval: cfg.ChokeInterval,
		},
		hashSem: semaphore.NewWeighted(cfg.PieceHashers),
	}
	for i := range s.pieces {
		s.pieces[i] = Piece{s: s, index: i}
		have, err := store.Has(i)
		if err != nil {
			return nil, fmt.Errorf("checking completion of piece %d: %w", i, err)
		}
		if have {
			s.localBitfield.Set(i)
		} else {
			s.pieceRequestOrder.Add(i, requestStrategy.PieceRequestOrderState{})
		}
	}
	if s.localBitfield.IsComplete() {
		s.complete.Set()
	}
	s.logger.Levelf(log.Debug, "%v as %v, have %d/%d pieces", version.DefaultClientVersion, cfg.PeerID, s.localBitfield.Count(), numPieces)
	s.goroutines.Go(s.coordinator)
	return s, nil
}

func (s *Swarm) InfoHash() metainfo.Hash {
	return s.infoHash
}

func (s *Swarm) Info() *metainfo.Info {
	return s.info
}

func (s *Swarm) locker() *sync.RWMutex {
	return &s.mu
}

func (s *Swarm) numPieces() int {
	return len(s.pieces)
}

func (s *Swarm) pieceLength(piece pieceIndex) int64 {
	return s.pieces[piece].length()
}

func (s *Swarm) haveLocalPiece(piece pieceIndex) bool {
	return s.localBitfield.Get(piece)
}

func (s *Swarm) incPieceAvailability(piece pieceIndex) {
	s.availability[piece]++
	s.pieceRequestOrder.AddAvailability(piece, 1)
}

func (s *Swarm) decPieceAvailability(piece pieceIndex) {
	panicif.LessThan(s.availability[piece], 1)
	s.availability[piece]--
	s.pieceRequestOrder.AddAvailability(piece, -1)
}

func (s *Swarm) requestIssued(r types.Request) {
	s.requestCounts[r]++
}

func (s *Swarm) requestReleased(r types.Request) {
	n := s.requestCounts[r]
	panicif.LessThan(n, 1)
	if n == 1 {
		delete(s.requestCounts, r)
	} else {
		s.requestCounts[r] = n - 1
	}
}

func (s *Swarm) connStats() *ConnStats {
	return &s.stats
}

func (s *Swarm) goroutine(f func()) {
	s.goroutines.Go(func() error {
		f()
		return nil
	})
}

func (s *Swarm) tickleWriters() {
	for c := range s.conns {
		c.tickleWriter()
	}
}

func (s *Swarm) incompletePieces() int {
	return s.numPieces() - s.localBitfield.Count()
}

// Duplicate requests are allowed when few pieces remain.
func (s *Swarm) endgame() bool {
	incomplete := s.incompletePieces()
	return incomplete > 0 && incomplete < s.config.EndgameThreshold
}

func (s *Swarm) nextRequests(c *PeerConn) []types.Request {
	return requestStrategy.NextRequests(
		requestStrategy.Input{
			Torrent: requestStrategyTorrent{s},
			Order:   s.pieceRequestOrder,
			Endgame: s.endgame(),
		},
		requestStrategy.Peer{
			HasPiece: c.peerPieces.Get,
			HasExistingRequest: func(r types.Request) bool {
				_, ok := c.requests[r]
				return ok
			},
			MaxRequests:      s.config.MaxRequestsPerPeer,
			ExistingRequests: len(c.requests),
			Choking:          c.peerChoking,
		},
	)
}

func (s *Swarm) readChunk(r types.Request, b []byte) error {
	n, err := s.store.ReadAt(pieceIndex(r.Index), b, int64(r.Begin))
	if n == len(b) {
		return nil
	}
	if err == nil {
		err = fmt.Errorf("short read: %d of %d bytes", n, len(b))
	}
	return err
}

func (s *Swarm) receiveChunk(c *PeerConn, msg *pp.Message) error {
	defer s.chunkPool.put(msg.Piece)
	chunksReceived.Add(1)
	r := types.Request{
		Index: msg.Index,
		ChunkSpec: types.ChunkSpec{
			Begin:  msg.Begin,
			Length: pp.Integer(len(msg.Piece)),
		},
	}
	wasted := func() {
		c.allStats(add(1, func(cs *ConnStats) *Count { return &cs.ChunksReadWasted }))
	}
	// Includes chunks that were cancelled or timed out.
	if !c.deleteRequest(r) {
		unexpectedChunksReceived.Add(1)
		wasted()
		c.logger.Levelf(log.Debug, "discarding unexpected %v", r)
		return nil
	}
	c.tickleWriter()
	p := &s.pieces[r.Index]
	chunk, ok := types.ChunkSpecIndex(r.ChunkSpec, p.length(), s.chunkSize)
	panicif.False(ok)
	if !p.requestable() || !p.chunkMissing(chunk) {
		unwantedChunksReceived.Add(1)
		wasted()
		return nil
	}
	// Endgame duplicates elsewhere are no longer needed.
	for other := range s.conns {
		if other != c && other.cancel(r) {
			endgameCancelsPosted.Add(1)
		}
	}
	c.allStats(func(cs *ConnStats) {
		cs.ChunksReadUseful.Add(1)
		cs.BytesReadUsefulData.Add(int64(len(msg.Piece)))
	})
	p.writingChunks.Add(uint32(chunk))
	p.addDirtier(c)

	s.mu.Unlock()
	err := s.store.WriteAt(p.index, msg.Piece, int64(r.Begin))
	s.mu.Lock()

	p.writingChunks.Remove(uint32(chunk))
	if err != nil {
		s.logger.Levelf(log.Error, "writing %v: %v", r, err)
		s.tickleWriters()
		return nil
	}
	p.dirtyChunks.Add(uint32(chunk))
	p.lastDirtier = c
	if p.allChunksDirty() && !p.hashing {
		p.hashing = true
		s.hashPiece(p)
	}
	return nil
}

// Checks the piece with the lock released. The caller set p.hashing.
func (s *Swarm) hashPiece(p *Piece) {
	s.mu.Unlock()
	correct, err := s.verifyPiece(p.index)
	s.mu.Lock()
	s.pieceHashed(p, correct, err)
}

func (s *Swarm) verifyPiece(piece pieceIndex) (bool, error) {
	if err := s.hashSem.Acquire(context.Background(), 1); err != nil {
		return false, err
	}
	defer s.hashSem.Release(1)
	return s.store.Verify(piece)
}

func (s *Swarm) pieceHashed(p *Piece, correct bool, err error) {
	p.hashing = false
	defer s.tickleWriters()
	switch {
	case err != nil:
		piecesHashed.WithLabelValues("error").Inc()
		s.logger.Levelf(log.Error, "hashing %v: %v", p, err)
		p.reset()
	case correct:
		pieceHashedCorrect.Add(1)
		piecesHashed.WithLabelValues("pass").Inc()
		for c := range p.dirtiers {
			c.allStats((*ConnStats).incrementPiecesDirtiedGood)
		}
		p.reset()
		s.pieceCompleted(p.index)
	default:
		pieceHashedNotCorrect.Add(1)
		piecesHashed.WithLabelValues("fail").Inc()
		for c := range p.dirtiers {
			c.allStats((*ConnStats).incrementPiecesDirtiedBad)
		}
		last := p.lastDirtier
		p.reset()
		s.logger.Levelf(log.Warning, "%v failed hash check", p)
		if last == nil || last.closed.IsSet() {
			break
		}
		last.integrityFailures++
		if last.integrityFailures >= s.config.MaxIntegrityFailures {
			last.close(IntegrityFailure{
				Piece:    p.index,
				Failures: last.integrityFailures,
			})
		}
	}
}

func (s *Swarm) pieceCompleted(piece pieceIndex) {
	s.localBitfield.Set(piece)
	s.pieceRequestOrder.Delete(piece)
	for c := range s.conns {
		for r := range c.requests {
			if pieceIndex(r.Index) == piece {
				c.cancel(r)
			}
		}
		c.have(piece)
	}
	if s.localBitfield.IsComplete() {
		s.logger.Levelf(log.Info, "all %d pieces complete", s.numPieces())
		s.complete.Set()
	}
}

func (s *Swarm) connClosed(c *PeerConn) {
	if _, ok := s.conns[c]; !ok {
		return
	}
	delete(s.conns, c)
	c.peerPieces.Iterate(func(piece int) bool {
		s.decPieceAvailability(piece)
		return true
	})
	activeSessions.Dec()
	sessionsClosed.WithLabelValues(closeCauseLabel(c.closeErr)).Inc()
	s.tickleWriters()
}

// Registers a session that completed its handshake, unless the swarm is stopped or closed.
func (s *Swarm) addConnection(c *PeerConn) error {
	if s.closed.IsSet() {
		return ErrSwarmClosed
	}
	if s.stopped {
		return ErrSwarmStopped
	}
	s.conns[c] = struct{}{}
	activeSessions.Inc()
	c.start(time.Now(), s.localBitfield)
	return nil
}

// Runs the choker and the timeout sweep until the swarm is closed.
func (s *Swarm) coordinator() error {
	chokeTicker := time.NewTicker(s.config.ChokeInterval)
	defer chokeTicker.Stop()
	sweepTicker := time.NewTicker(s.sweepInterval())
	defer sweepTicker.Stop()
	for {
		select {
		case <-s.closed.Done():
			return nil
		case now := <-chokeTicker.C:
			s.mu.Lock()
			s.rechoke(now)
			s.mu.Unlock()
		case now := <-sweepTicker.C:
			s.mu.Lock()
			s.sweepTimeouts(now)
			s.mu.Unlock()
		}
	}
}

func (s *Swarm) sweepInterval() time.Duration {
	return min(timeoutSweepInterval, s.config.RequestTimeout/2, s.config.ConnectionTimeout/2)
}

func (s *Swarm) rechoke(now time.Time) {
	s.downloadRate.sample(now, s.stats.BytesReadUsefulData.Int64())
	s.uploadRate.sample(now, s.stats.BytesWrittenData.Int64())
	if s.stopped {
		return
	}
	seeding := s.localBitfield.IsComplete()
	peers := make([]choker.Peer, 0, len(s.conns))
	byId := make(map[choker.PeerId]*PeerConn, len(s.conns))
	for c := range s.conns {
		down := c.downloadRate.sample(now, c.stats.BytesReadUsefulData.Int64())
		up := c.uploadRate.sample(now, c.stats.BytesWrittenData.Int64())
		rate := down
		if seeding {
			rate = up
		}
		byId[c.id] = c
		peers = append(peers, choker.Peer{
			Id:         c.id,
			Interested: c.peerInterested && !s.config.NoUpload,
			Unchoked:   !c.amChoking,
			UnchokedAt: c.unchokedAt,
			Rate:       rate,
		})
	}
	d := s.choker.Recompute(now, peers)
	for _, id := range d.Choke {
		byId[id].choke()
	}
	for _, id := range d.Unchoke {
		byId[id].unchoke(now)
	}
	if !d.IsEmpty() {
		s.logger.Levelf(log.Debug, "rechoked: %+v", d)
	}
}

func (s *Swarm) sweepTimeouts(now time.Time) {
	for c := range s.conns {
		c.checkTimeouts(now)
	}
}

// Closes every session and refuses new ones until Start. Piece progress is kept.
func (s *Swarm) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop(ErrSwarmStopped)
}

func (s *Swarm) stop(err error) {
	s.stopped = true
	for c := range s.conns {
		c.close(err)
	}
}

// Accepts sessions again after Stop.
func (s *Swarm) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.IsSet() {
		return ErrSwarmClosed
	}
	s.stopped = false
	return nil
}

// Closes all sessions, waits for their goroutines and closes the store.
func (s *Swarm) Close() error {
	s.mu.Lock()
	if !s.closed.Set() {
		s.mu.Unlock()
		return nil
	}
	s.stop(ErrSwarmClosed)
	s.mu.Unlock()
	s.goroutines.Wait()
	return s.store.Close()
}

// Closed when every piece has been verified.
func (s *Swarm) Complete() events.Done {
	return s.complete.Done()
}

// Blocks until every piece is verified, the swarm is closed or ctx is done.
func (s *Swarm) WaitComplete(ctx context.Context) error {
	select {
	case <-s.complete.Done():
		return nil
	case <-s.closed.Done():
		return ErrSwarmClosed
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

func (s *Swarm) Closed() events.Done {
	return s.closed.Done()
}

func (s *Swarm) LocalBitfield() *bitfield.Bitfield {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localBitfield.Copy()
}

// Number of connected sessions that announced the piece.
func (s *Swarm) PieceAvailability(piece int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.availability[piece]
}

func (s *Swarm) Peers() (ret []*PeerConn) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.conns {
		ret = append(ret, c)
	}
	return
}

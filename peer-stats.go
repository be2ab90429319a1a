package peerwire

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/anacrolix/peerwire/types"
)

type PeerStats struct {
	ConnStats

	PeerID types.PeerID
	Addr   string
	// Choke and interest flags, see connFlags.
	Flags string
	// Bytes per second as of the last choke round.
	DownloadRate int64
	UploadRate   int64
	// How many pieces the peer has.
	RemotePieceCount int
	// Our requests awaiting data, and theirs awaiting upload.
	OutstandingRequests int
	PendingPeerRequests int
	IntegrityFailures   int
	Connected           time.Duration
	// From the peer's last port message.
	DhtPort uint16
	// Why the session ended, if it has.
	CloseErr error
}

func (me PeerStats) String() string {
	return fmt.Sprintf("%v %v [%v] down %v/s up %v/s, %d pieces, %d/%d requests",
		me.Addr,
		me.PeerID,
		me.Flags,
		humanize.IBytes(uint64(max(me.DownloadRate, 0))),
		humanize.IBytes(uint64(max(me.UploadRate, 0))),
		me.RemotePieceCount,
		me.OutstandingRequests,
		me.PendingPeerRequests,
	)
}

func (c *PeerConn) Stats() PeerStats {
	c.locker().RLock()
	defer c.locker().RUnlock()
	return c.statsLocked()
}

func (c *PeerConn) statsLocked() PeerStats {
	return PeerStats{
		ConnStats:           c.stats.Copy(),
		PeerID:              c.PeerID,
		Addr:                fmt.Sprint(c.RemoteAddr),
		Flags:               c.connFlags.String(),
		DownloadRate:        c.downloadRate.rate,
		UploadRate:          c.uploadRate.rate,
		RemotePieceCount:    c.peerPieces.Count(),
		OutstandingRequests: len(c.requests),
		PendingPeerRequests: c.peerRequests.Len(),
		IntegrityFailures:   c.integrityFailures,
		Connected:           time.Since(c.completedHandshake),
		DhtPort:             c.dhtPort.Value,
		CloseErr:            c.closeErr,
	}
}

// Aggregates over all sessions past and present, plus instantaneous piece and session counts.
type SwarmStats struct {
	ConnStats

	NumPieces      int
	PiecesComplete int
	ActivePeers    int
	// Bytes per second over all sessions as of the last choke round.
	DownloadRate int64
	UploadRate   int64
	// Distinct chunks outstanding across all sessions.
	OutstandingChunks int
	Endgame           bool
	Stopped           bool
	Peers             []PeerStats
}

func (me SwarmStats) String() string {
	return fmt.Sprintf("%d/%d pieces, %d peers, down %v/s up %v/s, read %v (%v useful), wrote %v",
		me.PiecesComplete,
		me.NumPieces,
		me.ActivePeers,
		humanize.Bytes(uint64(max(me.DownloadRate, 0))),
		humanize.Bytes(uint64(max(me.UploadRate, 0))),
		humanize.Bytes(uint64(me.BytesRead.Int64())),
		humanize.Bytes(uint64(me.BytesReadUsefulData.Int64())),
		humanize.Bytes(uint64(me.BytesWritten.Int64())),
	)
}

func (s *Swarm) Stats() SwarmStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := SwarmStats{
		ConnStats:         s.stats.Copy(),
		NumPieces:         s.numPieces(),
		PiecesComplete:    s.localBitfield.Count(),
		ActivePeers:       len(s.conns),
		DownloadRate:      s.downloadRate.rate,
		UploadRate:        s.uploadRate.rate,
		OutstandingChunks: len(s.requestCounts),
		Endgame:           s.endgame(),
		Stopped:           s.stopped,
	}
	for c := range s.conns {
		ret.Peers = append(ret.Peers, c.statsLocked())
	}
	return ret
}

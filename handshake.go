package peerwire

import (
	"context"
	"net"

	"github.com/anacrolix/log"

	"github.com/anacrolix/peerwire/metainfo"
	pp "github.com/anacrolix/peerwire/peer_protocol"
)

// Handshakes over nc and adds the session to the swarm. Outgoing connections send the handshake
// first. The connection is closed if this fails. HandshakeTimeout bounds the handshake in addition
// to ctx.
func (s *Swarm) AddPeer(ctx context.Context, nc net.Conn, outgoing bool) (*PeerConn, error) {
	s.mu.Lock()
	err := s.acceptingErr()
	id := s.nextConnId
	s.nextConnId++
	s.mu.Unlock()
	if err != nil {
		nc.Close()
		return nil, err
	}
	c := newPeerConn(s, s.config, id, nc, outgoing)
	res, err := s.handshake(ctx, c)
	if err != nil {
		nc.Close()
		c.logger.Levelf(log.Debug, "handshake failed: %v", err)
		return nil, err
	}
	c.PeerID = res.PeerID
	c.PeerExtensionBits = res.PeerExtensionBits
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.addConnection(c); err != nil {
		nc.Close()
		return nil, err
	}
	c.logger.Levelf(log.Debug, "connected to %v with extensions %v", c.PeerID, c.PeerExtensionBits)
	return c, nil
}

func (s *Swarm) acceptingErr() error {
	if s.closed.IsSet() {
		return ErrSwarmClosed
	}
	if s.stopped {
		return ErrSwarmStopped
	}
	return nil
}

func (s *Swarm) handshake(ctx context.Context, c *PeerConn) (res pp.HandshakeResult, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.HandshakeTimeout)
	defer cancel()
	var ih *metainfo.Hash
	// Incoming peers name the torrent first.
	if c.outgoing {
		ih = &s.infoHash
	}
	// The raw conn so the handshake can set deadlines on it.
	res, err = pp.Handshake(ctx, c.conn, ih, s.config.PeerID, s.config.Extensions)
	if err != nil {
		return res, wrapTransportErr("handshake", err)
	}
	c.wroteBytes(int64(pp.HandshakeLength))
	c.readBytes(int64(pp.HandshakeLength))
	if res.Hash != s.infoHash {
		return res, violationf("handshake for unknown infohash %v", res.Hash)
	}
	if res.PeerID == s.config.PeerID {
		connsToSelf.Add(1)
		return res, ErrConnectionToSelf
	}
	return res, nil
}

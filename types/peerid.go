package types

import (
	"crypto/rand"
	"fmt"
	"log/slog"
)

// Peer client ID.
type PeerID [20]byte

var _ slog.LogValuer = PeerID{}

func (me PeerID) LogValue() slog.Value {
	return slog.StringValue(me.String())
}

// Keeps a BEP 20 client prefix readable, the rest is quoted.
func (me PeerID) String() string {
	return fmt.Sprintf("%+q", me[:])
}

// A random ID behind the given BEP 20 style prefix, like "-PW0001-".
func RandomPeerID(prefix string) (ret PeerID) {
	n := copy(ret[:], prefix)
	rand.Read(ret[n:])
	return
}

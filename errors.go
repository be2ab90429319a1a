package peerwire

import (
	"fmt"

	"github.com/pkg/errors"

	pp "github.com/anacrolix/peerwire/peer_protocol"
	"github.com/anacrolix/peerwire/types"
)

var (
	ErrSwarmStopped     = errors.New("swarm stopped")
	ErrSwarmClosed      = errors.New("swarm closed")
	ErrConnectionToSelf = errors.New("connection to self")
	errSessionClosed    = errors.New("session closed")
)

// A piece the peer contributed to failed its hash check once too often.
type IntegrityFailure struct {
	Piece    int
	Failures int
}

func (me IntegrityFailure) Error() string {
	return fmt.Sprintf("piece %d failed hash check, %d corrupt contributions from peer", me.Piece, me.Failures)
}

// The connection failed. Handled like a peer going away.
type TransportError struct {
	Op  string
	Err error
}

func (me TransportError) Error() string {
	return fmt.Sprintf("%s: %v", me.Op, me.Err)
}

func (me TransportError) Unwrap() error {
	return me.Err
}

// A local limit rejected something the peer asked for. The session survives.
type CapacityExceeded struct {
	What  string
	Limit int
}

func (me CapacityExceeded) Error() string {
	return fmt.Sprintf("%s exceeds limit of %d", me.What, me.Limit)
}

func violationf(format string, args ...any) error {
	return pp.ProtocolViolation{Reason: fmt.Sprintf(format, args...)}
}

// Classifies read and write failures. Protocol violations pass through.
func wrapTransportErr(op string, err error) error {
	if err == nil || pp.IsProtocolViolation(err) {
		return err
	}
	var te TransportError
	if errors.As(err, &te) {
		return err
	}
	return TransportError{Op: op, Err: err}
}

func requestViolation(r types.Request, reason string) error {
	return violationf("request %v: %s", r, reason)
}

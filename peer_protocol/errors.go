package peer_protocol

import (
	"fmt"

	"github.com/pkg/errors"
)

// Malformed framing, an oversized length prefix, or a message that isn't allowed in the current
// state. The peer that sent it should be disconnected.
type ProtocolViolation struct {
	Reason string
}

func (me ProtocolViolation) Error() string {
	return "protocol violation: " + me.Reason
}

func violationf(format string, args ...any) error {
	return ProtocolViolation{Reason: fmt.Sprintf(format, args...)}
}

// Returned by Unmarshal when the buffer doesn't yet hold a whole message. Nothing was consumed.
type NeedMoreError struct {
	// Minimum number of additional bytes before another attempt can make progress.
	N int
}

func (me *NeedMoreError) Error() string {
	return fmt.Sprintf("insufficient data, need %d more bytes", me.N)
}

// Returns how many more bytes are needed if err indicates a short buffer.
func NeedMore(err error) (n int, ok bool) {
	var nm *NeedMoreError
	if errors.As(err, &nm) {
		return nm.N, true
	}
	return 0, false
}

func IsProtocolViolation(err error) bool {
	var pv ProtocolViolation
	return errors.As(err, &pv)
}

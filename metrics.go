package peerwire

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	pp "github.com/anacrolix/peerwire/peer_protocol"
)

// Metrics for all swarms in the process. Expose it with promhttp.HandlerFor.
var Registry = prometheus.NewRegistry()

var (
	messagesRead = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peerwire",
		Name:      "messages_read_total",
		Help:      "Peer wire messages decoded, by type.",
	}, []string{"type"})
	messagesWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peerwire",
		Name:      "messages_written_total",
		Help:      "Peer wire messages posted to writers, by type.",
	}, []string{"type"})
	piecesHashed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peerwire",
		Name:      "pieces_hashed_total",
		Help:      "Piece hash checks by result.",
	}, []string{"result"})
	activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "peerwire",
		Name:      "active_sessions",
		Help:      "Connected peer sessions.",
	})
	sessionsClosed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peerwire",
		Name:      "sessions_closed_total",
		Help:      "Sessions closed, by cause.",
	}, []string{"cause"})
)

func init() {
	Registry.MustRegister(messagesRead, messagesWritten, piecesHashed, activeSessions, sessionsClosed)
}

func messageTypeLabel(msg *pp.Message) string {
	if msg.Keepalive {
		return "Keepalive"
	}
	return msg.Type.String()
}

func closeCauseLabel(err error) string {
	var (
		integrity IntegrityFailure
		transport TransportError
	)
	switch {
	case err == nil, errors.Is(err, errSessionClosed):
		return "local"
	case pp.IsProtocolViolation(err):
		return "protocol_violation"
	case errors.As(err, &integrity):
		return "integrity_failure"
	case errors.As(err, &transport):
		return "transport"
	case errors.Is(err, ErrSwarmStopped), errors.Is(err, ErrSwarmClosed):
		return "stopped"
	default:
		return "other"
	}
}

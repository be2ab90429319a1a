package peerwire

import (
	"expvar"
	"time"
)

const (
	// Write buffer size at which the writer stops filling requests and uploads.
	writeBufferHighWaterLen = 1 << 15
	// How often request and connection timeouts are checked.
	timeoutSweepInterval = time.Second
)

// I could move a lot of these counters to their own file, but I suspect they
// may be attached to a Swarm someday.
var (
	unwantedChunksReceived   = expvar.NewInt("chunksReceivedUnwanted")
	unexpectedChunksReceived = expvar.NewInt("chunksReceivedUnexpected")
	chunksReceived           = expvar.NewInt("chunksReceived")

	uploadChunksPosted = expvar.NewInt("uploadChunksPosted")
	unexpectedCancels  = expvar.NewInt("unexpectedCancels")

	pieceHashedCorrect    = expvar.NewInt("pieceHashedCorrect")
	pieceHashedNotCorrect = expvar.NewInt("pieceHashedNotCorrect")

	// Count of connections to peer with same client ID.
	connsToSelf        = expvar.NewInt("connsToSelf")
	receivedKeepalives = expvar.NewInt("receivedKeepalives")
	postedKeepalives   = expvar.NewInt("postedKeepalives")
	// Requests received for pieces we don't have.
	requestsReceivedForMissingPieces = expvar.NewInt("requestsReceivedForMissingPieces")
	requestsReceivedWhileChoking     = expvar.NewInt("requestsReceivedWhileChoking")
	peerRequestsDropped              = expvar.NewInt("peerRequestsDropped")

	messageTypesReceived = expvar.NewMap("messageTypesReceived")
	messageTypesPosted   = expvar.NewMap("messageTypesPosted")

	endgameCancelsPosted = expvar.NewInt("endgameCancelsPosted")
	requestsTimedOut     = expvar.NewInt("requestsTimedOut")
)

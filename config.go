package peerwire

import (
	"time"

	"github.com/anacrolix/log"
	"golang.org/x/time/rate"

	pp "github.com/anacrolix/peerwire/peer_protocol"
	"github.com/anacrolix/peerwire/types"
	"github.com/anacrolix/peerwire/version"
)

const defaultChunkSize = 0x4000 // 16KiB

// Probably not safe to modify this after it's given to a Swarm, or to pass it to multiple Swarms.
type SwarmConfig struct {
	// Generated with version.DefaultBep20Prefix if zero.
	PeerID types.PeerID
	// Reserved handshake bytes we advertise. They're informational only.
	Extensions pp.PeerExtensionBits

	// Block size requested from peers.
	ChunkSize pp.Integer `long:"chunk-size"`
	// Largest message length prefix accepted from a peer.
	MaxMessageLength pp.Integer `long:"max-message-length"`
	// Outstanding requests we allow ourselves per peer.
	MaxRequestsPerPeer int `long:"max-requests-per-peer"`
	// Maximum pending requests we allow peers to send us.
	MaxPeerRequests int `long:"max-peer-requests"`
	// Duplicate requests are allowed once fewer than this many pieces are incomplete. Negative
	// disables endgame.
	EndgameThreshold int `long:"endgame-threshold"`

	ChokeInterval time.Duration `long:"choke-interval"`
	// Peers unchoked by rank each interval. One more is unchoked optimistically.
	UnchokeSlots int `long:"unchoke-slots"`

	// Send a keep-alive if nothing else was written for this long.
	KeepAliveInterval time.Duration `long:"keep-alive-interval"`
	// Close sessions that have sent nothing for this long.
	ConnectionTimeout time.Duration `long:"connection-timeout"`
	// Outstanding requests older than this are returned for reselection.
	RequestTimeout   time.Duration `long:"request-timeout"`
	HandshakeTimeout time.Duration `long:"handshake-timeout"`

	// Corrupt pieces a peer can be last to contribute to before it's disconnected.
	MaxIntegrityFailures int `long:"max-integrity-failures"`

	// Rate limits piece data sent to peers. Shared by all sessions.
	UploadRateLimiter *rate.Limiter
	// Concurrent piece hash checks.
	PieceHashers int64 `long:"piece-hashers"`
	// Never unchoke peers.
	NoUpload bool `long:"no-upload"`

	// NewDefaultSwarmConfig names it "peerwire".
	Logger log.Logger
}

var unlimited = rate.NewLimiter(rate.Inf, 0)

func NewDefaultSwarmConfig() *SwarmConfig {
	return &SwarmConfig{
		ChunkSize:            defaultChunkSize,
		MaxMessageLength:     256 << 10,
		MaxRequestsPerPeer:   8,
		MaxPeerRequests:      250,
		EndgameThreshold:     4,
		ChokeInterval:        10 * time.Second,
		UnchokeSlots:         4,
		KeepAliveInterval:    2 * time.Minute,
		ConnectionTimeout:    3 * time.Minute,
		RequestTimeout:       time.Minute,
		HandshakeTimeout:     4 * time.Second,
		MaxIntegrityFailures: 2,
		UploadRateLimiter:    unlimited,
		PieceHashers:         2,
		Logger:               log.Default.WithNames("peerwire"),
	}
}

// Fills zero fields from the defaults.
func (cfg *SwarmConfig) setDefaults() {
	def := NewDefaultSwarmConfig()
	if cfg.PeerID == (types.PeerID{}) {
		cfg.PeerID = types.RandomPeerID(version.DefaultBep20Prefix)
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.MaxMessageLength == 0 {
		cfg.MaxMessageLength = def.MaxMessageLength
	}
	if cfg.MaxRequestsPerPeer == 0 {
		cfg.MaxRequestsPerPeer = def.MaxRequestsPerPeer
	}
	if cfg.MaxPeerRequests == 0 {
		cfg.MaxPeerRequests = def.MaxPeerRequests
	}
	if cfg.EndgameThreshold == 0 {
		cfg.EndgameThreshold = def.EndgameThreshold
	}
	if cfg.ChokeInterval == 0 {
		cfg.ChokeInterval = def.ChokeInterval
	}
	if cfg.UnchokeSlots == 0 {
		cfg.UnchokeSlots = def.UnchokeSlots
	}
	if cfg.KeepAliveInterval == 0 {
		cfg.KeepAliveInterval = def.KeepAliveInterval
	}
	if cfg.ConnectionTimeout == 0 {
		cfg.ConnectionTimeout = def.ConnectionTimeout
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.MaxIntegrityFailures == 0 {
		cfg.MaxIntegrityFailures = def.MaxIntegrityFailures
	}
	if cfg.UploadRateLimiter == nil {
		cfg.UploadRateLimiter = unlimited
	}
	if cfg.PieceHashers == 0 {
		cfg.PieceHashers = def.PieceHashers
	}
}

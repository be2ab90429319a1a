package peerwire

import (
	"testing"

	qt "github.com/go-quicktest/qt"

	"github.com/anacrolix/peerwire/version"
)

func TestSetDefaultsFillsZeroFields(t *testing.T) {
	var cfg SwarmConfig
	cfg.setDefaults()
	def := NewDefaultSwarmConfig()
	qt.Check(t, qt.Equals(cfg.EndgameThreshold, def.EndgameThreshold))
	qt.Check(t, qt.Equals(cfg.MaxMessageLength, def.MaxMessageLength))
	qt.Check(t, qt.Equals(cfg.ChokeInterval, def.ChokeInterval))
	qt.Check(t, qt.Equals(string(cfg.PeerID[:len(version.DefaultBep20Prefix)]), version.DefaultBep20Prefix))
}

func TestSetDefaultsKeepsExplicitFields(t *testing.T) {
	cfg := SwarmConfig{EndgameThreshold: -1, UnchokeSlots: 1}
	cfg.setDefaults()
	qt.Check(t, qt.Equals(cfg.EndgameThreshold, -1))
	qt.Check(t, qt.Equals(cfg.UnchokeSlots, 1))
}

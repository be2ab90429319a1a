// Package choker decides which peers the local node uploads to. It's a pure policy: the swarm
// feeds it a snapshot of its sessions and applies the returned transitions.
package choker

import (
	"slices"
	"time"

	g "github.com/anacrolix/generics"
	"github.com/anacrolix/multiless"
)

// Stable per-session identifier. Round-robin follows ascending Id.
type PeerId = int64

type Peer struct {
	Id         PeerId
	Interested bool
	// We currently aren't choking the peer.
	Unchoked bool
	// When the peer was last unchoked. Only meaningful if Unchoked.
	UnchokedAt time.Time
	// Bytes per second: received from the peer while downloading, sent to it when seeding.
	Rate int64
}

type Decision struct {
	Unchoke []PeerId
	Choke   []PeerId
	// The round-robin pick this cycle, if any.
	Optimistic g.Option[PeerId]
}

func (me Decision) IsEmpty() bool {
	return len(me.Unchoke) == 0 && len(me.Choke) == 0
}

type Choker struct {
	// Peers unchoked by rank. One more is unchoked optimistically.
	Slots int
	// Unchoked peers are never choked again until this long has passed, or the next regular cycle.
	Interval time.Duration

	lastOptimistic g.Option[PeerId]
	lastRecompute  g.Option[time.Time]
}

func rankLess(l, r *Peer) bool {
	return multiless.New().Int64(r.Rate, l.Rate).Int64(l.Id, r.Id).Less()
}

// A recompute at least half an interval after the previous one is a regular cycle. Peers unchoked
// by an earlier cycle have had theirs, even if that cycle ran late.
func (me *Choker) regularCycle(now time.Time) bool {
	last, ok := me.lastRecompute.AsTuple()
	return ok && now.Sub(last) >= me.Interval/2
}

func (me *Choker) sticky(now time.Time, regular bool, p *Peer) bool {
	return p.Unchoked && !regular && now.Sub(p.UnchokedAt) < me.Interval
}

// Recompute which peers should be unchoked at now. Only transitions are returned. No more than
// Slots+1 peers end up unchoked.
func (me *Choker) Recompute(now time.Time, peers []Peer) (ret Decision) {
	keep := make(map[PeerId]bool, me.Slots+1)
	regular := me.regularCycle(now)
	me.lastRecompute.Set(now)
	// Recently unchoked peers hold their slots.
	for i := range peers {
		p := &peers[i]
		if me.sticky(now, regular, p) {
			keep[p.Id] = true
		}
	}
	ranked := make([]*Peer, 0, len(peers))
	for i := range peers {
		if peers[i].Interested {
			ranked = append(ranked, &peers[i])
		}
	}
	slices.SortFunc(ranked, func(l, r *Peer) int {
		if rankLess(l, r) {
			return -1
		}
		if rankLess(r, l) {
			return 1
		}
		return 0
	})
	for _, p := range ranked {
		if len(keep) >= me.Slots {
			break
		}
		keep[p.Id] = true
	}
	if len(keep) < me.Slots+1 {
		ret.Optimistic = me.nextOptimistic(ranked, keep)
		if id, ok := ret.Optimistic.AsTuple(); ok {
			keep[id] = true
			me.lastOptimistic.Set(id)
		}
	}
	for i := range peers {
		p := &peers[i]
		switch want := keep[p.Id]; {
		case want && !p.Unchoked:
			ret.Unchoke = append(ret.Unchoke, p.Id)
		case !want && p.Unchoked:
			ret.Choke = append(ret.Choke, p.Id)
		}
	}
	return
}

// The first interested candidate after the previous optimistic pick, wrapping around.
func (me *Choker) nextOptimistic(ranked []*Peer, keep map[PeerId]bool) (ret g.Option[PeerId]) {
	var candidates []PeerId
	for _, p := range ranked {
		if !keep[p.Id] {
			candidates = append(candidates, p.Id)
		}
	}
	if len(candidates) == 0 {
		return
	}
	slices.Sort(candidates)
	if last, ok := me.lastOptimistic.AsTuple(); ok {
		for _, id := range candidates {
			if id > last {
				return g.Some(id)
			}
		}
	}
	return g.Some(candidates[0])
}

package peerwire

import (
	"time"

	"golang.org/x/time/rate"
)

// Large enough that a single piece message never exceeds it.
const defaultUploadRateLimiterBurst = 1 << 18

// Sets rate limiter burst if it's set to zero which is used to request the default by our API.
func setRateLimiterBurstIfZero(l *rate.Limiter, def int) {
	if l.Burst() == 0 && l.Limit() != rate.Inf {
		l.SetBurst(def)
	}
}

// Bytes per second between successive samples of a running total. The choker samples every
// interval.
type rateSampler struct {
	lastTotal int64
	lastAt    time.Time
	rate      int64
}

func (me *rateSampler) sample(now time.Time, total int64) int64 {
	if !me.lastAt.IsZero() {
		if elapsed := now.Sub(me.lastAt); elapsed > 0 {
			me.rate = (total - me.lastTotal) * int64(time.Second) / int64(elapsed)
		}
	}
	me.lastTotal = total
	me.lastAt = now
	return me.rate
}

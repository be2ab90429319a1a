package peerwire

import (
	"testing"
	"time"

	qt "github.com/go-quicktest/qt"
	"golang.org/x/time/rate"
)

func TestRateSampler(t *testing.T) {
	var rs rateSampler
	now := time.Unix(100, 0)
	qt.Assert(t, qt.Equals(rs.sample(now, 1000), 0))
	now = now.Add(10 * time.Second)
	qt.Assert(t, qt.Equals(rs.sample(now, 6000), 500))
	now = now.Add(5 * time.Second)
	qt.Assert(t, qt.Equals(rs.sample(now, 6000), 0))
}

func TestSetRateLimiterBurstIfZero(t *testing.T) {
	l := rate.NewLimiter(100, 0)
	setRateLimiterBurstIfZero(l, 10)
	qt.Assert(t, qt.Equals(l.Burst(), 10))
	l = rate.NewLimiter(rate.Inf, 0)
	setRateLimiterBurstIfZero(l, 10)
	qt.Assert(t, qt.Equals(l.Burst(), 0))
}

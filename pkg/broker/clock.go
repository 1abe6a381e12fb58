package broker

import "time"

// Clock abstracts wall-clock reads and sleeps for the domain-monitor poll
// loop, the same seam lockspace.Clock gives the lockspace retry loop.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// RealClock uses the real wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time        { return time.Now() }
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

var _ Clock = RealClock{}

package progress

import (
	"fmt"
	"time"
)

// maxETA caps estimates for crawling transfers so the duration cannot overflow.
const maxETA = 9999 * time.Hour

// Estimate is the result of one rate sample.
type Estimate struct {
	Rate     float64 // bytes per second
	ETA      time.Duration
	ETAKnown bool
}

// RateEstimator turns (time, cumulative bytes) samples into an exponentially
// smoothed transfer rate. It never reads the clock itself.
type RateEstimator struct {
	weight   float64
	interval time.Duration

	seeded    bool
	prevTime  time.Time
	prevBytes int64
	rate      float64
}

func NewRateEstimator(weight float64, interval time.Duration) *RateEstimator {
	if weight <= 0 || weight >= 1 {
		weight = DefaultSmoothingWeight
	}
	if interval < 0 {
		interval = 0
	}
	return &RateEstimator{weight: weight, interval: interval}
}

// Sample feeds one observation. The first call only seeds the baseline.
// A sample closer than the configured interval to the previous one is not
// consumed, so its bytes are counted in the next window instead.
func (e *RateEstimator) Sample(now time.Time, transferred, total int64) (Estimate, error) {
	if !e.seeded {
		e.seeded = true
		e.prevTime = now
		e.prevBytes = transferred
		e.rate = 0
		return e.estimate(transferred, total), nil
	}
	dt := now.Sub(e.prevTime)
	if dt < 0 {
		return e.estimate(transferred, total), fmt.Errorf("%w: sample at %s precedes %s", ErrClockAnomaly, now.Format(time.RFC3339Nano), e.prevTime.Format(time.RFC3339Nano))
	}
	if dt == 0 || dt < e.interval {
		return e.estimate(transferred, total), nil
	}
	delta := transferred - e.prevBytes
	if delta < 0 {
		delta = 0
	}
	instant := float64(delta) / dt.Seconds()
	e.rate = e.weight*instant + (1-e.weight)*e.rate
	e.prevTime = now
	e.prevBytes = transferred
	return e.estimate(transferred, total), nil
}

// Reset forgets the baseline and the smoothed rate.
func (e *RateEstimator) Reset() {
	e.seeded = false
	e.prevTime = time.Time{}
	e.prevBytes = 0
	e.rate = 0
}

func (e *RateEstimator) Rate() float64 {
	return e.rate
}

func (e *RateEstimator) estimate(transferred, total int64) Estimate {
	est := Estimate{Rate: e.rate}
	est.ETA, est.ETAKnown = remaining(e.rate, transferred, total)
	return est
}

// remaining is unknown, never zero or negative, when the rate or size is missing.
func remaining(rate float64, transferred, total int64) (time.Duration, bool) {
	if rate <= 0 || total < 0 {
		return 0, false
	}
	left := total - transferred
	if left < 0 {
		left = 0
	}
	secs := float64(left) / rate
	if secs > maxETA.Seconds() {
		return maxETA, true
	}
	return time.Duration(secs * float64(time.Second)), true
}

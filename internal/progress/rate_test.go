package progress

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateEstimator_FirstSampleSeeds(t *testing.T) {
	e := NewRateEstimator(0.5, 0)
	est, err := e.Sample(at(10), 40, 100)
	require.NoError(t, err)
	assert.Zero(t, est.Rate)
	assert.False(t, est.ETAKnown)
}

func TestRateEstimator_ExponentialSmoothing(t *testing.T) {
	e := NewRateEstimator(0.5, 0)
	_, err := e.Sample(at(10), 40, 100)
	require.NoError(t, err)

	// instantaneous (90-40)/(12-10) = 25, blended with the seed rate 0
	est, err := e.Sample(at(12), 90, 100)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, est.Rate, 1e-9)
	require.True(t, est.ETAKnown)
	assert.InDelta(t, 0.8, est.ETA.Seconds(), 1e-6)

	// instantaneous 25 again: 0.5*25 + 0.5*12.5
	est, err = e.Sample(at(14), 140, 200)
	require.NoError(t, err)
	assert.InDelta(t, 18.75, est.Rate, 1e-9)
}

func TestRateEstimator_Weights(t *testing.T) {
	tests := []struct {
		name   string
		weight float64
		want   float64
	}{
		{"light smoothing", 0.9, 90},
		{"heavy smoothing", 0.1, 10},
		{"out of range falls back to default", 1.5, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewRateEstimator(tt.weight, 0)
			_, _ = e.Sample(at(0), 0, UnknownSize)
			est, err := e.Sample(at(1), 100, UnknownSize)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, est.Rate, 1e-9)
		})
	}
}

func TestRateEstimator_DuplicateTimestampKeepsRate(t *testing.T) {
	e := NewRateEstimator(0.5, 0)
	_, _ = e.Sample(at(0), 0, 1000)
	first, err := e.Sample(at(1), 100, 1000)
	require.NoError(t, err)

	dup, err := e.Sample(at(1), 500, 1000)
	require.NoError(t, err)
	assert.Equal(t, first.Rate, dup.Rate)
}

func TestRateEstimator_ClockAnomaly(t *testing.T) {
	e := NewRateEstimator(0.5, 0)
	_, _ = e.Sample(at(5), 0, 1000)
	before, _ := e.Sample(at(6), 100, 1000)

	est, err := e.Sample(at(4), 200, 1000)
	require.ErrorIs(t, err, ErrClockAnomaly)
	assert.Equal(t, before.Rate, est.Rate)

	// the baseline is untouched, so the next good sample measures from t=6
	est, err = e.Sample(at(7), 200, 1000)
	require.NoError(t, err)
	assert.InDelta(t, 0.5*100+0.5*before.Rate, est.Rate, 1e-9)
}

func TestRateEstimator_SampleIntervalAccumulates(t *testing.T) {
	e := NewRateEstimator(0.5, time.Second)
	_, _ = e.Sample(at(0), 0, UnknownSize)

	est, err := e.Sample(at(0.5), 50, UnknownSize)
	require.NoError(t, err)
	assert.Zero(t, est.Rate)

	est, err = e.Sample(at(1), 100, UnknownSize)
	require.NoError(t, err)
	assert.InDelta(t, 50, est.Rate, 1e-9)
}

func TestRateEstimator_ETAUnknownWithoutSize(t *testing.T) {
	e := NewRateEstimator(0.5, 0)
	_, _ = e.Sample(at(0), 0, UnknownSize)
	est, err := e.Sample(at(1), 100, UnknownSize)
	require.NoError(t, err)
	assert.Positive(t, est.Rate)
	assert.False(t, est.ETAKnown)
}

func TestRateEstimator_ETAClampedWhenOvershooting(t *testing.T) {
	e := NewRateEstimator(0.5, 0)
	_, _ = e.Sample(at(0), 0, 100)
	est, err := e.Sample(at(1), 150, 100)
	require.NoError(t, err)
	require.True(t, est.ETAKnown)
	assert.Zero(t, est.ETA)
}

func TestRateEstimator_Reset(t *testing.T) {
	e := NewRateEstimator(0.5, 0)
	_, _ = e.Sample(at(0), 0, 100)
	_, _ = e.Sample(at(1), 50, 100)
	require.Positive(t, e.Rate())

	e.Reset()
	assert.Zero(t, e.Rate())
	est, err := e.Sample(at(100), 60, 100)
	require.NoError(t, err)
	assert.Zero(t, est.Rate)
}

func TestRateEstimator_RateNeverNegative(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for run := 0; run < 50; run++ {
		e := NewRateEstimator(0.05+rng.Float64()*0.9, 0)
		var bytes int64
		now := t0
		for i := 0; i < 200; i++ {
			bytes += rng.Int64N(1 << 20)
			now = now.Add(time.Duration(1+rng.IntN(2000)) * time.Millisecond)
			est, err := e.Sample(now, bytes, 1<<30)
			require.NoError(t, err)
			require.GreaterOrEqual(t, est.Rate, 0.0)
			if est.ETAKnown {
				require.GreaterOrEqual(t, est.ETA, time.Duration(0))
			}
			if est.Rate == 0 {
				require.False(t, est.ETAKnown)
			}
		}
	}
}

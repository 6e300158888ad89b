// Package fps computes frame-rate statistics from capture timestamps.
package fps

import (
	"math"
	"time"
)

const (
	// stabilityThreshold is the maximum FPS standard deviation as a fraction
	// of mean FPS. Example: 30 FPS mean → stable if stddev < 4.5 FPS
	stabilityThreshold = 0.15

	// jitterThreshold is the maximum mean jitter as a fraction of the expected
	// inter-frame interval. Example: 30 FPS (33ms) → stable if jitter < 6.6ms
	jitterThreshold = 0.20
)

// Stats summarizes a window of capture timestamps.
type Stats struct {
	Frames   int
	Duration time.Duration

	Mean   float64
	StdDev float64
	Min    float64
	Max    float64

	// Jitter is the deviation of each interval from 1/Mean, in seconds
	JitterMean   float64
	JitterStdDev float64
	JitterMax    float64

	Stable bool
}

// Calculate computes Stats for frames captured at times over window.
//
// Mean is frames per window second; Min/Max/StdDev are over instantaneous
// rates (1/interval). Stable requires StdDev < 15% of Mean and mean jitter
// < 20% of the expected interval. Fewer than two frames is never stable.
func Calculate(times []time.Time, window time.Duration) Stats {
	st := Stats{Frames: len(times), Duration: window}
	if len(times) == 0 || window <= 0 {
		return st
	}
	st.Mean = float64(len(times)) / window.Seconds()

	intervals := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		intervals = append(intervals, times[i].Sub(times[i-1]).Seconds())
	}

	rates := make([]float64, 0, len(intervals))
	for _, iv := range intervals {
		if iv > 0 {
			rates = append(rates, 1/iv)
		}
	}
	if len(rates) == 0 {
		return st
	}

	st.Min, st.Max = minMax(rates)
	st.StdDev = stdDevAround(rates, st.Mean)

	expected := 1 / st.Mean
	jitters := make([]float64, len(intervals))
	for i, iv := range intervals {
		jitters[i] = math.Abs(iv - expected)
	}
	st.JitterMean = mean(jitters)
	st.JitterStdDev = stdDevAround(jitters, st.JitterMean)
	_, st.JitterMax = minMax(jitters)

	st.Stable = st.StdDev < st.Mean*stabilityThreshold &&
		st.JitterMean < expected*jitterThreshold
	return st
}

// OptimalRate caps a consumer rate at 90% of the measured capture rate when
// the camera cannot sustain maxRate.
func OptimalRate(st Stats, maxRate float64) float64 {
	if st.Frames == 0 || st.Mean >= maxRate {
		return maxRate
	}
	return st.Mean * 0.9
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdDevAround(xs []float64, m float64) float64 {
	var sq float64
	for _, x := range xs {
		sq += (x - m) * (x - m)
	}
	return math.Sqrt(sq / float64(len(xs)))
}

func minMax(xs []float64) (lo, hi float64) {
	lo, hi = xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}

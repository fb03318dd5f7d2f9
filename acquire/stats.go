// Package acquire turns the raw event stream of a link.Conn into recorded
// acquisition sessions with batched delivery and running statistics.
package acquire

import "math"

// RunningStats accumulates summary statistics over tick deltas in constant
// space, using Welford's recurrence for the variance so long sessions do not
// lose precision. The zero value is ready to use; it is not safe for
// concurrent use.
type RunningStats struct {
	count uint64
	min   uint32
	max   uint32
	mean  float64
	m2    float64
}

// Add folds one delta into the statistics.
func (s *RunningStats) Add(delta uint32) {
	s.count++

	if s.count == 1 {
		s.min = delta
		s.max = delta
	} else {
		if delta < s.min {
			s.min = delta
		}
		if delta > s.max {
			s.max = delta
		}
	}

	d := float64(delta) - s.mean
	s.mean += d / float64(s.count)
	s.m2 += d * (float64(delta) - s.mean)
}

// Count returns the number of samples folded in.
func (s *RunningStats) Count() uint64 { return s.count }

// Min returns the smallest delta, or 0 before any sample.
func (s *RunningStats) Min() uint32 { return s.min }

// Max returns the largest delta, or 0 before any sample.
func (s *RunningStats) Max() uint32 { return s.max }

// Mean returns the mean delta, or 0 before any sample.
func (s *RunningStats) Mean() float64 { return s.mean }

// StdDev returns the sample standard deviation. It is 0 with fewer than two
// samples.
func (s *RunningStats) StdDev() float64 {
	if s.count < 2 {
		return 0
	}

	return math.Sqrt(s.m2 / float64(s.count-1))
}

// Reset discards all accumulated state.
func (s *RunningStats) Reset() { *s = RunningStats{} }

// Snapshot returns the statistics as a value.
func (s *RunningStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Count:  s.count,
		Min:    s.min,
		Max:    s.max,
		Mean:   s.mean,
		StdDev: s.StdDev(),
	}
}

// StatsSnapshot is a point-in-time copy of a RunningStats.
type StatsSnapshot struct {
	Count  uint64
	Min    uint32
	Max    uint32
	Mean   float64
	StdDev float64
}

// ComputeStats folds a whole slice of deltas at once. A running accumulation
// over the same values yields the same snapshot.
func ComputeStats(deltas []uint32) StatsSnapshot {
	var s RunningStats
	for _, d := range deltas {
		s.Add(d)
	}

	return s.Snapshot()
}

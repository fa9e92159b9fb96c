package detector

import (
	"sort"
	"time"
)

// Band is one rung of the down-classification ladder: a unit whose invalid
// ratio clears MinInvalidRatio is down only if its failures are also recent
// and at least MinContiguousRatio of the gaps are back-to-back.
type Band struct {
	MinInvalidRatio    float64
	MinContiguousRatio float64
}

// Policy holds every tunable of the down heuristic. The thresholds are a
// preserved operational policy, not a derived model: false "down" wastes a
// backfill attempt, false "not down" adds some query load.
type Policy struct {
	Cycle  time.Duration // sampling cadence, also the bucket width
	Window time.Duration // look-back window for invalid samples

	Floor         int           // invalid counts at or below this are noise
	Jitter        time.Duration // gap tolerance when judging contiguity
	RecentCycles  int           // "recent" means the newest failure is within this many cycles of now
	FullDownRatio float64       // at or above this ratio the unit is down regardless of shape
	Bands         []Band        // checked in order, any match means down
}

func DefaultPolicy(cycle, window time.Duration) Policy {
	return Policy{
		Cycle:         cycle,
		Window:        window,
		Floor:         3,
		Jitter:        time.Second,
		RecentCycles:  2,
		FullDownRatio: 0.95,
		Bands: []Band{
			{MinInvalidRatio: 0.50, MinContiguousRatio: 0.50},
			{MinInvalidRatio: 0.30, MinContiguousRatio: 0.90},
			{MinInvalidRatio: 0.10, MinContiguousRatio: 0.95},
		},
	}
}

// ExpectedSamples is how many buckets the window holds at the sampling cadence.
func (p Policy) ExpectedSamples() int {
	return int(p.Window / p.Cycle)
}

// IsDown classifies a unit's invalid-sample timestamps as a backend outage
// versus isolated noise. Callers skip backfill for down units since the
// re-queries would keep failing.
func (p Policy) IsDown(invalid []time.Time, now time.Time) bool {
	n := len(invalid)
	if n <= p.Floor {
		return false
	}
	expected := p.ExpectedSamples()
	if n >= expected-p.Floor {
		return true
	}

	ratio := float64(n) / float64(expected)
	if ratio >= p.FullDownRatio {
		return true
	}
	if ratio < p.Bands[len(p.Bands)-1].MinInvalidRatio {
		return false
	}

	sorted := make([]time.Time, n)
	copy(sorted, invalid)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	maxGap := p.Cycle + p.Jitter
	contiguous := 0
	totalGaps := n - 1
	for i := 1; i < n; i++ {
		if sorted[i].Sub(sorted[i-1]) <= maxGap {
			contiguous++
		}
	}
	contiguousRatio := float64(contiguous) / float64(totalGaps)

	recentContiguous := p.isRecentContiguous(sorted, now, maxGap)

	for _, band := range p.Bands {
		if ratio >= band.MinInvalidRatio && recentContiguous && contiguousRatio >= band.MinContiguousRatio {
			return true
		}
	}
	return false
}

// isRecentContiguous holds when the newest failure is close to now and the
// last Floor gaps are all back-to-back, i.e. the outage is still running.
func (p Policy) isRecentContiguous(sorted []time.Time, now time.Time, maxGap time.Duration) bool {
	n := len(sorted)
	if now.Sub(sorted[n-1]) > time.Duration(p.RecentCycles)*p.Cycle {
		return false
	}
	tail := p.Floor
	if tail > n-1 {
		tail = n - 1
	}
	for i := n - tail; i < n; i++ {
		if sorted[i].Sub(sorted[i-1]) > maxGap {
			return false
		}
	}
	return true
}

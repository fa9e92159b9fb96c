package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const testCycle = time.Minute

// testPolicy spans 100 expected samples at a one-minute cadence.
func testPolicy() Policy {
	return DefaultPolicy(testCycle, 100*time.Minute)
}

// contiguousRun builds n invalid timestamps one cycle apart, newest at end.
func contiguousRun(n int, end time.Time) []time.Time {
	times := make([]time.Time, n)
	for i := 0; i < n; i++ {
		times[i] = end.Add(-time.Duration(n-1-i) * testCycle)
	}
	return times
}

// scatteredRun builds n invalid timestamps three cycles apart, newest at end.
func scatteredRun(n int, end time.Time) []time.Time {
	times := make([]time.Time, n)
	for i := 0; i < n; i++ {
		times[i] = end.Add(-time.Duration(n-1-i) * 3 * testCycle)
	}
	return times
}

func TestIsDownBoundaries(t *testing.T) {
	p := testPolicy()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		invalid []time.Time
		want    bool
	}{
		{
			// 95/100 clears the full-down ratio even when stale.
			name:    "95 invalid scattered and old",
			invalid: scatteredRun(95, now.Add(-10*testCycle)),
			want:    true,
		},
		{
			// Within the floor of fully-failed: skip the shape checks.
			name:    "98 invalid",
			invalid: contiguousRun(98, now),
			want:    true,
		},
		{
			// Below 10% never down, contiguity and recency notwithstanding.
			name:    "9 invalid contiguous ending now",
			invalid: contiguousRun(9, now),
			want:    false,
		},
		{
			name:    "80 invalid contiguous ending within one cycle",
			invalid: contiguousRun(80, now.Add(-testCycle)),
			want:    true,
		},
		{
			// Same shape but the outage ended three cycles ago: not recent.
			name:    "80 invalid contiguous ending three cycles ago",
			invalid: contiguousRun(80, now.Add(-3*testCycle)),
			want:    false,
		},
		{
			// At or below the floor is noise.
			name:    "3 invalid contiguous ending now",
			invalid: contiguousRun(3, now),
			want:    false,
		},
		{
			// 40% with fully contiguous recent failures hits the 30/90 band.
			name:    "40 invalid contiguous ending now",
			invalid: contiguousRun(40, now),
			want:    true,
		},
		{
			// 40% but scattered: no band tolerates a 0 contiguous ratio.
			name:    "40 invalid scattered ending now",
			invalid: scatteredRun(40, now),
			want:    false,
		},
		{
			// 12% needs 95% contiguity; a fully contiguous recent run has it.
			name:    "12 invalid contiguous ending now",
			invalid: contiguousRun(12, now),
			want:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsDown(tt.invalid, now))
		})
	}
}

func TestIsDownEmptyAndUnsorted(t *testing.T) {
	p := testPolicy()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, p.IsDown(nil, now))

	// Classification is order-independent.
	shuffled := contiguousRun(80, now.Add(-testCycle))
	shuffled[0], shuffled[40] = shuffled[40], shuffled[0]
	shuffled[10], shuffled[79] = shuffled[79], shuffled[10]
	assert.True(t, p.IsDown(shuffled, now))
}

func TestIsDownJitterTolerance(t *testing.T) {
	p := testPolicy()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Gaps of cycle+1s still count as contiguous.
	times := make([]time.Time, 40)
	cursor := now
	for i := 39; i >= 0; i-- {
		times[i] = cursor
		cursor = cursor.Add(-(testCycle + time.Second))
	}
	assert.True(t, p.IsDown(times, now))

	// Gaps of cycle+2s do not.
	cursor = now
	for i := 39; i >= 0; i-- {
		times[i] = cursor
		cursor = cursor.Add(-(testCycle + 2*time.Second))
	}
	assert.False(t, p.IsDown(times, now))
}

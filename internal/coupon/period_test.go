package coupon

import (
	"testing"
	"time"

	"xrpl-bond-tracker/internal/domain"
)

func ms(year int, month time.Month, day int) int64 {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).UnixMilli()
}

func TestNextBoundary(t *testing.T) {
	start := ms(2026, time.January, 15)

	cases := []struct {
		freq domain.Frequency
		want int64
	}{
		{domain.FrequencyMonthly, ms(2026, time.February, 15)},
		{domain.FrequencyQuarterly, ms(2026, time.April, 15)},
		{domain.FrequencySemiAnnual, ms(2026, time.July, 15)},
		{domain.FrequencyAnnual, ms(2027, time.January, 15)},
		{domain.FrequencyNone, start},
	}

	for _, tc := range cases {
		if got := NextBoundary(start, tc.freq); got != tc.want {
			t.Errorf("NextBoundary(%s) = %d, want %d", tc.freq, got, tc.want)
		}
	}
}

func TestPrevBoundary(t *testing.T) {
	start := ms(2026, time.July, 1)

	if got := PrevBoundary(start, domain.FrequencyQuarterly); got != ms(2026, time.April, 1) {
		t.Errorf("PrevBoundary(quarterly) = %d", got)
	}
	if got := PrevBoundary(start, domain.FrequencyAnnual); got != ms(2025, time.July, 1) {
		t.Errorf("PrevBoundary(annual) = %d", got)
	}
	if got := PrevBoundary(start, domain.FrequencyNone); got != start {
		t.Errorf("PrevBoundary(none) = %d, want unchanged", got)
	}
}

func TestRollForward(t *testing.T) {
	// Due date two quarters behind; rolls past now without skipping.
	due := ms(2026, time.January, 1)
	now := ms(2026, time.June, 15)

	got := RollForward(due, domain.FrequencyQuarterly, now)
	if got != ms(2026, time.July, 1) {
		t.Errorf("RollForward = %d, want %d", got, ms(2026, time.July, 1))
	}
}

func TestRollForward_AlreadyAhead(t *testing.T) {
	due := ms(2026, time.December, 1)
	now := ms(2026, time.June, 15)

	if got := RollForward(due, domain.FrequencyMonthly, now); got != due {
		t.Errorf("future due date should not move, got %d", got)
	}
}

func TestRollForward_NoneNeverLoops(t *testing.T) {
	due := ms(2020, time.January, 1)
	now := ms(2026, time.June, 15)

	// Must return promptly even though due <= now forever.
	if got := RollForward(due, domain.FrequencyNone, now); got != due {
		t.Errorf("frequency none should leave the date unchanged, got %d", got)
	}
}

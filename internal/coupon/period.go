// Package coupon computes and executes proportional coupon payments.
package coupon

import (
	"time"

	"xrpl-bond-tracker/internal/domain"
)

// NextBoundary returns the period boundary following ts, by calendar
// increment: monthly +1 month, quarterly +3, semi-annual +6, annual
// +1 year. A frequency of none never advances. Timestamps are unix ms.
func NextBoundary(ts int64, f domain.Frequency) int64 {
	return shift(ts, f, 1)
}

// PrevBoundary returns the period boundary preceding ts.
func PrevBoundary(ts int64, f domain.Frequency) int64 {
	return shift(ts, f, -1)
}

func shift(ts int64, f domain.Frequency, direction int) int64 {
	t := time.UnixMilli(ts).UTC()
	switch f {
	case domain.FrequencyAnnual:
		t = t.AddDate(direction, 0, 0)
	default:
		m := f.Months()
		if m == 0 {
			return ts
		}
		t = t.AddDate(0, direction*m, 0)
	}
	return t.UnixMilli()
}

// RollForward advances a due date past now, one period at a time.
// Catches the schedule up after downtime without skipping boundaries.
// A frequency that never advances is returned unchanged.
func RollForward(due int64, f domain.Frequency, now int64) int64 {
	if NextBoundary(due, f) == due {
		return due
	}
	for due <= now {
		due = NextBoundary(due, f)
	}
	return due
}

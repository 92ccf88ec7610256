package services

import (
	"math"
	"time"
)

// StandstillEnded reports whether the statutory waiting period is over.
// The boundary is inclusive: at exactly standstillEndDate the period has
// ended. No contract may be finalized while this returns false.
func StandstillEnded(now, standstillEndDate time.Time) bool {
	return !now.Before(standstillEndDate)
}

// RemainingStandstillDays returns the number of whole days left of the
// standstill period, rounded up and clamped to zero.
func RemainingStandstillDays(now, standstillEndDate time.Time) int {
	remaining := standstillEndDate.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours() / 24))
}

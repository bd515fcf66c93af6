package gcra

import "time"

// MaxInterval is the sentinel emission interval for a rate that never
// refills (non-positive count or period).
const MaxInterval = time.Duration(1<<63 - 1)

// EmissionInterval derives the time between two consecutive tokens from a
// (count, period) pair. Non-positive inputs yield MaxInterval rather than
// dividing by zero or going negative.
func EmissionInterval(countPerPeriod int64, period time.Duration) time.Duration {
	if countPerPeriod <= 0 || period <= 0 {
		return MaxInterval
	}
	return time.Duration(int64(period) / countPerPeriod)
}

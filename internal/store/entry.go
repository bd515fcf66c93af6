package store

import "time"

type entry struct {
	tatNanos int64
	expiry   time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiry.After(now)
}

func sweep(entries map[string]entry, now time.Time) (removed int) {
	for k, e := range entries {
		if e.expired(now) {
			delete(entries, k)
			removed++
		}
	}
	return removed
}

package session

import "time"

// Reconcile computes authoritative elapsed seconds for an attempt that may
// have been reloaded. The wall-clock delta is usually right but under-counts
// when the local clock jumped backward or the process was frozen; the
// persisted snapshot is a lower bound recorded by a prior heartbeat and is
// never exceeded downward. Pure function, no I/O.
func Reconcile(startedAt, now time.Time, lastPersistedSec int) int {
	elapsed := int(now.Sub(startedAt) / time.Second)
	if elapsed < lastPersistedSec {
		return lastPersistedSec
	}
	return elapsed
}

// Remaining is the countdown display value: never negative.
func Remaining(budgetSec, elapsedSec int) int {
	if r := budgetSec - elapsedSec; r > 0 {
		return r
	}
	return 0
}

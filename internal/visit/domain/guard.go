package domain

import "time"

// DefaultStaleAfter is the age past which an unserved active visit is
// treated as abandoned and re-check-in is permitted.
const DefaultStaleAfter = time.Hour

// AdmitOutcome is the duplicate check-in guard's verdict.
type AdmitOutcome string

const (
	// AdmitOK: the identity has no active visit.
	AdmitOK AdmitOutcome = "admit"
	// AdmitStaleOverride: an active visit exists but is past the
	// staleness window; re-check-in is permitted and the stale visit
	// should be closed out.
	AdmitStaleOverride AdmitOutcome = "stale_override"
	// AdmitRejected: an active visit exists within the window.
	AdmitRejected AdmitOutcome = "already_active"
)

// AdmitDecision is the guard's verdict plus the existing visit, when any.
type AdmitDecision struct {
	Outcome  AdmitOutcome
	Existing *Visit
}

// AdmitCheckIn decides whether an identity with the given existing
// active visit (nil when none) may check in now. The guard alone does
// not close the race between two concurrent check-ins; the store's
// one-active-visit-per-student uniqueness constraint does.
func AdmitCheckIn(existing *Visit, now time.Time, staleAfter time.Duration) AdmitDecision {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if existing == nil {
		return AdmitDecision{Outcome: AdmitOK}
	}
	if existing.IsStale(now, staleAfter) {
		return AdmitDecision{Outcome: AdmitStaleOverride, Existing: existing}
	}
	return AdmitDecision{Outcome: AdmitRejected, Existing: existing}
}

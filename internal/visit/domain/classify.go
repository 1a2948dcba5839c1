package domain

// Severity is the patient-declared severity at check-in. Consumed only
// at creation to derive the priority tier.
type Severity string

const (
	SeverityLow       Severity = "Low"
	SeverityMedium    Severity = "Medium"
	SeverityHigh      Severity = "High"
	SeverityEmergency Severity = "Emergency"
)

// Base wait minutes per tier. Medium and low scale with queue depth.
const (
	emergencyWaitMinutes = 5
	highWaitMinutes      = 10
	mediumWaitMinutes    = 15
	lowWaitMinutes       = 20
)

// Classify maps a declared severity to a priority tier and an advisory
// estimated wait in minutes. The wait is computed once at check-in and
// never recalculated; waitingCount may be slightly stale by the time it
// is shown, which is acceptable for an advisory figure.
//
// An unrecognized severity is treated as low rather than rejected;
// permissiveness here is intentional. The check-in emergency flag does
// not influence the tier: it is a separate ranking signal.
func Classify(severity Severity, emergencyFlag bool, waitingCount int) (Priority, int) {
	_ = emergencyFlag

	switch severity {
	case SeverityEmergency:
		return PriorityEmergency, emergencyWaitMinutes
	case SeverityHigh:
		return PriorityHigh, highWaitMinutes
	case SeverityMedium:
		return PriorityMedium, mediumWaitMinutes + 2*waitingCount
	default:
		return PriorityLow, lowWaitMinutes + 3*waitingCount
	}
}

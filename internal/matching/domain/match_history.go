package domain

import "time"

// MatchOutcome is the result recorded by one MatchHistory row (spec §3).
type MatchOutcome string

const (
	OutcomeProposed     MatchOutcome = "PROPOSED"
	OutcomeAccepted     MatchOutcome = "ACCEPTED"
	OutcomeRejected     MatchOutcome = "REJECTED"
	OutcomeExpired      MatchOutcome = "EXPIRED"
	OutcomeNoCandidates MatchOutcome = "NO_CANDIDATES"
)

// MatchHistory is an append-only audit record, one row per matching attempt
// or per proposal outcome (spec §3). History rows are never mutated once
// written (spec §8 invariant 8, §7 "MatchHistory writes are best-effort and
// never fail the primary operation").
type MatchHistory struct {
	ID             HistoryID
	OpenShiftID    OpenShiftID
	ProposalID     *ProposalID
	CaregiverID    *CaregiverID
	OrganizationID OrganizationID

	Outcome               MatchOutcome
	MatchScore            int
	MatchQuality          MatchQuality
	AttemptNumber         int
	ConfigurationSnapshot *MatchingConfiguration
	ResponseTimeMinutes   float64
	Note                  string

	RecordedAt time.Time
}

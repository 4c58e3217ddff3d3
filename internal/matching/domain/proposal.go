package domain

import "time"

// ProposalStatus is the proposal state machine of spec §4.9:
//
//	PENDING -> SENT -> VIEWED -> {ACCEPTED, REJECTED, EXPIRED, SUPERSEDED}
//	SENT -> {ACCEPTED, REJECTED, EXPIRED, SUPERSEDED}
//	PENDING -> {ACCEPTED, REJECTED, EXPIRED, SUPERSEDED}
//
// ACCEPTED, REJECTED, EXPIRED and SUPERSEDED are terminal.
type ProposalStatus string

const (
	ProposalPending    ProposalStatus = "PENDING"
	ProposalSent       ProposalStatus = "SENT"
	ProposalViewed     ProposalStatus = "VIEWED"
	ProposalAccepted   ProposalStatus = "ACCEPTED"
	ProposalRejected   ProposalStatus = "REJECTED"
	ProposalExpired    ProposalStatus = "EXPIRED"
	ProposalSuperseded ProposalStatus = "SUPERSEDED"
)

var proposalTransitions = map[ProposalStatus]map[ProposalStatus]bool{
	ProposalPending: {
		ProposalSent: true, ProposalExpired: true, ProposalSuperseded: true,
		ProposalAccepted: true, ProposalRejected: true,
	},
	ProposalSent: {
		ProposalViewed: true, ProposalAccepted: true, ProposalRejected: true,
		ProposalExpired: true, ProposalSuperseded: true,
	},
	ProposalViewed: {
		ProposalAccepted: true, ProposalRejected: true,
		ProposalExpired: true, ProposalSuperseded: true,
	},
	ProposalAccepted:   {},
	ProposalRejected:   {},
	ProposalExpired:    {},
	ProposalSuperseded: {},
}

// RespondableStatuses is the set of statuses a caregiver may still act on
// (spec §4.5 step 1).
var RespondableStatuses = map[ProposalStatus]bool{
	ProposalPending: true, ProposalSent: true, ProposalViewed: true,
}

// ExpirableStatuses is the set the Expirer scans (spec §4.7).
var ExpirableStatuses = map[ProposalStatus]bool{
	ProposalPending: true, ProposalSent: true, ProposalViewed: true,
}

// CanTransitionProposal reports whether from -> to is a legal proposal
// transition.
func CanTransitionProposal(from, to ProposalStatus) bool {
	return proposalTransitions[from][to]
}

// IsTerminalProposal reports whether status has no outgoing transitions.
func IsTerminalProposal(status ProposalStatus) bool {
	return len(proposalTransitions[status]) == 0
}

// AllProposalStatuses lists every ProposalStatus in a stable, meaningful
// order for diagram rendering and enumeration.
var AllProposalStatuses = []ProposalStatus{
	ProposalPending, ProposalSent, ProposalViewed,
	ProposalAccepted, ProposalRejected, ProposalExpired, ProposalSuperseded,
}

// ProposalTransitionEdges exposes the proposal transition table's edges, for
// rendering (internal/visuals) without letting callers mutate the table.
func ProposalTransitionEdges() map[ProposalStatus][]ProposalStatus {
	out := make(map[ProposalStatus][]ProposalStatus, len(proposalTransitions))
	for _, from := range AllProposalStatuses {
		for _, to := range AllProposalStatuses {
			if proposalTransitions[from][to] {
				out[from] = append(out[from], to)
			}
		}
	}
	return out
}

// ProposalMethod is how a proposal came to exist (spec §3).
type ProposalMethod string

const (
	MethodAutomatic           ProposalMethod = "AUTOMATIC"
	MethodManual              ProposalMethod = "MANUAL"
	MethodCaregiverSelfSelect ProposalMethod = "CAREGIVER_SELF_SELECT"
)

// RejectionCategory classifies why a caregiver declined a proposal.
type RejectionCategory string

const (
	RejectionTooFar         RejectionCategory = "TOO_FAR"
	RejectionTimeConflict   RejectionCategory = "TIME_CONFLICT"
	RejectionPersonalReason RejectionCategory = "PERSONAL_REASON"
	RejectionPayRate        RejectionCategory = "PAY_RATE"
	RejectionClientMismatch RejectionCategory = "CLIENT_MISMATCH"
	RejectionOther          RejectionCategory = "OTHER"
)

// AssignmentProposal is an offer to a single caregiver for a single open
// shift (spec §3). At most one proposal per OpenShiftID may be ACCEPTED at
// any time (spec §8 invariant 1).
type AssignmentProposal struct {
	ID             ProposalID
	OpenShiftID    OpenShiftID
	VisitID        VisitID
	CaregiverID    CaregiverID
	OrganizationID OrganizationID
	BranchID       BranchID

	MatchScore   int
	MatchQuality MatchQuality
	MatchReasons []MatchReason

	ProposalStatus ProposalStatus

	ProposedAt  time.Time
	SentAt      *time.Time
	ViewedAt    *time.Time
	RespondedAt *time.Time
	AcceptedAt  *time.Time
	AcceptedBy  *CaregiverID
	RejectedAt  *time.Time
	ExpiredAt   *time.Time

	ProposalMethod     ProposalMethod
	SentToCaregiver    bool
	NotificationMethod string
	UrgencyFlag        bool

	ResponseMethod    string
	RejectionReason   string
	RejectionCategory RejectionCategory
	Notes             string

	Audit AuditMeta
}

// ResponseTimeMinutes returns the elapsed minutes between proposal and
// response, or 0 if either timestamp is missing.
func (p *AssignmentProposal) ResponseTimeMinutes() float64 {
	if p.RespondedAt == nil || p.ProposedAt.IsZero() {
		return 0
	}
	return p.RespondedAt.Sub(p.ProposedAt).Minutes()
}

// CaregiverPreferenceProfile is the unique-by-caregiver preference record
// (spec §3).
type CaregiverPreferenceProfile struct {
	CaregiverID CaregiverID

	PreferredDays       map[time.Weekday]bool
	PreferredTimeRanges []TimeInterval
	MaxHoursPerWeek     float64

	WillingWeekends      bool
	WillingHolidays      bool
	WillingUrgentShifts  bool
	AcceptAutoAssignment bool

	NotificationMethods []string
	QuietHoursStart     *time.Time
	QuietHoursEnd       *time.Time

	Audit AuditMeta
}

// Package dataport defines the read-only accessors and the single
// write-back the shift-matching core needs from external systems (spec §2's
// DataPort), plus an in-memory fake used by tests, cmd/seedgen, and local
// development.
package dataport

import (
	"context"
	"time"

	"mcs-mcp/internal/matching/domain"
)

// Visit is the minimal external-visit projection the DataPort exposes; the
// full visit record lives in the client-portal service, out of scope here.
type Visit struct {
	ID                  domain.VisitID
	OrganizationID      domain.OrganizationID
	BranchID            domain.BranchID
	ClientID            domain.ClientID
	Status              string
	AssignedCaregiverID *domain.CaregiverID
}

// VisitScheduled is the status a visit moves to once a proposal is accepted
// (spec §4.5 step 2).
const VisitScheduled = "SCHEDULED"

// Caregiver is the caregiver identity/profile projection batch-loaded by the
// CandidateLoader before building per-shift CaregiverContext values.
type Caregiver struct {
	ID              domain.CaregiverID
	DisplayName     string
	EmploymentType  domain.EmploymentType
	BranchID        domain.BranchID
	Active          bool
	Skills          map[string]bool
	Certifications  []domain.Certification
	MaxHoursPerWeek float64
	Latitude        *float64
	Longitude       *float64
	Gender          domain.GenderPreference
	Languages       map[string]bool
	Compliance      domain.ComplianceStatus
}

// DataPort is the read-only accessor set over visits, caregivers, schedules,
// history and geolocation, plus the single write-back for visit assignment
// (spec §2). Every batch method takes the full caregiver-id set so a
// CandidateLoader pass never issues a per-caregiver round trip.
type DataPort interface {
	GetVisit(ctx context.Context, id domain.VisitID) (*Visit, error)
	AssignVisit(ctx context.Context, id domain.VisitID, caregiverID domain.CaregiverID) error

	// ActiveCaregiversInBranch returns every active caregiver assigned to
	// branchID, excluding none — callers filter blocked caregivers
	// themselves (spec §4.2: "filters out caregivers listed in
	// blockedCaregivers before fetching contexts").
	ActiveCaregiversInBranch(ctx context.Context, branchID domain.BranchID) ([]Caregiver, error)

	// BatchWeeklyHours returns each caregiver's already-scheduled hours for
	// the week containing on.
	BatchWeeklyHours(ctx context.Context, caregiverIDs []domain.CaregiverID, on time.Time) (map[domain.CaregiverID]float64, error)

	// BatchConflicts returns, per caregiver, the visit intervals already on
	// their schedule for the shift's calendar day.
	BatchConflicts(ctx context.Context, caregiverIDs []domain.CaregiverID, day time.Time) (map[domain.CaregiverID][]domain.TimeInterval, error)

	// BatchClientHistory returns, per caregiver, the count of prior visits
	// with clientID and the average historical rating (nil if none).
	BatchClientHistory(ctx context.Context, caregiverIDs []domain.CaregiverID, clientID domain.ClientID) (map[domain.CaregiverID]ClientHistory, error)

	// BatchReliability returns each caregiver's trailing-90-day reliability
	// score in [0,100].
	BatchReliability(ctx context.Context, caregiverIDs []domain.CaregiverID, asOf time.Time) (map[domain.CaregiverID]float64, error)

	// BatchRecentRejections returns each caregiver's trailing-30-day
	// rejection count.
	BatchRecentRejections(ctx context.Context, caregiverIDs []domain.CaregiverID, asOf time.Time) (map[domain.CaregiverID]int, error)

	// BatchDistances returns the distance in miles from each caregiver's
	// home coordinates to (lat, lon); implementations return 0 for any
	// caregiver lacking coordinates. ok is false when shift coordinates are
	// absent, in which case the caller should treat distance as unknown.
	BatchDistances(ctx context.Context, caregiverIDs []domain.CaregiverID, lat, lon *float64) (map[domain.CaregiverID]float64, bool, error)
}

// ClientHistory is the per-(caregiver, client) relationship summary used to
// score the experience dimension.
type ClientHistory struct {
	PreviousVisits int
	AverageRating  *float64
}

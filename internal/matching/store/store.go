// Package store implements the ProposalStore (spec §2): CRUD and state
// transitions for open shifts, proposals, and caregiver preferences, with
// soft-delete and optimistic versioning (UpdateOpenShift and UpdateProposal
// reject a stale AuditMeta.Version).
package store

import (
	"context"

	"mcs-mcp/internal/matching/domain"
)

// ProposalStore is the capability set the Matcher drives for open shifts,
// proposals, and caregiver preferences (spec §2, §9's "polymorphic store"
// mapped to a stable capability set).
type ProposalStore interface {
	// Open shifts.
	GetOpenShift(ctx context.Context, id domain.OpenShiftID) (*domain.OpenShift, error)
	GetOpenShiftByVisit(ctx context.Context, visitID domain.VisitID) (*domain.OpenShift, error)
	CreateOpenShift(ctx context.Context, shift *domain.OpenShift) error
	// CASShiftStatus performs the compare-and-swap of spec §4.3 step 2: it
	// succeeds only if the shift's current status is in from, atomically
	// sets it to to, bumps version, and bumps matchAttempts when
	// incrementAttempts is true. It returns the post-CAS shift and whether
	// the swap succeeded.
	CASShiftStatus(ctx context.Context, id domain.OpenShiftID, from []domain.MatchingStatus, to domain.MatchingStatus, incrementAttempts bool) (*domain.OpenShift, bool, error)
	UpdateOpenShift(ctx context.Context, shift *domain.OpenShift) error
	SearchOpenShifts(ctx context.Context, filter domain.OpenShiftFilter, page domain.Pagination) (domain.PagedResult[domain.OpenShift], error)

	// Proposals.
	GetProposal(ctx context.Context, id domain.ProposalID) (*domain.AssignmentProposal, error)
	CreateProposal(ctx context.Context, p *domain.AssignmentProposal) error
	UpdateProposal(ctx context.Context, p *domain.AssignmentProposal) error
	ProposalsForShift(ctx context.Context, shiftID domain.OpenShiftID) ([]domain.AssignmentProposal, error)
	SearchProposals(ctx context.Context, filter domain.ProposalFilter, page domain.Pagination) (domain.PagedResult[domain.AssignmentProposal], error)
	// ExpirableProposals returns every non-deleted proposal whose status is
	// in domain.ExpirableStatuses, for the Expirer's sweep (spec §4.7). The
	// Expirer itself resolves each proposal's per-organization TTL via
	// ConfigStore and filters by elapsed time; the store only narrows by
	// status so the scan stays cheap.
	ExpirableProposals(ctx context.Context) ([]domain.AssignmentProposal, error)

	// Caregiver preferences.
	GetPreferenceProfile(ctx context.Context, caregiverID domain.CaregiverID) (*domain.CaregiverPreferenceProfile, error)
	PutPreferenceProfile(ctx context.Context, p *domain.CaregiverPreferenceProfile) error
}

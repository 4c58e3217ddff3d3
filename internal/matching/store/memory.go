package store

import (
	"context"
	"sort"
	"sync"

	"mcs-mcp/internal/matching/domain"
	"mcs-mcp/internal/matching/merrors"
)

// MemoryStore is an in-memory ProposalStore fake, grounded on the teacher's
// mutex-guarded map stores (internal/eventlog.EventStore). Every update
// (UpdateOpenShift, UpdateProposal, CASShiftStatus, PutPreferenceProfile)
// bumps AuditMeta.Version (spec §9's optimistic concurrency); creates store
// the row's Version as given. Soft-deletes are
// represented by AuditMeta.DeletedAt rather than row removal.
type MemoryStore struct {
	mu sync.Mutex

	shifts        map[domain.OpenShiftID]*domain.OpenShift
	shiftsByVisit map[domain.VisitID]domain.OpenShiftID
	proposals     map[domain.ProposalID]*domain.AssignmentProposal
	preferences   map[domain.CaregiverID]*domain.CaregiverPreferenceProfile
}

// NewMemoryStore returns an empty in-memory ProposalStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shifts:        make(map[domain.OpenShiftID]*domain.OpenShift),
		shiftsByVisit: make(map[domain.VisitID]domain.OpenShiftID),
		proposals:     make(map[domain.ProposalID]*domain.AssignmentProposal),
		preferences:   make(map[domain.CaregiverID]*domain.CaregiverPreferenceProfile),
	}
}

func (s *MemoryStore) GetOpenShift(_ context.Context, id domain.OpenShiftID) (*domain.OpenShift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shift, ok := s.shifts[id]
	if !ok || shift.Audit.IsDeleted() {
		return nil, nil
	}
	cp := *shift
	return &cp, nil
}

func (s *MemoryStore) GetOpenShiftByVisit(_ context.Context, visitID domain.VisitID) (*domain.OpenShift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.shiftsByVisit[visitID]
	if !ok {
		return nil, nil
	}
	shift, ok := s.shifts[id]
	if !ok || shift.Audit.IsDeleted() {
		return nil, nil
	}
	cp := *shift
	return &cp, nil
}

// CreateOpenShift enforces spec §3's "at most one open shift exists per
// visitId" invariant against non-deleted rows.
func (s *MemoryStore) CreateOpenShift(_ context.Context, shift *domain.OpenShift) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.shiftsByVisit[shift.VisitID]; ok {
		if existing, ok := s.shifts[existingID]; ok && !existing.Audit.IsDeleted() {
			return &merrors.ConflictError{Reason: "an open shift already exists for this visit"}
		}
	}

	cp := *shift
	s.shifts[shift.ID] = &cp
	s.shiftsByVisit[shift.VisitID] = shift.ID
	return nil
}

// CASShiftStatus is the concurrency primitive of spec §4.3 step 2 / §5: it
// succeeds only if the stored status is currently one of from.
func (s *MemoryStore) CASShiftStatus(_ context.Context, id domain.OpenShiftID, from []domain.MatchingStatus, to domain.MatchingStatus, incrementAttempts bool) (*domain.OpenShift, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shift, ok := s.shifts[id]
	if !ok || shift.Audit.IsDeleted() {
		return nil, false, nil
	}

	matches := false
	for _, f := range from {
		if shift.MatchingStatus == f {
			matches = true
			break
		}
	}
	if !matches {
		cp := *shift
		return &cp, false, nil
	}

	shift.MatchingStatus = to
	if incrementAttempts {
		shift.MatchAttempts++
	}
	shift.Audit.Version++
	cp := *shift
	return &cp, true, nil
}

func (s *MemoryStore) UpdateOpenShift(_ context.Context, shift *domain.OpenShift) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.shifts[shift.ID]
	if !ok {
		return &merrors.NotFoundError{Entity: "open shift", ID: shift.ID.String()}
	}
	if existing.Audit.Version != shift.Audit.Version {
		return &merrors.ConcurrencyError{OpenShiftID: shift.ID, Observed: existing.MatchingStatus}
	}

	cp := *shift
	cp.Audit.Version++
	s.shifts[shift.ID] = &cp
	return nil
}

func (s *MemoryStore) SearchOpenShifts(_ context.Context, filter domain.OpenShiftFilter, page domain.Pagination) (domain.PagedResult[domain.OpenShift], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page = page.Normalize()

	var matched []domain.OpenShift
	for _, shift := range s.shifts {
		if shift.Audit.IsDeleted() || !matchesShiftFilter(shift, filter) {
			continue
		}
		matched = append(matched, *shift)
	}

	sort.Slice(matched, func(i, j int) bool {
		if page.SortOrder == domain.SortAscending {
			return matched[i].Audit.CreatedAt.Before(matched[j].Audit.CreatedAt)
		}
		return matched[i].Audit.CreatedAt.After(matched[j].Audit.CreatedAt)
	})

	return paginate(matched, page), nil
}

func matchesShiftFilter(shift *domain.OpenShift, f domain.OpenShiftFilter) bool {
	if shift.OrganizationID != f.OrganizationID {
		return false
	}
	if f.BranchID != nil && shift.BranchID != *f.BranchID {
		return false
	}
	if len(f.BranchIDs) > 0 && !containsBranch(f.BranchIDs, shift.BranchID) {
		return false
	}
	if f.ClientID != nil && shift.ClientID != *f.ClientID {
		return false
	}
	if f.DateFrom != nil && shift.ScheduledDate.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && shift.ScheduledDate.After(*f.DateTo) {
		return false
	}
	if len(f.Priority) > 0 && !containsPriority(f.Priority, shift.Priority) {
		return false
	}
	if len(f.MatchingStatus) > 0 && !containsStatus(f.MatchingStatus, shift.MatchingStatus) {
		return false
	}
	if f.IsUrgent != nil && shift.IsUrgent != *f.IsUrgent {
		return false
	}
	if f.ServiceTypeID != nil && shift.ServiceTypeID != *f.ServiceTypeID {
		return false
	}
	return true
}

func containsBranch(ids []domain.BranchID, id domain.BranchID) bool {
	for _, b := range ids {
		if b == id {
			return true
		}
	}
	return false
}

func containsPriority(ps []domain.Priority, p domain.Priority) bool {
	for _, x := range ps {
		if x == p {
			return true
		}
	}
	return false
}

func containsStatus(ss []domain.MatchingStatus, s domain.MatchingStatus) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func (s *MemoryStore) GetProposal(_ context.Context, id domain.ProposalID) (*domain.AssignmentProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok || p.Audit.IsDeleted() {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) CreateProposal(_ context.Context, p *domain.AssignmentProposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.proposals[p.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateProposal(_ context.Context, p *domain.AssignmentProposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.proposals[p.ID]
	if !ok {
		return &merrors.NotFoundError{Entity: "proposal", ID: p.ID.String()}
	}
	if existing.Audit.Version != p.Audit.Version {
		return &merrors.ConflictError{Reason: "proposal was modified concurrently; reload and retry"}
	}

	cp := *p
	cp.Audit.Version++
	s.proposals[p.ID] = &cp
	return nil
}

func (s *MemoryStore) ProposalsForShift(_ context.Context, shiftID domain.OpenShiftID) ([]domain.AssignmentProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AssignmentProposal
	for _, p := range s.proposals {
		if p.OpenShiftID == shiftID && !p.Audit.IsDeleted() {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProposedAt.Before(out[j].ProposedAt) })
	return out, nil
}

func (s *MemoryStore) SearchProposals(_ context.Context, filter domain.ProposalFilter, page domain.Pagination) (domain.PagedResult[domain.AssignmentProposal], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page = page.Normalize()

	var matched []domain.AssignmentProposal
	for _, p := range s.proposals {
		if p.Audit.IsDeleted() || !matchesProposalFilter(p, filter) {
			continue
		}
		matched = append(matched, *p)
	}

	sort.Slice(matched, func(i, j int) bool {
		if page.SortOrder == domain.SortAscending {
			return matched[i].ProposedAt.Before(matched[j].ProposedAt)
		}
		return matched[i].ProposedAt.After(matched[j].ProposedAt)
	})

	return paginate(matched, page), nil
}

func matchesProposalFilter(p *domain.AssignmentProposal, f domain.ProposalFilter) bool {
	if p.OrganizationID != f.OrganizationID {
		return false
	}
	if f.BranchID != nil && p.BranchID != *f.BranchID {
		return false
	}
	if len(f.BranchIDs) > 0 && !containsBranch(f.BranchIDs, p.BranchID) {
		return false
	}
	if f.OpenShiftID != nil && p.OpenShiftID != *f.OpenShiftID {
		return false
	}
	if f.CaregiverID != nil && p.CaregiverID != *f.CaregiverID {
		return false
	}
	if len(f.ProposalStatus) > 0 {
		found := false
		for _, s := range f.ProposalStatus {
			if p.ProposalStatus == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.DateFrom != nil && p.ProposedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && p.ProposedAt.After(*f.DateTo) {
		return false
	}
	return true
}

func (s *MemoryStore) ExpirableProposals(_ context.Context) ([]domain.AssignmentProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AssignmentProposal
	for _, p := range s.proposals {
		if p.Audit.IsDeleted() {
			continue
		}
		if domain.ExpirableStatuses[p.ProposalStatus] {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetPreferenceProfile(_ context.Context, caregiverID domain.CaregiverID) (*domain.CaregiverPreferenceProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.preferences[caregiverID]
	if !ok || p.Audit.IsDeleted() {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) PutPreferenceProfile(_ context.Context, p *domain.CaregiverPreferenceProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	cp.Audit.Version++
	s.preferences[p.CaregiverID] = &cp
	return nil
}

func paginate[T any](items []T, page domain.Pagination) domain.PagedResult[T] {
	total := len(items)
	offset := page.Offset()
	if offset > total {
		offset = total
	}
	end := offset + page.Limit
	if end > total {
		end = total
	}
	return domain.PagedResult[T]{
		Items:      items[offset:end],
		Page:       page.Page,
		Limit:      page.Limit,
		TotalCount: total,
	}
}

package matcher

import (
	"context"

	"github.com/rs/zerolog/log"

	"mcs-mcp/internal/matching/dataport"
	"mcs-mcp/internal/matching/domain"
	"mcs-mcp/internal/matching/merrors"
	"mcs-mcp/internal/matching/scorer"
)

// emitProposal snapshots a candidate's score into a new AssignmentProposal
// and optionally drives the PENDING -> SENT notification step (spec §4.4).
func (m *Matcher) emitProposal(ctx context.Context, auth AuthContext, shift *domain.OpenShift, candidate domain.MatchCandidate, method domain.ProposalMethod, sendNotification bool, notificationMethod string) (*domain.AssignmentProposal, error) {
	now := m.now()
	p := &domain.AssignmentProposal{
		ID:                 newID(),
		OpenShiftID:        shift.ID,
		VisitID:            shift.VisitID,
		CaregiverID:        candidate.CaregiverID,
		OrganizationID:     shift.OrganizationID,
		BranchID:           shift.BranchID,
		MatchScore:         candidate.OverallScore,
		MatchQuality:       candidate.MatchQuality,
		MatchReasons:       candidate.MatchReasons,
		ProposalStatus:     domain.ProposalPending,
		ProposedAt:         now,
		ProposalMethod:     method,
		NotificationMethod: notificationMethod,
		UrgencyFlag:        shift.IsUrgent,
		Audit: domain.AuditMeta{
			CreatedAt: now,
			CreatedBy: auth.UserID,
			UpdatedAt: now,
			UpdatedBy: auth.UserID,
		},
	}

	if err := m.Store.CreateProposal(ctx, p); err != nil {
		return nil, merrors.NewDataPortError("CreateProposal", err)
	}

	if sendNotification {
		m.sendAndAdvance(ctx, p)
	}
	return p, nil
}

// sendAndAdvance invokes the notification sink and, on success, transitions
// PENDING -> SENT. A sink failure is logged and never rolls back the
// proposal or blocks further state progression (spec §4.4, §7).
func (m *Matcher) sendAndAdvance(ctx context.Context, p *domain.AssignmentProposal) {
	if err := m.Sink.Notify(ctx, p); err != nil {
		log.Warn().Err(err).Str("proposal_id", p.ID.String()).Msg("notification sink failed; proposal stays pending")
		return
	}
	now := m.now()
	p.ProposalStatus = domain.ProposalSent
	p.SentAt = &now
	p.SentToCaregiver = true
	if err := m.Store.UpdateProposal(ctx, p); err != nil {
		log.Error().Err(err).Str("proposal_id", p.ID.String()).Msg("failed to persist SENT transition")
	}
}

// CreateManualProposal is the coordinator escape hatch of spec §4.4: it
// bypasses scoring (unless the deployment opts into ScoreManualProposals,
// spec §9's open question) and records overallScore=100 / EXCELLENT / one
// SYSTEM_OPTIMIZED reason by default, without re-checking eligibility gates.
func (m *Matcher) CreateManualProposal(ctx context.Context, auth AuthContext, shiftID domain.OpenShiftID, caregiverID domain.CaregiverID, sendNotification bool, notificationMethod string) (*domain.AssignmentProposal, error) {
	shift, err := m.Store.GetOpenShift(ctx, shiftID)
	if err != nil {
		return nil, merrors.NewDataPortError("GetOpenShift", err)
	}
	if shift == nil {
		return nil, &merrors.NotFoundError{Entity: "open shift", ID: shiftID.String()}
	}
	if shift.MatchingStatus == domain.StatusAssigned {
		return nil, &merrors.ValidationError{Field: "openShiftId", Reason: "shift is already assigned"}
	}

	candidate := domain.MatchCandidate{
		CaregiverID:  caregiverID,
		OpenShiftID:  shiftID,
		OverallScore: 100,
		MatchQuality: domain.QualityExcellent,
		IsEligible:   true,
		MatchReasons: []domain.MatchReason{{
			Category:    "SYSTEM_OPTIMIZED",
			Description: "manually assigned by coordinator",
			Impact:      domain.ImpactPositive,
			Weight:      1,
		}},
		ComputedAt: m.now(),
	}
	if cfg, err := m.resolveConfig(ctx, shift.OrganizationID, shift.BranchID, nil); err == nil && cfg.ScoreManualProposals {
		scored, _, err := m.scoreOneCaregiver(ctx, shift, caregiverID)
		if err != nil {
			return nil, err
		}
		if scored != nil {
			candidate = *scored
		}
	}

	p, err := m.emitProposal(ctx, auth, shift, candidate, domain.MethodManual, sendNotification, notificationMethod)
	if err != nil {
		return nil, err
	}
	m.advanceShiftToProposed(ctx, shift.ID)
	return p, nil
}

// shiftCASSourcesForProposal is the set of open-shift statuses the manual
// and caregiver-self-select paths may emit a proposal out of; unlike the
// auto-propose path (spec §4.3), these bypass the normal NEW -> MATCHING ->
// MATCHED pipeline entirely, so the CAS into PROPOSED has to accept
// whatever non-terminal status the shift was already in.
var shiftCASSourcesForProposal = []domain.MatchingStatus{
	domain.StatusNew, domain.StatusMatching, domain.StatusNoMatch, domain.StatusMatched, domain.StatusProposed,
}

// advanceShiftToProposed moves shiftID into PROPOSED after a manual or
// self-select proposal emission, so the later accept path's
// PROPOSED -> ASSIGNED CAS (acceptProposal) has a shift to transition out
// of. A failure here is logged, not returned: the proposal itself already
// exists and committing its creation took priority. (The auto-propose
// path's final MATCHED -> PROPOSED CAS in matcher.go instead returns a
// StateError when it fails.)
func (m *Matcher) advanceShiftToProposed(ctx context.Context, shiftID domain.OpenShiftID) {
	if _, transitioned, err := m.Store.CASShiftStatus(ctx, shiftID, shiftCASSourcesForProposal, domain.StatusProposed, false); err != nil {
		log.Error().Err(err).Str("shift_id", shiftID.String()).Msg("failed to advance shift to PROPOSED after proposal emission")
	} else if !transitioned {
		log.Warn().Str("shift_id", shiftID.String()).Msg("shift was not in an expected status when advancing to PROPOSED")
	}
}

// RespondRequest is the input to RespondToProposal (spec §4.5, §6).
type RespondRequest struct {
	Accept            bool
	ResponseMethod    string
	RejectionReason   string
	RejectionCategory domain.RejectionCategory
	Notes             string
	RespondingUser    domain.UserID
}

// RespondToProposal drives the caregiver response path of spec §4.5. The
// accept branch is transactional across its four writes: a mid-sequence
// failure must leave the proposal in its prior state, so every store write
// here either fully commits or the function returns before mutating further
// state (the in-memory store's Lock-per-call semantics give this for free;
// a relational implementation would wrap the four writes in one transaction).
func (m *Matcher) RespondToProposal(ctx context.Context, proposalID domain.ProposalID, req RespondRequest) (*domain.AssignmentProposal, error) {
	p, err := m.Store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, merrors.NewDataPortError("GetProposal", err)
	}
	if p == nil {
		return nil, &merrors.NotFoundError{Entity: "proposal", ID: proposalID.String()}
	}
	if !domain.RespondableStatuses[p.ProposalStatus] {
		return nil, &merrors.StateError{Entity: "proposal", From: string(p.ProposalStatus), To: "responded"}
	}

	if req.Accept {
		return m.acceptProposal(ctx, p, req)
	}
	return m.rejectProposal(ctx, p, req)
}

func (m *Matcher) acceptProposal(ctx context.Context, p *domain.AssignmentProposal, req RespondRequest) (*domain.AssignmentProposal, error) {
	now := m.now()
	from := p.ProposalStatus
	if !domain.CanTransitionProposal(from, domain.ProposalAccepted) {
		return nil, &merrors.StateError{Entity: "proposal", From: string(from), To: string(domain.ProposalAccepted)}
	}

	p.ProposalStatus = domain.ProposalAccepted
	p.AcceptedAt = &now
	cg := p.CaregiverID
	p.AcceptedBy = &cg
	p.RespondedAt = &now
	p.ResponseMethod = req.ResponseMethod
	if err := m.Store.UpdateProposal(ctx, p); err != nil {
		return nil, err
	}

	if err := m.Port.AssignVisit(ctx, p.VisitID, p.CaregiverID); err != nil {
		m.rollbackProposal(ctx, p, from)
		return nil, merrors.NewDataPortError("AssignVisit", err)
	}

	shift, transitioned, err := m.Store.CASShiftStatus(ctx, p.OpenShiftID, []domain.MatchingStatus{domain.StatusProposed}, domain.StatusAssigned, false)
	if err != nil || !transitioned {
		m.rollbackProposal(ctx, p, from)
		if err != nil {
			return nil, merrors.NewDataPortError("CASShiftStatus", err)
		}
		return nil, &merrors.StateError{Entity: "open shift", From: string(domain.StatusProposed), To: string(domain.StatusAssigned)}
	}

	m.supersedeSiblings(ctx, p.OpenShiftID, p.ID)

	responseMinutes := p.ResponseTimeMinutes()
	m.History.Append(ctx, domain.MatchHistory{
		ID:                  newID(),
		OpenShiftID:         p.OpenShiftID,
		ProposalID:          &p.ID,
		CaregiverID:         &p.CaregiverID,
		OrganizationID:      shift.OrganizationID,
		Outcome:             domain.OutcomeAccepted,
		MatchScore:          p.MatchScore,
		MatchQuality:        p.MatchQuality,
		ResponseTimeMinutes: responseMinutes,
		RecordedAt:          now,
	})

	return p, nil
}

// rollbackProposal reverts an in-progress accept that failed partway through
// the write sequence, restoring the proposal to its pre-accept status. p's
// Audit.Version may already be stale here: the accept's own UpdateProposal
// call bumped the stored copy's version without updating p in place, so this
// re-reads the current stored proposal and reverts from that instead of from
// p, or the CAS inside UpdateProposal would reject the rollback write as a
// concurrent modification and leave the proposal stuck ACCEPTED.
func (m *Matcher) rollbackProposal(ctx context.Context, p *domain.AssignmentProposal, priorStatus domain.ProposalStatus) {
	current, err := m.Store.GetProposal(ctx, p.ID)
	if err != nil || current == nil {
		log.Error().Err(err).Str("proposal_id", p.ID.String()).Msg("failed to reload proposal before rollback")
		return
	}

	reverted := *current
	reverted.ProposalStatus = priorStatus
	reverted.AcceptedAt = nil
	reverted.AcceptedBy = nil
	reverted.RespondedAt = nil
	if err := m.Store.UpdateProposal(ctx, &reverted); err != nil {
		log.Error().Err(err).Str("proposal_id", p.ID.String()).Msg("failed to roll back proposal after partial accept failure")
		return
	}
	reverted.Audit.Version++
	*p = reverted
}

// supersedeSiblings transitions every other non-terminal proposal for
// shiftID to SUPERSEDED (spec §3 invariant, §4.5 step 2).
func (m *Matcher) supersedeSiblings(ctx context.Context, shiftID domain.OpenShiftID, acceptedID domain.ProposalID) {
	siblings, err := m.Store.ProposalsForShift(ctx, shiftID)
	if err != nil {
		log.Error().Err(err).Str("shift_id", shiftID.String()).Msg("failed to list sibling proposals for supersession")
		return
	}
	for _, sib := range siblings {
		if sib.ID == acceptedID || !domain.RespondableStatuses[sib.ProposalStatus] {
			continue
		}
		sib.ProposalStatus = domain.ProposalSuperseded
		if err := m.Store.UpdateProposal(ctx, &sib); err != nil {
			log.Error().Err(err).Str("proposal_id", sib.ID.String()).Msg("failed to supersede sibling proposal")
		}
	}
}

func (m *Matcher) rejectProposal(ctx context.Context, p *domain.AssignmentProposal, req RespondRequest) (*domain.AssignmentProposal, error) {
	if req.RejectionReason == "" {
		return nil, &merrors.ValidationError{Field: "rejectionReason", Reason: "rejection reason is required when declining a proposal"}
	}

	from := p.ProposalStatus
	if !domain.CanTransitionProposal(from, domain.ProposalRejected) {
		return nil, &merrors.StateError{Entity: "proposal", From: string(from), To: string(domain.ProposalRejected)}
	}

	now := m.now()
	p.ProposalStatus = domain.ProposalRejected
	p.RejectedAt = &now
	p.RespondedAt = &now
	p.ResponseMethod = req.ResponseMethod
	p.RejectionReason = req.RejectionReason
	p.RejectionCategory = req.RejectionCategory
	p.Notes = req.Notes
	if err := m.Store.UpdateProposal(ctx, p); err != nil {
		return nil, err
	}

	m.History.Append(ctx, domain.MatchHistory{
		ID:             newID(),
		OpenShiftID:    p.OpenShiftID,
		ProposalID:     &p.ID,
		CaregiverID:    &p.CaregiverID,
		OrganizationID: p.OrganizationID,
		Outcome:        domain.OutcomeRejected,
		MatchScore:     p.MatchScore,
		MatchQuality:   p.MatchQuality,
		RecordedAt:     now,
	})

	siblings, err := m.Store.ProposalsForShift(ctx, p.OpenShiftID)
	if err != nil {
		log.Error().Err(err).Str("shift_id", p.OpenShiftID.String()).Msg("failed to check remaining siblings after rejection")
		return p, nil
	}
	remaining := 0
	for _, sib := range siblings {
		if sib.ID != p.ID && domain.RespondableStatuses[sib.ProposalStatus] {
			remaining++
		}
	}
	if remaining == 0 {
		if _, _, err := m.Store.CASShiftStatus(ctx, p.OpenShiftID, []domain.MatchingStatus{domain.StatusProposed}, domain.StatusMatched, false); err != nil {
			log.Error().Err(err).Str("shift_id", p.OpenShiftID.String()).Msg("failed to return shift to MATCHED after rejection")
		}
	}

	return p, nil
}

// AvailableShiftsForCaregiver implements spec §4.6's browse path: open
// shifts in the caregiver's branch for the next 7 days where the caregiver
// is eligible and scores at or above the configured threshold, ranked by
// score descending.
func (m *Matcher) AvailableShiftsForCaregiver(ctx context.Context, caregiverID domain.CaregiverID, branchID domain.BranchID, orgID domain.OrganizationID) ([]domain.MatchCandidate, error) {
	now := m.now()
	from := now
	to := now.AddDate(0, 0, 7)

	page, err := m.Store.SearchOpenShifts(ctx, domain.OpenShiftFilter{
		OrganizationID: orgID,
		BranchID:       &branchID,
		DateFrom:       &from,
		DateTo:         &to,
		MatchingStatus: []domain.MatchingStatus{domain.StatusNew, domain.StatusMatching, domain.StatusMatched, domain.StatusProposed},
	}, domain.Pagination{Page: 1, Limit: 100})
	if err != nil {
		return nil, merrors.NewDataPortError("SearchOpenShifts", err)
	}

	var out []domain.MatchCandidate
	for i := range page.Items {
		shift := &page.Items[i]
		if shift.IsBlocked(caregiverID) {
			continue
		}
		cand, cfg, err := m.scoreOneCaregiver(ctx, shift, caregiverID)
		if err != nil {
			return nil, err
		}
		if cand == nil {
			continue
		}
		if cand.IsEligible && cand.OverallScore >= cfg.EffectiveMinScore() {
			out = append(out, *cand)
		}
	}

	sortCandidatesByScoreDesc(out)
	return out, nil
}

// scoreOneCaregiver scores caregiverID against shift for the self-select
// paths. It loads contexts for the whole branch through Loader.Load and
// keeps only caregiverID's; it returns a nil candidate when the caregiver is
// not active in the shift's branch or is on the shift's block list.
func (m *Matcher) scoreOneCaregiver(ctx context.Context, shift *domain.OpenShift, caregiverID domain.CaregiverID) (*domain.MatchCandidate, *domain.MatchingConfiguration, error) {
	caregivers, err := m.Port.ActiveCaregiversInBranch(ctx, shift.BranchID)
	if err != nil {
		return nil, nil, merrors.NewDataPortError("ActiveCaregiversInBranch", err)
	}
	var found *dataport.Caregiver
	for i := range caregivers {
		if caregivers[i].ID == caregiverID {
			found = &caregivers[i]
			break
		}
	}
	if found == nil {
		return nil, nil, nil
	}

	contexts, err := m.Loader.Load(ctx, shift)
	if err != nil {
		return nil, nil, err
	}
	var ctxForCaregiver *domain.CaregiverContext
	for i := range contexts {
		if contexts[i].CaregiverID == caregiverID {
			ctxForCaregiver = &contexts[i]
			break
		}
	}
	if ctxForCaregiver == nil {
		return nil, nil, nil
	}

	cfg, err := m.resolveConfig(ctx, shift.OrganizationID, shift.BranchID, nil)
	if err != nil {
		return nil, nil, err
	}

	cand := scorer.Score(shift, ctxForCaregiver, cfg, m.now())
	return cand, cfg, nil
}

func sortCandidatesByScoreDesc(candidates []domain.MatchCandidate) {
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].OverallScore > candidates[j-1].OverallScore; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
}

// ClaimShift implements spec §4.6's claim path: re-score, enforce the
// eligibility/threshold gate again, emit a CAREGIVER_SELF_SELECT proposal,
// and auto-accept it when the caregiver's preference profile opts in and the
// overallScore is 85 or more.
func (m *Matcher) ClaimShift(ctx context.Context, caregiverID domain.CaregiverID, shiftID domain.OpenShiftID) (*domain.AssignmentProposal, error) {
	shift, err := m.Store.GetOpenShift(ctx, shiftID)
	if err != nil {
		return nil, merrors.NewDataPortError("GetOpenShift", err)
	}
	if shift == nil {
		return nil, &merrors.NotFoundError{Entity: "open shift", ID: shiftID.String()}
	}
	if shift.MatchingStatus == domain.StatusAssigned {
		return nil, &merrors.ConflictError{Reason: "shift is already assigned"}
	}

	cand, cfg, err := m.scoreOneCaregiver(ctx, shift, caregiverID)
	if err != nil {
		return nil, err
	}
	if cand == nil {
		return nil, &merrors.NotFoundError{Entity: "caregiver", ID: caregiverID.String()}
	}
	minScore := cfg.EffectiveMinScore()
	if !cand.IsEligible || cand.OverallScore < minScore {
		return nil, &merrors.ValidationError{
			Field:  "overallScore",
			Reason: "caregiver does not meet the minimum score for self-selection",
			Details: map[string]any{
				"score":           cand.OverallScore,
				"minimumRequired": minScore,
			},
		}
	}

	p, err := m.emitProposal(ctx, AuthContext{OrganizationID: shift.OrganizationID, UserID: caregiverID}, shift, *cand, domain.MethodCaregiverSelfSelect, false, "")
	if err != nil {
		return nil, err
	}
	m.advanceShiftToProposed(ctx, shift.ID)

	pref, err := m.Store.GetPreferenceProfile(ctx, caregiverID)
	if err != nil {
		return nil, merrors.NewDataPortError("GetPreferenceProfile", err)
	}
	if pref != nil && pref.AcceptAutoAssignment && cand.OverallScore >= 85 {
		accepted, err := m.acceptProposal(ctx, p, RespondRequest{Accept: true, ResponseMethod: "AUTO", RespondingUser: caregiverID})
		if err != nil {
			return nil, err
		}
		return accepted, nil
	}

	return p, nil
}

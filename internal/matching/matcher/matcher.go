// Package matcher implements the orchestrator of spec §4.3-4.6: it drives
// one open shift through config resolution, candidate loading, scoring,
// ranking, filtering, bounding and proposal emission, and serves the
// caregiver self-select and proposal-response paths.
package matcher

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"mcs-mcp/internal/matching/candidateloader"
	"mcs-mcp/internal/matching/configstore"
	"mcs-mcp/internal/matching/dataport"
	"mcs-mcp/internal/matching/domain"
	"mcs-mcp/internal/matching/history"
	"mcs-mcp/internal/matching/merrors"
	"mcs-mcp/internal/matching/scorer"
	"mcs-mcp/internal/matching/store"
)

// NotificationSink delivers a proposal notification to a caregiver. It is a
// best-effort external collaborator (spec §4.4, §7): failures are logged,
// never propagated, and never block a proposal's state progression.
type NotificationSink interface {
	Notify(ctx context.Context, proposal *domain.AssignmentProposal) error
}

// NoopSink is a NotificationSink that does nothing; used when no sink is
// wired, and by tests.
type NoopSink struct{}

func (NoopSink) Notify(context.Context, *domain.AssignmentProposal) error { return nil }

// AuthContext carries the organization/user identity an operation runs
// under (spec §4.3: "an authorization context (org + user id)"). The Matcher
// performs no capability checks (neither does internal/mcpserver); it only
// threads the identity through for audit columns.
type AuthContext struct {
	OrganizationID domain.OrganizationID
	UserID         domain.UserID
}

// Matcher is the shift-matching orchestrator.
type Matcher struct {
	Port    dataport.DataPort
	Configs configstore.ConfigStore
	Store   store.ProposalStore
	History *history.Store
	Loader  *candidateloader.Loader
	Sink    NotificationSink

	// Now returns the current time; production code defaults to
	// time.Now().UTC(), tests inject a fixed or stepped clock (spec §8's
	// "deterministic clock injection", mirroring the teacher's
	// engine.GeneratorConfig.Now pattern).
	Now func() time.Time

	// PerShiftBudget bounds the candidate-load + score + persist cycle of
	// matchShift (spec §5, default 5s, MATCHER_PER_SHIFT_BUDGET_MS).
	PerShiftBudget time.Duration
}

// New returns a Matcher wired to the given collaborators, with Now defaulted
// to the real clock and PerShiftBudget defaulted to 5s.
func New(port dataport.DataPort, configs configstore.ConfigStore, st store.ProposalStore, hist *history.Store, sink NotificationSink) *Matcher {
	if sink == nil {
		sink = NoopSink{}
	}
	return &Matcher{
		Port:           port,
		Configs:        configs,
		Store:          st,
		History:        hist,
		Loader:         candidateloader.New(port),
		Sink:           sink,
		Now:            func() time.Time { return time.Now().UTC() },
		PerShiftBudget: 5 * time.Second,
	}
}

func (m *Matcher) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

// CreateOpenShift creates a new open shift bound 1:1 to an existing visit
// (spec §6). It fails ConflictError if a non-deleted shift already exists
// for the visit, NotFoundError if the visit is absent.
func (m *Matcher) CreateOpenShift(ctx context.Context, auth AuthContext, visitID domain.VisitID, priority domain.Priority, fillByDate *time.Time) (*domain.OpenShift, error) {
	visit, err := m.Port.GetVisit(ctx, visitID)
	if err != nil {
		return nil, merrors.NewDataPortError("GetVisit", err)
	}
	if visit == nil {
		return nil, &merrors.NotFoundError{Entity: "visit", ID: visitID.String()}
	}

	if priority == "" {
		priority = domain.PriorityNormal
	}

	now := m.now()
	shift := &domain.OpenShift{
		ID:             domain.OpenShiftID{},
		VisitID:        visitID,
		OrganizationID: visit.OrganizationID,
		BranchID:       visit.BranchID,
		ClientID:       visit.ClientID,
		MatchingStatus: domain.StatusNew,
		Priority:       priority,
		FillByDate:     fillByDate,
		Audit: domain.AuditMeta{
			CreatedAt: now,
			CreatedBy: auth.UserID,
			UpdatedAt: now,
			UpdatedBy: auth.UserID,
		},
	}
	shift.ID = newID()

	if err := m.Store.CreateOpenShift(ctx, shift); err != nil {
		return nil, err
	}
	return shift, nil
}

// MatchRequest is the input to MatchShift (spec §6).
type MatchRequest struct {
	OpenShiftID     domain.OpenShiftID
	ConfigurationID *domain.ConfigurationID
	MaxCandidates   *int
	AutoPropose     bool
}

// MatchResult is MatchShift's output (spec §6).
type MatchResult struct {
	Shift            *domain.OpenShift
	Candidates       []domain.MatchCandidate
	CreatedProposals []domain.AssignmentProposal
	EligibleCount    int
	IneligibleCount  int
}

// matchingCASSources is the set of statuses MatchShift may CAS out of (spec
// §4.3 step 2).
var matchingCASSources = []domain.MatchingStatus{
	domain.StatusNew, domain.StatusNoMatch, domain.StatusMatched, domain.StatusProposed,
}

// MatchShift drives one open shift through the full matching pipeline (spec
// §4.3).
func (m *Matcher) MatchShift(ctx context.Context, auth AuthContext, req MatchRequest) (*MatchResult, error) {
	shift, err := m.Store.GetOpenShift(ctx, req.OpenShiftID)
	if err != nil {
		return nil, merrors.NewDataPortError("GetOpenShift", err)
	}
	if shift == nil {
		return nil, &merrors.NotFoundError{Entity: "open shift", ID: req.OpenShiftID.String()}
	}
	if shift.MatchingStatus == domain.StatusAssigned {
		return nil, &merrors.ValidationError{Field: "openShiftId", Reason: "shift is already assigned"}
	}

	casShift, ok, err := m.Store.CASShiftStatus(ctx, shift.ID, matchingCASSources, domain.StatusMatching, true)
	if err != nil {
		return nil, merrors.NewDataPortError("CASShiftStatus", err)
	}
	if !ok {
		return nil, &merrors.ConcurrencyError{OpenShiftID: shift.ID, Observed: casShift.MatchingStatus}
	}
	priorStatus := shift.MatchingStatus
	shift = casShift

	deadline := m.now().Add(m.PerShiftBudget)
	result, err := m.runMatchPipeline(ctx, auth, shift, req, deadline)
	if err != nil {
		m.revertToPriorStatus(ctx, shift.ID, priorStatus)
		return nil, err
	}
	return result, nil
}

func (m *Matcher) revertToPriorStatus(ctx context.Context, id domain.OpenShiftID, prior domain.MatchingStatus) {
	if _, _, err := m.Store.CASShiftStatus(ctx, id, []domain.MatchingStatus{domain.StatusMatching}, prior, false); err != nil {
		log.Error().Err(err).Str("shift_id", id.String()).Msg("failed to roll back shift status after match failure")
	}
}

func (m *Matcher) runMatchPipeline(ctx context.Context, auth AuthContext, shift *domain.OpenShift, req MatchRequest, deadline time.Time) (*MatchResult, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	cfg, err := m.resolveConfig(ctx, shift.OrganizationID, shift.BranchID, req.ConfigurationID)
	if err != nil {
		return nil, err
	}

	contexts, err := m.Loader.Load(ctx, shift)
	if err != nil {
		return nil, err
	}

	if m.now().After(deadline) {
		return m.timeoutResult(ctx, shift)
	}

	candidates := make([]domain.MatchCandidate, 0, len(contexts))
	for i := range contexts {
		candidates = append(candidates, *scorer.Score(shift, &contexts[i], cfg, m.now()))
	}
	rankCandidates(candidates)

	var eligible []domain.MatchCandidate
	var ineligible []domain.MatchCandidate
	minScore := cfg.EffectiveMinScore()
	for _, c := range candidates {
		if c.IsEligible && c.OverallScore >= minScore {
			eligible = append(eligible, c)
		} else {
			ineligible = append(ineligible, c)
		}
	}

	maxCandidates := cfg.EffectiveMaxProposals()
	if req.MaxCandidates != nil {
		maxCandidates = *req.MaxCandidates
	}
	if maxCandidates > len(eligible) {
		maxCandidates = len(eligible)
	}
	selected := eligible[:maxCandidates]

	attempt := m.History.LatestAttemptNumber(ctx, shift.ID) + 1

	var newStatus domain.MatchingStatus
	if len(selected) > 0 {
		newStatus = domain.StatusMatched
	} else {
		newStatus = domain.StatusNoMatch
	}
	shift, transitioned, err := m.Store.CASShiftStatus(ctx, shift.ID, []domain.MatchingStatus{domain.StatusMatching}, newStatus, false)
	if err != nil {
		return nil, merrors.NewDataPortError("CASShiftStatus", err)
	}
	if !transitioned {
		return nil, &merrors.StateError{Entity: "open shift", From: string(domain.StatusMatching), To: string(newStatus)}
	}

	var created []domain.AssignmentProposal
	if req.AutoPropose && len(selected) > 0 {
		for _, c := range selected {
			p, err := m.emitProposal(ctx, auth, shift, c, domain.MethodAutomatic, true, "")
			if err != nil {
				return nil, err
			}
			created = append(created, *p)
		}
		shift, transitioned, err = m.Store.CASShiftStatus(ctx, shift.ID, []domain.MatchingStatus{domain.StatusMatched}, domain.StatusProposed, false)
		if err != nil {
			return nil, merrors.NewDataPortError("CASShiftStatus", err)
		}
		if !transitioned {
			return nil, &merrors.StateError{Entity: "open shift", From: string(domain.StatusMatched), To: string(domain.StatusProposed)}
		}
	}

	outcome := domain.OutcomeProposed
	note := fmt.Sprintf("eligible=%d total=%d", len(eligible), len(candidates))
	if len(eligible) == 0 {
		outcome = domain.OutcomeNoCandidates
	}
	m.History.Append(ctx, domain.MatchHistory{
		ID:             newID(),
		OpenShiftID:    shift.ID,
		OrganizationID: shift.OrganizationID,
		Outcome:        outcome,
		AttemptNumber:  attempt,
		Note:           note,
		RecordedAt:     m.now(),
	})

	return &MatchResult{
		Shift:            shift,
		Candidates:       candidates,
		CreatedProposals: created,
		EligibleCount:    len(eligible),
		IneligibleCount:  len(ineligible),
	}, nil
}

func (m *Matcher) timeoutResult(ctx context.Context, shift *domain.OpenShift) (*MatchResult, error) {
	shift, _, err := m.Store.CASShiftStatus(ctx, shift.ID, []domain.MatchingStatus{domain.StatusMatching}, domain.StatusNoMatch, false)
	if err != nil {
		return nil, merrors.NewDataPortError("CASShiftStatus", err)
	}
	m.History.Append(ctx, domain.MatchHistory{
		ID:             newID(),
		OpenShiftID:    shift.ID,
		OrganizationID: shift.OrganizationID,
		Outcome:        domain.OutcomeNoCandidates,
		Note:           "per-shift matching budget exceeded",
		RecordedAt:     m.now(),
	})
	return &MatchResult{Shift: shift}, nil
}

func (m *Matcher) resolveConfig(ctx context.Context, orgID domain.OrganizationID, branchID domain.BranchID, explicit *domain.ConfigurationID) (*domain.MatchingConfiguration, error) {
	if explicit != nil {
		cfg, err := m.Configs.Get(ctx, *explicit)
		if err != nil {
			return nil, merrors.NewDataPortError("ConfigStore.Get", err)
		}
		if cfg == nil {
			return nil, &merrors.NotFoundError{Entity: "matching configuration", ID: explicit.String()}
		}
		return cfg, nil
	}
	cfg, err := m.Configs.DefaultFor(ctx, orgID, branchID)
	if err != nil {
		return nil, merrors.NewDataPortError("ConfigStore.DefaultFor", err)
	}
	if cfg == nil {
		return nil, &merrors.ValidationError{Field: "configurationId", Reason: "no active default configuration for this organization/branch"}
	}
	return cfg, nil
}

// rankCandidates orders candidates per spec §4.1's tie-break: higher
// overallScore, then higher reliability, then lower distance, then earlier
// (stable) caregiver id.
func rankCandidates(candidates []domain.MatchCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.OverallScore != b.OverallScore {
			return a.OverallScore > b.OverallScore
		}
		if a.Scores[domain.DimensionReliability] != b.Scores[domain.DimensionReliability] {
			return a.Scores[domain.DimensionReliability] > b.Scores[domain.DimensionReliability]
		}
		if a.DistanceFromShift != b.DistanceFromShift {
			return a.DistanceFromShift < b.DistanceFromShift
		}
		return a.CaregiverID.String() < b.CaregiverID.String()
	})
}

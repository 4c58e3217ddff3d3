// Package expirer implements the periodic sweep of spec §4.7: proposals
// sitting in {PENDING, SENT, VIEWED} past their configured TTL transition to
// EXPIRED, with a MatchHistory row recording the outcome. The sweep is
// idempotent and safe under concurrent Matcher activity because the
// transition is conditional on the proposal's current status.
package expirer

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"mcs-mcp/internal/matching/configstore"
	"mcs-mcp/internal/matching/domain"
	"mcs-mcp/internal/matching/history"
	"mcs-mcp/internal/matching/merrors"
	"mcs-mcp/internal/matching/store"
)

// Expirer scans for stale proposals and transitions them to EXPIRED.
type Expirer struct {
	Store   store.ProposalStore
	Configs configstore.ConfigStore
	History *history.Store

	// Now mirrors matcher.Matcher.Now: a real clock in production, an
	// injected one in tests.
	Now func() time.Time
}

// New returns an Expirer wired to the given collaborators.
func New(st store.ProposalStore, configs configstore.ConfigStore, hist *history.Store) *Expirer {
	return &Expirer{
		Store:   st,
		Configs: configs,
		History: hist,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

func (e *Expirer) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

// Sweep runs one expiry pass and returns the number of proposals it
// transitioned to EXPIRED. Calling Sweep repeatedly within the same instant
// is a no-op the second time (spec §8 invariant 9): each candidate's
// transition is conditional on its current status still being expirable, so
// a proposal already moved to EXPIRED (or superseded/accepted/rejected by a
// concurrent Matcher) is simply skipped.
func (e *Expirer) Sweep(ctx context.Context) (int, error) {
	candidates, err := e.Store.ExpirableProposals(ctx)
	if err != nil {
		return 0, merrors.NewDataPortError("ExpirableProposals", err)
	}

	now := e.now()
	expiredCount := 0
	ttlCache := make(map[domain.OrganizationID]int)

	for _, p := range candidates {
		ttlMinutes, ok := ttlCache[p.OrganizationID]
		if !ok {
			ttlMinutes = e.resolveTTLMinutes(ctx, p.OrganizationID, p.BranchID)
			ttlCache[p.OrganizationID] = ttlMinutes
		}

		baseline := p.SentAt
		if baseline == nil {
			baseline = &p.ProposedAt
		}
		deadline := baseline.Add(time.Duration(ttlMinutes) * time.Minute)
		if now.Before(deadline) {
			continue
		}

		if e.expireOne(ctx, p, now) {
			expiredCount++
		}
	}
	return expiredCount, nil
}

// expireOne re-fetches the proposal immediately before writing so the
// transition check runs against the freshest status, then commits the
// EXPIRED transition only if it is still legal.
func (e *Expirer) expireOne(ctx context.Context, stale domain.AssignmentProposal, now time.Time) bool {
	current, err := e.Store.GetProposal(ctx, stale.ID)
	if err != nil {
		log.Error().Err(err).Str("proposal_id", stale.ID.String()).Msg("failed to reload proposal during expiry sweep")
		return false
	}
	if current == nil || !domain.ExpirableStatuses[current.ProposalStatus] {
		return false
	}
	if !domain.CanTransitionProposal(current.ProposalStatus, domain.ProposalExpired) {
		return false
	}

	current.ProposalStatus = domain.ProposalExpired
	current.ExpiredAt = &now
	if err := e.Store.UpdateProposal(ctx, current); err != nil {
		log.Error().Err(err).Str("proposal_id", current.ID.String()).Msg("failed to persist EXPIRED transition")
		return false
	}

	e.History.Append(ctx, domain.MatchHistory{
		ID:             newHistoryID(),
		OpenShiftID:    current.OpenShiftID,
		ProposalID:     &current.ID,
		CaregiverID:    &current.CaregiverID,
		OrganizationID: current.OrganizationID,
		Outcome:        domain.OutcomeExpired,
		MatchScore:     current.MatchScore,
		MatchQuality:   current.MatchQuality,
		RecordedAt:     now,
	})

	log.Info().Str("proposal_id", current.ID.String()).Str("shift_id", current.OpenShiftID.String()).Msg("proposal expired")
	return true
}

func (e *Expirer) resolveTTLMinutes(ctx context.Context, orgID domain.OrganizationID, branchID domain.BranchID) int {
	cfg, err := e.Configs.DefaultFor(ctx, orgID, branchID)
	if err != nil || cfg == nil {
		return domain.DefaultProposalExpirationMins
	}
	return cfg.EffectiveExpirationMinutes()
}

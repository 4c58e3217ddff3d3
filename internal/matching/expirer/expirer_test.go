package expirer

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"mcs-mcp/internal/matching/configstore"
	"mcs-mcp/internal/matching/domain"
	"mcs-mcp/internal/matching/history"
	"mcs-mcp/internal/matching/store"
)

// S6 — a SENT proposal whose TTL has elapsed expires exactly once; a
// second sweep at a later instant is a no-op (spec §8 invariant 9).
func TestSweep_ExpiresStaleProposalOnce(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	configs := configstore.NewMemoryStore()
	hist := history.NewStore()

	org := uuid.New()
	_ = configs.Put(ctx, &domain.MatchingConfiguration{
		ID:                        uuid.New(),
		OrganizationID:            org,
		ProposalExpirationMinutes: 120,
		IsDefault:                 true,
		IsActive:                  true,
	})

	sentAt := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
	shiftID := uuid.New()
	proposalID := uuid.New()
	caregiverID := uuid.New()
	proposal := &domain.AssignmentProposal{
		ID:             proposalID,
		OpenShiftID:    shiftID,
		CaregiverID:    caregiverID,
		OrganizationID: org,
		ProposalStatus: domain.ProposalSent,
		ProposedAt:     sentAt.Add(-time.Minute),
		SentAt:         &sentAt,
	}
	if err := st.CreateProposal(ctx, proposal); err != nil {
		t.Fatal(err)
	}

	e := New(st, configs, hist)

	// t+121 minutes: past TTL, should expire.
	afterTTL := sentAt.Add(121 * time.Minute)
	e.Now = func() time.Time { return afterTTL }

	count, err := e.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 expiry, got %d", count)
	}

	got, _ := st.GetProposal(ctx, proposalID)
	if got.ProposalStatus != domain.ProposalExpired {
		t.Fatalf("expected EXPIRED, got %s", got.ProposalStatus)
	}

	rows := hist.ForShift(ctx, shiftID)
	if len(rows) != 1 || rows[0].Outcome != domain.OutcomeExpired {
		t.Fatalf("expected one EXPIRED history row, got %+v", rows)
	}

	// A second sweep one minute later must be a no-op.
	e.Now = func() time.Time { return afterTTL.Add(time.Minute) }
	count, err = e.Sweep(ctx)
	if err != nil {
		t.Fatalf("second Sweep failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected second sweep to be a no-op, expired %d", count)
	}
}

func TestSweep_NotYetDueIsUntouched(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	configs := configstore.NewMemoryStore()
	hist := history.NewStore()

	org := uuid.New()
	_ = configs.Put(ctx, &domain.MatchingConfiguration{
		ID: uuid.New(), OrganizationID: org, ProposalExpirationMinutes: 120, IsDefault: true, IsActive: true,
	})

	sentAt := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
	proposal := &domain.AssignmentProposal{
		ID: uuid.New(), OpenShiftID: uuid.New(), CaregiverID: uuid.New(), OrganizationID: org,
		ProposalStatus: domain.ProposalSent, ProposedAt: sentAt, SentAt: &sentAt,
	}
	if err := st.CreateProposal(ctx, proposal); err != nil {
		t.Fatal(err)
	}

	e := New(st, configs, hist)
	e.Now = func() time.Time { return sentAt.Add(60 * time.Minute) }

	count, err := e.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("expected no expiry before TTL, got %d", count)
	}
}

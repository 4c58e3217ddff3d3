package matcher

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"mcs-mcp/internal/matching/candidateloader"
	"mcs-mcp/internal/matching/configstore"
	"mcs-mcp/internal/matching/dataport"
	"mcs-mcp/internal/matching/domain"
	"mcs-mcp/internal/matching/history"
	"mcs-mcp/internal/matching/store"
)

type fixture struct {
	port    *dataport.MemoryPort
	configs *configstore.MemoryStore
	st      *store.MemoryStore
	hist    *history.Store
	m       *Matcher
	now     time.Time

	org    domain.OrganizationID
	branch domain.BranchID
	client domain.ClientID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		port:    dataport.NewMemoryPort(),
		configs: configstore.NewMemoryStore(),
		st:      store.NewMemoryStore(),
		hist:    history.NewStore(),
		now:     time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC),
		org:     uuid.New(),
		branch:  uuid.New(),
		client:  uuid.New(),
	}
	f.m = New(f.port, f.configs, f.st, f.hist, NoopSink{})
	f.m.Now = func() time.Time { return f.now }
	f.m.Loader = candidateloader.New(f.port)
	return f
}

func (f *fixture) putConfig(ctx context.Context, minScore, maxProposals int) domain.ConfigurationID {
	id := uuid.New()
	cfg := &domain.MatchingConfiguration{
		ID:             id,
		OrganizationID: f.org,
		Weights: map[domain.ScoringDimension]int{
			domain.DimensionSkill:        20,
			domain.DimensionAvailability: 15,
			domain.DimensionProximity:    15,
			domain.DimensionPreference:   10,
			domain.DimensionExperience:   10,
			domain.DimensionReliability:  15,
			domain.DimensionCompliance:   10,
			domain.DimensionCapacity:     5,
		},
		RequireExactSkillMatch:      true,
		RequireActiveCertifications: true,
		MaxTravelDistanceMiles:      50,
		MinScoreForProposal:         minScore,
		MaxProposalsPerShift:        maxProposals,
		ProposalExpirationMinutes:   120,
		IsDefault:                   true,
		IsActive:                    true,
	}
	_ = f.configs.Put(ctx, cfg)
	return id
}

func (f *fixture) seedCaregiver(ctx context.Context, lat, lon float64, reliability float64, distance float64) domain.CaregiverID {
	id := uuid.New()
	f.port.SeedCaregiver(dataport.Caregiver{
		ID:              id,
		DisplayName:     "Caregiver " + id.String()[:8],
		BranchID:        f.branch,
		Active:          true,
		Skills:          map[string]bool{"Personal Care": true},
		Certifications:  []domain.Certification{{Name: "CNA", Status: domain.CertificationActive}},
		MaxHoursPerWeek: 40,
		Latitude:        &lat,
		Longitude:       &lon,
		Compliance:      domain.ComplianceCompliant,
	})
	f.port.SeedReliabilitySample(dataport.ReliabilitySample{CaregiverID: id, At: f.now.AddDate(0, 0, -1), Score: reliability})
	return id
}

func (f *fixture) createShift(ctx context.Context) *domain.OpenShift {
	lat, lon := 40.0, -75.0
	visitID := uuid.New()
	f.port.SeedVisit(dataport.Visit{ID: visitID, OrganizationID: f.org, BranchID: f.branch, ClientID: f.client})

	shift, err := f.m.CreateOpenShift(ctx, AuthContext{OrganizationID: f.org}, visitID, domain.PriorityNormal, nil)
	if err != nil {
		panic(err)
	}
	shift.RequiredSkills = map[string]bool{"Personal Care": true}
	shift.RequiredCertifications = map[string]bool{"CNA": true}
	shift.BlockedCaregivers = map[domain.CaregiverID]bool{}
	shift.PreferredCaregivers = map[domain.CaregiverID]bool{}
	shift.Latitude, shift.Longitude = &lat, &lon
	shift.DurationMinutes = 120
	shift.ScheduledDate = f.now
	shift.StartTime = f.now
	shift.EndTime = f.now.Add(2 * time.Hour)
	if err := f.st.UpdateOpenShift(ctx, shift); err != nil {
		panic(err)
	}
	refreshed, err := f.st.GetOpenShift(ctx, shift.ID)
	if err != nil {
		panic(err)
	}
	return refreshed
}

// S1 — simple auto-match: two eligible caregivers, closer/more reliable one
// ranks first, both get SENT proposals, shift ends PROPOSED.
func TestScenario_S1_SimpleAutoMatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.putConfig(ctx, 60, 5)
	shift := f.createShift(ctx)

	c1 := f.seedCaregiver(ctx, 40.01, -75.01, 90, 10)
	c2 := f.seedCaregiver(ctx, 40.3, -75.3, 80, 40)
	f.port.SeedWeeklyHours(c1, 10)
	f.port.SeedWeeklyHours(c2, 10)

	result, err := f.m.MatchShift(ctx, AuthContext{OrganizationID: f.org}, MatchRequest{
		OpenShiftID: shift.ID,
		AutoPropose: true,
	})
	if err != nil {
		t.Fatalf("MatchShift failed: %v", err)
	}

	if len(result.CreatedProposals) != 2 {
		t.Fatalf("expected 2 proposals, got %d", len(result.CreatedProposals))
	}
	if result.Shift.MatchingStatus != domain.StatusProposed {
		t.Fatalf("expected shift PROPOSED, got %s", result.Shift.MatchingStatus)
	}
	for _, p := range result.CreatedProposals {
		if p.ProposalStatus != domain.ProposalSent {
			t.Errorf("expected proposal SENT, got %s", p.ProposalStatus)
		}
	}
	if result.Candidates[0].CaregiverID != c1 {
		t.Fatalf("expected closer/more reliable caregiver ranked first")
	}
}

// S2 — blocked caregiver is omitted entirely from the candidate list.
func TestScenario_S2_BlockedCaregiverOmitted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.putConfig(ctx, 60, 5)
	shift := f.createShift(ctx)

	c1 := f.seedCaregiver(ctx, 40.01, -75.01, 90, 10)
	c2 := f.seedCaregiver(ctx, 40.3, -75.3, 80, 40)
	f.port.SeedWeeklyHours(c1, 10)
	f.port.SeedWeeklyHours(c2, 10)

	shift.BlockedCaregivers[c1] = true
	if err := f.st.UpdateOpenShift(ctx, shift); err != nil {
		t.Fatal(err)
	}

	result, err := f.m.MatchShift(ctx, AuthContext{OrganizationID: f.org}, MatchRequest{OpenShiftID: shift.ID, AutoPropose: true})
	if err != nil {
		t.Fatalf("MatchShift failed: %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected blocked caregiver to be absent entirely, got %d candidates", len(result.Candidates))
	}
	if result.Candidates[0].CaregiverID != c2 {
		t.Fatalf("expected only c2 in candidate list")
	}
	if result.Shift.MatchingStatus != domain.StatusProposed {
		t.Fatalf("expected PROPOSED, got %s", result.Shift.MatchingStatus)
	}
}

// S3 — accept supersedes siblings.
func TestScenario_S3_AcceptSupersedesSiblings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.putConfig(ctx, 60, 5)
	shift := f.createShift(ctx)

	c1 := f.seedCaregiver(ctx, 40.01, -75.01, 90, 10)
	c2 := f.seedCaregiver(ctx, 40.3, -75.3, 80, 40)
	f.port.SeedWeeklyHours(c1, 10)
	f.port.SeedWeeklyHours(c2, 10)

	result, err := f.m.MatchShift(ctx, AuthContext{OrganizationID: f.org}, MatchRequest{OpenShiftID: shift.ID, AutoPropose: true})
	if err != nil {
		t.Fatalf("MatchShift failed: %v", err)
	}

	var c1Proposal domain.ProposalID
	for _, p := range result.CreatedProposals {
		if p.CaregiverID == c1 {
			c1Proposal = p.ID
		}
	}

	accepted, err := f.m.RespondToProposal(ctx, c1Proposal, RespondRequest{Accept: true, ResponseMethod: "APP"})
	if err != nil {
		t.Fatalf("RespondToProposal failed: %v", err)
	}
	if accepted.ProposalStatus != domain.ProposalAccepted {
		t.Fatalf("expected ACCEPTED, got %s", accepted.ProposalStatus)
	}

	siblings, _ := f.st.ProposalsForShift(ctx, shift.ID)
	for _, p := range siblings {
		if p.CaregiverID == c2 && p.ProposalStatus != domain.ProposalSuperseded {
			t.Fatalf("expected sibling SUPERSEDED, got %s", p.ProposalStatus)
		}
	}

	finalShift, _ := f.st.GetOpenShift(ctx, shift.ID)
	if finalShift.MatchingStatus != domain.StatusAssigned {
		t.Fatalf("expected ASSIGNED, got %s", finalShift.MatchingStatus)
	}

	visit, _ := f.port.GetVisit(ctx, shift.VisitID)
	if visit.AssignedCaregiverID == nil || *visit.AssignedCaregiverID != c1 {
		t.Fatalf("expected visit assigned to c1")
	}
}

// S4 — reject reverts the shift to MATCHED.
func TestScenario_S4_RejectRevertsState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.putConfig(ctx, 60, 5)
	shift := f.createShift(ctx)

	c1 := f.seedCaregiver(ctx, 40.01, -75.01, 90, 10)
	f.port.SeedWeeklyHours(c1, 10)

	result, err := f.m.MatchShift(ctx, AuthContext{OrganizationID: f.org}, MatchRequest{OpenShiftID: shift.ID, AutoPropose: true})
	if err != nil {
		t.Fatalf("MatchShift failed: %v", err)
	}
	proposalID := result.CreatedProposals[0].ID

	rejected, err := f.m.RespondToProposal(ctx, proposalID, RespondRequest{
		Accept:            false,
		ResponseMethod:    "APP",
		RejectionReason:   "too far for me",
		RejectionCategory: domain.RejectionTooFar,
	})
	if err != nil {
		t.Fatalf("RespondToProposal failed: %v", err)
	}
	if rejected.ProposalStatus != domain.ProposalRejected {
		t.Fatalf("expected REJECTED, got %s", rejected.ProposalStatus)
	}

	finalShift, _ := f.st.GetOpenShift(ctx, shift.ID)
	if finalShift.MatchingStatus != domain.StatusMatched {
		t.Fatalf("expected shift back to MATCHED, got %s", finalShift.MatchingStatus)
	}
}

// S5 — self-select below threshold fails ValidationError.
func TestScenario_S5_SelfSelectBelowThreshold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.putConfig(ctx, 90, 5) // deliberately high bar so the candidate scores below it
	shift := f.createShift(ctx)

	c3 := f.seedCaregiver(ctx, 40.05, -75.05, 50, 4)
	f.port.SeedWeeklyHours(c3, 10)

	_, err := f.m.ClaimShift(ctx, c3, shift.ID)
	if err == nil {
		t.Fatal("expected ValidationError for below-threshold self-select")
	}

	finalShift, _ := f.st.GetOpenShift(ctx, shift.ID)
	if finalShift.MatchingStatus != domain.StatusNew {
		t.Fatalf("expected shift state unchanged (NEW), got %s", finalShift.MatchingStatus)
	}
}

// S6 — proposal expiration: a SENT proposal past TTL expires exactly once.
func TestScenario_S6_Expiration(t *testing.T) {
	t.Skip("covered by expirer package tests, which build their own fixtures")
}

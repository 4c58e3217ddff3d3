package scorer

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"mcs-mcp/internal/matching/domain"
)

func baseShift() *domain.OpenShift {
	lat, lon := 40.0, -75.0
	return &domain.OpenShift{
		ID:                     uuid.New(),
		RequiredSkills:         map[string]bool{"Personal Care": true},
		RequiredCertifications: map[string]bool{"CNA": true},
		BlockedCaregivers:      map[uuid.UUID]bool{},
		PreferredCaregivers:    map[uuid.UUID]bool{},
		DurationMinutes:        120,
		StartTime:              time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
		EndTime:                time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC),
		Latitude:               &lat,
		Longitude:              &lon,
	}
}

func baseConfig() *domain.MatchingConfiguration {
	return &domain.MatchingConfiguration{
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
		MinScoreForProposal:         50,
	}
}

func baseCaregiver(id uuid.UUID) *domain.CaregiverContext {
	lat, lon := 40.1, -75.1
	return &domain.CaregiverContext{
		CaregiverID:      id,
		Skills:           map[string]bool{"Personal Care": true},
		Certifications:   []domain.Certification{{Name: "CNA", Status: domain.CertificationActive}},
		MaxHoursPerWeek:  40,
		Latitude:         &lat,
		Longitude:        &lon,
		Compliance:       domain.ComplianceCompliant,
		ReliabilityScore: 90,
	}
}

func TestScore_FullyEligibleCandidate(t *testing.T) {
	shift := baseShift()
	cfg := baseConfig()
	ctx := baseCaregiver(uuid.New())

	cand := Score(shift, ctx, cfg, time.Now())

	if !cand.IsEligible {
		t.Fatalf("expected eligible candidate, issues=%+v", cand.EligibilityIssues)
	}
	if cand.OverallScore < 50 {
		t.Fatalf("expected a solid score, got %d", cand.OverallScore)
	}
	if cand.MatchQuality != domain.QualityForScore(cand.OverallScore) {
		t.Fatalf("match quality %q does not match score banding for %d", cand.MatchQuality, cand.OverallScore)
	}
}

func TestScore_BlockedCaregiverIsIneligible(t *testing.T) {
	shift := baseShift()
	cg := uuid.New()
	shift.BlockedCaregivers[cg] = true
	cfg := baseConfig()
	ctx := baseCaregiver(cg)

	cand := Score(shift, ctx, cfg, time.Now())

	if cand.IsEligible {
		t.Fatal("expected blocked caregiver to be ineligible")
	}
	found := false
	for _, iss := range cand.EligibilityIssues {
		if iss.Type == domain.IssueBlockedByClient && iss.Severity == domain.SeverityBlocking {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected BLOCKED_BY_CLIENT blocking issue, got %+v", cand.EligibilityIssues)
	}
}

func TestScore_MissingCertificationBlocks(t *testing.T) {
	shift := baseShift()
	cfg := baseConfig()
	ctx := baseCaregiver(uuid.New())
	ctx.Certifications = nil

	cand := Score(shift, ctx, cfg, time.Now())

	if cand.IsEligible {
		t.Fatal("expected missing certification to block eligibility")
	}
}

func TestScore_TimeConflictBlocks(t *testing.T) {
	shift := baseShift()
	cfg := baseConfig()
	ctx := baseCaregiver(uuid.New())
	ctx.ConflictingVisits = []domain.TimeInterval{{
		Start: shift.StartTime.Add(-30 * time.Minute),
		End:   shift.StartTime.Add(30 * time.Minute),
	}}

	cand := Score(shift, ctx, cfg, time.Now())

	if cand.IsEligible {
		t.Fatal("expected conflicting visit to block eligibility")
	}
	if cand.Scores[domain.DimensionAvailability] != 0 {
		t.Fatalf("expected availability score 0 on conflict, got %d", cand.Scores[domain.DimensionAvailability])
	}
}

func TestScore_OverCapacityBlocks(t *testing.T) {
	shift := baseShift()
	cfg := baseConfig()
	ctx := baseCaregiver(uuid.New())
	ctx.CurrentWeekHours = 39

	cand := Score(shift, ctx, cfg, time.Now())

	if cand.IsEligible {
		t.Fatal("expected over-capacity caregiver to be ineligible")
	}
}

func TestScore_TooFarBlocksWhenCoordinatesKnown(t *testing.T) {
	shift := baseShift()
	cfg := baseConfig()
	cfg.MaxTravelDistanceMiles = 5
	ctx := baseCaregiver(uuid.New())
	ctx.DistanceFromShift = 20.0

	cand := Score(shift, ctx, cfg, time.Now())
	if cand.IsEligible {
		t.Fatal("expected caregiver beyond max travel distance to be ineligible")
	}
}

func TestScore_UnknownDistanceIsWarningNotBlocking(t *testing.T) {
	shift := baseShift()
	shift.Latitude, shift.Longitude = nil, nil
	cfg := baseConfig()
	ctx := baseCaregiver(uuid.New())

	cand := Score(shift, ctx, cfg, time.Now())
	if !cand.IsEligible {
		t.Fatalf("unknown distance must not block eligibility: %+v", cand.EligibilityIssues)
	}
	if cand.Scores[domain.DimensionProximity] != 60 {
		t.Fatalf("expected neutral proximity score 60, got %d", cand.Scores[domain.DimensionProximity])
	}
}

func TestScore_OverallScoreMatchesWeightedAverage(t *testing.T) {
	shift := baseShift()
	cfg := baseConfig()
	ctx := baseCaregiver(uuid.New())

	cand := Score(shift, ctx, cfg, time.Now())

	weights := cfg.NormalizedWeights()
	var total float64
	for dim, w := range weights {
		total += w * float64(cand.Scores[dim])
	}
	expected := int(total + 0.5)
	if diff := expected - cand.OverallScore; diff > 1 || diff < -1 {
		t.Fatalf("overall score %d does not match weighted aggregate %d", cand.OverallScore, expected)
	}
}

func TestScore_MatchQualityMonotoneInOverallScore(t *testing.T) {
	cases := []struct {
		score int
		want  domain.MatchQuality
	}{
		{100, domain.QualityExcellent},
		{85, domain.QualityExcellent},
		{84, domain.QualityGood},
		{70, domain.QualityGood},
		{69, domain.QualityFair},
		{55, domain.QualityFair},
		{54, domain.QualityPoor},
		{0, domain.QualityPoor},
	}
	for _, c := range cases {
		if got := domain.QualityForScore(c.score); got != c.want {
			t.Errorf("QualityForScore(%d) = %s, want %s", c.score, got, c.want)
		}
	}
}

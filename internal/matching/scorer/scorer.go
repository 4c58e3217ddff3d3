// Package scorer implements the pure rubric of spec §4.1: a single function
// from (OpenShift, CaregiverContext, MatchingConfiguration) to MatchCandidate.
// It has no side effects and performs no I/O; every input is pre-materialized
// by the candidateloader package.
package scorer

import (
	"math"
	"strconv"
	"time"

	"mcs-mcp/internal/matching/domain"
)

// Score produces a MatchCandidate for one (shift, caregiver) pair. now is the
// evaluation timestamp, injected so callers get deterministic ComputedAt
// values under clock injection (spec §8's "deterministic clock injection").
// The returned candidate is always fully populated, even when ineligible, so
// the caller can surface every gate failure (spec §4.1).
func Score(shift *domain.OpenShift, ctx *domain.CaregiverContext, cfg *domain.MatchingConfiguration, now time.Time) *domain.MatchCandidate {
	cand := &domain.MatchCandidate{
		CaregiverID:       ctx.CaregiverID,
		OpenShiftID:       shift.ID,
		DisplayName:       ctx.DisplayName,
		Scores:            make(map[domain.ScoringDimension]int, len(domain.AllDimensions)),
		EligibilityIssues: nil,
		Warnings:          nil,
		DistanceFromShift: ctx.DistanceFromShift,
		HasConflict:       ctx.HasConflict(shift.StartTime, shift.EndTime),
		AvailableHours:    ctx.AvailableHours(),
		ComputedAt:        now,
	}

	evaluateGates(shift, ctx, cfg, cand)

	cand.Scores[domain.DimensionSkill] = scoreSkill(shift, ctx)
	cand.Scores[domain.DimensionAvailability] = scoreAvailability(shift, ctx, cand.HasConflict)
	cand.Scores[domain.DimensionProximity] = scoreProximity(shift, ctx, cfg)
	cand.Scores[domain.DimensionPreference] = scorePreference(shift, ctx, cfg)
	cand.Scores[domain.DimensionExperience] = scoreExperience(ctx)
	cand.Scores[domain.DimensionReliability] = scoreReliability(ctx, cfg)
	cand.Scores[domain.DimensionCompliance] = scoreCompliance(ctx)
	cand.Scores[domain.DimensionCapacity] = scoreCapacity(shift, ctx)

	cand.OverallScore = aggregate(cand.Scores, cfg)
	cand.MatchQuality = domain.QualityForScore(cand.OverallScore)
	cand.IsEligible = !cand.HasBlockingIssue()
	cand.EstimatedTravelTime = estimatedTravelTime(cand.DistanceFromShift)
	cand.MatchReasons = buildMatchReasons(cand.Scores, cfg)

	return cand
}

// evaluateGates runs the eligibility gates of spec §4.1 in order, appending
// one EligibilityIssue per failing gate. All gates run regardless of whether
// an earlier one already blocked the candidate — the spec requires the full
// issue list, not a short-circuited one.
func evaluateGates(shift *domain.OpenShift, ctx *domain.CaregiverContext, cfg *domain.MatchingConfiguration, cand *domain.MatchCandidate) {
	add := func(t domain.EligibilityIssueType, sev domain.IssueSeverity, msg string) {
		cand.EligibilityIssues = append(cand.EligibilityIssues, domain.EligibilityIssue{Type: t, Severity: sev, Message: msg})
	}

	// 1. Blocked by client.
	if shift.IsBlocked(ctx.CaregiverID) {
		add(domain.IssueBlockedByClient, domain.SeverityBlocking, "caregiver is blocked for this client")
	}

	// 2. Active certifications.
	if cfg.RequireActiveCertifications {
		for req := range shift.RequiredCertifications {
			if !ctx.HasCertification(req, domain.CertificationActive) {
				add(domain.IssueMissingCertification, domain.SeverityBlocking, "missing active certification: "+req)
			}
		}
	}

	// 3. Skills.
	missingSkills := missingSkills(shift, ctx)
	if len(missingSkills) > 0 {
		if cfg.RequireExactSkillMatch {
			for _, s := range missingSkills {
				add(domain.IssueMissingSkill, domain.SeverityBlocking, "missing required skill: "+s)
			}
		} else {
			for _, s := range missingSkills {
				add(domain.IssueMissingSkill, domain.SeverityWarning, "missing required skill: "+s)
			}
		}
	}

	// 4. Scheduling conflicts.
	if cand.HasConflict {
		add(domain.IssueTimeConflict, domain.SeverityBlocking, "caregiver has a conflicting visit")
	}

	// 5. Capacity.
	if ctx.CurrentWeekHours+shift.DurationHours() > ctx.MaxHoursPerWeek {
		add(domain.IssueOverCapacity, domain.SeverityBlocking, "shift would exceed weekly hour maximum")
	}

	// 6. Compliance.
	if ctx.Compliance != domain.ComplianceCompliant {
		add(domain.IssueNonCompliant, domain.SeverityBlocking, "caregiver is not in compliant standing")
	}

	// 7. Gender / language preferences: warnings only.
	if cfg.RespectGenderPreference && shift.GenderPreference != domain.GenderPreferenceNone && shift.GenderPreference != ctx.Gender {
		add(domain.IssueGenderMismatch, domain.SeverityWarning, "caregiver gender does not match client preference")
	}
	if cfg.RespectLanguagePreference && shift.LanguagePreference != "" && !ctx.Languages[shift.LanguagePreference] {
		add(domain.IssueLanguageMismatch, domain.SeverityWarning, "caregiver does not speak preferred language")
	}

	// 8. Travel distance.
	if ctx.Latitude != nil && ctx.Longitude != nil && shift.HasCoordinates() {
		if ctx.DistanceFromShift > cfg.EffectiveMaxTravelDistance() {
			add(domain.IssueTooFar, domain.SeverityBlocking, "caregiver exceeds maximum travel distance")
		}
	} else {
		add(domain.IssueDistanceUnknown, domain.SeverityWarning, "distance to shift could not be determined")
	}
}

func missingSkills(shift *domain.OpenShift, ctx *domain.CaregiverContext) []string {
	var missing []string
	for s := range shift.RequiredSkills {
		if !ctx.Skills[s] {
			missing = append(missing, s)
		}
	}
	return missing
}

func scoreSkill(shift *domain.OpenShift, ctx *domain.CaregiverContext) int {
	total := len(shift.RequiredSkills)
	if total == 0 {
		return 100
	}
	matched := 0
	for s := range shift.RequiredSkills {
		if ctx.Skills[s] {
			matched++
		}
	}
	return clampScore(roundTo(float64(matched) / float64(total) * 100))
}

func scoreAvailability(shift *domain.OpenShift, ctx *domain.CaregiverContext, hasConflict bool) int {
	if hasConflict {
		return 0
	}
	need := shift.DurationHours()
	have := ctx.AvailableHours()
	if need <= 0 {
		return 100
	}
	if have >= need {
		return 100
	}
	return clampScore(roundTo(have / need * 100))
}

// scoreProximity decays linearly from 100 at 0 miles to 0 at the effective
// max travel distance (or the package default when unset). Unknown distance
// (either side missing coordinates) scores a neutral 60.
func scoreProximity(shift *domain.OpenShift, ctx *domain.CaregiverContext, cfg *domain.MatchingConfiguration) int {
	if ctx.Latitude == nil || ctx.Longitude == nil || !shift.HasCoordinates() {
		return 60
	}
	maxDist := cfg.EffectiveMaxTravelDistance()
	if maxDist <= 0 {
		maxDist = domain.DefaultMaxTravelDistanceMiles
	}
	if ctx.DistanceFromShift <= 0 {
		return 100
	}
	if ctx.DistanceFromShift >= maxDist {
		return 0
	}
	return clampScore(roundTo((1 - ctx.DistanceFromShift/maxDist) * 100))
}

func scorePreference(shift *domain.OpenShift, ctx *domain.CaregiverContext, cfg *domain.MatchingConfiguration) int {
	score := 0.0
	if shift.IsPreferred(ctx.CaregiverID) {
		score = 100
	}
	if cfg.RespectGenderPreference && shift.GenderPreference != domain.GenderPreferenceNone {
		if shift.GenderPreference == ctx.Gender {
			score += 20
		} else {
			score -= 30
		}
	}
	if cfg.RespectLanguagePreference && shift.LanguagePreference != "" {
		if ctx.Languages[shift.LanguagePreference] {
			score += 20
		} else {
			score -= 30
		}
	}
	return clampScore(roundTo(score))
}

// scoreExperience saturates at 100 after 10 prior visits with this client,
// starting from a 50-point floor for any prior history, plus a bonus when a
// client rating is on record.
func scoreExperience(ctx *domain.CaregiverContext) int {
	base := 0.0
	if ctx.PreviousVisitsWithClient > 0 {
		base = 50 + 50*math.Min(float64(ctx.PreviousVisitsWithClient)/10.0, 1.0)
	}
	if ctx.ClientRating != nil {
		// Rating is on a 1-5 scale; convert to a 0-100 bonus component and
		// blend it in at 30% weight, capped to the [0,100] scale.
		ratingBonus := (*ctx.ClientRating - 1) / 4 * 100
		base = base*0.7 + ratingBonus*0.3
	}
	return clampScore(roundTo(base))
}

func scoreReliability(ctx *domain.CaregiverContext, cfg *domain.MatchingConfiguration) int {
	score := ctx.ReliabilityScore
	if cfg.PenalizeFrequentRejections {
		score -= 5 * float64(ctx.RecentRejectionCount)
	}
	if cfg.BoostReliablePerformers && ctx.ReliabilityScore >= 90 {
		score += 5
	}
	return clampScore(roundTo(score))
}

func scoreCompliance(ctx *domain.CaregiverContext) int {
	if ctx.Compliance == domain.ComplianceCompliant {
		return 100
	}
	return 0
}

func scoreCapacity(shift *domain.OpenShift, ctx *domain.CaregiverContext) int {
	if ctx.MaxHoursPerWeek <= 0 {
		return 0
	}
	remaining := ctx.MaxHoursPerWeek - ctx.CurrentWeekHours - shift.DurationHours()
	pct := remaining / ctx.MaxHoursPerWeek * 100
	if pct < 0 {
		return 0
	}
	return clampScore(roundTo(pct))
}

// aggregate computes the weighted overall score from normalized weights
// (spec §4.1, §8 invariant 4).
func aggregate(scores map[domain.ScoringDimension]int, cfg *domain.MatchingConfiguration) int {
	weights := cfg.NormalizedWeights()
	total := 0.0
	for dim, w := range weights {
		total += w * float64(scores[dim])
	}
	return clampScore(roundTo(total))
}

// buildMatchReasons surfaces the three highest-scoring dimensions as
// POSITIVE reasons and any dimension below 50 as NEGATIVE, each tagged with
// its normalized weight (spec §4.1), in a deterministic order.
func buildMatchReasons(scores map[domain.ScoringDimension]int, cfg *domain.MatchingConfiguration) []domain.MatchReason {
	weights := cfg.NormalizedWeights()

	ranked := make([]domain.ScoringDimension, len(domain.AllDimensions))
	copy(ranked, domain.AllDimensions)
	sortDimensionsByScoreDesc(ranked, scores)

	reasons := make([]domain.MatchReason, 0, len(domain.AllDimensions))
	top := map[domain.ScoringDimension]bool{}
	for i := 0; i < 3 && i < len(ranked); i++ {
		d := ranked[i]
		top[d] = true
		reasons = append(reasons, domain.MatchReason{
			Category:    d,
			Description: reasonDescription(d, scores[d], true),
			Impact:      domain.ImpactPositive,
			Weight:      weights[d],
		})
	}

	for _, d := range domain.AllDimensions {
		if top[d] {
			continue
		}
		if scores[d] < 50 {
			reasons = append(reasons, domain.MatchReason{
				Category:    d,
				Description: reasonDescription(d, scores[d], false),
				Impact:      domain.ImpactNegative,
				Weight:      weights[d],
			})
		}
	}
	return reasons
}

func sortDimensionsByScoreDesc(dims []domain.ScoringDimension, scores map[domain.ScoringDimension]int) {
	for i := 1; i < len(dims); i++ {
		for j := i; j > 0 && scores[dims[j]] > scores[dims[j-1]]; j-- {
			dims[j], dims[j-1] = dims[j-1], dims[j]
		}
	}
}

func reasonDescription(dim domain.ScoringDimension, score int, positive bool) string {
	qualifier := "strong"
	if !positive {
		qualifier = "weak"
	}
	return string(dim) + " is " + qualifier + " (" + strconv.Itoa(score) + "/100)"
}

func estimatedTravelTime(miles float64) time.Duration {
	if miles <= 0 {
		return 0
	}
	// Assume a 30 mph average local-visit travel speed; a coarse estimate
	// pending a real routing integration.
	hours := miles / 30.0
	return time.Duration(hours * float64(time.Hour))
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func roundTo(v float64) int {
	return int(math.Round(v))
}

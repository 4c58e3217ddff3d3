package domain

// ScoringDimension names one axis of the Scorer's rubric (spec §4.1).
type ScoringDimension string

const (
	DimensionSkill        ScoringDimension = "skill"
	DimensionAvailability ScoringDimension = "availability"
	DimensionProximity    ScoringDimension = "proximity"
	DimensionPreference   ScoringDimension = "preference"
	DimensionExperience   ScoringDimension = "experience"
	DimensionReliability  ScoringDimension = "reliability"
	DimensionCompliance   ScoringDimension = "compliance"
	DimensionCapacity     ScoringDimension = "capacity"
)

// AllDimensions is the fixed rubric; a weights map missing an entry is
// treated as weight 0 for that dimension.
var AllDimensions = []ScoringDimension{
	DimensionSkill, DimensionAvailability, DimensionProximity, DimensionPreference,
	DimensionExperience, DimensionReliability, DimensionCompliance, DimensionCapacity,
}

// OptimizeFor is the configured matching strategy. It is stored with the
// configuration; neither the Scorer nor the Matcher reads it, so every value
// produces the same weighted score and ranking.
type OptimizeFor string

const (
	OptimizeBestMatch        OptimizeFor = "BEST_MATCH"
	OptimizeFastestFill      OptimizeFor = "FASTEST_FILL"
	OptimizeBalancedWorkload OptimizeFor = "BALANCED_WORKLOAD"
	OptimizeContinuityOfCare OptimizeFor = "CONTINUITY_OF_CARE"
)

// Default numeric policy values (spec §2, §6 env vars), used whenever a
// MatchingConfiguration leaves the corresponding field at its zero value.
const (
	DefaultMinScoreForProposal    = 50
	DefaultMaxProposalsPerShift   = 5
	DefaultProposalExpirationMins = 120
	DefaultMaxTravelDistanceMiles = 50.0
)

// MatchingConfiguration is the per-(organization, optional branch) matching
// policy (spec §3). A nil BranchID means an org-level configuration; a
// branch-specific configuration shadows it.
type MatchingConfiguration struct {
	ID             ConfigurationID
	OrganizationID OrganizationID
	BranchID       *BranchID

	Weights map[ScoringDimension]int

	RequireExactSkillMatch      bool
	RequireActiveCertifications bool
	RespectGenderPreference     bool
	RespectLanguagePreference   bool
	MaxTravelDistanceMiles      float64 // 0 means "use DefaultMaxTravelDistanceMiles"
	MaxTravelTimeMinutes        int     // stored only; the Scorer does not apply a travel-time gate

	MinScoreForProposal       int // 0 means "use DefaultMinScoreForProposal"
	AutoAssignThreshold       *int
	MaxProposalsPerShift      int // 0 means "use DefaultMaxProposalsPerShift"
	ProposalExpirationMinutes int // 0 means "use DefaultProposalExpirationMins"

	OptimizeFor                     OptimizeFor
	PrioritizeContinuityOfCare      bool
	PreferSameCaregiverForRecurring bool
	PenalizeFrequentRejections      bool
	BoostReliablePerformers         bool

	// ScoreManualProposals is an implementation-level escape hatch for the
	// open question in spec §9: when true, createManualProposal re-runs the
	// Scorer for audit purposes instead of recording a flat overallScore=100.
	// Default false preserves the literal spec §4.4 behavior.
	ScoreManualProposals bool

	// MLBlendWeight is the weight w of a hybridScore = (1-w)*rule + w*ml blend
	// (spec §9). This module has no ML scorer and the Matcher does not read
	// this field: overallScore is always the rule-based score.
	MLBlendWeight float64

	IsDefault bool
	IsActive  bool

	Audit AuditMeta
}

// EffectiveMaxTravelDistance returns the configured distance gate, falling
// back to the package default when unset.
func (c *MatchingConfiguration) EffectiveMaxTravelDistance() float64 {
	if c.MaxTravelDistanceMiles > 0 {
		return c.MaxTravelDistanceMiles
	}
	return DefaultMaxTravelDistanceMiles
}

// EffectiveMinScore returns the configured proposal threshold, falling back
// to the package default when unset.
func (c *MatchingConfiguration) EffectiveMinScore() int {
	if c.MinScoreForProposal > 0 {
		return c.MinScoreForProposal
	}
	return DefaultMinScoreForProposal
}

// EffectiveMaxProposals returns the configured cap, falling back to the
// package default when unset.
func (c *MatchingConfiguration) EffectiveMaxProposals() int {
	if c.MaxProposalsPerShift > 0 {
		return c.MaxProposalsPerShift
	}
	return DefaultMaxProposalsPerShift
}

// EffectiveExpirationMinutes returns the configured proposal TTL, falling
// back to the package default when unset.
func (c *MatchingConfiguration) EffectiveExpirationMinutes() int {
	if c.ProposalExpirationMinutes > 0 {
		return c.ProposalExpirationMinutes
	}
	return DefaultProposalExpirationMins
}

// NormalizedWeights returns the configured weights scaled to sum to 1. A
// dimension absent from Weights (or with the whole map empty) contributes 0.
// If every weight is 0, each dimension gets an equal share so the Scorer
// never divides by zero.
func (c *MatchingConfiguration) NormalizedWeights() map[ScoringDimension]float64 {
	total := 0
	for _, d := range AllDimensions {
		if w, ok := c.Weights[d]; ok && w > 0 {
			total += w
		}
	}

	out := make(map[ScoringDimension]float64, len(AllDimensions))
	if total == 0 {
		share := 1.0 / float64(len(AllDimensions))
		for _, d := range AllDimensions {
			out[d] = share
		}
		return out
	}

	for _, d := range AllDimensions {
		w := c.Weights[d]
		out[d] = float64(w) / float64(total)
	}
	return out
}

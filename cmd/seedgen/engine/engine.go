// Package engine generates deterministic caregiver/client/visit/open-shift
// fixtures and a matching history of proposal outcomes, adapted from the
// teacher's cmd/mockgen/engine (same GeneratorConfig-driven scenario/count
// shape producing synthetic Jira issue events) but shaped to the matching
// domain instead of an issue-tracker workflow.
package engine

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"mcs-mcp/internal/matching/dataport"
	"mcs-mcp/internal/matching/domain"
)

// GeneratorConfig parameterizes fixture generation the way the teacher's
// GeneratorConfig parameterized scenario/distribution/count.
type GeneratorConfig struct {
	// Scenario biases caregiver reliability/rejection rates: "calm" (few
	// rejections, high reliability), "chaos" (frequent rejections, patchy
	// reliability), or "balanced" (default).
	Scenario       string
	CaregiverCount int
	ShiftCount     int
	OrganizationID domain.OrganizationID
	BranchID       domain.BranchID
	Now            time.Time
	Seed           int64
}

// Result is the generated fixture set, ready to seed a dataport.MemoryPort
// and a store.MemoryStore.
type Result struct {
	Caregivers []dataport.Caregiver
	Visits     []dataport.Visit
	OpenShifts []domain.OpenShift
	History    []domain.MatchHistory

	ReliabilitySamples []dataport.ReliabilitySample
	Rejections         []dataport.RejectionEvent
}

var skillPool = []string{"mobility_assist", "medication_management", "wound_care", "dementia_care", "meal_prep"}
var certNames = []string{"CPR", "CNA", "HHA"}
var languages = []string{"en", "es"}

// Generate produces a deterministic Result for cfg, using a seeded rand.Rand
// so the same cfg always yields the same fixture (spec §8's "deterministic
// clock injection" extended to deterministic fixture generation for tests
// and local development).
func Generate(cfg GeneratorConfig) Result {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now().UTC()
	}
	if cfg.CaregiverCount <= 0 {
		cfg.CaregiverCount = 20
	}
	if cfg.ShiftCount <= 0 {
		cfg.ShiftCount = 50
	}
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	result := Result{}

	caregiverIDs := make([]domain.CaregiverID, 0, cfg.CaregiverCount)
	for i := 0; i < cfg.CaregiverCount; i++ {
		id := deterministicID(rng)
		caregiverIDs = append(caregiverIDs, id)

		skills := map[string]bool{}
		for _, sk := range skillPool {
			if rng.Float64() < 0.4 {
				skills[sk] = true
			}
		}
		langs := map[string]bool{"en": true}
		if rng.Float64() < 0.3 {
			langs[languages[1]] = true
		}

		lat := 39.0 + rng.Float64()
		lon := -84.0 - rng.Float64()

		result.Caregivers = append(result.Caregivers, dataport.Caregiver{
			ID:              id,
			DisplayName:     fmt.Sprintf("Caregiver %d", i+1),
			EmploymentType:  employmentTypeFor(rng),
			BranchID:        cfg.BranchID,
			Active:          rng.Float64() > 0.05,
			Skills:          skills,
			Certifications:  certificationsFor(rng),
			MaxHoursPerWeek: 20 + rng.Float64()*20,
			Latitude:        &lat,
			Longitude:       &lon,
			Gender:          genderFor(rng),
			Languages:       langs,
			Compliance:      complianceFor(cfg.Scenario, rng),
		})

		reliabilityBase := reliabilityBaseFor(cfg.Scenario)
		for w := 0; w < 6; w++ {
			result.ReliabilitySamples = append(result.ReliabilitySamples, dataport.ReliabilitySample{
				CaregiverID: id,
				At:          cfg.Now.AddDate(0, 0, -w*15),
				Score:       clamp(reliabilityBase+rng.NormFloat64()*8, 0, 100),
			})
		}
		if rejectionRateFor(cfg.Scenario) > rng.Float64() {
			result.Rejections = append(result.Rejections, dataport.RejectionEvent{
				CaregiverID: id,
				At:          cfg.Now.AddDate(0, 0, -rng.Intn(25)),
			})
		}
	}

	for i := 0; i < cfg.ShiftCount; i++ {
		visitID := deterministicID(rng)
		clientID := deterministicID(rng)
		shiftID := deterministicID(rng)

		scheduled := cfg.Now.AddDate(0, 0, rng.Intn(14))
		start := time.Date(scheduled.Year(), scheduled.Month(), scheduled.Day(), 8+rng.Intn(8), 0, 0, 0, time.UTC)
		durationMinutes := 60 * (1 + rng.Intn(4))
		end := start.Add(time.Duration(durationMinutes) * time.Minute)

		result.Visits = append(result.Visits, dataport.Visit{
			ID:             visitID,
			OrganizationID: cfg.OrganizationID,
			BranchID:       cfg.BranchID,
			ClientID:       clientID,
			Status:         "UNASSIGNED",
		})

		requiredSkills := map[string]bool{}
		if rng.Float64() < 0.5 {
			requiredSkills[skillPool[rng.Intn(len(skillPool))]] = true
		}

		result.OpenShifts = append(result.OpenShifts, domain.OpenShift{
			ID:              shiftID,
			VisitID:         visitID,
			OrganizationID:  cfg.OrganizationID,
			BranchID:        cfg.BranchID,
			ClientID:        clientID,
			ScheduledDate:   scheduled,
			StartTime:       start,
			EndTime:         end,
			DurationMinutes: durationMinutes,
			Timezone:        "America/New_York",
			RequiredSkills:  requiredSkills,
			MatchingStatus:  domain.StatusNew,
			Priority:        priorityFor(rng),
			Audit: domain.AuditMeta{
				CreatedAt: cfg.Now,
				UpdatedAt: cfg.Now,
				Version:   1,
			},
		})

		if len(caregiverIDs) > 0 && rng.Float64() < 0.6 {
			outcome := domain.OutcomeAccepted
			if rng.Float64() < 0.3 {
				outcome = domain.OutcomeRejected
			} else if rng.Float64() < 0.15 {
				outcome = domain.OutcomeExpired
			}
			result.History = append(result.History, domain.MatchHistory{
				ID:                  deterministicID(rng),
				OpenShiftID:         shiftID,
				CaregiverID:         ptr(caregiverIDs[rng.Intn(len(caregiverIDs))]),
				OrganizationID:      cfg.OrganizationID,
				Outcome:             outcome,
				MatchScore:          40 + rng.Intn(60),
				AttemptNumber:       1,
				ResponseTimeMinutes: 5 + rng.Float64()*180,
				RecordedAt:          cfg.Now.Add(-time.Duration(rng.Intn(72)) * time.Hour),
			})
		}
	}

	return result
}

func deterministicID(rng *rand.Rand) uuid.UUID {
	var id uuid.UUID
	for i := range id {
		id[i] = byte(rng.Intn(256))
	}
	id[6] = (id[6] & 0x0f) | 0x40
	id[8] = (id[8] & 0x3f) | 0x80
	return id
}

func employmentTypeFor(rng *rand.Rand) domain.EmploymentType {
	switch rng.Intn(3) {
	case 0:
		return domain.EmploymentFullTime
	case 1:
		return domain.EmploymentPartTime
	default:
		return domain.EmploymentPRN
	}
}

func genderFor(rng *rand.Rand) domain.GenderPreference {
	switch rng.Intn(3) {
	case 0:
		return domain.GenderPreferenceMale
	case 1:
		return domain.GenderPreferenceFemale
	default:
		return domain.GenderPreferenceNone
	}
}

func certificationsFor(rng *rand.Rand) []domain.Certification {
	out := make([]domain.Certification, 0, len(certNames))
	for _, name := range certNames {
		status := domain.CertificationActive
		if rng.Float64() < 0.1 {
			status = domain.CertificationExpired
		}
		out = append(out, domain.Certification{Name: name, Status: status})
	}
	return out
}

func complianceFor(scenario string, rng *rand.Rand) domain.ComplianceStatus {
	nonCompliantRate := 0.05
	if scenario == "chaos" {
		nonCompliantRate = 0.2
	}
	if rng.Float64() < nonCompliantRate {
		return domain.ComplianceNonCompliant
	}
	return domain.ComplianceCompliant
}

func priorityFor(rng *rand.Rand) domain.Priority {
	switch {
	case rng.Float64() < 0.1:
		return domain.PriorityUrgent
	case rng.Float64() < 0.3:
		return domain.PriorityHigh
	case rng.Float64() < 0.6:
		return domain.PriorityNormal
	default:
		return domain.PriorityLow
	}
}

func reliabilityBaseFor(scenario string) float64 {
	switch scenario {
	case "chaos":
		return 55
	case "calm":
		return 92
	default:
		return 78
	}
}

func rejectionRateFor(scenario string) float64 {
	switch scenario {
	case "chaos":
		return 0.5
	case "calm":
		return 0.05
	default:
		return 0.2
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func ptr[T any](v T) *T { return &v }

// Package candidateloader gathers every active caregiver for a shift's
// branch and batch-loads their per-shift evaluation contexts (spec §4.2).
// It never issues a per-caregiver round trip: every lookup is a single
// batched DataPort call across the whole candidate set.
package candidateloader

import (
	"context"

	"golang.org/x/sync/errgroup"

	"mcs-mcp/internal/matching/dataport"
	"mcs-mcp/internal/matching/domain"
	"mcs-mcp/internal/matching/merrors"
)

// Loader assembles CaregiverContext values for one open shift.
type Loader struct {
	Port dataport.DataPort
}

// New returns a Loader backed by port.
func New(port dataport.DataPort) *Loader {
	return &Loader{Port: port}
}

// Load returns one CaregiverContext per active, non-blocked caregiver in
// shift.BranchID. Failure semantics follow spec §4.2: if any batch query
// fails, the whole load fails and no partial data is returned.
func (l *Loader) Load(ctx context.Context, shift *domain.OpenShift) ([]domain.CaregiverContext, error) {
	caregivers, err := l.Port.ActiveCaregiversInBranch(ctx, shift.BranchID)
	if err != nil {
		return nil, merrors.NewDataPortError("ActiveCaregiversInBranch", err)
	}

	eligible := caregivers[:0:0]
	for _, c := range caregivers {
		if !shift.IsBlocked(c.ID) {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	ids := make([]domain.CaregiverID, len(eligible))
	for i, c := range eligible {
		ids[i] = c.ID
	}

	now := domain.Now()
	day := shift.ScheduledDate

	// The six batch lookups are independent DataPort round trips; fan them
	// out concurrently instead of paying their latency serially. The first
	// failure cancels the group and is returned (spec §4.2: "if any batch
	// query fails, the whole load fails").
	var (
		weeklyHours map[domain.CaregiverID]float64
		conflicts   map[domain.CaregiverID][]domain.TimeInterval
		history     map[domain.CaregiverID]dataport.ClientHistory
		reliability map[domain.CaregiverID]float64
		rejections  map[domain.CaregiverID]int
		distances   map[domain.CaregiverID]float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		weeklyHours, err = l.Port.BatchWeeklyHours(gctx, ids, shift.ScheduledDate)
		if err != nil {
			return merrors.NewDataPortError("BatchWeeklyHours", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		conflicts, err = l.Port.BatchConflicts(gctx, ids, day)
		if err != nil {
			return merrors.NewDataPortError("BatchConflicts", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		history, err = l.Port.BatchClientHistory(gctx, ids, shift.ClientID)
		if err != nil {
			return merrors.NewDataPortError("BatchClientHistory", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		reliability, err = l.Port.BatchReliability(gctx, ids, now)
		if err != nil {
			return merrors.NewDataPortError("BatchReliability", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rejections, err = l.Port.BatchRecentRejections(gctx, ids, now)
		if err != nil {
			return merrors.NewDataPortError("BatchRecentRejections", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		distances, _, err = l.Port.BatchDistances(gctx, ids, shift.Latitude, shift.Longitude)
		if err != nil {
			return merrors.NewDataPortError("BatchDistances", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	contexts := make([]domain.CaregiverContext, 0, len(eligible))
	for _, c := range eligible {
		h := history[c.ID]
		contexts = append(contexts, domain.CaregiverContext{
			CaregiverID:              c.ID,
			DisplayName:              c.DisplayName,
			EmploymentType:           c.EmploymentType,
			Skills:                   c.Skills,
			Certifications:           c.Certifications,
			PrimaryBranch:            c.BranchID,
			MaxHoursPerWeek:          c.MaxHoursPerWeek,
			Latitude:                 c.Latitude,
			Longitude:                c.Longitude,
			Gender:                   c.Gender,
			Languages:                c.Languages,
			Compliance:               c.Compliance,
			CurrentWeekHours:         weeklyHours[c.ID],
			ConflictingVisits:        conflicts[c.ID],
			PreviousVisitsWithClient: h.PreviousVisits,
			ClientRating:             h.AverageRating,
			ReliabilityScore:         reliability[c.ID],
			RecentRejectionCount:     rejections[c.ID],
			DistanceFromShift:        distances[c.ID],
		})
	}
	return contexts, nil
}

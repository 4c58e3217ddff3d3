package dataport

import (
	"context"
	"sync"
	"time"

	"mcs-mcp/internal/matching/domain"
)

// RejectionEvent is one caregiver-declined-a-proposal event, retained for
// the trailing 30-day rejection count.
type RejectionEvent struct {
	CaregiverID domain.CaregiverID
	At          time.Time
}

// ReliabilitySample is one trailing-90-day reliability observation (e.g. an
// on-time/no-show outcome, already reduced to a [0,100] score by whatever
// upstream process produced it).
type ReliabilitySample struct {
	CaregiverID domain.CaregiverID
	At          time.Time
	Score       float64
}

// MemoryPort is an in-memory DataPort fake, grounded on the teacher's
// mutex-guarded map stores (internal/eventlog.EventStore,
// internal/jira.dcClient's cache map): every method takes the same RWMutex,
// and batch lookups are reductions over a handful of append-only event
// slices, mirroring the trailing-window math in internal/stats.
type MemoryPort struct {
	mu sync.RWMutex

	visits     map[domain.VisitID]*Visit
	caregivers map[domain.CaregiverID]Caregiver

	weeklyHours map[domain.CaregiverID]float64
	conflicts   map[domain.CaregiverID][]domain.TimeInterval
	history     map[domain.CaregiverID]map[domain.ClientID]ClientHistory

	reliabilitySamples []ReliabilitySample
	rejections         []RejectionEvent
}

// NewMemoryPort returns an empty in-memory DataPort fake.
func NewMemoryPort() *MemoryPort {
	return &MemoryPort{
		visits:      make(map[domain.VisitID]*Visit),
		caregivers:  make(map[domain.CaregiverID]Caregiver),
		weeklyHours: make(map[domain.CaregiverID]float64),
		conflicts:   make(map[domain.CaregiverID][]domain.TimeInterval),
		history:     make(map[domain.CaregiverID]map[domain.ClientID]ClientHistory),
	}
}

// --- seeding helpers (used by tests and cmd/seedgen) ---

func (m *MemoryPort) SeedVisit(v Visit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := v
	m.visits[v.ID] = &cp
}

func (m *MemoryPort) SeedCaregiver(c Caregiver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caregivers[c.ID] = c
}

func (m *MemoryPort) SeedWeeklyHours(id domain.CaregiverID, hours float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weeklyHours[id] = hours
}

func (m *MemoryPort) SeedConflict(id domain.CaregiverID, iv domain.TimeInterval) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts[id] = append(m.conflicts[id], iv)
}

func (m *MemoryPort) SeedClientHistory(caregiverID domain.CaregiverID, clientID domain.ClientID, h ClientHistory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byClient, ok := m.history[caregiverID]
	if !ok {
		byClient = make(map[domain.ClientID]ClientHistory)
		m.history[caregiverID] = byClient
	}
	byClient[clientID] = h
}

func (m *MemoryPort) SeedReliabilitySample(s ReliabilitySample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reliabilitySamples = append(m.reliabilitySamples, s)
}

func (m *MemoryPort) RecordRejection(id domain.CaregiverID, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections = append(m.rejections, RejectionEvent{CaregiverID: id, At: at})
}

// --- DataPort implementation ---

func (m *MemoryPort) GetVisit(_ context.Context, id domain.VisitID) (*Visit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.visits[id]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (m *MemoryPort) AssignVisit(_ context.Context, id domain.VisitID, caregiverID domain.CaregiverID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.visits[id]
	if !ok {
		return nil
	}
	cg := caregiverID
	v.AssignedCaregiverID = &cg
	v.Status = VisitScheduled
	return nil
}

func (m *MemoryPort) ActiveCaregiversInBranch(_ context.Context, branchID domain.BranchID) ([]Caregiver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Caregiver
	for _, c := range m.caregivers {
		if c.Active && c.BranchID == branchID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemoryPort) BatchWeeklyHours(_ context.Context, caregiverIDs []domain.CaregiverID, _ time.Time) (map[domain.CaregiverID]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[domain.CaregiverID]float64, len(caregiverIDs))
	for _, id := range caregiverIDs {
		out[id] = m.weeklyHours[id]
	}
	return out, nil
}

func (m *MemoryPort) BatchConflicts(_ context.Context, caregiverIDs []domain.CaregiverID, _ time.Time) (map[domain.CaregiverID][]domain.TimeInterval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[domain.CaregiverID][]domain.TimeInterval, len(caregiverIDs))
	for _, id := range caregiverIDs {
		out[id] = append([]domain.TimeInterval(nil), m.conflicts[id]...)
	}
	return out, nil
}

func (m *MemoryPort) BatchClientHistory(_ context.Context, caregiverIDs []domain.CaregiverID, clientID domain.ClientID) (map[domain.CaregiverID]ClientHistory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[domain.CaregiverID]ClientHistory, len(caregiverIDs))
	for _, id := range caregiverIDs {
		out[id] = m.history[id][clientID]
	}
	return out, nil
}

// BatchReliability reduces the trailing-90-day reliability samples per
// caregiver into an average score, the same "bucket events into a trailing
// window and reduce" shape as internal/stats.CalculateStatusAging in the
// teacher.
func (m *MemoryPort) BatchReliability(_ context.Context, caregiverIDs []domain.CaregiverID, asOf time.Time) (map[domain.CaregiverID]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := asOf.AddDate(0, 0, -90)

	sums := make(map[domain.CaregiverID]float64)
	counts := make(map[domain.CaregiverID]int)
	for _, s := range m.reliabilitySamples {
		if s.At.Before(cutoff) || s.At.After(asOf) {
			continue
		}
		sums[s.CaregiverID] += s.Score
		counts[s.CaregiverID]++
	}

	out := make(map[domain.CaregiverID]float64, len(caregiverIDs))
	for _, id := range caregiverIDs {
		if counts[id] == 0 {
			out[id] = 75 // neutral default for a caregiver with no trailing sample
			continue
		}
		out[id] = sums[id] / float64(counts[id])
	}
	return out, nil
}

// BatchRecentRejections reduces the trailing-30-day rejection events per
// caregiver into a count.
func (m *MemoryPort) BatchRecentRejections(_ context.Context, caregiverIDs []domain.CaregiverID, asOf time.Time) (map[domain.CaregiverID]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := asOf.AddDate(0, 0, -30)

	counts := make(map[domain.CaregiverID]int)
	for _, r := range m.rejections {
		if r.At.Before(cutoff) || r.At.After(asOf) {
			continue
		}
		counts[r.CaregiverID]++
	}

	out := make(map[domain.CaregiverID]int, len(caregiverIDs))
	for _, id := range caregiverIDs {
		out[id] = counts[id]
	}
	return out, nil
}

func (m *MemoryPort) BatchDistances(_ context.Context, caregiverIDs []domain.CaregiverID, lat, lon *float64) (map[domain.CaregiverID]float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[domain.CaregiverID]float64, len(caregiverIDs))
	if lat == nil || lon == nil {
		for _, id := range caregiverIDs {
			out[id] = 0
		}
		return out, false, nil
	}
	for _, id := range caregiverIDs {
		c := m.caregivers[id]
		if c.Latitude == nil || c.Longitude == nil {
			out[id] = 0
			continue
		}
		out[id] = euclideanMiles(*lat, *lon, *c.Latitude, *c.Longitude)
	}
	return out, true, nil
}

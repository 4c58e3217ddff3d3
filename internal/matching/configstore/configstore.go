// Package configstore resolves the active MatchingConfiguration for an
// (organization, branch) pair (spec §2's ConfigStore).
package configstore

import (
	"context"
	"sync"

	"mcs-mcp/internal/matching/domain"
)

// ConfigStore resolves matching configuration; DefaultFor lets a
// branch-specific default shadow the org-level one (spec §3). MemoryStore's
// Put does not check the "at most one (isDefault=true, isActive=true) per
// (org, branch)" rule: when several qualify, DefaultFor returns the first
// stored branch match, else the last stored org-level match.
type ConfigStore interface {
	Get(ctx context.Context, id domain.ConfigurationID) (*domain.MatchingConfiguration, error)
	DefaultFor(ctx context.Context, orgID domain.OrganizationID, branchID domain.BranchID) (*domain.MatchingConfiguration, error)
	Put(ctx context.Context, cfg *domain.MatchingConfiguration) error
}

// MemoryStore is an in-memory ConfigStore fake.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[domain.ConfigurationID]*domain.MatchingConfiguration
	byOrg map[domain.OrganizationID][]*domain.MatchingConfiguration
}

// NewMemoryStore returns an empty in-memory ConfigStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[domain.ConfigurationID]*domain.MatchingConfiguration),
		byOrg: make(map[domain.OrganizationID][]*domain.MatchingConfiguration),
	}
}

func (s *MemoryStore) Get(_ context.Context, id domain.ConfigurationID) (*domain.MatchingConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.byID[id]
	if !ok || cfg.Audit.IsDeleted() {
		return nil, nil
	}
	cp := *cfg
	return &cp, nil
}

// DefaultFor resolves the default active configuration, preferring a
// branch-specific configuration over an org-level one (spec §3: "branch
// specific shadows org-level").
func (s *MemoryStore) DefaultFor(_ context.Context, orgID domain.OrganizationID, branchID domain.BranchID) (*domain.MatchingConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var orgLevel *domain.MatchingConfiguration
	for _, cfg := range s.byOrg[orgID] {
		if cfg.Audit.IsDeleted() || !cfg.IsActive || !cfg.IsDefault {
			continue
		}
		if cfg.BranchID != nil && *cfg.BranchID == branchID {
			cp := *cfg
			return &cp, nil
		}
		if cfg.BranchID == nil {
			orgLevel = cfg
		}
	}
	if orgLevel == nil {
		return nil, nil
	}
	cp := *orgLevel
	return &cp, nil
}

func (s *MemoryStore) Put(_ context.Context, cfg *domain.MatchingConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cfg
	s.byID[cfg.ID] = &cp
	s.byOrg[cfg.OrganizationID] = append(s.byOrg[cfg.OrganizationID], &cp)
	return nil
}

package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"actiongate/internal/policy/models"
	id "actiongate/pkg/domain"
	"actiongate/pkg/platform/sentinel"
)

type codeTable struct {
	companies  []string
	currencies []string
}

// InMemory holds profiles, rules and code tables. It backs development runs
// (seeded from YAML) and tests.
type InMemory struct {
	mu       sync.RWMutex
	profiles map[id.TenantID]map[id.ProfileID]models.Profile
	rules    map[id.ProfileID][]models.Rule
	codes    map[id.TenantID]codeTable
}

func NewInMemory() *InMemory {
	return &InMemory{
		profiles: make(map[id.TenantID]map[id.ProfileID]models.Profile),
		rules:    make(map[id.ProfileID][]models.Rule),
		codes:    make(map[id.TenantID]codeTable),
	}
}

// PutProfile inserts or replaces a profile. Marking it default clears the
// flag on the tenant's other profiles.
func (s *InMemory) PutProfile(_ context.Context, p models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.profiles[p.TenantID]
	if !ok {
		byID = make(map[id.ProfileID]models.Profile)
		s.profiles[p.TenantID] = byID
	}
	if p.IsDefault {
		for pid, existing := range byID {
			if existing.IsDefault && pid != p.ID {
				existing.IsDefault = false
				byID[pid] = existing
			}
		}
	}
	byID[p.ID] = cloneProfile(p)
	return nil
}

// PutRule inserts or replaces a rule by id.
func (s *InMemory) PutRule(_ context.Context, r models.Rule) error {
	r.Condition = r.Condition.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	rules := s.rules[r.ProfileID]
	for i := range rules {
		if rules[i].ID == r.ID {
			rules[i] = r
			return nil
		}
	}
	s.rules[r.ProfileID] = append(rules, r)
	return nil
}

// SetCodeTable replaces the tenant's active company codes and currencies.
func (s *InMemory) SetCodeTable(_ context.Context, tenantID id.TenantID, companies, currencies []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[tenantID] = codeTable{
		companies:  slices.Clone(companies),
		currencies: slices.Clone(currencies),
	}
	return nil
}

func (s *InMemory) DefaultProfile(_ context.Context, tenantID id.TenantID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles[tenantID] {
		if p.IsDefault {
			out := cloneProfile(p)
			return &out, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) Profile(_ context.Context, tenantID id.TenantID, profileID id.ProfileID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[tenantID][profileID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := cloneProfile(p)
	return &out, nil
}

// ListRules returns the profile's rules ordered by priority (highest first).
func (s *InMemory) ListRules(_ context.Context, tenantID id.TenantID, profileID id.ProfileID) ([]models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Rule
	for _, r := range s.rules[profileID] {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	sortRules(out)
	return out, nil
}

func (s *InMemory) ActiveCompanyCodes(_ context.Context, tenantID id.TenantID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.codes[tenantID].companies), nil
}

func (s *InMemory) ActiveCurrencies(_ context.Context, tenantID id.TenantID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.codes[tenantID].currencies), nil
}

func cloneProfile(p models.Profile) models.Profile {
	p.CompanyCodes = slices.Clone(p.CompanyCodes)
	p.Currencies = slices.Clone(p.Currencies)
	return p
}

func sortRules(rules []models.Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})
}

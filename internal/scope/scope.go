// Package scope resolves which company codes and currencies a tenant's
// policy profile permits.
package scope

import (
	"slices"
	"sort"

	id "actiongate/pkg/domain"
	"actiongate/pkg/platform/codes"
)

// Scope is the resolved, immutable permission set of one profile.
// An open dimension admits every active code of the tenant.
type Scope struct {
	ProfileID      id.ProfileID
	CompanyCodes   []string
	Currencies     []string
	OpenCompanies  bool
	OpenCurrencies bool

	companies  map[string]struct{}
	currencies map[string]struct{}
}

// New builds a scope from the resolved sets.
func New(profileID id.ProfileID, companies, currencies []string, openCompanies, openCurrencies bool) *Scope {
	s := &Scope{
		ProfileID:      profileID,
		CompanyCodes:   sortedUnique(codes.Normalize(companies)),
		Currencies:     sortedUnique(codes.Normalize(currencies)),
		OpenCompanies:  openCompanies,
		OpenCurrencies: openCurrencies,
	}
	s.companies = toSet(s.CompanyCodes)
	s.currencies = toSet(s.Currencies)
	return s
}

// AllowsCompany treats an empty code as not applicable.
func (s *Scope) AllowsCompany(code string) bool {
	code = codes.Code(code)
	if code == "" {
		return true
	}
	_, ok := s.companies[code]
	return ok
}

// AllowsCurrency treats an empty currency as not applicable.
func (s *Scope) AllowsCurrency(currency string) bool {
	currency = codes.Code(currency)
	if currency == "" {
		return true
	}
	_, ok := s.currencies[currency]
	return ok
}

// Contains reports whether both values pass.
func (s *Scope) Contains(companyCode, currency string) bool {
	return s.AllowsCompany(companyCode) && s.AllowsCurrency(currency)
}

func sortedUnique(values []string) []string {
	out := slices.Clone(values)
	sort.Strings(out)
	return slices.Compact(out)
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

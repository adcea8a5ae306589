package main

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	casemodels "actiongate/internal/cases/models"
	"actiongate/internal/policy/models"
	id "actiongate/pkg/domain"
	"actiongate/pkg/platform/codes"
)

// seedFile is the bootstrap document for a fresh deployment: tenants with
// their code tables, profiles with rules, and optionally demo cases.
type seedFile struct {
	Tenants []seedTenant `yaml:"tenants"`
}

type seedTenant struct {
	ID           id.TenantID       `yaml:"id"`
	CompanyCodes []string          `yaml:"company_codes"`
	Currencies   []string          `yaml:"currencies"`
	Profiles     []seedProfile     `yaml:"profiles"`
	Cases        []casemodels.Case `yaml:"cases"`
}

type seedProfile struct {
	models.Profile `yaml:",inline"`
	Rules          []models.Rule `yaml:"rules"`
}

type policyWriter interface {
	PutProfile(ctx context.Context, p models.Profile) error
	PutRule(ctx context.Context, r models.Rule) error
	SetCodeTable(ctx context.Context, tenantID id.TenantID, companies, currencies []string) error
}

type caseWriter interface {
	Put(ctx context.Context, c casemodels.Case) error
}

func loadSeed(path string) (*seedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var doc seedFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &doc, nil
}

// applySeed writes the document. Writes are upserts, so re-running the same
// seed on restart is harmless.
func applySeed(ctx context.Context, doc *seedFile, policies policyWriter, cases caseWriter) error {
	for _, t := range doc.Tenants {
		if t.ID.IsNil() {
			return fmt.Errorf("seed tenant without id")
		}
		if err := policies.SetCodeTable(ctx, t.ID, codes.Normalize(t.CompanyCodes), codes.Normalize(t.Currencies)); err != nil {
			return fmt.Errorf("tenant %s: code table: %w", t.ID, err)
		}
		for _, p := range t.Profiles {
			profile := p.Profile
			profile.TenantID = t.ID
			profile.CompanyCodes = codes.Normalize(profile.CompanyCodes)
			profile.Currencies = codes.Normalize(profile.Currencies)
			if err := policies.PutProfile(ctx, profile); err != nil {
				return fmt.Errorf("tenant %s: profile %s: %w", t.ID, profile.Name, err)
			}
			for _, r := range p.Rules {
				r.TenantID = t.ID
				r.ProfileID = profile.ID
				if err := r.Validate(); err != nil {
					return fmt.Errorf("tenant %s: %w", t.ID, err)
				}
				if err := policies.PutRule(ctx, r); err != nil {
					return fmt.Errorf("tenant %s: rule %s: %w", t.ID, r.Name, err)
				}
			}
		}
		for _, c := range t.Cases {
			c.TenantID = t.ID
			if err := cases.Put(ctx, c); err != nil {
				return fmt.Errorf("tenant %s: case %s: %w", t.ID, c.ID, err)
			}
		}
	}
	return nil
}

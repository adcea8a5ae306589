package scope

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"actiongate/internal/policy/models"
	id "actiongate/pkg/domain"
	dErrors "actiongate/pkg/domain-errors"
	"actiongate/pkg/platform/cache"
	"actiongate/pkg/platform/sentinel"
)

// ProfileStore loads policy profiles.
type ProfileStore interface {
	DefaultProfile(ctx context.Context, tenantID id.TenantID) (*models.Profile, error)
	Profile(ctx context.Context, tenantID id.TenantID, profileID id.ProfileID) (*models.Profile, error)
}

// CodeTable lists a tenant's active codes, used for open dimensions.
type CodeTable interface {
	ActiveCompanyCodes(ctx context.Context, tenantID id.TenantID) ([]string, error)
	ActiveCurrencies(ctx context.Context, tenantID id.TenantID) ([]string, error)
}

const (
	defaultCacheTTL  = 5 * time.Minute
	defaultCacheSize = 4096
	defaultKeySuffix = "default"
)

// Resolver resolves and caches scopes per tenant+profile.
type Resolver struct {
	profiles ProfileStore
	codes    CodeTable
	logger   *slog.Logger
	metrics  *Metrics
	ttl      time.Duration
	size     int
	now      func() time.Time

	cache *cache.TTL[*Scope]
	group singleflight.Group
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithCacheTTL sets how long a resolved scope is reused. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Resolver) { r.ttl = ttl }
}

func WithCacheSize(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.size = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

func NewResolver(profiles ProfileStore, codes CodeTable, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		profiles: profiles,
		codes:    codes,
		logger:   slog.Default(),
		ttl:      defaultCacheTTL,
		size:     defaultCacheSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	c, err := cache.NewTTL[*Scope](r.size, r.ttl, r.now)
	if err != nil {
		return nil, err
	}
	r.cache = c
	return r, nil
}

// Resolve returns the scope of profileID, or of the tenant's default profile
// when profileID is nil.
func (r *Resolver) Resolve(ctx context.Context, tenantID id.TenantID, profileID *id.ProfileID) (*Scope, error) {
	partition, key := tenantID.String(), profileKey(profileID)
	if s, ok := r.cache.Get(partition, key); ok {
		r.metrics.IncCacheHit()
		return s, nil
	}
	r.metrics.IncCacheMiss()

	v, err, _ := r.group.Do(partition+":"+key, func() (any, error) {
		gen := r.cache.Generation(partition)
		s, err := r.load(ctx, tenantID, profileID)
		if err != nil {
			return nil, err
		}
		r.cache.Add(partition, gen, key, s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Scope), nil
}

// IsInScope reports whether companyCode and currency are permitted. Empty
// values are not applicable and pass.
func (r *Resolver) IsInScope(ctx context.Context, tenantID id.TenantID, profileID *id.ProfileID, companyCode, currency string) (bool, error) {
	if companyCode == "" && currency == "" {
		return true, nil
	}
	s, err := r.Resolve(ctx, tenantID, profileID)
	if err != nil {
		return false, err
	}
	return s.Contains(companyCode, currency), nil
}

// Invalidate drops cached scopes. A specific profile also drops the tenant's
// default entry since that profile may be the default.
func (r *Resolver) Invalidate(tenantID id.TenantID, profileID *id.ProfileID) {
	partition := tenantID.String()
	if profileID == nil {
		r.cache.InvalidatePartition(partition)
		return
	}
	r.cache.Remove(partition, profileKey(profileID))
	r.cache.Remove(partition, profileKey(nil))
}

func (r *Resolver) load(ctx context.Context, tenantID id.TenantID, profileID *id.ProfileID) (*Scope, error) {
	start := time.Now()
	defer func() { r.metrics.ObserveLoad(time.Since(start)) }()

	profile, err := r.loadProfile(ctx, tenantID, profileID)
	if err != nil {
		return nil, err
	}

	companies := profile.CompanyCodes
	currencies := profile.Currencies
	openCompanies := len(companies) == 0
	openCurrencies := len(currencies) == 0

	if openCompanies || openCurrencies {
		g, gctx := errgroup.WithContext(ctx)
		if openCompanies {
			g.Go(func() error {
				codes, err := r.codes.ActiveCompanyCodes(gctx, tenantID)
				companies = codes
				return err
			})
		}
		if openCurrencies {
			g.Go(func() error {
				codes, err := r.codes.ActiveCurrencies(gctx, tenantID)
				currencies = codes
				return err
			})
		}
		if err := g.Wait(); err != nil {
			r.logger.ErrorContext(ctx, "failed to load code tables",
				"tenant_id", tenantID.String(),
				"error", err,
			)
			return nil, dErrors.Wrap(err, dErrors.CodeExternalDependency, "scope store unavailable")
		}
	}

	return New(profile.ID, companies, currencies, openCompanies, openCurrencies), nil
}

func (r *Resolver) loadProfile(ctx context.Context, tenantID id.TenantID, profileID *id.ProfileID) (*models.Profile, error) {
	var (
		profile *models.Profile
		err     error
	)
	if profileID != nil {
		profile, err = r.profiles.Profile(ctx, tenantID, *profileID)
	} else {
		profile, err = r.profiles.DefaultProfile(ctx, tenantID)
	}
	switch {
	case err == nil:
		return profile, nil
	case errors.Is(err, sentinel.ErrNotFound) && profileID == nil:
		return nil, dErrors.New(dErrors.CodeNotFound, "tenant has no default policy profile")
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.New(dErrors.CodeNotFound, "policy profile not found")
	default:
		r.logger.ErrorContext(ctx, "failed to load policy profile",
			"tenant_id", tenantID.String(),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeExternalDependency, "policy store unavailable")
	}
}

func profileKey(profileID *id.ProfileID) string {
	if profileID == nil {
		return defaultKeySuffix
	}
	return profileID.String()
}

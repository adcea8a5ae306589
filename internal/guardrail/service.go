package guardrail

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"actiongate/internal/policy/models"
	"actiongate/internal/scope"
	id "actiongate/pkg/domain"
	dErrors "actiongate/pkg/domain-errors"
	"actiongate/pkg/money"
	"actiongate/pkg/platform/cache"
)

// ScopeResolver resolves the permission set of a profile.
type ScopeResolver interface {
	Resolve(ctx context.Context, tenantID id.TenantID, profileID *id.ProfileID) (*scope.Scope, error)
}

// RuleStore lists the rules of a profile.
type RuleStore interface {
	ListRules(ctx context.Context, tenantID id.TenantID, profileID id.ProfileID) ([]models.Rule, error)
}

// Input is one evaluation request. Tenant and profile are explicit; nothing
// is read from ambient request state.
type Input struct {
	TenantID    id.TenantID
	ProfileID   *id.ProfileID
	CaseType    string
	ActionType  string
	Amount      money.Amount
	Currency    string
	CompanyCode string
}

const (
	defaultRuleCacheTTL  = time.Minute
	defaultRuleCacheSize = 4096
)

var tracer = otel.Tracer("actiongate/guardrail")

// Service evaluates actions against a single snapshot of scope and rules.
type Service struct {
	scopes     ScopeResolver
	rules      RuleStore
	logger     *slog.Logger
	metrics    *Metrics
	failClosed bool
	cacheTTL   time.Duration
	cache      *cache.TTL[[]models.Rule]
	group      singleflight.Group
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithFailClosed makes unconfigured case/action pairs require approval
// instead of passing.
func WithFailClosed(failClosed bool) Option {
	return func(s *Service) { s.failClosed = failClosed }
}

// WithRuleCacheTTL sets how long a rule snapshot is reused. Zero disables it.
func WithRuleCacheTTL(ttl time.Duration) Option {
	return func(s *Service) { s.cacheTTL = ttl }
}

func NewService(scopes ScopeResolver, rules RuleStore, opts ...Option) (*Service, error) {
	s := &Service{
		scopes:   scopes,
		rules:    rules,
		logger:   slog.Default(),
		cacheTTL: defaultRuleCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	c, err := cache.NewTTL[[]models.Rule](defaultRuleCacheSize, s.cacheTTL, nil)
	if err != nil {
		return nil, err
	}
	s.cache = c
	return s, nil
}

// Evaluate resolves scope, short-circuits out-of-scope values, and runs the
// matching rules of the same profile. Store failures surface as
// CodeExternalDependency; nothing is cached from a failed load.
func (s *Service) Evaluate(ctx context.Context, in Input) (*Result, error) {
	ctx, span := tracer.Start(ctx, "guardrail.Evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", in.TenantID.String()),
		attribute.String("action.type", in.ActionType),
		attribute.String("case.type", in.CaseType),
	)

	start := time.Now()
	defer func() { s.metrics.ObserveEvaluateLatency(time.Since(start)) }()

	sc, err := s.scopes.Resolve(ctx, in.TenantID, in.ProfileID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scope resolution failed")
		return nil, err
	}

	if !sc.Contains(in.CompanyCode, in.Currency) {
		result := OutOfScopeResult(sc.ProfileID)
		s.metrics.IncrementVerdict(result.Verdict, true)
		s.logger.WarnContext(ctx, "action out of scope",
			"tenant_id", in.TenantID.String(),
			"profile_id", sc.ProfileID.String(),
			"company_code", in.CompanyCode,
			"currency", in.Currency,
			"action_type", in.ActionType,
		)
		span.SetAttributes(attribute.String("guardrail.verdict", string(result.Verdict)))
		return &result, nil
	}

	rules, err := s.snapshot(ctx, in.TenantID, sc.ProfileID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rule load failed")
		return nil, err
	}

	result := Evaluate(rules, in.CaseType, in.ActionType, Facts{
		Amount:      in.Amount,
		Currency:    in.Currency,
		CompanyCode: in.CompanyCode,
	}, s.failClosed)
	result.ProfileID = sc.ProfileID

	if result.NoRulesConfigured {
		s.metrics.IncrementUnconfigured(s.failClosed)
		s.logger.WarnContext(ctx, "no guardrail rules configured for action",
			"tenant_id", in.TenantID.String(),
			"profile_id", sc.ProfileID.String(),
			"case_type", in.CaseType,
			"action_type", in.ActionType,
			"fail_closed", s.failClosed,
			"verdict", result.Verdict,
		)
	}
	s.metrics.IncrementVerdict(result.Verdict, false)
	span.SetAttributes(
		attribute.String("guardrail.verdict", string(result.Verdict)),
		attribute.Int("guardrail.rules_evaluated", result.RulesEvaluated),
	)
	return &result, nil
}

// Invalidate drops cached rule snapshots for a tenant or one profile.
func (s *Service) Invalidate(tenantID id.TenantID, profileID *id.ProfileID) {
	if profileID == nil {
		s.cache.InvalidatePartition(tenantID.String())
		return
	}
	s.cache.Remove(tenantID.String(), profileID.String())
}

// snapshot returns an immutable rule list for the profile.
func (s *Service) snapshot(ctx context.Context, tenantID id.TenantID, profileID id.ProfileID) ([]models.Rule, error) {
	partition, key := tenantID.String(), profileID.String()
	if rules, ok := s.cache.Get(partition, key); ok {
		return rules, nil
	}

	v, err, _ := s.group.Do(partition+":"+key, func() (any, error) {
		gen := s.cache.Generation(partition)
		rules, err := s.rules.ListRules(ctx, tenantID, profileID)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to load guardrail rules",
				"tenant_id", tenantID.String(),
				"profile_id", profileID.String(),
				"error", err,
			)
			return nil, dErrors.Wrap(err, dErrors.CodeExternalDependency, "guardrail rule store unavailable")
		}
		rules = slices.Clone(rules)
		s.cache.Add(partition, gen, key, rules)
		return rules, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Rule), nil
}

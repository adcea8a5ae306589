package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	actionhandler "actiongate/internal/action/handler"
	actionmetrics "actiongate/internal/action/metrics"
	actionservice "actiongate/internal/action/service"
	actionstore "actiongate/internal/action/store"
	"actiongate/internal/approval/adapters"
	approvalhandler "actiongate/internal/approval/handler"
	approvalservice "actiongate/internal/approval/service"
	approvalstore "actiongate/internal/approval/store"
	audithandler "actiongate/internal/audit"
	casestore "actiongate/internal/cases/store"
	"actiongate/internal/guardrail"
	httpapi "actiongate/internal/http"
	jwttoken "actiongate/internal/jwt_token"
	"actiongate/internal/outbox/consumer"
	outboxhandler "actiongate/internal/outbox/handler"
	"actiongate/internal/outbox/relay"
	outboxservice "actiongate/internal/outbox/service"
	outboxstore "actiongate/internal/outbox/store"
	"actiongate/internal/platform/bus"
	"actiongate/internal/platform/config"
	"actiongate/internal/platform/httpserver"
	"actiongate/internal/platform/logger"
	"actiongate/internal/platform/metrics"
	platformredis "actiongate/internal/platform/redis"
	"actiongate/internal/policy"
	policystore "actiongate/internal/policy/store"
	"actiongate/internal/scope"
	"actiongate/migrations"
	audit "actiongate/pkg/platform/audit"
	"actiongate/pkg/platform/audit/publisher"
	auditmemory "actiongate/pkg/platform/audit/store/memory"
	auditpostgres "actiongate/pkg/platform/audit/store/postgres"
	"actiongate/pkg/platform/tx"
)

const auditBufferSize = 1024

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New("actiongate", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("actiongate stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("actiongate stopped")
}

// infra holds the optional backing services.
type infra struct {
	db    *sql.DB
	pool  *pgxpool.Pool
	redis *platformredis.Client
}

func openInfra(ctx context.Context, cfg config.Config) (*infra, error) {
	in := &infra{}
	if cfg.Database.URL != "" {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		in.db = db
		if cfg.Database.AutoMigrate {
			if err := migrations.Apply(ctx, db); err != nil {
				in.close()
				return nil, err
			}
		}

		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			in.close()
			return nil, fmt.Errorf("open pgx pool: %w", err)
		}
		in.pool = pool
	}
	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		in.close()
		return nil, err
	}
	in.redis = rc
	return in, nil
}

func (in *infra) close() {
	if in.pool != nil {
		in.pool.Close()
	}
	if in.db != nil {
		_ = in.db.Close()
	}
	if in.redis != nil {
		_ = in.redis.Close()
	}
}

func (in *infra) healthChecks() map[string]httpapi.HealthCheck {
	checks := map[string]httpapi.HealthCheck{}
	if in.db != nil {
		checks["postgres"] = in.db.PingContext
	}
	if in.redis != nil {
		checks["redis"] = in.redis.Health
	}
	return checks
}

// stores groups the persistence ports chosen for this process.
type stores struct {
	policies interface {
		scope.ProfileStore
		scope.CodeTable
		guardrail.RuleStore
		policyWriter
	}
	cases interface {
		actionservice.CaseStore
		caseWriter
	}
	actions   actionservice.Store
	outbox    outboxservice.Store
	claimer   relay.Claimer
	approvals approvalservice.Store
	audit     audit.Store
	runner    tx.Runner
}

func buildStores(cfg config.Config, in *infra) (*stores, error) {
	var s stores
	if in.db != nil {
		outbox := outboxstore.NewPostgres(in.db)
		s = stores{
			policies: policystore.NewPostgres(in.db),
			cases:    casestore.NewPostgres(in.db),
			actions:  actionstore.NewPostgres(in.db),
			outbox:   outbox,
			claimer:  outboxstore.NewPgxClaimer(in.pool),
			audit:    auditpostgres.New(in.db),
			runner:   tx.NewSQLRunner(in.db),
		}
	} else {
		outbox := outboxstore.NewInMemory()
		s = stores{
			policies: policystore.NewInMemory(),
			cases:    casestore.NewInMemory(),
			actions:  actionstore.NewInMemory(),
			outbox:   outbox,
			claimer:  outbox,
			audit:    auditmemory.NewInMemoryStore(),
			runner:   actionservice.NewShardedTx(),
		}
	}

	switch cfg.Approval.StoreDriver {
	case "redis":
		if in.redis == nil {
			return nil, errors.New("redis approval store selected but redis is not configured")
		}
		s.approvals = approvalstore.NewRedis(in.redis.Client, approvalstore.WithRetention(cfg.Approval.Retention))
	case "postgres":
		if in.db == nil {
			return nil, errors.New("postgres approval store selected but no database is configured")
		}
		s.approvals = approvalstore.NewPostgres(in.db)
	default:
		s.approvals = approvalstore.NewInMemory()
	}
	return &s, nil
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	in, err := openInfra(ctx, cfg)
	if err != nil {
		return err
	}
	defer in.close()

	st, err := buildStores(cfg, in)
	if err != nil {
		return err
	}

	if cfg.PolicySeedFile != "" {
		doc, err := loadSeed(cfg.PolicySeedFile)
		if err != nil {
			return err
		}
		if err := applySeed(ctx, doc, st.policies, st.cases); err != nil {
			return fmt.Errorf("apply policy seed: %w", err)
		}
		log.Info("policy seed applied", "file", cfg.PolicySeedFile, "tenants", len(doc.Tenants))
	}

	buses, err := openBuses(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer buses.close()

	auditor := publisher.NewPublisher(st.audit,
		publisher.WithLogger(log),
		publisher.WithMetrics(publisher.NewMetrics()),
		publisher.WithAsyncBuffer(auditBufferSize),
	)
	defer auditor.Close()

	resolver, err := scope.NewResolver(st.policies, st.policies,
		scope.WithLogger(log),
		scope.WithMetrics(scope.NewMetrics()),
		scope.WithCacheTTL(cfg.Guardrail.ScopeTTL),
		scope.WithCacheSize(cfg.Guardrail.ScopeSize),
	)
	if err != nil {
		return fmt.Errorf("build scope resolver: %w", err)
	}
	guard, err := guardrail.NewService(resolver, st.policies,
		guardrail.WithLogger(log),
		guardrail.WithMetrics(guardrail.NewMetrics()),
		guardrail.WithFailClosed(cfg.Guardrail.FailClosed),
		guardrail.WithRuleCacheTTL(cfg.Guardrail.RuleCacheTTL),
	)
	if err != nil {
		return fmt.Errorf("build guardrail: %w", err)
	}
	invalidation := policy.NewInvalidationHandler(log, resolver, guard)

	outboxSvc := outboxservice.New(st.outbox, auditor,
		outboxservice.WithLogger(log),
		outboxservice.WithMetrics(outboxservice.NewMetrics()),
		outboxservice.WithRetryPolicy(cfg.Relay.MaxRetries, cfg.Relay.BackoffInitial, cfg.Relay.BackoffMax),
	)

	gate := adapters.NewActionGate()
	actions := actionservice.New(st.actions, st.cases, guard, gate, outboxSvc, auditor,
		actionservice.WithLogger(log),
		actionservice.WithMetrics(actionmetrics.New()),
		actionservice.WithTx(st.runner),
		actionservice.WithTargetSystem(cfg.Relay.TargetSystem),
	)
	approvals := approvalservice.New(st.approvals, actions, auditor,
		approvalservice.WithLogger(log),
		approvalservice.WithMetrics(approvalservice.NewMetrics()),
		approvalservice.WithTTL(cfg.Approval.TTL),
	)
	gate.Bind(approvals)

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	router := httpapi.NewRouter(httpapi.Deps{
		Logger:        log,
		Metrics:       metrics.New(),
		Validator:     jwttoken.NewJWTServiceAdapter(jwtService),
		InternalToken: cfg.Server.InternalToken,
		Public: []httpapi.Registrar{
			actionhandler.New(actions, log),
			approvalhandler.New(approvals, log),
			audithandler.New(auditor, log),
		},
		Internal: []httpapi.Registrar{
			outboxhandler.New(outboxSvc, log),
			policy.NewChangeHandler(invalidation, buses.shared, log),
		},
		HealthChecks: in.healthChecks(),
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	results := bus.NewRouter(log, nil)
	results.Register(bus.TopicIntegrationResults, consumer.NewResultHandler(outboxSvc, log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting actiongate", "addr", cfg.Server.Addr, "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return buses.shared.Subscribe(gctx, results.Topics(), results)
	})
	g.Go(func() error {
		return buses.broadcast.Subscribe(gctx, []string{bus.TopicPolicyChanged}, invalidation)
	})
	if cfg.Recovery.Interval > 0 {
		g.Go(func() error {
			return actions.RunRecovery(gctx, cfg.Recovery.Interval, cfg.Recovery.StaleAfter, cfg.Recovery.BatchSize)
		})
	}
	if cfg.Relay.Enabled {
		r := relay.New(st.claimer, outboxSvc, buses.shared, relay.Config{
			Interval:       cfg.Relay.Interval,
			BatchSize:      cfg.Relay.BatchSize,
			Lease:          cfg.Relay.Lease,
			RedeliverAfter: cfg.Relay.RedeliverAfter,
			Concurrency:    cfg.Relay.Concurrency,
		}, relay.WithLogger(log), relay.WithMetrics(relay.NewMetrics()))
		g.Go(func() error {
			return r.Run(gctx)
		})
	}

	return g.Wait()
}

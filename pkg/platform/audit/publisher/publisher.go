// Package publisher is the audit writer. Lifecycle events go through Log,
// which never fails the caller: writes that cannot reach the store are parked
// in a bounded retry buffer behind a circuit breaker. Scope denials go through
// LogScopeDenied, which writes synchronously so the caller learns about
// failures before answering the request.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
	"go.opentelemetry.io/otel/trace"

	id "actiongate/pkg/domain"
	dErrors "actiongate/pkg/domain-errors"
	audit "actiongate/pkg/platform/audit"
	"actiongate/pkg/platform/circuit"
	"actiongate/pkg/platform/tx"
	"actiongate/pkg/requestcontext"
)

const (
	defaultWriteTimeout     = 5 * time.Second
	defaultRetryCapacity    = 1000
	defaultRetryInterval    = 2 * time.Second
	defaultRetryBatchSize   = 100
	breakerFailureThreshold = 5
)

// Publisher writes audit events to a Store.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	breaker *circuit.Breaker
	retry   *retryBuffer

	writeTimeout  time.Duration
	retryInterval time.Duration
	retryCapacity int
	bufferSize    int

	mu        sync.RWMutex
	closed    bool
	inbox     chan audit.Event
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous writes with a queue of size n.
// Without it Log writes inline.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.bufferSize = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithBreaker replaces the default store circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		if b != nil {
			p.breaker = b
		}
	}
}

// WithRetryBuffer sets how many failed events are kept for retry and how
// often the buffer is flushed.
func WithRetryBuffer(capacity int, interval time.Duration) Option {
	return func(p *Publisher) {
		if capacity > 0 {
			p.retryCapacity = capacity
		}
		if interval > 0 {
			p.retryInterval = interval
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.writeTimeout = d
		}
	}
}

// NewPublisher creates an audit writer backed by store.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:         store,
		logger:        slog.Default(),
		writeTimeout:  defaultWriteTimeout,
		retryInterval: defaultRetryInterval,
		retryCapacity: defaultRetryCapacity,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.breaker == nil {
		p.breaker = circuit.New("audit_store", circuit.WithFailureThreshold(breakerFailureThreshold))
	}
	p.retry = newRetryBuffer(p.retryCapacity, p.onEvict)

	if p.bufferSize > 0 {
		p.inbox = make(chan audit.Event, p.bufferSize)
	}
	go p.run()
	return p
}

// Log records a lifecycle event. It never blocks on the store in async mode
// and never returns an error; failures are logged, counted and retried.
func (p *Publisher) Log(ctx context.Context, event audit.Event) {
	event = p.prepare(ctx, event)
	writeCtx := tx.Detach(context.WithoutCancel(ctx))

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.inbox == nil || p.closed {
		p.persistOrPark(writeCtx, event)
		return
	}

	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit queue full, parking event for retry",
			"event_type", event.Type,
			"resource_id", event.ResourceID,
		)
		p.park(event)
	}
}

// LogScopeDenied writes a SCOPE_DENIED event synchronously and reports
// persistence failures to the caller.
func (p *Publisher) LogScopeDenied(ctx context.Context, denial audit.ScopeDenial) error {
	event := p.prepare(ctx, denial.Event())

	writeCtx, cancel := context.WithTimeout(tx.Detach(context.WithoutCancel(ctx)), p.writeTimeout)
	defer cancel()

	if err := p.write(writeCtx, event); err != nil {
		p.logger.ErrorContext(ctx, "CRITICAL: scope denial audit write failed",
			"tenant_id", event.TenantID.String(),
			"resource_type", event.ResourceType,
			"resource_id", event.ResourceID,
			"actor_id", event.ActorID,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record scope denial")
	}
	return nil
}

// ListByResource returns the audit trail of a resource.
func (p *Publisher) ListByResource(ctx context.Context, tenantID id.TenantID, resourceType audit.ResourceType, resourceID string) ([]audit.Event, error) {
	events, err := p.store.ListByResource(ctx, tenantID, resourceType, resourceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events")
	}
	return events, nil
}

// Close stops accepting queued events, drains the queue and makes one last
// attempt at the retry buffer. Events still undelivered are logged.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		if p.inbox != nil {
			close(p.inbox)
		}
		p.mu.Unlock()
		close(p.stop)
		<-p.done
	})
}

func (p *Publisher) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-p.inbox:
			if !ok {
				p.finish()
				return
			}
			p.persistOrPark(context.Background(), event)
		case <-p.stop:
			p.finish()
			return
		case <-ticker.C:
			p.flushRetry(context.Background())
		}
	}
}

// finish drains whatever is still queued once Close has run.
func (p *Publisher) finish() {
	if p.inbox != nil {
		for event := range p.inbox {
			p.persistOrPark(context.Background(), event)
		}
	}
	p.flushRetry(context.Background())
	p.reportUndelivered()
}

func (p *Publisher) persistOrPark(ctx context.Context, event audit.Event) {
	if !p.breaker.Allow() {
		p.park(event)
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	if err := p.write(writeCtx, event); err != nil {
		p.logger.ErrorContext(ctx, "audit write failed, parking event for retry",
			"event_type", event.Type,
			"tenant_id", event.TenantID.String(),
			"resource_id", event.ResourceID,
			"error", err,
		)
		p.park(event)
	}
}

// write performs one store append and feeds the breaker.
func (p *Publisher) write(ctx context.Context, event audit.Event) error {
	start := time.Now()
	err := p.store.Append(ctx, event)
	if err != nil {
		p.metrics.incPersistFailures()
		if _, change := p.breaker.RecordFailure(); change.Opened {
			p.metrics.setBreakerOpen(true)
			p.logger.Warn("audit store circuit breaker opened")
		}
		return err
	}
	p.metrics.incPersisted(string(event.Category), time.Since(start).Seconds())
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.metrics.setBreakerOpen(false)
		p.logger.Info("audit store circuit breaker closed")
	}
	return nil
}

func (p *Publisher) park(event audit.Event) {
	p.retry.Enqueue(event)
	p.metrics.incSpilled()
	p.metrics.setRetryDepth(p.retry.Len())
}

func (p *Publisher) flushRetry(ctx context.Context) {
	for {
		if p.retry.Len() == 0 || !p.breaker.Allow() {
			return
		}
		batch := p.retry.DequeueBatch(defaultRetryBatchSize)
		for i, event := range batch {
			writeCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
			err := p.write(writeCtx, event)
			cancel()
			if err != nil {
				// put the unsent tail back in order and try again next tick
				for j := len(batch) - 1; j >= i; j-- {
					p.retry.PushFront(batch[j])
				}
				p.metrics.setRetryDepth(p.retry.Len())
				return
			}
		}
		p.metrics.setRetryDepth(p.retry.Len())
	}
}

func (p *Publisher) onEvict(event audit.Event) {
	p.metrics.incDropped()
	p.logEventLost("audit retry buffer full, event evicted", event)
}

func (p *Publisher) reportUndelivered() {
	for _, event := range p.retry.DequeueBatch(p.retry.Len()) {
		p.logEventLost("audit event not persisted at shutdown", event)
	}
	p.metrics.setRetryDepth(0)
}

// logEventLost writes the full event to the process log so it can be
// recovered from log storage.
func (p *Publisher) logEventLost(msg string, event audit.Event) {
	p.logger.Error(msg,
		"audit_id", event.ID.String(),
		"event_type", event.Type,
		"tenant_id", event.TenantID.String(),
		"resource_type", event.ResourceType,
		"resource_id", event.ResourceID,
		"actor_type", event.ActorType,
		"actor_id", event.ActorID,
		"outcome", event.Outcome,
		"created_at", event.CreatedAt,
		"request_id", event.RequestID,
		"evidence", event.Evidence,
	)
}

// prepare fills the fields the caller never supplies: identity of the
// record, timestamps, category and request correlation data.
func (p *Publisher) prepare(ctx context.Context, event audit.Event) audit.Event {
	if event.ID.IsNil() {
		event.ID = id.AuditID(uuid.New())
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = event.Type.Category()
	}
	if event.Severity == "" {
		event.Severity = severityFor(event)
	}
	if event.IP == "" {
		event.IP = requestcontext.ClientIP(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = requestcontext.UserAgent(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.GatewayRequestID == "" {
		event.GatewayRequestID = requestcontext.GatewayRequestID(ctx)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		if event.TraceID == "" {
			event.TraceID = sc.TraceID().String()
		}
		if event.SpanID == "" {
			event.SpanID = sc.SpanID().String()
		}
	}
	event.Tags = withUserAgentTags(event.Tags, event.UserAgent)
	return event
}

func severityFor(event audit.Event) audit.Severity {
	switch {
	case event.Outcome == audit.OutcomeFailed && event.Category == audit.CategoryCompliance:
		return audit.SeverityCritical
	case event.Outcome == audit.OutcomeDenied, event.Outcome == audit.OutcomeFailed:
		return audit.SeverityWarning
	default:
		return audit.SeverityInfo
	}
}

func withUserAgentTags(tags map[string]string, ua string) map[string]string {
	if ua == "" {
		return tags
	}
	parsed := useragent.New(ua)
	out := make(map[string]string, len(tags)+4)
	for k, v := range tags {
		out[k] = v
	}
	if name, version := parsed.Browser(); name != "" {
		out["client_name"] = name
		if version != "" {
			out["client_version"] = version
		}
	}
	if os := parsed.OS(); os != "" {
		out["client_os"] = os
	}
	if parsed.Bot() {
		out["client_bot"] = "true"
	}
	return out
}

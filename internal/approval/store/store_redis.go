package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"actiongate/internal/approval/models"
	id "actiongate/pkg/domain"
	"actiongate/pkg/platform/sentinel"
)

const (
	requestKeyPrefix = "approval:"

	// DefaultRetention is how long a request stays readable after it expires
	// or is decided.
	DefaultRetention = 30 * 24 * time.Hour
)

var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'data', ARGV[2], 'expires_ms', ARGV[3])
if tonumber(ARGV[4]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[4])
end
return 1
`)

// decideScript swaps status and data only while status is PENDING and the
// request has not expired. Replies:
//
//	{0, ""}   no such key
//	{1, data} decided by this call
//	{2, data} already decided, stored data returned
//	{3, ""}   pending but expired
var decideScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
	return {0, ''}
end
if status ~= 'PENDING' then
	return {2, redis.call('HGET', KEYS[1], 'data')}
end
local expires = tonumber(redis.call('HGET', KEYS[1], 'expires_ms') or '0')
if expires > 0 and tonumber(ARGV[3]) >= expires then
	return {3, ''}
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return {1, ARGV[2]}
`)

// RedisStore keeps each request in a hash holding the JSON record, its status
// and its expiry. Keys expire retention after the request expiry, or after
// the decision.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

type RedisOption func(*RedisStore)

func WithRetention(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.retention = d
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, retention: DefaultRetention}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func requestKey(tenantID id.TenantID, requestID id.ApprovalRequestID) string {
	return requestKeyPrefix + tenantID.String() + ":" + requestID.String()
}

func (s *RedisStore) Create(ctx context.Context, r *models.Request) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal approval request: %w", err)
	}
	key := requestKey(r.TenantID, r.ID)

	// requests without expiry keep no TTL until they are decided
	var expiresMs, ttlMs int64
	if r.ExpiresAt != nil {
		expiresMs = r.ExpiresAt.UnixMilli()
		ttlMs = (time.Until(*r.ExpiresAt) + s.retention).Milliseconds()
	}
	created, err := createScript.Run(ctx, s.client, []string{key},
		string(r.Status), data, expiresMs, ttlMs,
	).Int()
	if err != nil {
		return fmt.Errorf("create approval request: %w", err)
	}
	if created == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, tenantID id.TenantID, requestID id.ApprovalRequestID) (*models.Request, error) {
	data, err := s.client.HGet(ctx, requestKey(tenantID, requestID), "data").Result()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get approval request: %w", err)
	}
	return decodeRequest(data)
}

// CompareAndDecide reads the pending record, builds the decided one and lets
// the script swap it in only if the status is still PENDING.
func (s *RedisStore) CompareAndDecide(ctx context.Context, tenantID id.TenantID, requestID id.ApprovalRequestID, d models.Decision) (*models.Request, bool, error) {
	cur, err := s.Get(ctx, tenantID, requestID)
	if err != nil {
		return nil, false, err
	}
	if cur.Status.IsTerminal() {
		return cur, false, nil
	}
	next := cur.Clone()
	if err := next.Decide(d); err != nil {
		return nil, false, err
	}
	data, err := json.Marshal(next)
	if err != nil {
		return nil, false, fmt.Errorf("marshal approval request: %w", err)
	}

	reply, err := decideScript.Run(ctx, s.client, []string{requestKey(tenantID, requestID)},
		string(next.Status), data, d.DecidedAt.UnixMilli(), s.retention.Milliseconds(),
	).Slice()
	if err != nil {
		return nil, false, fmt.Errorf("decide approval request: %w", err)
	}
	if len(reply) != 2 {
		return nil, false, fmt.Errorf("decide approval request: unexpected reply %v", reply)
	}
	code, _ := reply[0].(int64)
	stored, _ := reply[1].(string)
	switch code {
	case 0:
		return nil, false, sentinel.ErrNotFound
	case 1:
		return next, true, nil
	case 2:
		r, err := decodeRequest(stored)
		return r, false, err
	case 3:
		return nil, false, sentinel.ErrExpired
	default:
		return nil, false, fmt.Errorf("decide approval request: unexpected code %d", code)
	}
}

func decodeRequest(data string) (*models.Request, error) {
	var r models.Request
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("decode approval request: %w", err)
	}
	return &r, nil
}

package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	id "actiongate/pkg/domain"
	dErrors "actiongate/pkg/domain-errors"
	"actiongate/pkg/platform/tx"
)

// numActionShards spreads in-memory transactions over independent locks so
// unrelated actions never wait on each other.
const numActionShards = 128

const defaultActionTxTimeout = 5 * time.Second

type txActionKey struct{}

// withActionKey routes the transaction on ctx to the shard of actionID.
func withActionKey(ctx context.Context, actionID id.ActionID) context.Context {
	return context.WithValue(ctx, txActionKey{}, actionID.String())
}

// shardedTx serializes in-memory transactions per action and undoes the
// journaled writes of a failed one.
type shardedTx struct {
	shards  [numActionShards]sync.Mutex
	timeout time.Duration
}

// NewShardedTx returns the transaction runner used with in-memory stores.
func NewShardedTx() tx.Runner {
	return &shardedTx{timeout: defaultActionTxTimeout}
}

func (t *shardedTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx.Active(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	shard := &t.shards[t.selectShard(ctx)]
	shard.Lock()
	if err := ctx.Err(); err != nil {
		shard.Unlock()
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	txCtx, journal := tx.WithJournal(ctx)
	err := fn(txCtx)
	if err != nil {
		journal.Rollback()
		shard.Unlock()
		return err
	}
	shard.Unlock()
	journal.Commit()
	return nil
}

func (t *shardedTx) selectShard(ctx context.Context) int {
	key, _ := ctx.Value(txActionKey{}).(string)
	if key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % numActionShards)
}

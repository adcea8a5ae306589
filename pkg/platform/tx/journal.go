package tx

import (
	"context"
	"sync"
)

// Runner executes fn inside one transactional boundary. The context passed
// to fn carries the transaction; stores pick it up with Exec or OnRollback.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type journalKey struct{}

// Journal tracks what must happen when a transaction ends: undo steps for
// in-memory stores on rollback, and side effects such as audit writes that
// may only run once the data is committed.
type Journal struct {
	mu      sync.Mutex
	undos   []func()
	commits []func()
}

// WithJournal returns a context carrying a fresh journal.
func WithJournal(ctx context.Context) (context.Context, *Journal) {
	j := &Journal{}
	return context.WithValue(ctx, journalKey{}, j), j
}

func journalFrom(ctx context.Context) (*Journal, bool) {
	j, ok := ctx.Value(journalKey{}).(*Journal)
	return j, ok && j != nil
}

// OnRollback registers undo on the journal bound to ctx. Outside a journal
// the write is already final and undo is discarded.
func OnRollback(ctx context.Context, undo func()) {
	j, ok := journalFrom(ctx)
	if !ok {
		return
	}
	j.mu.Lock()
	j.undos = append(j.undos, undo)
	j.mu.Unlock()
}

// AfterCommit defers fn until the transaction bound to ctx commits. Outside
// a transaction fn runs immediately. Rolled back transactions drop it.
func AfterCommit(ctx context.Context, fn func()) {
	j, ok := journalFrom(ctx)
	if !ok {
		fn()
		return
	}
	j.mu.Lock()
	j.commits = append(j.commits, fn)
	j.mu.Unlock()
}

// Rollback runs the registered undo steps newest first and forgets the
// deferred commit hooks.
func (j *Journal) Rollback() {
	j.mu.Lock()
	undos := j.undos
	j.undos, j.commits = nil, nil
	j.mu.Unlock()
	for i := len(undos) - 1; i >= 0; i-- {
		undos[i]()
	}
}

// Commit runs the deferred hooks in registration order.
func (j *Journal) Commit() {
	j.mu.Lock()
	commits := j.commits
	j.undos, j.commits = nil, nil
	j.mu.Unlock()
	for _, fn := range commits {
		fn()
	}
}

// Active reports whether ctx already runs inside a transaction, so runners
// can join it instead of opening a nested one.
func Active(ctx context.Context) bool {
	if _, ok := journalFrom(ctx); ok {
		return true
	}
	_, ok := From(ctx)
	return ok
}

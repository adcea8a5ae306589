package tx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJournal_RollbackRunsNewestFirst(t *testing.T) {
	ctx, j := WithJournal(context.Background())
	var order []int
	OnRollback(ctx, func() { order = append(order, 1) })
	OnRollback(ctx, func() { order = append(order, 2) })
	committed := false
	AfterCommit(ctx, func() { committed = true })

	j.Rollback()
	assert.Equal(t, []int{2, 1}, order)
	assert.False(t, committed)

	j.Rollback()
	j.Commit()
	assert.Equal(t, []int{2, 1}, order, "undo steps run once")
	assert.False(t, committed, "rollback drops commit hooks")
}

func TestJournal_CommitRunsHooksInOrder(t *testing.T) {
	ctx, j := WithJournal(context.Background())
	var order []string
	AfterCommit(ctx, func() { order = append(order, "first") })
	AfterCommit(ctx, func() { order = append(order, "second") })
	OnRollback(ctx, func() { order = append(order, "undo") })

	j.Commit()
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestOutsideJournal(t *testing.T) {
	undone := false
	OnRollback(context.Background(), func() { undone = true })
	assert.False(t, undone)

	ran := false
	AfterCommit(context.Background(), func() { ran = true })
	assert.True(t, ran, "hooks run immediately without a transaction")
}

func TestDetach(t *testing.T) {
	ctx, _ := WithJournal(context.Background())
	detached := Detach(ctx)

	ran := false
	AfterCommit(detached, func() { ran = true })
	assert.True(t, ran)

	_, ok := From(detached)
	assert.False(t, ok)
}

package tx

import (
	"context"
	"database/sql"
	"time"

	dErrors "actiongate/pkg/domain-errors"
)

const defaultSQLTxTimeout = 5 * time.Second

// SQLRunner runs transactions over *sql.Tx. Stores pick the transaction up
// from ctx through Exec; commit hooks (audit events) run only once the
// commit succeeds and undo steps run on any rollback.
type SQLRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db, timeout: defaultSQLTxTimeout}
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if Active(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeExternalDependency, "begin transaction")
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	txCtx, journal := WithJournal(WithTx(ctx, sqlTx))
	if err := fn(txCtx); err != nil {
		journal.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		journal.Rollback()
		return dErrors.Wrap(err, dErrors.CodeExternalDependency, "commit transaction")
	}
	journal.Commit()
	return nil
}

// Package sqlxrepos implements the repositories on postgres & sqlite.
// Queries are written with ? placeholders and rebound for the driver in use.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

type repository struct {
	db *sqlx.DB
}

func (repo repository) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return repo.db.GetContext(ctx, dest, repo.db.Rebind(query), args...)
}

func (repo repository) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return repo.db.SelectContext(ctx, dest, repo.db.Rebind(query), args...)
}

func (repo repository) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// inTx runs fn in a transaction, committed only if fn succeeds.
func (repo repository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func txExec(ctx context.Context, tx *sqlx.Tx, query string, args ...interface{}) (int64, error) {
	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// notFound maps sql.ErrNoRows to `nfErr`.
func notFound(err, nfErr error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nfErr
	}
	return err
}

// where joins conditions with AND.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func nullTime(t *time.Time) null.Time {
	if t == nil || t.IsZero() {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}

func timePtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

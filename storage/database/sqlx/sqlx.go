// Package sqlxrepos implements the repositories on PostgreSQL with sqlx.
// report queries are bound to structs with sqlboiler's raw queries.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

// postgres error codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	exclusionViolation  = "23P01"
)

// pgCode returns the SQLSTATE of err, if it comes from postgres.
func pgCode(err error) string {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return string(pqErr.Code)
	}
	return ""
}

// pgConstraint returns the violated constraint of err, if any.
func pgConstraint(err error) string {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return pqErr.Constraint
	}
	return ""
}

// trapNoRows maps sql.ErrNoRows to notFound.
func trapNoRows(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// checkAffected returns notFound when res touched no row.
func checkAffected(res sql.Result, err error, notFound error, msg string) error {
	if err != nil {
		return errors.Wrap(err, msg)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// withTx runs fn in a transaction, rolled back when fn fails.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// where joins AND conditions written with "?" placeholders, see sqlx.DB.Rebind.
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

func nullString(s string) null.String { return null.NewString(s, s != "") }

func nullTime(t time.Time) null.Time { return null.NewTime(t.UTC(), !t.IsZero()) }

// nullJSON maps JSON documents to a text parameter: pq would send []byte as bytea.
func nullJSON(b []byte) null.String { return null.NewString(string(b), len(b) > 0) }

func jsonOf(s null.String) []byte {
	if !s.Valid {
		return nil
	}
	return []byte(s.String)
}

// isUUID filters out ids postgres would reject with a syntax error.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// dateOf drops the time & location of a DATE column value.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Kind classifies a store failure independently of the SQL driver.
type Kind int

const (
	// KindUnavailable covers connectivity, timeouts and anything unclassified.
	KindUnavailable Kind = iota
	KindNotFound
	// KindConflict is a unique-key violation.
	KindConflict
	// KindConstraint is a not-null, check or foreign-key violation.
	KindConstraint
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindConstraint:
		return "constraint violation"
	default:
		return "unavailable"
	}
}

// Error is returned by every Store method that fails.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		if e.Op == "" {
			return e.Kind.String()
		}
		return e.Op + ": " + e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the sentinels below work with
// errors.Is regardless of Op.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound = &Error{Kind: KindNotFound}
	ErrConflict = &Error{Kind: KindConflict}
)

// KindOf returns the Kind carried by err, or KindUnavailable when err did not
// come from the store.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnavailable
}

func notFound(op string) error {
	return &Error{Kind: KindNotFound, Op: op}
}

// wrap turns a driver error into an *Error. A nil err stays nil.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: classify(err), Op: op, Err: err}
}

func classify(err error) Kind {
	if errors.Is(err, sql.ErrNoRows) {
		return KindNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindUnavailable
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return KindConflict
		}
		if liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			return KindConstraint
		}
		return KindUnavailable
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return KindConflict
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "23":
			return KindConstraint
		}
		return KindUnavailable
	}

	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062:
			return KindConflict
		case 1048, 1364, 1451, 1452, 3819:
			return KindConstraint
		}
	}
	return KindUnavailable
}

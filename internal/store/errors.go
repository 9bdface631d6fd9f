// Package store holds the shared database handle helpers and the error
// taxonomy every service maps its failures onto.
package store

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
)

var (
	ErrUnreachable      = errors.New("store unreachable")
	ErrUnauthenticated  = errors.New("not authenticated")
	ErrNotAuthorized    = errors.New("not authorized")
	ErrNotFound         = errors.New("not found")
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrAlreadyResolved  = errors.New("already resolved")
	ErrReferential      = errors.New("invalid reference")
	ErrValidation       = errors.New("validation failed")
)

// SQLSTATE classes and codes we care about. Anything in the connection
// exception class means the store itself is unreachable rather than the
// statement being wrong.
const (
	classConnection     = "08"
	codeUniqueViolation = "23505"
	codeForeignKey      = "23503"
	codeUndefinedTable  = "42P01"
)

// Classify translates a driver error into the taxonomy. Callers wrap the
// result with operation context; sentinel identity survives through %w.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case string(pqErr.Code) == codeUniqueViolation:
			return ErrDuplicateRequest
		case string(pqErr.Code) == codeForeignKey:
			return ErrReferential
		case string(pqErr.Code) == codeUndefinedTable:
			return ErrUnreachable
		case strings.HasPrefix(string(pqErr.Code), classConnection):
			return ErrUnreachable
		}
		return err
	}

	if isConnectionError(err) {
		return ErrUnreachable
	}
	return err
}

// IsUniqueViolation reports whether err is a Postgres unique constraint hit.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == codeUniqueViolation
}

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == codeForeignKey
}

func isConnectionError(err error) bool {
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "network is unreachable")
}

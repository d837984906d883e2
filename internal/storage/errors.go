package storage

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a lookup by key matches no row
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when a guarded update finds the row at a different version
	ErrVersionConflict = errors.New("record was modified concurrently")
	// ErrVoteExists is returned when a vote insert hits the (user_id, project_id) unique index
	ErrVoteExists = errors.New("vote already exists")
	// ErrDuplicateAddress is returned when a contract address is already registered
	ErrDuplicateAddress = errors.New("contract address already submitted")
)

const (
	uniqueViolation = "23505"

	constraintVoteUnique     = "votes_user_project_key"
	constraintProjectAddress = "projects_contract_address_lower_key"
)

// uniqueViolationOn reports whether err is a unique violation, optionally on a specific constraint
func uniqueViolationOn(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

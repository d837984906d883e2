// Package errors defines the categorized error taxonomy shared by services and the API.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/token-curator/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents invalid caller input
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents missing projects, users or votes
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryState represents an operation forbidden by the project lifecycle
	CategoryState ErrorCategory = "state"
	// CategoryConflict represents duplicates and concurrent-write races
	CategoryConflict ErrorCategory = "conflict"
	// CategoryAuthorization represents admin-only operations attempted by non-admins
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryUpstream represents price oracle or ledger client failures
	CategoryUpstream ErrorCategory = "upstream"
	// CategoryDatabase represents persistence failures
	CategoryDatabase ErrorCategory = "database"
	// CategorySystem represents anything else
	CategorySystem ErrorCategory = "system"
)

// Error codes
const (
	CodeNotFound            = "NOT_FOUND"
	CodeNotVotable          = "NOT_VOTABLE"
	CodeDuplicateVote       = "DUPLICATE_VOTE"
	CodeNoBaseline          = "NO_BASELINE"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeConflict            = "CONFLICT"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeInvalidParameter    = "INVALID_PARAMETER"
	CodeForbidden           = "FORBIDDEN"
	CodeDatabase            = "DATABASE_ERROR"
	CodeInternal            = "INTERNAL_ERROR"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Retryable  bool
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to the wire representation
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewNotVotableError is returned when a project's status forbids voting
func NewNotVotableError(projectID string, status types.ProjectStatus) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       CodeNotVotable,
		Message:    fmt.Sprintf("project %s is %s and cannot be voted on", projectID, status),
		Details: map[string]interface{}{
			"projectId": projectID,
			"status":    status,
		},
	}
}

// NewDuplicateVoteError is returned when a user resubmits the vote they already hold
func NewDuplicateVoteError(projectID string, voteType types.VoteType) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConflict,
		StatusCode: http.StatusConflict,
		Code:       CodeDuplicateVote,
		Message:    fmt.Sprintf("you already voted %s on this project", voteType),
		Details: map[string]interface{}{
			"projectId": projectID,
			"voteType":  voteType,
		},
	}
}

// NewNoBaselineError is returned when ROI is updated for a project with no snapshot
func NewNoBaselineError(projectID string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       CodeNoBaseline,
		Message:    fmt.Sprintf("no ROI baseline recorded for project %s", projectID),
		Details: map[string]interface{}{
			"projectId": projectID,
		},
	}
}

// NewUpstreamUnavailableError wraps a failed or timed out collaborator call
func NewUpstreamUnavailableError(upstream string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUpstream,
		StatusCode: http.StatusServiceUnavailable,
		Code:       CodeUpstreamUnavailable,
		Message:    fmt.Sprintf("%s unavailable", upstream),
		Retryable:  true,
		Cause:      cause,
		Details: map[string]interface{}{
			"upstream": upstream,
		},
	}
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConflict,
		StatusCode: http.StatusConflict,
		Code:       CodeConflict,
		Message:    message,
		Retryable:  true,
	}
}

// NewInvalidTransitionError is returned for transitions missing from the status table
func NewInvalidTransitionError(from, to types.ProjectStatus) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       CodeInvalidTransition,
		Message:    fmt.Sprintf("cannot move project from %s to %s", from, to),
		Details: map[string]interface{}{
			"from": from,
			"to":   to,
		},
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidParameter,
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusForbidden,
		Code:       CodeForbidden,
		Message:    message,
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeDatabase,
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternal,
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return &CategorizedError{
			Category:   CategorySystem,
			StatusCode: http.StatusInternalServerError,
			Code:       svcErr.Code,
			Message:    svcErr.Message,
			Details:    svcErr.Details,
		}
	}

	return NewInternalError("unexpected error", err)
}

// IsCode reports whether err categorizes to the given code
func IsCode(err error, code string) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.Code == code
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryUpstream, CategoryDatabase:
		return true
	case CategoryConflict:
		return catErr.Retryable
	default:
		return false
	}
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}

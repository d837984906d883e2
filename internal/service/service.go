// Package service implements the curation core: voting with auto-approval, the project
// lifecycle, ROI tracking and leaderboards. Every operation returns a result record whose
// Success flag distinguishes outcomes; failures carry a categorized Err for transports.
package service

import (
	"context"
	"errors"

	apperrors "github.com/token-curator/internal/errors"
	"github.com/token-curator/internal/logging"
	"github.com/token-curator/internal/models"
	"github.com/token-curator/internal/storage"
	"github.com/token-curator/internal/types"
)

// Repository interfaces for dependency injection

// ProjectStore persists projects
type ProjectStore interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id string) (*models.Project, error)
	GetByAddress(ctx context.Context, address string) (*models.Project, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.Project, error)
	List(ctx context.Context, filter storage.ProjectFilter) ([]*models.Project, error)
	UpdateStatus(ctx context.Context, project *models.Project) error
	UpdateMarket(ctx context.Context, id string, currentPrice, roi float64) error
}

// VoteStore persists votes together with the project tallies they produce
type VoteStore interface {
	GetByUserAndProject(ctx context.Context, userID, projectID string) (*models.Vote, error)
	ListByProject(ctx context.Context, projectID string) ([]*models.Vote, error)
	ApplyVote(ctx context.Context, change *storage.VoteChange) error
}

// UserStore persists users and their activity counters
type UserStore interface {
	Upsert(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
	SetWallet(ctx context.Context, userID, address string) error
	ListTop(ctx context.Context, order storage.UserOrder, limit int) ([]*models.User, error)
}

// RatingStore persists per-category ratings
type RatingStore interface {
	Upsert(ctx context.Context, rating *models.Rating) error
	CategoryAverages(ctx context.Context) ([]models.CategoryAverage, error)
}

// ROIStore is the append-only snapshot history
type ROIStore interface {
	Insert(ctx context.Context, snapshot *models.ROISnapshot) error
	Earliest(ctx context.Context, projectID string) (*models.ROISnapshot, error)
	Latest(ctx context.Context, projectID string) (*models.ROISnapshot, error)
	LatestPerProject(ctx context.Context, limit int) ([]*models.ROISnapshot, error)
}

// LeaderboardCache memoizes ranking results
type LeaderboardCache interface {
	Key(kind string, limit int) string
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	InvalidateAll(ctx context.Context) error
}

// PriceOracle looks up token market data. (nil, nil) means the oracle has no data.
type PriceOracle interface {
	GetTokenByAddress(ctx context.Context, address string) (*types.TokenData, error)
}

// LedgerClient validates addresses against the ledger
type LedgerClient interface {
	ValidateContract(ctx context.Context, address string) (bool, error)
	ValidateWallet(ctx context.Context, address string) (bool, error)
}

// Result is the common part of every operation result
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	// Err is the categorized failure, nil on success
	Err error `json:"-"`
}

func succeed(message string) Result {
	return Result{Success: true, Message: message}
}

func failure(err error) Result {
	catErr := apperrors.Categorize(err)
	return Result{Success: false, Message: catErr.Message, Err: catErr}
}

// storeError translates a repository error for resource id into the error taxonomy
func storeError(op, resource, id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NewNotFoundError(resource, id)
	}
	return apperrors.NewDatabaseError(op, err)
}

func isConflict(err error) bool {
	return apperrors.IsCode(err, apperrors.CodeConflict)
}

// invalidateLeaderboards drops cached rankings; failures only cost freshness
func invalidateLeaderboards(ctx context.Context, cache LeaderboardCache) {
	if cache == nil {
		return
	}
	if err := cache.InvalidateAll(ctx); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to invalidate leaderboard cache")
	}
}

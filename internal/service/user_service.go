package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/token-curator/internal/config"
	apperrors "github.com/token-curator/internal/errors"
	"github.com/token-curator/internal/logging"
	"github.com/token-curator/internal/models"
	"github.com/token-curator/internal/types"
)

// UserService handles user registration, wallets and project ratings
type UserService struct {
	users    UserStore
	projects ProjectStore
	ratings  RatingStore
	ledger   LedgerClient
	cache    LeaderboardCache
	admins   config.AdminConfig
}

// NewUserService creates a new user service. cache may be nil.
func NewUserService(
	users UserStore,
	projects ProjectStore,
	ratings RatingStore,
	ledger LedgerClient,
	cache LeaderboardCache,
	admins config.AdminConfig,
) *UserService {
	return &UserService{
		users:    users,
		projects: projects,
		ratings:  ratings,
		ledger:   ledger,
		cache:    cache,
		admins:   admins,
	}
}

// RegisterUserInput represents input for registering a user
type RegisterUserInput struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// UserResult carries a single user
type UserResult struct {
	Result
	User *models.User `json:"user,omitempty"`
}

// RatingResult carries a stored rating
type RatingResult struct {
	Result
	Rating *models.Rating `json:"rating,omitempty"`
}

// RegisterUser creates the user or refreshes its profile. Admin rights come from configuration.
func (s *UserService) RegisterUser(ctx context.Context, input *RegisterUserInput) *UserResult {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return &UserResult{Result: failure(apperrors.NewInvalidParameterError("id", "is required"))}
	}

	user := &models.User{
		ID:        id,
		Username:  strings.TrimPrefix(strings.TrimSpace(input.Username), "@"),
		FirstName: input.FirstName,
		LastName:  input.LastName,
		IsAdmin:   s.admins.IsAdmin(id),
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return &UserResult{Result: failure(apperrors.NewDatabaseError("register user", err))}
	}
	return &UserResult{Result: succeed("user registered"), User: user}
}

// GetUser returns a user by id
func (s *UserService) GetUser(ctx context.Context, id string) *UserResult {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return &UserResult{Result: failure(storeError("get user", "user", id, err))}
	}
	return &UserResult{Result: succeed(""), User: user}
}

// SetWallet attaches a ledger-validated wallet address to the user
func (s *UserService) SetWallet(ctx context.Context, userID, address string) *UserResult {
	address = strings.TrimSpace(address)
	if address == "" {
		return &UserResult{Result: failure(apperrors.NewInvalidParameterError("address", "is required"))}
	}

	valid, err := s.ledger.ValidateWallet(ctx, address)
	if err != nil {
		return &UserResult{Result: failure(apperrors.NewUpstreamUnavailableError("ledger", err))}
	}
	if !valid {
		return &UserResult{Result: failure(apperrors.NewInvalidParameterError("address", "is not a valid wallet address"))}
	}

	normalized := types.NormalizeAddress(address)
	if err := s.users.SetWallet(ctx, userID, normalized); err != nil {
		return &UserResult{Result: failure(storeError("set wallet", "user", userID, err))}
	}

	logging.FromContext(ctx).WithField("userId", userID).Info("Wallet linked")
	return s.GetUser(ctx, userID)
}

// RateProject records userID's score for one category of a project, replacing any earlier score
func (s *UserService) RateProject(ctx context.Context, userID, projectID string, category types.RatingCategory, score int) *RatingResult {
	if userID == "" {
		return &RatingResult{Result: failure(apperrors.NewInvalidParameterError("userId", "is required"))}
	}
	if !category.Valid() {
		return &RatingResult{Result: failure(apperrors.NewInvalidParameterError("category", fmt.Sprintf("unknown category %q", category)))}
	}
	if score < types.MinRatingScore || score > types.MaxRatingScore {
		return &RatingResult{Result: failure(apperrors.NewInvalidParameterError("score",
			fmt.Sprintf("must be between %d and %d", types.MinRatingScore, types.MaxRatingScore)))}
	}

	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return &RatingResult{Result: failure(storeError("get project", "project", projectID, err))}
	}

	rating := &models.Rating{UserID: userID, ProjectID: projectID, Category: category, Score: score}
	if err := s.ratings.Upsert(ctx, rating); err != nil {
		return &RatingResult{Result: failure(apperrors.NewDatabaseError("save rating", err))}
	}

	invalidateLeaderboards(ctx, s.cache)
	return &RatingResult{Result: succeed("rating saved"), Rating: rating}
}

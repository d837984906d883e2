package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/token-curator/internal/config"
	apperrors "github.com/token-curator/internal/errors"
	"github.com/token-curator/internal/models"
	"github.com/token-curator/internal/types"
)

func newUserFixture(cache LeaderboardCache) (*UserService, *memDB, *fakeLedger) {
	db := newMemDB()
	ledger := &fakeLedger{}
	svc := NewUserService(memUsers{db}, memProjects{db}, &memRatings{db: db}, ledger, cache,
		config.AdminConfig{UserIDs: []string{"42"}})
	return svc, db, ledger
}

func TestRegisterUser(t *testing.T) {
	svc, db, _ := newUserFixture(nil)
	ctx := context.Background()

	res := svc.RegisterUser(ctx, &RegisterUserInput{ID: "7", Username: "@carol", FirstName: "Carol"})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "carol", res.User.Username)
	assert.False(t, res.User.IsAdmin)

	admin := svc.RegisterUser(ctx, &RegisterUserInput{ID: "42"})
	require.True(t, admin.Success)
	assert.True(t, admin.User.IsAdmin)

	db.users["7"].ProjectsVoted = 3
	again := svc.RegisterUser(ctx, &RegisterUserInput{ID: "7", Username: "carol_new"})
	require.True(t, again.Success)
	assert.Equal(t, "carol_new", again.User.Username)
	assert.Equal(t, int64(3), again.User.ProjectsVoted, "re-registration keeps counters")

	missing := svc.RegisterUser(ctx, &RegisterUserInput{ID: "  "})
	assert.True(t, apperrors.IsCode(missing.Err, apperrors.CodeInvalidParameter))
}

func TestGetUser(t *testing.T) {
	svc, db, _ := newUserFixture(nil)
	db.addUser(&models.User{ID: "7"})

	assert.True(t, svc.GetUser(context.Background(), "7").Success)
	res := svc.GetUser(context.Background(), "8")
	assert.True(t, apperrors.IsCode(res.Err, apperrors.CodeNotFound))
}

func TestSetWallet(t *testing.T) {
	const wallet = "0xAAAA000000000000000000000000000000000001"
	ctx := context.Background()

	t.Run("valid wallet is normalized", func(t *testing.T) {
		svc, db, _ := newUserFixture(nil)
		db.addUser(&models.User{ID: "7"})

		res := svc.SetWallet(ctx, "7", wallet)
		require.True(t, res.Success, res.Message)
		require.NotNil(t, res.User.WalletAddress)
		assert.Equal(t, types.NormalizeAddress(wallet), *res.User.WalletAddress)
	})

	t.Run("rejected by ledger", func(t *testing.T) {
		svc, db, ledger := newUserFixture(nil)
		db.addUser(&models.User{ID: "7"})
		ledger.invalid = map[string]bool{wallet: true}

		res := svc.SetWallet(ctx, "7", wallet)
		assert.True(t, apperrors.IsCode(res.Err, apperrors.CodeInvalidParameter))
		assert.Nil(t, db.user("7").WalletAddress)
	})

	t.Run("ledger unavailable", func(t *testing.T) {
		svc, db, ledger := newUserFixture(nil)
		db.addUser(&models.User{ID: "7"})
		ledger.err = errors.New("rpc down")

		res := svc.SetWallet(ctx, "7", wallet)
		assert.True(t, apperrors.IsCode(res.Err, apperrors.CodeUpstreamUnavailable))
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, _, _ := newUserFixture(nil)
		res := svc.SetWallet(ctx, "7", wallet)
		assert.True(t, apperrors.IsCode(res.Err, apperrors.CodeNotFound))
	})
}

func TestRateProject(t *testing.T) {
	cache, mr := newTestCache(t)
	svc, db, _ := newUserFixture(cache)
	project := db.addProject(&models.Project{ContractAddress: "0x1", Status: types.StatusApproved})
	ctx := context.Background()

	key := cache.Key(string(LeaderboardRating), 10)
	require.NoError(t, cache.Set(ctx, key, &RankingResult{Kind: LeaderboardRating}))

	res := svc.RateProject(ctx, "7", project.ID, types.RatingUtility, 4)
	require.True(t, res.Success, res.Message)
	assert.False(t, mr.Exists(key), "rating invalidates cached leaderboards")

	res = svc.RateProject(ctx, "7", project.ID, types.RatingUtility, 2)
	require.True(t, res.Success)
	require.Len(t, db.ratings, 1, "a second score replaces the first")
	for _, r := range db.ratings {
		assert.Equal(t, 2, r.Score)
	}
}

func TestRateProject_Validation(t *testing.T) {
	svc, db, _ := newUserFixture(nil)
	project := db.addProject(&models.Project{ContractAddress: "0x1"})
	ctx := context.Background()

	tests := []struct {
		name      string
		projectID string
		category  types.RatingCategory
		score     int
		code      string
	}{
		{"score too low", project.ID, types.RatingCommunity, 0, apperrors.CodeInvalidParameter},
		{"score too high", project.ID, types.RatingCommunity, 6, apperrors.CodeInvalidParameter},
		{"unknown category", project.ID, "vibes", 3, apperrors.CodeInvalidParameter},
		{"unknown project", "missing", types.RatingCommunity, 3, apperrors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := svc.RateProject(ctx, "7", tt.projectID, tt.category, tt.score)
			assert.False(t, res.Success)
			assert.True(t, apperrors.IsCode(res.Err, tt.code), res.Message)
		})
	}
	assert.Empty(t, db.ratings)
}

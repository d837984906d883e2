package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/token-curator/internal/config"
	"github.com/token-curator/internal/models"
	"github.com/token-curator/internal/types"
)

func TestPostgresDB_Ping(t *testing.T) {
	db := setupPostgres(t)
	require.NoError(t, db.Ping(testContext(t)))
	assert.NotNil(t, db.Pool())
}

func TestUserRepository_UpsertKeepsCounters(t *testing.T) {
	db := setupPostgres(t)
	ctx := testContext(t)
	users := NewUserRepository(db)
	projects := NewProjectRepository(db)

	seedUser(t, users, "u1")
	require.NoError(t, projects.Create(ctx, &models.Project{ContractAddress: "0x01", Status: types.StatusPending, SubmittedBy: "u1"}))
	require.NoError(t, users.SetWallet(ctx, "u1", "0x2222222222222222222222222222222222222222"))

	updated := &models.User{ID: "u1", Username: "renamed", IsAdmin: true}
	require.NoError(t, users.Upsert(ctx, updated))

	assert.Equal(t, "renamed", updated.Username)
	assert.True(t, updated.IsAdmin)
	assert.Equal(t, int64(1), updated.ProjectsSubmitted)
	require.NotNil(t, updated.WalletAddress)
	assert.Equal(t, "0x2222222222222222222222222222222222222222", *updated.WalletAddress)
}

func TestUserRepository_NotFound(t *testing.T) {
	db := setupPostgres(t)
	ctx := testContext(t)
	users := NewUserRepository(db)

	_, err := users.GetByID(ctx, "ghost")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	err = users.SetWallet(ctx, "ghost", "0x01")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	found, err := users.GetByIDs(ctx, []string{"ghost"})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestUserRepository_ListTop(t *testing.T) {
	db := setupPostgres(t)
	ctx := testContext(t)
	users := NewUserRepository(db)
	projects := NewProjectRepository(db)

	seedUser(t, users, "busy")
	seedUser(t, users, "casual")
	seedUser(t, users, "idle")

	for _, addr := range []string{"0x01", "0x02"} {
		require.NoError(t, projects.Create(ctx, &models.Project{ContractAddress: addr, Status: types.StatusPending, SubmittedBy: "busy"}))
	}
	require.NoError(t, projects.Create(ctx, &models.Project{ContractAddress: "0x03", Status: types.StatusPending, SubmittedBy: "casual"}))

	top, err := users.ListTop(ctx, OrderBySubmissions, 10)
	require.NoError(t, err)
	require.Len(t, top, 2, "users without submissions are left out")
	assert.Equal(t, "busy", top[0].ID)
	assert.Equal(t, "casual", top[1].ID)

	_, err = users.ListTop(ctx, UserOrder("karma"), 10)
	assert.Error(t, err)
}

func TestRatingRepository_UpsertAndAverages(t *testing.T) {
	db := setupPostgres(t)
	ctx := testContext(t)
	users := NewUserRepository(db)
	projects := NewProjectRepository(db)
	ratings := NewRatingRepository(db)

	seedUser(t, users, "u1")
	seedUser(t, users, "u2")
	project := &models.Project{ContractAddress: "0x01", Status: types.StatusApproved, SubmittedBy: "u1"}
	require.NoError(t, projects.Create(ctx, project))

	rate := func(user string, score int) {
		require.NoError(t, ratings.Upsert(ctx, &models.Rating{
			UserID:    user,
			ProjectID: project.ID,
			Category:  types.RatingUtility,
			Score:     score,
		}))
	}
	rate("u1", 2)
	rate("u1", 4) // replaces the earlier score
	rate("u2", 5)

	averages, err := ratings.CategoryAverages(ctx)
	require.NoError(t, err)
	require.Len(t, averages, 1)
	assert.Equal(t, project.ID, averages[0].ProjectID)
	assert.Equal(t, types.RatingUtility, averages[0].Category)
	assert.InDelta(t, 4.5, averages[0].Average, 1e-9)
	assert.Equal(t, int64(2), averages[0].Count)
}

func TestPostgresPoolConfig(t *testing.T) {
	cfg, err := postgresPoolConfig(&config.PostgresConfig{
		Host:           "db.internal",
		Port:           "6432",
		Database:       "curation",
		User:           "curator",
		Password:       "secret",
		MaxConnections: 25,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(25), cfg.MaxConns)
	assert.Equal(t, int32(2), cfg.MinConns)
	assert.Equal(t, "db.internal", cfg.ConnConfig.Host)
	assert.Equal(t, uint16(6432), cfg.ConnConfig.Port)
	assert.Equal(t, "curation", cfg.ConnConfig.Database)
	assert.Equal(t, "token-curator", cfg.ConnConfig.RuntimeParams["application_name"])

	small, err := postgresPoolConfig(&config.PostgresConfig{Host: "localhost", Port: "5432", MaxConnections: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(1), small.MinConns, "min conns never exceed max conns")

	unset, err := postgresPoolConfig(&config.PostgresConfig{Host: "localhost", Port: "5432"})
	require.NoError(t, err)
	assert.Equal(t, int32(10), unset.MaxConns)
}

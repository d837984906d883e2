package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/token-curator/internal/errors"
	"github.com/token-curator/internal/models"
	"github.com/token-curator/internal/service"
	"github.com/token-curator/internal/types"
)

func okResult(message string) service.Result {
	return service.Result{Success: true, Message: message}
}

func failedResult(err *apperrors.CategorizedError) service.Result {
	return service.Result{Success: false, Message: err.Message, Err: err}
}

// Mock services for testing
type mockProjectService struct {
	submitFunc  func(ctx context.Context, input *service.SubmitInput) *service.SubmitResult
	approveFunc func(ctx context.Context, projectID, adminID string) *service.ProjectResult
	listFunc    func(ctx context.Context, status *types.ProjectStatus, limit, offset int) *service.ProjectListResult
}

func (m *mockProjectService) SubmitProject(ctx context.Context, input *service.SubmitInput) *service.SubmitResult {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, input)
	}
	return &service.SubmitResult{Result: okResult("submitted"), Project: &models.Project{
		ID:              "project-1",
		ContractAddress: input.ContractAddress,
		Status:          types.StatusPending,
		SubmittedBy:     input.SubmittedBy,
	}}
}

func (m *mockProjectService) ApproveProject(ctx context.Context, projectID, adminID string) *service.ProjectResult {
	if m.approveFunc != nil {
		return m.approveFunc(ctx, projectID, adminID)
	}
	return &service.ProjectResult{Result: okResult(""), Project: &models.Project{ID: projectID, Status: types.StatusVetting}}
}

func (m *mockProjectService) RejectProject(ctx context.Context, projectID, adminID string) *service.ProjectResult {
	return &service.ProjectResult{Result: okResult(""), Project: &models.Project{ID: projectID, Status: types.StatusRejected}}
}

func (m *mockProjectService) GetProject(ctx context.Context, projectID string) *service.ProjectResult {
	if projectID != "project-1" {
		return &service.ProjectResult{Result: failedResult(apperrors.NewNotFoundError("project", projectID))}
	}
	return &service.ProjectResult{Result: okResult(""), Project: &models.Project{ID: projectID, Name: "Alpha"}}
}

func (m *mockProjectService) ListProjects(ctx context.Context, status *types.ProjectStatus, limit, offset int) *service.ProjectListResult {
	if m.listFunc != nil {
		return m.listFunc(ctx, status, limit, offset)
	}
	return &service.ProjectListResult{Result: okResult(""), Projects: []*models.Project{}}
}

type mockVotingService struct {
	castFunc func(ctx context.Context, userID, projectID string, voteType types.VoteType) *service.VoteResult
}

func (m *mockVotingService) CastVote(ctx context.Context, userID, projectID string, voteType types.VoteType) *service.VoteResult {
	if m.castFunc != nil {
		return m.castFunc(ctx, userID, projectID, voteType)
	}
	return &service.VoteResult{Result: okResult("bull vote recorded"), Vote: &models.Vote{UserID: userID, ProjectID: projectID, VoteType: voteType}}
}

func (m *mockVotingService) GetVotesForProject(ctx context.Context, projectID string) *service.VotesResult {
	return &service.VotesResult{Result: okResult(""), Votes: []*models.Vote{}}
}

func (m *mockVotingService) GetUserVote(ctx context.Context, userID, projectID string) *service.UserVoteResult {
	return &service.UserVoteResult{Result: okResult("no vote")}
}

type mockROIService struct{}

func (m *mockROIService) GetProjectROI(ctx context.Context, projectID string) *service.ROIResult {
	return &service.ROIResult{Result: okResult(""), Snapshot: &models.ROISnapshot{ProjectID: projectID, ROI: 12.5}}
}

func (m *mockROIService) RefreshProject(ctx context.Context, projectID string) *service.RefreshResult {
	return &service.RefreshResult{Result: failedResult(apperrors.NewUpstreamUnavailableError("price oracle", nil))}
}

type mockRankingService struct{}

func (m *mockRankingService) Leaderboard(ctx context.Context, kind service.LeaderboardKind, limit int) *service.RankingResult {
	return &service.RankingResult{Result: okResult(""), Kind: kind, Projects: []service.ProjectRanking{
		{Rank: 1, ProjectID: "project-1", Name: "Alpha", Symbol: "ALP", Votes: int64(limit), Bulls: int64(limit)},
	}}
}

type mockUserService struct {
	mu         sync.Mutex
	users      map[string]*models.User
	registered []string
	wallets    map[string]string
}

func newMockUserService(ids ...string) *mockUserService {
	m := &mockUserService{users: make(map[string]*models.User), wallets: make(map[string]string)}
	for _, id := range ids {
		m.users[id] = &models.User{ID: id}
	}
	return m
}

func (m *mockUserService) RegisterUser(ctx context.Context, input *service.RegisterUserInput) *service.UserResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if input.ID == "" {
		return &service.UserResult{Result: failedResult(apperrors.NewInvalidParameterError("id", "is required"))}
	}
	u := &models.User{ID: input.ID, Username: input.Username}
	m.users[input.ID] = u
	m.registered = append(m.registered, input.ID)
	return &service.UserResult{Result: okResult("user registered"), User: u}
}

func (m *mockUserService) GetUser(ctx context.Context, id string) *service.UserResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, found := m.users[id]; found {
		return &service.UserResult{Result: okResult(""), User: u}
	}
	return &service.UserResult{Result: failedResult(apperrors.NewNotFoundError("user", id))}
}

func (m *mockUserService) SetWallet(ctx context.Context, userID, address string) *service.UserResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[userID] = address
	return &service.UserResult{Result: okResult(""), User: m.users[userID]}
}

func (m *mockUserService) RateProject(ctx context.Context, userID, projectID string, category types.RatingCategory, score int) *service.RatingResult {
	if score < types.MinRatingScore || score > types.MaxRatingScore {
		return &service.RatingResult{Result: failedResult(apperrors.NewInvalidParameterError("score", "out of range"))}
	}
	return &service.RatingResult{Result: okResult(""), Rating: &models.Rating{UserID: userID, ProjectID: projectID, Category: category, Score: score}}
}

type testServer struct {
	handler  http.Handler
	projects *mockProjectService
	voting   *mockVotingService
	users    *mockUserService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		projects: &mockProjectService{},
		voting:   &mockVotingService{},
		users:    newMockUserService("alice"),
	}
	server := NewServer(&ServerConfig{Host: "localhost", Port: "0", UserRPS: 1000, UserBurst: 1000}, Services{
		Projects: ts.projects,
		Voting:   ts.voting,
		ROI:      &mockROIService{},
		Rankings: &mockRankingService{},
		Users:    ts.users,
	})
	ts.handler = server.Handler()
	return ts
}

func (ts *testServer) do(method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do("GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestSubmitProject(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("POST", "/api/projects", "alice", map[string]string{"contractAddress": "0xabc"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	project := body["project"].(map[string]interface{})
	assert.Equal(t, "alice", project["submittedBy"])
}

func TestSubmitProject_RequiresIdentity(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("POST", "/api/projects", "", map[string]string{"contractAddress": "0xabc"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])
}

func TestSubmitProject_RejectsUnknownFields(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("POST", "/api/projects", "alice", map[string]string{"contract": "0xabc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdentity_RegistersUnknownCaller(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("POST", "/api/projects", "bob", map[string]string{"contractAddress": "0xabc"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"bob"}, ts.users.registered)

	ts.do("POST", "/api/projects", "bob", map[string]string{"contractAddress": "0xdef"})
	assert.Len(t, ts.users.registered, 1, "known callers are not re-registered")
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    *apperrors.CategorizedError
		status int
		code   string
	}{
		{"not votable", apperrors.NewNotVotableError("p", types.StatusPending), http.StatusConflict, apperrors.CodeNotVotable},
		{"duplicate vote", apperrors.NewDuplicateVoteError("p", types.VoteBull), http.StatusConflict, apperrors.CodeDuplicateVote},
		{"not found", apperrors.NewNotFoundError("project", "p"), http.StatusNotFound, apperrors.CodeNotFound},
		{"invalid parameter", apperrors.NewInvalidParameterError("voteType", "bad"), http.StatusBadRequest, apperrors.CodeInvalidParameter},
		{"database", apperrors.NewDatabaseError("apply vote", nil), http.StatusInternalServerError, apperrors.CodeDatabase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.voting.castFunc = func(ctx context.Context, userID, projectID string, voteType types.VoteType) *service.VoteResult {
				return &service.VoteResult{Result: failedResult(tt.err)}
			}

			rec := ts.do("POST", "/api/projects/p/votes", "alice", map[string]string{"voteType": "bull"})
			assert.Equal(t, tt.status, rec.Code)

			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.code, body["error"].(map[string]interface{})["code"])
		})
	}
}

func TestCastVote_PassesCallerAndNormalizedType(t *testing.T) {
	ts := newTestServer(t)
	var gotUser string
	var gotType types.VoteType
	ts.voting.castFunc = func(ctx context.Context, userID, projectID string, voteType types.VoteType) *service.VoteResult {
		gotUser, gotType = userID, voteType
		return &service.VoteResult{Result: okResult("")}
	}

	rec := ts.do("POST", "/api/projects/p/votes", "alice", map[string]string{"voteType": " BULL "})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", gotUser)
	assert.Equal(t, types.VoteBull, gotType)
}

func TestApproveProject_Forbidden(t *testing.T) {
	ts := newTestServer(t)
	ts.projects.approveFunc = func(ctx context.Context, projectID, adminID string) *service.ProjectResult {
		return &service.ProjectResult{Result: failedResult(apperrors.NewForbiddenError("only admins can change project status"))}
	}

	rec := ts.do("POST", "/api/projects/p/approve", "alice", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetProject(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("GET", "/api/projects/project-1", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do("GET", "/api/projects/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListProjects_Query(t *testing.T) {
	ts := newTestServer(t)
	var gotStatus *types.ProjectStatus
	var gotLimit, gotOffset int
	ts.projects.listFunc = func(ctx context.Context, status *types.ProjectStatus, limit, offset int) *service.ProjectListResult {
		gotStatus, gotLimit, gotOffset = status, limit, offset
		return &service.ProjectListResult{Result: okResult(""), Projects: []*models.Project{}}
	}

	rec := ts.do("GET", "/api/projects?status=APPROVED&limit=5&offset=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotStatus)
	assert.Equal(t, types.StatusApproved, *gotStatus)
	assert.Equal(t, 5, gotLimit)
	assert.Equal(t, 10, gotOffset)

	assert.Equal(t, http.StatusBadRequest, ts.do("GET", "/api/projects?status=listed", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do("GET", "/api/projects?limit=ten", "", nil).Code)
}

func TestLeaderboard(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("GET", "/api/leaderboards/votes?limit=3", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "votes", body["kind"])

	rec = ts.do("GET", "/api/leaderboards/votes?limit=3&format=text", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, rec.Body.String(), "1. Alpha (ALP): 3 votes")

	rec = ts.do("GET", "/api/leaderboards/loudest", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestROIEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("GET", "/api/projects/p/roi", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snapshot := decode(t, rec)["snapshot"].(map[string]interface{})
	assert.Equal(t, 12.5, snapshot["roi"])

	rec = ts.do("POST", "/api/projects/p/roi/refresh", "alice", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSetWallet_OnlyOwnWallet(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("PUT", "/api/users/bob/wallet", "alice", map[string]string{"address": "0x1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do("PUT", "/api/users/alice/wallet", "alice", map[string]string{"address": "0x1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0x1", ts.users.wallets["alice"])
}

func TestRateProject(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("POST", "/api/projects/p/ratings", "alice", map[string]interface{}{"category": "utility", "score": 4})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do("POST", "/api/projects/p/ratings", "alice", map[string]interface{}{"category": "utility", "score": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterAndGetUser(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("POST", "/api/users", "", map[string]string{"id": "carol", "username": "carol"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do("GET", "/api/users/carol", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do("GET", "/api/users/dave", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

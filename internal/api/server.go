// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/token-curator/internal/logging"
	"github.com/token-curator/internal/service"
	"github.com/token-curator/internal/types"
)

// Service interfaces for dependency injection and testing

// ProjectServiceInterface defines the project lifecycle operations
type ProjectServiceInterface interface {
	SubmitProject(ctx context.Context, input *service.SubmitInput) *service.SubmitResult
	ApproveProject(ctx context.Context, projectID, adminID string) *service.ProjectResult
	RejectProject(ctx context.Context, projectID, adminID string) *service.ProjectResult
	GetProject(ctx context.Context, projectID string) *service.ProjectResult
	ListProjects(ctx context.Context, status *types.ProjectStatus, limit, offset int) *service.ProjectListResult
}

// VotingServiceInterface defines the voting operations
type VotingServiceInterface interface {
	CastVote(ctx context.Context, userID, projectID string, voteType types.VoteType) *service.VoteResult
	GetVotesForProject(ctx context.Context, projectID string) *service.VotesResult
	GetUserVote(ctx context.Context, userID, projectID string) *service.UserVoteResult
}

// ROIServiceInterface defines the ROI tracker operations exposed over HTTP
type ROIServiceInterface interface {
	GetProjectROI(ctx context.Context, projectID string) *service.ROIResult
	RefreshProject(ctx context.Context, projectID string) *service.RefreshResult
}

// RankingServiceInterface defines the leaderboard operations
type RankingServiceInterface interface {
	Leaderboard(ctx context.Context, kind service.LeaderboardKind, limit int) *service.RankingResult
}

// UserServiceInterface defines the user operations
type UserServiceInterface interface {
	RegisterUser(ctx context.Context, input *service.RegisterUserInput) *service.UserResult
	GetUser(ctx context.Context, id string) *service.UserResult
	SetWallet(ctx context.Context, userID, address string) *service.UserResult
	RateProject(ctx context.Context, userID, projectID string, category types.RatingCategory, score int) *service.RatingResult
}

// Services bundles the services the API dispatches to
type Services struct {
	Projects ProjectServiceInterface
	Voting   VotingServiceInterface
	ROI      ROIServiceInterface
	Rankings RankingServiceInterface
	Users    UserServiceInterface
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	services   Services
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	UserRPS         int // sustained requests per second per caller
	UserBurst       int
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, services Services) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		services: services,
		config:   config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.UserRPS, s.config.UserBurst)

	// order matters: identity must be known before rate limiting keys on it
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(IdentityMiddleware(s.services.Users))
	s.router.Use(RateLimitMiddleware(rateLimiter))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Project endpoints
	api.HandleFunc("/projects", s.handleSubmitProject).Methods("POST")
	api.HandleFunc("/projects", s.handleListProjects).Methods("GET")
	api.HandleFunc("/projects/{id}", s.handleGetProject).Methods("GET")
	api.HandleFunc("/projects/{id}/approve", s.handleApproveProject).Methods("POST")
	api.HandleFunc("/projects/{id}/reject", s.handleRejectProject).Methods("POST")

	// Vote endpoints
	api.HandleFunc("/projects/{id}/votes", s.handleCastVote).Methods("POST")
	api.HandleFunc("/projects/{id}/votes", s.handleGetVotes).Methods("GET")
	api.HandleFunc("/projects/{id}/votes/{userId}", s.handleGetUserVote).Methods("GET")

	// Rating and ROI endpoints
	api.HandleFunc("/projects/{id}/ratings", s.handleRateProject).Methods("POST")
	api.HandleFunc("/projects/{id}/roi", s.handleGetROI).Methods("GET")
	api.HandleFunc("/projects/{id}/roi/refresh", s.handleRefreshROI).Methods("POST")

	// Leaderboards
	api.HandleFunc("/leaderboards/{kind}", s.handleLeaderboard).Methods("GET")

	// User endpoints
	api.HandleFunc("/users", s.handleRegisterUser).Methods("POST")
	api.HandleFunc("/users/{id}", s.handleGetUser).Methods("GET")
	api.HandleFunc("/users/{id}/wallet", s.handleSetWallet).Methods("PUT")
}

// Handler exposes the routed handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "token-curator",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}

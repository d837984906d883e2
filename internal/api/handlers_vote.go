package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/token-curator/internal/types"
)

// handleCastVote handles POST /api/projects/{id}/votes
func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		VoteType string `json:"voteType"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	voteType := types.VoteType(strings.ToLower(strings.TrimSpace(req.VoteType)))
	res := s.services.Voting.CastVote(r.Context(), userID, mux.Vars(r)["id"], voteType)
	respondResult(w, http.StatusOK, res.Result, res)
}

// handleGetVotes handles GET /api/projects/{id}/votes
func (s *Server) handleGetVotes(w http.ResponseWriter, r *http.Request) {
	res := s.services.Voting.GetVotesForProject(r.Context(), mux.Vars(r)["id"])
	respondResult(w, http.StatusOK, res.Result, res)
}

// handleGetUserVote handles GET /api/projects/{id}/votes/{userId}
func (s *Server) handleGetUserVote(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	res := s.services.Voting.GetUserVote(r.Context(), vars["userId"], vars["id"])
	respondResult(w, http.StatusOK, res.Result, res)
}

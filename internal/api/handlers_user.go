package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/token-curator/internal/service"
	"github.com/token-curator/internal/types"
)

// handleRegisterUser handles POST /api/users
func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterUserInput
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	res := s.services.Users.RegisterUser(r.Context(), &req)
	respondResult(w, http.StatusCreated, res.Result, res)
}

// handleGetUser handles GET /api/users/{id}
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	res := s.services.Users.GetUser(r.Context(), mux.Vars(r)["id"])
	respondResult(w, http.StatusOK, res.Result, res)
}

// handleSetWallet handles PUT /api/users/{id}/wallet. Callers may only set their own wallet.
func (s *Server) handleSetWallet(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireUser(w, r)
	if !ok {
		return
	}
	userID := mux.Vars(r)["id"]
	if callerID != userID {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "Cannot change another user's wallet", nil)
		return
	}

	var req struct {
		Address string `json:"address"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	res := s.services.Users.SetWallet(r.Context(), userID, req.Address)
	respondResult(w, http.StatusOK, res.Result, res)
}

// handleRateProject handles POST /api/projects/{id}/ratings
func (s *Server) handleRateProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Category types.RatingCategory `json:"category"`
		Score    int                  `json:"score"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	res := s.services.Users.RateProject(r.Context(), userID, mux.Vars(r)["id"], req.Category, req.Score)
	respondResult(w, http.StatusOK, res.Result, res)
}

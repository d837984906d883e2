package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/token-curator/internal/service"
)

// handleGetROI handles GET /api/projects/{id}/roi
func (s *Server) handleGetROI(w http.ResponseWriter, r *http.Request) {
	res := s.services.ROI.GetProjectROI(r.Context(), mux.Vars(r)["id"])
	respondResult(w, http.StatusOK, res.Result, res)
}

// handleRefreshROI handles POST /api/projects/{id}/roi/refresh
func (s *Server) handleRefreshROI(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	res := s.services.ROI.RefreshProject(r.Context(), mux.Vars(r)["id"])
	respondResult(w, http.StatusOK, res.Result, res)
}

// handleLeaderboard handles GET /api/leaderboards/{kind}?limit=&format=text
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	kind, err := service.ParseLeaderboardKind(mux.Vars(r)["kind"])
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "limit must be an integer", nil)
		return
	}

	res := s.services.Rankings.Leaderboard(r.Context(), kind, limit)
	if r.URL.Query().Get("format") != "text" || !res.Success {
		respondResult(w, http.StatusOK, res.Result, res)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(service.FormatLeaderboard(res)))
}

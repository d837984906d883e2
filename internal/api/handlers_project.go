package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/token-curator/internal/service"
	"github.com/token-curator/internal/types"
)

// handleSubmitProject handles POST /api/projects
func (s *Server) handleSubmitProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		ContractAddress string  `json:"contractAddress"`
		SubmittedInChat *string `json:"submittedInChat,omitempty"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	res := s.services.Projects.SubmitProject(r.Context(), &service.SubmitInput{
		ContractAddress: req.ContractAddress,
		SubmittedBy:     userID,
		SubmittedInChat: req.SubmittedInChat,
	})
	respondResult(w, http.StatusCreated, res.Result, res)
}

// handleListProjects handles GET /api/projects?status=&limit=&offset=
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	var status *types.ProjectStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := types.ParseProjectStatus(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
			return
		}
		status = &parsed
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "limit must be an integer", nil)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "offset must be an integer", nil)
		return
	}

	res := s.services.Projects.ListProjects(r.Context(), status, limit, offset)
	respondResult(w, http.StatusOK, res.Result, res)
}

// handleGetProject handles GET /api/projects/{id}
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	res := s.services.Projects.GetProject(r.Context(), mux.Vars(r)["id"])
	respondResult(w, http.StatusOK, res.Result, res)
}

// handleApproveProject handles POST /api/projects/{id}/approve
func (s *Server) handleApproveProject(w http.ResponseWriter, r *http.Request) {
	adminID, ok := requireUser(w, r)
	if !ok {
		return
	}
	res := s.services.Projects.ApproveProject(r.Context(), mux.Vars(r)["id"], adminID)
	respondResult(w, http.StatusOK, res.Result, res)
}

// handleRejectProject handles POST /api/projects/{id}/reject
func (s *Server) handleRejectProject(w http.ResponseWriter, r *http.Request) {
	adminID, ok := requireUser(w, r)
	if !ok {
		return
	}
	res := s.services.Projects.RejectProject(r.Context(), mux.Vars(r)["id"], adminID)
	respondResult(w, http.StatusOK, res.Result, res)
}

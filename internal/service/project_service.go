package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/token-curator/internal/config"
	apperrors "github.com/token-curator/internal/errors"
	"github.com/token-curator/internal/logging"
	"github.com/token-curator/internal/models"
	"github.com/token-curator/internal/retry"
	"github.com/token-curator/internal/storage"
	"github.com/token-curator/internal/types"
)

// Placeholders used when the oracle has partial or no data for a token
const (
	unknownTokenName   = "Unknown"
	unknownTokenSymbol = "UNKNOWN"
)

// ROIRecorder records the baseline snapshot of a freshly submitted project
type ROIRecorder interface {
	RecordROI(ctx context.Context, projectID string, initialPrice, currentPrice float64) *ROIResult
}

// ProjectServiceConfig holds the settings the project lifecycle needs
type ProjectServiceConfig struct {
	Admin            config.AdminConfig
	DefaultLogoURL   string
	MaxConflictRetry int
}

// ProjectService handles submission and admin-driven status transitions
type ProjectService struct {
	projects ProjectStore
	oracle   PriceOracle
	ledger   LedgerClient
	roi      ROIRecorder
	cache    LeaderboardCache
	cfg      ProjectServiceConfig
	now      func() time.Time
}

// NewProjectService creates a new project service. cache may be nil.
func NewProjectService(
	projects ProjectStore,
	oracle PriceOracle,
	ledger LedgerClient,
	roi ROIRecorder,
	cache LeaderboardCache,
	cfg ProjectServiceConfig,
) *ProjectService {
	if cfg.MaxConflictRetry <= 0 {
		cfg.MaxConflictRetry = 5
	}
	return &ProjectService{
		projects: projects,
		oracle:   oracle,
		ledger:   ledger,
		roi:      roi,
		cache:    cache,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SubmitInput represents input for submitting a project
type SubmitInput struct {
	ContractAddress string  `json:"contractAddress"`
	SubmittedBy     string  `json:"submittedBy"`
	SubmittedInChat *string `json:"submittedInChat,omitempty"`
}

// SubmitResult is the outcome of SubmitProject
type SubmitResult struct {
	Result
	Project *models.Project `json:"project,omitempty"`
	// PartialData is true when the oracle could not supply full token metadata
	PartialData bool `json:"partialData"`
}

// ProjectResult carries a single project
type ProjectResult struct {
	Result
	Project *models.Project `json:"project,omitempty"`
}

// ProjectListResult carries a page of projects
type ProjectListResult struct {
	Result
	Projects []*models.Project `json:"projects"`
}

// SubmitProject validates a contract address, enriches it from the price oracle and
// stores it as pending. A positive oracle price becomes the ROI baseline.
func (s *ProjectService) SubmitProject(ctx context.Context, input *SubmitInput) *SubmitResult {
	address := strings.TrimSpace(input.ContractAddress)
	if address == "" {
		return &SubmitResult{Result: failure(apperrors.NewInvalidParameterError("contractAddress", "is required"))}
	}
	if input.SubmittedBy == "" {
		return &SubmitResult{Result: failure(apperrors.NewInvalidParameterError("submittedBy", "is required"))}
	}

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"contractAddress": address,
		"submittedBy":     input.SubmittedBy,
	})

	valid, err := s.ledger.ValidateContract(ctx, address)
	if err != nil {
		return &SubmitResult{Result: failure(apperrors.NewUpstreamUnavailableError("ledger", err))}
	}
	if !valid {
		return &SubmitResult{Result: failure(apperrors.NewInvalidParameterError("contractAddress", "is not a valid contract address"))}
	}

	if _, err := s.projects.GetByAddress(ctx, address); err == nil {
		return &SubmitResult{Result: failure(alreadySubmitted())}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return &SubmitResult{Result: failure(apperrors.NewDatabaseError("check duplicate address", err))}
	}

	// Only a timed-out oracle blocks submission; any other oracle error degrades to partial data.
	data, err := s.oracle.GetTokenByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &SubmitResult{Result: failure(apperrors.NewUpstreamUnavailableError("price oracle", err))}
		}
		logger.WithError(err).Warn("Price oracle lookup failed, storing project with partial data")
		data = nil
	}

	project, partial := s.newProject(address, input, data)
	if err := s.projects.Create(ctx, project); err != nil {
		if errors.Is(err, storage.ErrDuplicateAddress) {
			return &SubmitResult{Result: failure(alreadySubmitted())}
		}
		return &SubmitResult{Result: failure(apperrors.NewDatabaseError("create project", err))}
	}

	if project.InitialPrice > 0 {
		if res := s.roi.RecordROI(ctx, project.ID, project.InitialPrice, project.InitialPrice); !res.Success {
			logger.WithError(res.Err).Warn("Failed to record ROI baseline for new project")
		} else {
			zero := 0.0
			project.ROI = &zero
		}
	}

	invalidateLeaderboards(ctx, s.cache)
	logger.WithFields(map[string]interface{}{
		"projectId":   project.ID,
		"partialData": partial,
	}).Info("Project submitted")

	message := "project submitted for review"
	if partial {
		message = "project submitted with partial token data"
	}
	return &SubmitResult{Result: succeed(message), Project: project, PartialData: partial}
}

// newProject builds a pending project from oracle data, filling placeholders for missing fields
func (s *ProjectService) newProject(address string, input *SubmitInput, data *types.TokenData) (*models.Project, bool) {
	if data == nil {
		data = &types.TokenData{}
	}
	partial := false

	name := data.Name
	if name == "" {
		name = unknownTokenName
		partial = true
	}
	symbol := data.Symbol
	if symbol == "" || strings.EqualFold(symbol, unknownTokenSymbol) {
		symbol = unknownTokenSymbol
		partial = true
	}
	logo := data.Logo
	if logo == "" {
		logo = s.cfg.DefaultLogoURL
	}
	price := data.Price
	if price < 0 {
		price = 0
	}

	return &models.Project{
		ContractAddress: types.NormalizeAddress(address),
		Name:            name,
		Symbol:          symbol,
		Logo:            logo,
		ChartURL:        data.ChartURL,
		MarketCap:       data.MarketCap,
		Liquidity:       data.Liquidity,
		InitialPrice:    price,
		CurrentPrice:    price,
		Status:          types.StatusPending,
		SubmittedBy:     input.SubmittedBy,
		SubmittedInChat: input.SubmittedInChat,
		SubmittedAt:     s.now(),
	}, partial
}

func alreadySubmitted() error {
	err := apperrors.NewConflictError("project already submitted")
	err.Retryable = false
	return err
}

// ApproveProject advances a project one step towards approval: pending to vetting,
// or vetting to approved. Admin only.
func (s *ProjectService) ApproveProject(ctx context.Context, projectID, adminID string) *ProjectResult {
	return s.transition(ctx, projectID, adminID, func(from types.ProjectStatus) types.ProjectStatus {
		if from == types.StatusPending {
			return types.StatusVetting
		}
		return types.StatusApproved
	})
}

// RejectProject rejects a pending or vetting project. Admin only.
func (s *ProjectService) RejectProject(ctx context.Context, projectID, adminID string) *ProjectResult {
	return s.transition(ctx, projectID, adminID, func(types.ProjectStatus) types.ProjectStatus {
		return types.StatusRejected
	})
}

func (s *ProjectService) transition(
	ctx context.Context,
	projectID, adminID string,
	target func(from types.ProjectStatus) types.ProjectStatus,
) *ProjectResult {
	if !s.cfg.Admin.IsAdmin(adminID) {
		return &ProjectResult{Result: failure(apperrors.NewForbiddenError("only admins can change project status"))}
	}

	var updated *models.Project
	var from types.ProjectStatus
	err := retry.Do(ctx, retry.ConflictRetryConfig(s.cfg.MaxConflictRetry, isConflict), func(ctx context.Context, _ int) error {
		project, err := s.projects.GetByID(ctx, projectID)
		if err != nil {
			return storeError("get project", "project", projectID, err)
		}

		from = project.Status
		to := target(from)
		if !types.CanTransition(from, to) {
			return apperrors.NewInvalidTransitionError(from, to)
		}

		next := project.Clone()
		next.Status = to
		if to == types.StatusApproved {
			now := s.now()
			admin := adminID
			next.ApprovedAt = &now
			next.ApprovedBy = &admin
		}

		if err := s.projects.UpdateStatus(ctx, next); err != nil {
			if errors.Is(err, storage.ErrVersionConflict) {
				return apperrors.NewConflictError("project was updated concurrently, please retry")
			}
			return storeError("update project status", "project", projectID, err)
		}
		updated = next
		return nil
	})
	if err != nil {
		return &ProjectResult{Result: failure(err)}
	}

	invalidateLeaderboards(ctx, s.cache)
	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"projectId": projectID,
		"adminId":   adminID,
		"from":      from,
		"to":        updated.Status,
	}).Info("Project status changed")

	return &ProjectResult{Result: succeed("project is now " + string(updated.Status)), Project: updated}
}

// GetProject returns a project by id
func (s *ProjectService) GetProject(ctx context.Context, projectID string) *ProjectResult {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return &ProjectResult{Result: failure(storeError("get project", "project", projectID, err))}
	}
	return &ProjectResult{Result: succeed(""), Project: project}
}

// ListProjects returns the most recently submitted projects, optionally filtered by status
func (s *ProjectService) ListProjects(ctx context.Context, status *types.ProjectStatus, limit, offset int) *ProjectListResult {
	if status != nil && !status.Valid() {
		return &ProjectListResult{Result: failure(apperrors.NewInvalidParameterError("status", "unknown status "+string(*status))), Projects: []*models.Project{}}
	}
	if offset < 0 {
		offset = 0
	}

	projects, err := s.projects.List(ctx, storage.ProjectFilter{
		Status:  status,
		OrderBy: storage.OrderBySubmitted,
		Limit:   normalizeLimit(limit),
		Offset:  offset,
	})
	if err != nil {
		return &ProjectListResult{Result: failure(apperrors.NewDatabaseError("list projects", err)), Projects: []*models.Project{}}
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	return &ProjectListResult{Result: succeed(""), Projects: projects}
}

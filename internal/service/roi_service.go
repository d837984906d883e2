package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/token-curator/internal/errors"
	"github.com/token-curator/internal/logging"
	"github.com/token-curator/internal/models"
	"github.com/token-curator/internal/storage"
	"github.com/token-curator/internal/types"
)

const unknownProjectName = "Unknown Project"

// ROIService records price snapshots and derives ROI relative to each project's first snapshot
type ROIService struct {
	snapshots ROIStore
	projects  ProjectStore
	oracle    PriceOracle
	cache     LeaderboardCache
	now       func() time.Time
}

// NewROIService creates a new ROI service. oracle is only needed for refreshes; cache may be nil.
func NewROIService(snapshots ROIStore, projects ProjectStore, oracle PriceOracle, cache LeaderboardCache) *ROIService {
	return &ROIService{
		snapshots: snapshots,
		projects:  projects,
		oracle:    oracle,
		cache:     cache,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ROIResult carries a single snapshot
type ROIResult struct {
	Result
	Snapshot *models.ROISnapshot `json:"snapshot"`
}

// ROIEntry is one row of the top-ROI ranking
type ROIEntry struct {
	ProjectID    string    `json:"projectId"`
	Name         string    `json:"name"`
	Symbol       string    `json:"symbol,omitempty"`
	InitialPrice float64   `json:"initialPrice"`
	CurrentPrice float64   `json:"currentPrice"`
	ROI          float64   `json:"roi"`
	Timestamp    time.Time `json:"timestamp"`
}

// TopROIResult lists projects by latest ROI
type TopROIResult struct {
	Result
	Projects []ROIEntry `json:"projects"`
}

// RefreshResult is the outcome of refreshing one project's price
type RefreshResult struct {
	Result
	Skipped  bool                `json:"skipped"`
	Snapshot *models.ROISnapshot `json:"snapshot,omitempty"`
}

// RefreshSummary counts the outcomes of a batch refresh
type RefreshSummary struct {
	Result
	Refreshed int `json:"refreshed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// CalculateROI returns the percentage change from initial to current, rounded half away
// from zero to two places. A non-positive initial price yields 0.
func CalculateROI(initial, current float64) float64 {
	if initial <= 0 {
		return 0
	}
	base := decimal.NewFromFloat(initial)
	roi := decimal.NewFromFloat(current).Sub(base).Div(base).Mul(decimal.NewFromInt(100)).Round(2)
	return roi.InexactFloat64()
}

// RecordROI appends a snapshot for projectID and mirrors the price and ROI onto the project.
// Existing snapshots are never modified. The snapshot is the record of truth: once it is
// stored the call succeeds even if mirroring onto the project fails.
func (s *ROIService) RecordROI(ctx context.Context, projectID string, initialPrice, currentPrice float64) *ROIResult {
	snapshot := &models.ROISnapshot{
		ProjectID:    projectID,
		InitialPrice: initialPrice,
		CurrentPrice: currentPrice,
		ROI:          CalculateROI(initialPrice, currentPrice),
		Timestamp:    s.now(),
	}
	if err := s.snapshots.Insert(ctx, snapshot); err != nil {
		return &ROIResult{Result: failure(apperrors.NewDatabaseError("insert ROI snapshot", err))}
	}

	if err := s.projects.UpdateMarket(ctx, projectID, currentPrice, snapshot.ROI); err != nil {
		logger := logging.FromContext(ctx).WithField("projectId", projectID)
		if errors.Is(err, storage.ErrNotFound) {
			logger.Warn("ROI snapshot recorded for unknown project")
		} else {
			logger.WithError(err).Warn("ROI snapshot recorded but project market fields not updated")
		}
	}

	invalidateLeaderboards(ctx, s.cache)
	return &ROIResult{Result: succeed("ROI recorded"), Snapshot: snapshot}
}

// UpdateProjectROI records currentPrice against the project's first snapshot
func (s *ROIService) UpdateProjectROI(ctx context.Context, projectID string, currentPrice float64) *ROIResult {
	baseline, err := s.snapshots.Earliest(ctx, projectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &ROIResult{Result: failure(apperrors.NewNoBaselineError(projectID))}
		}
		return &ROIResult{Result: failure(apperrors.NewDatabaseError("get ROI baseline", err))}
	}
	return s.RecordROI(ctx, projectID, baseline.InitialPrice, currentPrice)
}

// GetProjectROI returns the latest snapshot, or a nil snapshot when none was recorded
func (s *ROIService) GetProjectROI(ctx context.Context, projectID string) *ROIResult {
	latest, err := s.snapshots.Latest(ctx, projectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &ROIResult{Result: succeed("no ROI data")}
		}
		return &ROIResult{Result: failure(apperrors.NewDatabaseError("get latest ROI", err))}
	}
	return &ROIResult{Result: succeed(""), Snapshot: latest}
}

// GetTopROIProjects ranks projects by the ROI of their latest snapshot
func (s *ROIService) GetTopROIProjects(ctx context.Context, limit int) *TopROIResult {
	limit = normalizeLimit(limit)

	latest, err := s.snapshots.LatestPerProject(ctx, limit)
	if err != nil {
		return &TopROIResult{Result: failure(apperrors.NewDatabaseError("rank ROI snapshots", err)), Projects: []ROIEntry{}}
	}

	ids := make([]string, 0, len(latest))
	for _, snap := range latest {
		ids = append(ids, snap.ProjectID)
	}
	projects, err := s.projects.GetByIDs(ctx, ids)
	if err != nil {
		return &TopROIResult{Result: failure(apperrors.NewDatabaseError("load ranked projects", err)), Projects: []ROIEntry{}}
	}

	entries := make([]ROIEntry, 0, len(latest))
	for _, snap := range latest {
		entry := ROIEntry{
			ProjectID:    snap.ProjectID,
			Name:         unknownProjectName,
			InitialPrice: snap.InitialPrice,
			CurrentPrice: snap.CurrentPrice,
			ROI:          snap.ROI,
			Timestamp:    snap.Timestamp,
		}
		if p, ok := projects[snap.ProjectID]; ok {
			entry.Name = p.Name
			entry.Symbol = p.Symbol
		}
		entries = append(entries, entry)
	}
	return &TopROIResult{Result: succeed(""), Projects: entries}
}

// RefreshProject fetches the current price and records it. Oracle failures and
// missing prices leave the stored ROI untouched. A project without a baseline
// gets one from this price.
func (s *ROIService) RefreshProject(ctx context.Context, projectID string) *RefreshResult {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return &RefreshResult{Result: failure(storeError("get project", "project", projectID, err))}
	}

	data, err := s.oracle.GetTokenByAddress(ctx, project.ContractAddress)
	if err != nil {
		return &RefreshResult{Result: failure(apperrors.NewUpstreamUnavailableError("price oracle", err))}
	}
	if data == nil || data.Price <= 0 {
		return &RefreshResult{Result: succeed("no price data, skipped"), Skipped: true}
	}

	res := s.UpdateProjectROI(ctx, projectID, data.Price)
	if !res.Success && apperrors.IsCode(res.Err, apperrors.CodeNoBaseline) {
		res = s.RecordROI(ctx, projectID, data.Price, data.Price)
	}
	return &RefreshResult{Result: res.Result, Snapshot: res.Snapshot}
}

// RefreshApproved refreshes every approved project, continuing past individual failures
func (s *ROIService) RefreshApproved(ctx context.Context) *RefreshSummary {
	approved := types.StatusApproved
	projects, err := s.projects.List(ctx, storage.ProjectFilter{Status: &approved})
	if err != nil {
		return &RefreshSummary{Result: failure(apperrors.NewDatabaseError("list approved projects", err))}
	}

	logger := logging.FromContext(ctx)
	summary := &RefreshSummary{}
	for _, project := range projects {
		if ctx.Err() != nil {
			return &RefreshSummary{Result: failure(ctx.Err()), Refreshed: summary.Refreshed, Skipped: summary.Skipped, Failed: summary.Failed}
		}

		res := s.RefreshProject(ctx, project.ID)
		switch {
		case !res.Success:
			summary.Failed++
			logger.WithFields(map[string]interface{}{
				"projectId": project.ID,
				"reason":    res.Message,
			}).Warn("ROI refresh failed")
		case res.Skipped:
			summary.Skipped++
		default:
			summary.Refreshed++
		}
	}

	summary.Result = succeed("")
	logger.WithFields(map[string]interface{}{
		"refreshed": summary.Refreshed,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
	}).Info("ROI refresh completed")
	return summary
}

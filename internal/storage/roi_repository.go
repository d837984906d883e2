package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/token-curator/internal/models"
)

// ROIRepository stores ROI snapshots in ClickHouse. Rows are only ever inserted.
type ROIRepository struct {
	db *ClickHouseDB
}

// NewROIRepository creates a new ROI snapshot repository
func NewROIRepository(db *ClickHouseDB) *ROIRepository {
	return &ROIRepository{db: db}
}

// Insert appends a snapshot
func (r *ROIRepository) Insert(ctx context.Context, snapshot *models.ROISnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.New().String()
	}
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now().UTC()
	}

	err := r.db.Exec(ctx, `
		INSERT INTO roi_snapshots (id, project_id, initial_price, current_price, roi, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snapshot.ID,
		snapshot.ProjectID,
		snapshot.InitialPrice,
		snapshot.CurrentPrice,
		snapshot.ROI,
		snapshot.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ROI snapshot: %w", err)
	}
	return nil
}

// Earliest returns the first snapshot recorded for a project, or ErrNotFound
func (r *ROIRepository) Earliest(ctx context.Context, projectID string) (*models.ROISnapshot, error) {
	return r.selectOne(ctx, projectID, "ASC")
}

// Latest returns the most recent snapshot for a project, or ErrNotFound
func (r *ROIRepository) Latest(ctx context.Context, projectID string) (*models.ROISnapshot, error) {
	return r.selectOne(ctx, projectID, "DESC")
}

func (r *ROIRepository) selectOne(ctx context.Context, projectID, direction string) (*models.ROISnapshot, error) {
	var snapshots []models.ROISnapshot
	err := r.db.Conn().Select(ctx, &snapshots, `
		SELECT id, project_id, initial_price, current_price, roi, timestamp
		FROM roi_snapshots
		WHERE project_id = ?
		ORDER BY timestamp `+direction+`, id `+direction+`
		LIMIT 1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ROI snapshot: %w", err)
	}
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("ROI snapshot for %s: %w", projectID, ErrNotFound)
	}
	return &snapshots[0], nil
}

// latestRow maps the grouped query; aliases differ from column names so ClickHouse
// does not resolve them recursively.
type latestRow struct {
	ProjectID    string    `ch:"project_id"`
	ID           string    `ch:"latest_id"`
	InitialPrice float64   `ch:"latest_initial_price"`
	CurrentPrice float64   `ch:"latest_current_price"`
	ROI          float64   `ch:"latest_roi"`
	Timestamp    time.Time `ch:"latest_at"`
}

// LatestPerProject keeps only the most recent snapshot of each project,
// ordered by ROI descending and limited to limit rows.
func (r *ROIRepository) LatestPerProject(ctx context.Context, limit int) ([]*models.ROISnapshot, error) {
	var rows []latestRow
	err := r.db.Conn().Select(ctx, &rows, `
		SELECT
			project_id,
			argMax(id, timestamp)            AS latest_id,
			argMax(initial_price, timestamp) AS latest_initial_price,
			argMax(current_price, timestamp) AS latest_current_price,
			argMax(roi, timestamp)           AS latest_roi,
			max(timestamp)                   AS latest_at
		FROM roi_snapshots
		GROUP BY project_id
		ORDER BY latest_roi DESC, project_id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest ROI snapshots: %w", err)
	}

	snapshots := make([]*models.ROISnapshot, 0, len(rows))
	for _, row := range rows {
		snapshots = append(snapshots, &models.ROISnapshot{
			ID:           row.ID,
			ProjectID:    row.ProjectID,
			InitialPrice: row.InitialPrice,
			CurrentPrice: row.CurrentPrice,
			ROI:          row.ROI,
			Timestamp:    row.Timestamp,
		})
	}
	return snapshots, nil
}

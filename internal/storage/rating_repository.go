package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/token-curator/internal/models"
)

// RatingRepository handles per-category project ratings
type RatingRepository struct {
	db *PostgresDB
}

// NewRatingRepository creates a new rating repository
func NewRatingRepository(db *PostgresDB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Upsert records a rating, replacing the user's previous score in that category
func (r *RatingRepository) Upsert(ctx context.Context, rating *models.Rating) error {
	now := time.Now().UTC()
	err := r.db.Pool().QueryRow(ctx, `
		INSERT INTO ratings (user_id, project_id, category, score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id, project_id, category) DO UPDATE SET
			score = EXCLUDED.score,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at`,
		rating.UserID, rating.ProjectID, rating.Category, rating.Score, now,
	).Scan(&rating.CreatedAt, &rating.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert rating: %w", err)
	}
	return nil
}

// CategoryAverages returns the average score per (project, category) for every rated project
func (r *RatingRepository) CategoryAverages(ctx context.Context) ([]models.CategoryAverage, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT project_id, category, AVG(score)::float8, COUNT(*)
		FROM ratings
		GROUP BY project_id, category`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ratings: %w", err)
	}
	defer rows.Close()

	var averages []models.CategoryAverage
	for rows.Next() {
		var avg models.CategoryAverage
		if err := rows.Scan(&avg.ProjectID, &avg.Category, &avg.Average, &avg.Count); err != nil {
			return nil, fmt.Errorf("failed to scan rating average: %w", err)
		}
		averages = append(averages, avg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rating averages: %w", err)
	}
	return averages, nil
}

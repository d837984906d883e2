package models

import (
	"time"

	"github.com/token-curator/internal/types"
)

// Rating is one user's score for a project in one category
type Rating struct {
	UserID    string               `json:"userId" db:"user_id"`
	ProjectID string               `json:"projectId" db:"project_id"`
	Category  types.RatingCategory `json:"category" db:"category"`
	Score     int                  `json:"score" db:"score"`
	CreatedAt time.Time            `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time            `json:"updatedAt" db:"updated_at"`
}

// CategoryAverage aggregates the ratings of one project in one category
type CategoryAverage struct {
	ProjectID string               `json:"projectId"`
	Category  types.RatingCategory `json:"category"`
	Average   float64              `json:"average"`
	Count     int64                `json:"count"`
}

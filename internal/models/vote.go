package models

import (
	"time"

	"github.com/token-curator/internal/types"
)

// Vote is a user's single live sentiment on a project.
// (UserID, ProjectID) is unique; changing sides updates VoteType in place.
type Vote struct {
	ID        string         `json:"id" db:"id"`
	UserID    string         `json:"userId" db:"user_id"`
	ProjectID string         `json:"projectId" db:"project_id"`
	VoteType  types.VoteType `json:"voteType" db:"vote_type"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time      `json:"updatedAt" db:"updated_at"`
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/token-curator/internal/models"
)

// VoteChange is one cast-vote unit of work: the vote row to write and the project
// tallies/status that result from it.
type VoteChange struct {
	Vote *models.Vote
	// Insert is true for a first vote, false for a reclassification of an existing one
	Insert bool
	// Project carries the new tallies and status; Project.Version is the version they were computed from
	Project *models.Project
}

// VoteRepository handles vote persistence
type VoteRepository struct {
	db *PostgresDB
}

// NewVoteRepository creates a new vote repository
func NewVoteRepository(db *PostgresDB) *VoteRepository {
	return &VoteRepository{db: db}
}

// GetByUserAndProject returns the live vote of userID on projectID, or ErrNotFound
func (r *VoteRepository) GetByUserAndProject(ctx context.Context, userID, projectID string) (*models.Vote, error) {
	var v models.Vote
	err := r.db.Pool().QueryRow(ctx, `
		SELECT id, user_id, project_id, vote_type, created_at, updated_at
		FROM votes
		WHERE user_id = $1 AND project_id = $2`, userID, projectID).Scan(
		&v.ID, &v.UserID, &v.ProjectID, &v.VoteType, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("vote of %s on %s: %w", userID, projectID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return &v, nil
}

// ListByProject returns every vote on a project, oldest first
func (r *VoteRepository) ListByProject(ctx context.Context, projectID string) ([]*models.Vote, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT id, user_id, project_id, vote_type, created_at, updated_at
		FROM votes
		WHERE project_id = $1
		ORDER BY created_at ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer rows.Close()

	var votes []*models.Vote
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.ID, &v.UserID, &v.ProjectID, &v.VoteType, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating votes: %w", err)
	}
	return votes, nil
}

// ApplyVote writes the vote and the project tallies atomically.
//
// The project update is guarded by version: if another writer got there first the
// whole transaction rolls back with ErrVersionConflict. A first-vote insert that
// loses the race on the (user_id, project_id) index rolls back with ErrVoteExists.
// On success change.Project.Version is advanced to the stored version.
func (r *VoteRepository) ApplyVote(ctx context.Context, change *VoteChange) error {
	now := time.Now().UTC()
	vote := change.Vote
	project := change.Project

	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		if change.Insert {
			if vote.ID == "" {
				vote.ID = uuid.New().String()
			}
			vote.CreatedAt = now
			vote.UpdatedAt = now
			if _, err := tx.Exec(ctx, `
				INSERT INTO votes (id, user_id, project_id, vote_type, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				vote.ID, vote.UserID, vote.ProjectID, vote.VoteType, vote.CreatedAt, vote.UpdatedAt,
			); err != nil {
				if uniqueViolationOn(err, constraintVoteUnique) {
					return ErrVoteExists
				}
				return fmt.Errorf("failed to insert vote: %w", err)
			}

			if _, err := tx.Exec(ctx, `
				UPDATE users
				SET projects_voted = projects_voted + 1, updated_at = $2
				WHERE id = $1`, vote.UserID, now); err != nil {
				return fmt.Errorf("failed to credit voter: %w", err)
			}
		} else {
			vote.UpdatedAt = now
			tag, err := tx.Exec(ctx, `
				UPDATE votes
				SET vote_type = $3, updated_at = $4
				WHERE user_id = $1 AND project_id = $2`,
				vote.UserID, vote.ProjectID, vote.VoteType, vote.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to update vote: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrVersionConflict
			}
		}

		tag, err := tx.Exec(ctx, `
			UPDATE projects
			SET bulls = $3, bears = $4, votes = $5,
			    status = $6, approved_at = $7, approved_by = $8,
			    version = version + 1, updated_at = $9
			WHERE id = $1 AND version = $2`,
			project.ID,
			project.Version,
			project.Bulls,
			project.Bears,
			project.Votes,
			project.Status,
			project.ApprovedAt,
			project.ApprovedBy,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to update project tallies: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrVersionConflict
		}
		return nil
	})
	if err != nil {
		return err
	}

	project.Version++
	project.UpdatedAt = now
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/token-curator/internal/config"
	apperrors "github.com/token-curator/internal/errors"
	"github.com/token-curator/internal/logging"
	"github.com/token-curator/internal/models"
	"github.com/token-curator/internal/retry"
	"github.com/token-curator/internal/storage"
	"github.com/token-curator/internal/types"
)

// VotingService casts votes, keeps project tallies and fast-tracks projects to approval
type VotingService struct {
	projects ProjectStore
	votes    VoteStore
	cache    LeaderboardCache
	cfg      config.VotingConfig
	now      func() time.Time
}

// NewVotingService creates a new voting service. cache may be nil.
func NewVotingService(projects ProjectStore, votes VoteStore, cache LeaderboardCache, cfg config.VotingConfig) *VotingService {
	if cfg.MaxConflictRetry <= 0 {
		cfg.MaxConflictRetry = 5
	}
	return &VotingService{
		projects: projects,
		votes:    votes,
		cache:    cache,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// VoteResult is the outcome of CastVote
type VoteResult struct {
	Result
	AutoApproved bool            `json:"autoApproved"`
	Project      *models.Project `json:"project,omitempty"`
	Vote         *models.Vote    `json:"vote,omitempty"`
}

// VotesResult lists the votes on a project
type VotesResult struct {
	Result
	Votes []*models.Vote `json:"votes"`
}

// UserVoteResult holds a user's vote on a project, nil when none
type UserVoteResult struct {
	Result
	Vote *models.Vote `json:"vote"`
}

// ShouldAutoApprove reports whether a vetting project with these tallies qualifies for
// fast-track approval: at least VoteThreshold votes and a bull share of at least
// FastTrackPercent. The share is compared as bulls*100 >= percent*votes rather than
// divided, so an exact 70% passes at a 70% threshold.
func ShouldAutoApprove(bulls, votes int64, cfg config.VotingConfig) bool {
	if votes <= 0 {
		return false
	}
	if votes < int64(cfg.VoteThreshold) {
		return false
	}
	return float64(bulls)*100 >= cfg.FastTrackPercent*float64(votes)
}

// CastVote records userID's vote on projectID.
//
// A first vote increments the matching bucket and the total. Repeating the held vote
// is rejected. Switching sides moves one vote between buckets and leaves the total.
// A vetting project that crosses the fast-track thresholds is approved in the same write.
// Lost races against concurrent voters are retried from a fresh read.
func (s *VotingService) CastVote(ctx context.Context, userID, projectID string, voteType types.VoteType) *VoteResult {
	if userID == "" {
		return &VoteResult{Result: failure(apperrors.NewInvalidParameterError("userId", "is required"))}
	}
	if !voteType.Valid() {
		return &VoteResult{Result: failure(apperrors.NewInvalidParameterError("voteType", fmt.Sprintf("must be %s or %s", types.VoteBull, types.VoteBear)))}
	}

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"userId":    userID,
		"projectId": projectID,
		"voteType":  voteType,
	})

	var result *VoteResult
	err := retry.Do(ctx, retry.ConflictRetryConfig(s.cfg.MaxConflictRetry, isConflict), func(ctx context.Context, attempt int) error {
		var err error
		result, err = s.castOnce(ctx, userID, projectID, voteType)
		if err != nil && isConflict(err) {
			logger.WithField("attempt", attempt).Debug("Vote lost a concurrent write, retrying")
		}
		return err
	})
	if err != nil {
		if isConflict(err) {
			logger.Warn("Vote retries exhausted")
		}
		return &VoteResult{Result: failure(err)}
	}

	invalidateLeaderboards(ctx, s.cache)

	if result.AutoApproved {
		logger.WithFields(map[string]interface{}{
			"bulls": result.Project.Bulls,
			"votes": result.Project.Votes,
		}).Info("Project auto-approved")
	}
	return result
}

func (s *VotingService) castOnce(ctx context.Context, userID, projectID string, voteType types.VoteType) (*VoteResult, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, storeError("get project", "project", projectID, err)
	}
	if !project.Status.Votable() {
		return nil, apperrors.NewNotVotableError(projectID, project.Status)
	}

	existing, err := s.votes.GetByUserAndProject(ctx, userID, projectID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NewDatabaseError("get vote", err)
	}

	next := project.Clone()
	change := &storage.VoteChange{Project: next}
	var message string

	switch {
	case existing == nil:
		change.Insert = true
		change.Vote = &models.Vote{UserID: userID, ProjectID: projectID, VoteType: voteType}
		addToBucket(next, voteType, 1)
		next.Votes++
		message = fmt.Sprintf("%s vote recorded", voteType)
	case existing.VoteType == voteType:
		return nil, apperrors.NewDuplicateVoteError(projectID, voteType)
	default:
		vote := *existing
		vote.VoteType = voteType
		change.Vote = &vote
		addToBucket(next, existing.VoteType, -1)
		addToBucket(next, voteType, 1)
		message = fmt.Sprintf("vote changed from %s to %s", existing.VoteType, voteType)
	}

	autoApproved := false
	if next.Status == types.StatusVetting && ShouldAutoApprove(next.Bulls, next.Votes, s.cfg) {
		now := s.now()
		next.Status = types.StatusApproved
		next.ApprovedAt = &now
		next.ApprovedBy = nil
		autoApproved = true
		message += "; project auto-approved"
	}

	if err := s.votes.ApplyVote(ctx, change); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) || errors.Is(err, storage.ErrVoteExists) {
			return nil, apperrors.NewConflictError("project was updated concurrently, please retry")
		}
		return nil, apperrors.NewDatabaseError("apply vote", err)
	}

	return &VoteResult{
		Result:       succeed(message),
		AutoApproved: autoApproved,
		Project:      next,
		Vote:         change.Vote,
	}, nil
}

func addToBucket(p *models.Project, voteType types.VoteType, delta int64) {
	if voteType == types.VoteBull {
		p.Bulls += delta
	} else {
		p.Bears += delta
	}
}

// GetVotesForProject lists every vote on a project. An unknown project yields an empty list.
func (s *VotingService) GetVotesForProject(ctx context.Context, projectID string) *VotesResult {
	votes, err := s.votes.ListByProject(ctx, projectID)
	if err != nil {
		return &VotesResult{Result: failure(apperrors.NewDatabaseError("list votes", err)), Votes: []*models.Vote{}}
	}
	if votes == nil {
		votes = []*models.Vote{}
	}
	return &VotesResult{Result: succeed(""), Votes: votes}
}

// GetUserVote returns userID's vote on projectID; a missing vote is not a failure
func (s *VotingService) GetUserVote(ctx context.Context, userID, projectID string) *UserVoteResult {
	vote, err := s.votes.GetByUserAndProject(ctx, userID, projectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &UserVoteResult{Result: succeed("no vote")}
		}
		return &UserVoteResult{Result: failure(apperrors.NewDatabaseError("get vote", err))}
	}
	return &UserVoteResult{Result: succeed(""), Vote: vote}
}

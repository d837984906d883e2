package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/token-curator/internal/errors"
	"github.com/token-curator/internal/logging"
	"github.com/token-curator/internal/models"
	"github.com/token-curator/internal/storage"
	"github.com/token-curator/internal/types"
)

// Limit bounds for every ranking query
const (
	DefaultRankingLimit = 10
	MaxRankingLimit     = 100
)

// LeaderboardKind names a ranking
type LeaderboardKind string

const (
	LeaderboardVotes      LeaderboardKind = "votes"
	LeaderboardBullish    LeaderboardKind = "bullish"
	LeaderboardRating     LeaderboardKind = "rating"
	LeaderboardROI        LeaderboardKind = "roi"
	LeaderboardSubmitters LeaderboardKind = "submitters"
	LeaderboardVoters     LeaderboardKind = "voters"
)

// AllLeaderboardKinds lists every supported ranking
var AllLeaderboardKinds = []LeaderboardKind{
	LeaderboardVotes,
	LeaderboardBullish,
	LeaderboardRating,
	LeaderboardROI,
	LeaderboardSubmitters,
	LeaderboardVoters,
}

// ParseLeaderboardKind parses a leaderboard kind, case-insensitively
func ParseLeaderboardKind(s string) (LeaderboardKind, error) {
	kind := LeaderboardKind(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range AllLeaderboardKinds {
		if k == kind {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown leaderboard: %s", s)
}

// ProjectRanking is one ranked project
type ProjectRanking struct {
	Rank        int                 `json:"rank"`
	ProjectID   string              `json:"projectId"`
	Name        string              `json:"name"`
	Symbol      string              `json:"symbol"`
	Status      types.ProjectStatus `json:"status"`
	Bulls       int64               `json:"bulls"`
	Bears       int64               `json:"bears"`
	Votes       int64               `json:"votes"`
	BullPercent float64             `json:"bullPercent"`
	ROI         *float64            `json:"roi,omitempty"`
	Rating      float64             `json:"rating,omitempty"`
	RatingCount int64               `json:"ratingCount,omitempty"`
}

// UserRanking is one ranked user
type UserRanking struct {
	Rank              int    `json:"rank"`
	UserID            string `json:"userId"`
	DisplayName       string `json:"displayName"`
	ProjectsSubmitted int64  `json:"projectsSubmitted"`
	ProjectsVoted     int64  `json:"projectsVoted"`
}

// RankingResult is the uniform shape of every leaderboard
type RankingResult struct {
	Result
	Kind     LeaderboardKind  `json:"kind"`
	Projects []ProjectRanking `json:"projects,omitempty"`
	Users    []UserRanking    `json:"users,omitempty"`
}

// RankingService computes leaderboards, memoizing them in the cache when one is configured
type RankingService struct {
	projects ProjectStore
	users    UserStore
	ratings  RatingStore
	cache    LeaderboardCache
}

// NewRankingService creates a new ranking service. cache may be nil.
func NewRankingService(projects ProjectStore, users UserStore, ratings RatingStore, cache LeaderboardCache) *RankingService {
	return &RankingService{projects: projects, users: users, ratings: ratings, cache: cache}
}

// normalizeLimit applies the default for non-positive limits and caps large ones
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultRankingLimit
	}
	if limit > MaxRankingLimit {
		return MaxRankingLimit
	}
	return limit
}

// Leaderboard dispatches to the ranking named by kind
func (s *RankingService) Leaderboard(ctx context.Context, kind LeaderboardKind, limit int) *RankingResult {
	switch kind {
	case LeaderboardVotes:
		return s.TopByVotes(ctx, limit)
	case LeaderboardBullish:
		return s.TopBullish(ctx, limit)
	case LeaderboardRating:
		return s.TopByRating(ctx, limit)
	case LeaderboardROI:
		return s.TopByROI(ctx, limit)
	case LeaderboardSubmitters:
		return s.TopSubmitters(ctx, limit)
	case LeaderboardVoters:
		return s.TopVoters(ctx, limit)
	default:
		return &RankingResult{
			Result: failure(apperrors.NewInvalidParameterError("kind", "unknown leaderboard "+string(kind))),
			Kind:   kind,
		}
	}
}

// TopByVotes ranks projects with at least one vote by total votes, ties broken by bulls
func (s *RankingService) TopByVotes(ctx context.Context, limit int) *RankingResult {
	return s.cached(ctx, LeaderboardVotes, limit, func(limit int) (*RankingResult, error) {
		projects, err := s.projects.List(ctx, storage.ProjectFilter{MinVotes: 1, OrderBy: storage.OrderByVotes, Limit: limit})
		if err != nil {
			return nil, err
		}
		sort.SliceStable(projects, func(i, j int) bool {
			if projects[i].Votes != projects[j].Votes {
				return projects[i].Votes > projects[j].Votes
			}
			return projects[i].Bulls > projects[j].Bulls
		})
		return projectRankings(LeaderboardVotes, projects, limit), nil
	})
}

// TopBullish ranks projects with at least one bull vote by bull percentage, ties broken by votes
func (s *RankingService) TopBullish(ctx context.Context, limit int) *RankingResult {
	return s.cached(ctx, LeaderboardBullish, limit, func(limit int) (*RankingResult, error) {
		projects, err := s.projects.List(ctx, storage.ProjectFilter{MinBulls: 1, OrderBy: storage.OrderByBullPercent, Limit: limit})
		if err != nil {
			return nil, err
		}
		sort.SliceStable(projects, func(i, j int) bool {
			pi, pj := projects[i].BullPercent(), projects[j].BullPercent()
			if pi != pj {
				return pi > pj
			}
			return projects[i].Votes > projects[j].Votes
		})
		return projectRankings(LeaderboardBullish, projects, limit), nil
	})
}

// TopByROI ranks approved projects that have an ROI
func (s *RankingService) TopByROI(ctx context.Context, limit int) *RankingResult {
	return s.cached(ctx, LeaderboardROI, limit, func(limit int) (*RankingResult, error) {
		approved := types.StatusApproved
		projects, err := s.projects.List(ctx, storage.ProjectFilter{Status: &approved, HasROI: true, OrderBy: storage.OrderByROI, Limit: limit})
		if err != nil {
			return nil, err
		}
		withROI := projects[:0]
		for _, p := range projects {
			if p.ROI != nil && p.Status == types.StatusApproved {
				withROI = append(withROI, p)
			}
		}
		sort.SliceStable(withROI, func(i, j int) bool {
			return *withROI[i].ROI > *withROI[j].ROI
		})
		return projectRankings(LeaderboardROI, withROI, limit), nil
	})
}

type ratingAggregate struct {
	projectID string
	overall   float64
	count     int64
}

// TopByRating ranks projects by the mean of their rated category averages, ties broken
// by the number of ratings. Projects whose overall rating is 0 are left out.
func (s *RankingService) TopByRating(ctx context.Context, limit int) *RankingResult {
	return s.cached(ctx, LeaderboardRating, limit, func(limit int) (*RankingResult, error) {
		averages, err := s.ratings.CategoryAverages(ctx)
		if err != nil {
			return nil, err
		}

		aggregates := aggregateRatings(averages)
		sort.SliceStable(aggregates, func(i, j int) bool {
			if aggregates[i].overall != aggregates[j].overall {
				return aggregates[i].overall > aggregates[j].overall
			}
			return aggregates[i].count > aggregates[j].count
		})
		if len(aggregates) > limit {
			aggregates = aggregates[:limit]
		}

		ids := make([]string, 0, len(aggregates))
		for _, a := range aggregates {
			ids = append(ids, a.projectID)
		}
		projects, err := s.projects.GetByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}

		rankings := make([]ProjectRanking, 0, len(aggregates))
		for i, a := range aggregates {
			entry := ProjectRanking{
				Rank:        i + 1,
				ProjectID:   a.projectID,
				Name:        unknownProjectName,
				Rating:      a.overall,
				RatingCount: a.count,
			}
			if p, ok := projects[a.projectID]; ok {
				fillProjectRanking(&entry, p)
			}
			rankings = append(rankings, entry)
		}
		return &RankingResult{Result: succeed(""), Kind: LeaderboardRating, Projects: rankings}, nil
	})
}

// aggregateRatings folds per-category averages into one overall rating per project
func aggregateRatings(averages []models.CategoryAverage) []ratingAggregate {
	type acc struct {
		sum        float64
		categories int
		count      int64
	}
	byProject := make(map[string]*acc)
	var order []string
	for _, avg := range averages {
		if avg.Count <= 0 {
			continue
		}
		a, ok := byProject[avg.ProjectID]
		if !ok {
			a = &acc{}
			byProject[avg.ProjectID] = a
			order = append(order, avg.ProjectID)
		}
		a.sum += avg.Average
		a.categories++
		a.count += avg.Count
	}

	result := make([]ratingAggregate, 0, len(order))
	for _, id := range order {
		a := byProject[id]
		overall := a.sum / float64(a.categories)
		if overall == 0 {
			continue
		}
		result = append(result, ratingAggregate{projectID: id, overall: overall, count: a.count})
	}
	return result
}

// TopSubmitters ranks users by projects submitted
func (s *RankingService) TopSubmitters(ctx context.Context, limit int) *RankingResult {
	return s.cached(ctx, LeaderboardSubmitters, limit, func(limit int) (*RankingResult, error) {
		users, err := s.users.ListTop(ctx, storage.OrderBySubmissions, limit)
		if err != nil {
			return nil, err
		}
		return userRankings(LeaderboardSubmitters, users, limit, func(u *models.User) int64 { return u.ProjectsSubmitted }), nil
	})
}

// TopVoters ranks users by projects voted on
func (s *RankingService) TopVoters(ctx context.Context, limit int) *RankingResult {
	return s.cached(ctx, LeaderboardVoters, limit, func(limit int) (*RankingResult, error) {
		users, err := s.users.ListTop(ctx, storage.OrderByVotesCast, limit)
		if err != nil {
			return nil, err
		}
		return userRankings(LeaderboardVoters, users, limit, func(u *models.User) int64 { return u.ProjectsVoted }), nil
	})
}

// cached serves kind from the cache when possible and stores fresh successful results.
// Cache errors are logged and otherwise ignored; store errors become a failed result.
func (s *RankingService) cached(
	ctx context.Context,
	kind LeaderboardKind,
	limit int,
	compute func(limit int) (*RankingResult, error),
) *RankingResult {
	limit = normalizeLimit(limit)
	logger := logging.FromContext(ctx).WithField("leaderboard", kind)

	var key string
	if s.cache != nil {
		key = s.cache.Key(string(kind), limit)
		var hit RankingResult
		found, err := s.cache.Get(ctx, key, &hit)
		if err != nil {
			logger.WithError(err).Warn("Leaderboard cache read failed")
		} else if found {
			hit.Result = succeed(hit.Message)
			return &hit
		}
	}

	result, err := compute(limit)
	if err != nil {
		logger.WithError(err).Error("Failed to compute leaderboard")
		return &RankingResult{
			Result: failure(apperrors.NewDatabaseError("compute "+string(kind)+" leaderboard", err)),
			Kind:   kind,
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result); err != nil {
			logger.WithError(err).Warn("Leaderboard cache write failed")
		}
	}
	return result
}

func fillProjectRanking(entry *ProjectRanking, p *models.Project) {
	entry.ProjectID = p.ID
	entry.Name = p.Name
	entry.Symbol = p.Symbol
	entry.Status = p.Status
	entry.Bulls = p.Bulls
	entry.Bears = p.Bears
	entry.Votes = p.Votes
	entry.BullPercent = p.BullPercent()
	entry.ROI = p.ROI
}

func projectRankings(kind LeaderboardKind, projects []*models.Project, limit int) *RankingResult {
	if len(projects) > limit {
		projects = projects[:limit]
	}
	rankings := make([]ProjectRanking, 0, len(projects))
	for i, p := range projects {
		entry := ProjectRanking{Rank: i + 1}
		fillProjectRanking(&entry, p)
		rankings = append(rankings, entry)
	}
	return &RankingResult{Result: succeed(""), Kind: kind, Projects: rankings}
}

func userRankings(kind LeaderboardKind, users []*models.User, limit int, counter func(*models.User) int64) *RankingResult {
	ranked := make([]*models.User, 0, len(users))
	for _, u := range users {
		if counter(u) > 0 {
			ranked = append(ranked, u)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return counter(ranked[i]) > counter(ranked[j])
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	rankings := make([]UserRanking, 0, len(ranked))
	for i, u := range ranked {
		rankings = append(rankings, UserRanking{
			Rank:              i + 1,
			UserID:            u.ID,
			DisplayName:       u.DisplayName(),
			ProjectsSubmitted: u.ProjectsSubmitted,
			ProjectsVoted:     u.ProjectsVoted,
		})
	}
	return &RankingResult{Result: succeed(""), Kind: kind, Users: rankings}
}

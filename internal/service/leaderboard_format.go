package service

import (
	"fmt"
	"strings"
)

var leaderboardTitles = map[LeaderboardKind]string{
	LeaderboardVotes:      "Most Voted Projects",
	LeaderboardBullish:    "Most Bullish Projects",
	LeaderboardRating:     "Top Rated Projects",
	LeaderboardROI:        "Top ROI Projects",
	LeaderboardSubmitters: "Top Submitters",
	LeaderboardVoters:     "Most Active Voters",
}

// FormatLeaderboard renders a ranking as plain text, one entry per line
func FormatLeaderboard(result *RankingResult) string {
	title, ok := leaderboardTitles[result.Kind]
	if !ok {
		title = "Leaderboard"
	}

	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n\n")

	if !result.Success {
		sb.WriteString("Leaderboard unavailable")
		if result.Message != "" {
			sb.WriteString(": " + result.Message)
		}
		sb.WriteString("\n")
		return sb.String()
	}

	if len(result.Projects) == 0 && len(result.Users) == 0 {
		sb.WriteString("Nothing ranked yet.\n")
		return sb.String()
	}

	for _, p := range result.Projects {
		fmt.Fprintf(&sb, "%d. %s (%s): %s\n", p.Rank, p.Name, p.Symbol, projectDetail(result.Kind, p))
	}
	for _, u := range result.Users {
		count := u.ProjectsVoted
		noun := "votes"
		if result.Kind == LeaderboardSubmitters {
			count = u.ProjectsSubmitted
			noun = "submissions"
		}
		fmt.Fprintf(&sb, "%d. %s: %d %s\n", u.Rank, u.DisplayName, count, noun)
	}
	return sb.String()
}

func projectDetail(kind LeaderboardKind, p ProjectRanking) string {
	switch kind {
	case LeaderboardBullish:
		return fmt.Sprintf("%.1f%% bullish of %d votes", p.BullPercent, p.Votes)
	case LeaderboardRating:
		return fmt.Sprintf("%.2f/5 from %d ratings", p.Rating, p.RatingCount)
	case LeaderboardROI:
		if p.ROI == nil {
			return "ROI n/a"
		}
		return fmt.Sprintf("%+.2f%% ROI", *p.ROI)
	default:
		return fmt.Sprintf("%d votes (%d bull / %d bear)", p.Votes, p.Bulls, p.Bears)
	}
}

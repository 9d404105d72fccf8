package scoring

import (
	"math"
	"sort"

	"github.com/autodevhq/autodev-backend/internal/domain"
)

// ComputeTeamProgress aggregates per-member reports into a team-level view:
// average score, average time invested, and the areas the team is
// collectively strongest and weakest in.
func ComputeTeamProgress(repoID string, members []domain.DeveloperProgress) domain.TeamProgress {
	team := domain.TeamProgress{
		RepoID:    repoID,
		Members:   members,
		TopAreas:  []domain.SkillScore{},
		WeakAreas: []domain.SkillScore{},
	}
	if len(members) == 0 {
		return team
	}

	var scoreSum, timeSum int64
	for _, m := range members {
		scoreSum += int64(m.OverallScore)
		timeSum += m.TotalTimeSpentMs
	}
	team.AverageScore = int(math.Round(float64(scoreSum) / float64(len(members))))
	team.AverageTimeToOnboard = int64(math.Round(float64(timeSum) / float64(len(members))))

	// Average each standard area across members, then rank.
	avg := make([]domain.SkillScore, 0, len(domain.StandardAreas))
	for _, area := range domain.StandardAreas {
		sum, explored, total := 0, 0, 0
		for _, m := range members {
			for _, s := range m.Skills {
				if s.Area == area {
					sum += s.Score
					explored += s.ModulesExplored
					total = s.TotalModules
				}
			}
		}
		avg = append(avg, domain.SkillScore{
			Area:            area,
			Score:           int(math.Round(float64(sum) / float64(len(members)))),
			ModulesExplored: explored,
			TotalModules:    total,
		})
	}
	sort.SliceStable(avg, func(i, j int) bool { return avg[i].Score > avg[j].Score })

	top := 3
	if top > len(avg) {
		top = len(avg)
	}
	team.TopAreas = append(team.TopAreas, avg[:top]...)
	tail := avg[len(avg)-top:]
	for i := len(tail) - 1; i >= 0; i-- {
		team.WeakAreas = append(team.WeakAreas, tail[i])
	}
	return team
}

// Leaderboard ranks member reports by overall score, descending. Ties keep
// input order. StrongestArea is the member's highest-scoring skill, or
// "none" when the member has no scored areas.
func Leaderboard(members []domain.DeveloperProgress) []domain.LeaderboardEntry {
	ranked := make([]domain.DeveloperProgress, len(members))
	copy(ranked, members)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].OverallScore > ranked[j].OverallScore
	})

	entries := make([]domain.LeaderboardEntry, 0, len(ranked))
	for i, m := range ranked {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:                  i + 1,
			UserID:                m.UserID,
			OverallScore:          m.OverallScore,
			TotalTimeSpentMs:      m.TotalTimeSpentMs,
			WalkthroughsCompleted: m.WalkthroughsCompleted,
			QuestionsAsked:        m.QuestionsAsked,
			ModulesExplored:       m.ModulesExplored,
			StrongestArea:         strongestArea(m.Skills),
		})
	}
	return entries
}

func strongestArea(skills []domain.SkillScore) string {
	best := ""
	bestScore := 0
	for _, s := range skills {
		if s.Score > bestScore {
			bestScore = s.Score
			best = string(s.Area)
		}
	}
	if best == "" {
		return "none"
	}
	return best
}

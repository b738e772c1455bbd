// Package ranking orders groups and students by their aggregated score.
package ranking

import (
	"sort"

	"github.com/trezcool/tathmini/core/classroom"
	"github.com/trezcool/tathmini/core/scoring"
)

// Tier is the display class of a ranked group.
type Tier string

const (
	TierTop      Tier = "top"
	TierStandard Tier = "standard"

	topTierSize = 3
)

type RankedGroup struct {
	GroupID     string  `json:"groupId"`
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
	MemberCount int     `json:"memberCount"`
	Rank        int     `json:"rank"`
	Tier        Tier    `json:"tier"`
}

// Groups ranks every group by score, best first; ties are broken by name, then by id.
// When filter holds group ids, only those groups are returned, keeping the rank they have among all groups.
func Groups(groups []classroom.Group, scores scoring.GroupScores, filter ...string) []RankedGroup {
	ranked := make([]RankedGroup, 0, len(groups))
	for _, grp := range groups {
		gs := scores[grp.ID]
		ranked = append(ranked, RankedGroup{
			GroupID:     grp.ID,
			Name:        grp.Name,
			Score:       gs.Score,
			MemberCount: gs.Members,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.GroupID < b.GroupID
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
		ranked[i].Tier = TierStandard
		if ranked[i].Rank <= topTierSize {
			ranked[i].Tier = TierTop
		}
	}

	if len(filter) == 0 {
		return ranked
	}
	keep := make(map[string]bool, len(filter))
	for _, id := range filter {
		keep[id] = true
	}
	filtered := make([]RankedGroup, 0, len(filter))
	for _, rg := range ranked {
		if keep[rg.GroupID] {
			filtered = append(filtered, rg)
		}
	}
	return filtered
}

type RankedStudent struct {
	StudentID       string  `json:"studentId"`
	Name            string  `json:"name"`
	GroupID         string  `json:"groupId"`
	GroupName       string  `json:"groupName"`
	NoGroup         bool    `json:"noGroup"`
	AverageScore    float64 `json:"averageScore"`
	EvaluationCount int     `json:"evaluationCount"`
	Rank            int     `json:"rank"`
}

// Students attaches the 1-based rank and the group name to already ordered averages.
// Students without a group, or in a deleted one, are flagged NoGroup.
func Students(averages []scoring.StudentAverage, groups []classroom.Group) []RankedStudent {
	names := make(map[string]string, len(groups))
	for _, grp := range groups {
		names[grp.ID] = grp.Name
	}

	ranked := make([]RankedStudent, 0, len(averages))
	for i, avg := range averages {
		name, ok := names[avg.GroupID]
		ranked = append(ranked, RankedStudent{
			StudentID:       avg.StudentID,
			Name:            avg.Name,
			GroupID:         avg.GroupID,
			GroupName:       name,
			NoGroup:         avg.GroupID == "" || !ok,
			AverageScore:    avg.AverageScore,
			EvaluationCount: avg.EvaluationCount,
			Rank:            i + 1,
		})
	}
	return ranked
}

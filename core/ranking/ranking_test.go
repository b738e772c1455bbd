package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tathmini/core/classroom"
	"github.com/trezcool/tathmini/core/scoring"
)

var groups = []classroom.Group{
	{ID: "g1", Name: "Lions"},
	{ID: "g2", Name: "Tigers"},
	{ID: "g3", Name: "Eagles"},
	{ID: "g4", Name: "Ants"},
	{ID: "g5", Name: "Bees"},
}

var scores = scoring.GroupScores{
	"g1": {Score: 33.25, Members: 2},
	"g2": {Score: 40, Members: 3},
	"g3": {Score: 12, Members: 1},
	"g4": {Score: 12, Members: 4},
	// g5 has no score entry
}

func ids(ranked []RankedGroup) []string {
	out := make([]string, len(ranked))
	for i, rg := range ranked {
		out[i] = rg.GroupID
	}
	return out
}

func TestGroups(t *testing.T) {
	ranked := Groups(groups, scores)

	require.Len(t, ranked, 5)
	assert.Equal(t, []string{"g2", "g1", "g4", "g3", "g5"}, ids(ranked), "ties are broken by name")
	assert.Equal(t, RankedGroup{GroupID: "g2", Name: "Tigers", Score: 40, MemberCount: 3, Rank: 1, Tier: TierTop}, ranked[0])
	assert.Equal(t, TierTop, ranked[2].Tier)
	assert.Equal(t, TierStandard, ranked[3].Tier)
	assert.Equal(t, RankedGroup{GroupID: "g5", Name: "Bees", Rank: 5, Tier: TierStandard}, ranked[4])

	t.Run("filtered", func(t *testing.T) {
		tests := []struct {
			name      string
			filter    []string
			wantIDs   []string
			wantRanks []int
		}{
			{name: "one", filter: []string{"g3"}, wantIDs: []string{"g3"}, wantRanks: []int{4}},
			{name: "several, any order", filter: []string{"g5", "g1"}, wantIDs: []string{"g1", "g5"}, wantRanks: []int{2, 5}},
			{name: "unknown", filter: []string{"nope"}, wantIDs: []string{}, wantRanks: []int{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got := Groups(groups, scores, tt.filter...)
				assert.Equal(t, tt.wantIDs, ids(got))
				ranks := make([]int, len(got))
				for i, rg := range got {
					ranks[i] = rg.Rank
				}
				assert.Equal(t, tt.wantRanks, ranks)
			})
		}
	})

	t.Run("same name", func(t *testing.T) {
		twins := []classroom.Group{{ID: "b", Name: "Twins"}, {ID: "a", Name: "Twins"}}
		assert.Equal(t, []string{"a", "b"}, ids(Groups(twins, nil)))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, Groups(nil, scores))
	})
}

func TestStudents(t *testing.T) {
	averages := []scoring.StudentAverage{
		{StudentID: "s1", Name: "Amina", GroupID: "g1", AverageScore: 46.5, EvaluationCount: 2},
		{StudentID: "s2", Name: "Baraka", GroupID: "deleted", AverageScore: 20, EvaluationCount: 1},
		{StudentID: "s3", Name: "Chausiku", AverageScore: 10, EvaluationCount: 1},
	}

	ranked := Students(averages, groups)

	require.Len(t, ranked, 3)
	assert.Equal(t, RankedStudent{
		StudentID:       "s1",
		Name:            "Amina",
		GroupID:         "g1",
		GroupName:       "Lions",
		AverageScore:    46.5,
		EvaluationCount: 2,
		Rank:            1,
	}, ranked[0])
	assert.True(t, ranked[1].NoGroup)
	assert.Empty(t, ranked[1].GroupName)
	assert.True(t, ranked[2].NoGroup)
	assert.Equal(t, 3, ranked[2].Rank)
}

package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tathmini/core/classroom"
)

func selected(ids ...string) map[string]classroom.OptionMark {
	marks := make(map[string]classroom.OptionMark, len(ids))
	for _, id := range ids {
		marks[id] = classroom.OptionMark{Selected: true, OptionID: id}
	}
	return marks
}

// s1 scores 58 then 35 (average 46.5); s2 scores 20 once (average 20).
var (
	groups = []classroom.Group{{ID: "g1", Name: "Lions"}, {ID: "g2", Name: "Empty"}}

	students = []classroom.Student{
		{ID: "s1", Name: "Amina", GroupID: "g1"},
		{ID: "s2", Name: "Baraka", GroupID: "g1"},
		{ID: "s3", Name: "Chausiku"},
		{ID: "s4", Name: "Dalila", GroupID: "deleted"},
	}

	tasks = []classroom.Task{
		{ID: "tB", Name: "Graphs", MaxScore: 50, Date: "2024-02-10"},
		{ID: "tA", Name: "Sorting", MaxScore: 50, Date: "2024-01-10"},
	}

	evalA = classroom.Evaluation{
		ID:      "eA",
		TaskID:  "tA",
		GroupID: "g1",
		Scores: map[string]*classroom.Score{
			"s1": {TaskScore: null.IntFrom(40), TeamworkScore: null.IntFrom(8), OptionMarks: selected("learned_can_write")},
			"s2": {TaskScore: null.IntFrom(15), TeamworkScore: null.IntFrom(5), Comments: "late"},
			"s4": {TaskScore: null.IntFrom(10)},
		},
	}
	evalB = classroom.Evaluation{
		ID:      "eB",
		TaskID:  "tB",
		GroupID: "g1",
		Scores: map[string]*classroom.Score{
			"s1": {TaskScore: null.IntFrom(30), TeamworkScore: null.IntFrom(5)},
			"s2": nil,
		},
	}
	evals = []classroom.Evaluation{evalA, evalB}
)

func TestEvaluationTotalForStudent(t *testing.T) {
	tests := []struct {
		name      string
		eval      classroom.Evaluation
		studentID string
		want      int
	}{
		{name: "scores and option", eval: evalA, studentID: "s1", want: 58},
		{name: "scores only", eval: evalB, studentID: "s1", want: 35},
		{name: "nil record", eval: evalB, studentID: "s2", want: 0},
		{name: "absent student", eval: evalA, studentID: "s3", want: 0},
		{name: "no scores at all", eval: classroom.Evaluation{ID: "e"}, studentID: "s1", want: 0},
		{name: "absent values", eval: classroom.Evaluation{Scores: map[string]*classroom.Score{"s1": {}}}, studentID: "s1", want: 0},
		{
			name:      "unknown option",
			eval:      classroom.Evaluation{Scores: map[string]*classroom.Score{"s1": {TaskScore: null.IntFrom(3), OptionMarks: selected("made_up")}}},
			studentID: "s1",
			want:      3,
		},
		{
			name: "unselected and negative options",
			eval: classroom.Evaluation{Scores: map[string]*classroom.Score{"s1": {
				TaskScore: null.IntFrom(10),
				OptionMarks: map[string]classroom.OptionMark{
					"cannot_do":        {Selected: true},
					"can_teach_others": {Selected: false},
				},
			}}},
			studentID: "s1",
			want:      5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluationTotalForStudent(tt.eval, tt.studentID); got != tt.want {
				t.Errorf("EvaluationTotalForStudent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluationTotal(t *testing.T) {
	assert.Equal(t, 58+20+10, EvaluationTotal(evalA))
	assert.Equal(t, 35, EvaluationTotal(evalB))
	assert.Equal(t, 0, EvaluationTotal(classroom.Evaluation{}))
}

func TestGroupScores(t *testing.T) {
	scores := GroupScores(groups, students, evals)

	// (46.5 + 20) / 2, not (58 + 35 + 20) / 3
	assert.Equal(t, GroupScore{Score: 33.25, Members: 2}, scores["g1"])
	assert.Equal(t, GroupScore{}, scores["g2"], "a group without members scores 0")
	assert.Len(t, scores, 2, "orphaned group references are ignored")

	t.Run("never evaluated members pull the average down", func(t *testing.T) {
		withNewcomer := append(append([]classroom.Student{}, students...), classroom.Student{ID: "s5", Name: "Elia", GroupID: "g1"})
		scores := GroupScores(groups, withNewcomer, evals)
		assert.Equal(t, GroupScore{Score: 66.5 / 3, Members: 3}, scores["g1"])
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, GroupScores(nil, nil, nil))
		assert.Equal(t, GroupScore{Members: 2}, GroupScores(groups, students, nil)["g1"])
	})

	t.Run("inputs are untouched", func(t *testing.T) {
		before := len(evalA.Scores)
		_ = GroupScores(groups, students, evals)
		assert.Len(t, evalA.Scores, before)
		assert.Equal(t, "g1", students[0].GroupID)
	})
}

func TestStudentRankings(t *testing.T) {
	rankings := StudentRankings(students, evals)

	require.Len(t, rankings, 3, "students without evaluations are excluded")
	assert.Equal(t, StudentAverage{StudentID: "s1", Name: "Amina", GroupID: "g1", AverageScore: 46.5, EvaluationCount: 2}, rankings[0])
	assert.Equal(t, StudentAverage{StudentID: "s2", Name: "Baraka", GroupID: "g1", AverageScore: 20, EvaluationCount: 1}, rankings[1])
	assert.Equal(t, "s4", rankings[2].StudentID)
	for _, r := range rankings {
		assert.NotEqual(t, "s3", r.StudentID)
	}

	t.Run("ties", func(t *testing.T) {
		tied := []classroom.Student{{ID: "b", Name: "Zuri"}, {ID: "c", Name: "Asha"}, {ID: "a", Name: "Asha"}}
		eval := classroom.Evaluation{Scores: map[string]*classroom.Score{
			"a": {TaskScore: null.IntFrom(10)},
			"b": {TaskScore: null.IntFrom(10)},
			"c": {TaskScore: null.IntFrom(10)},
		}}
		rankings := StudentRankings(tied, []classroom.Evaluation{eval})
		got := []string{rankings[0].StudentID, rankings[1].StudentID, rankings[2].StudentID}
		assert.Equal(t, []string{"a", "c", "b"}, got)
	})
}

func TestTaskScores(t *testing.T) {
	scores := TaskScores(tasks, append(evals, classroom.Evaluation{TaskID: "unknown"}))

	require.Len(t, scores, 2)
	assert.Equal(t, TaskScore{TaskID: "tB", Name: "Graphs", MaxScore: 50, Evaluations: 1, Entries: 1, Average: 35, Best: 35}, scores[0])
	assert.Equal(t, TaskScore{TaskID: "tA", Name: "Sorting", MaxScore: 50, Evaluations: 1, Entries: 3, Average: 88.0 / 3, Best: 58}, scores[1])

	t.Run("negative best", func(t *testing.T) {
		eval := classroom.Evaluation{TaskID: "tA", Scores: map[string]*classroom.Score{"s1": {OptionMarks: selected("cannot_do")}}}
		scores := TaskScores(tasks, []classroom.Evaluation{eval})
		assert.Equal(t, -5, scores[1].Best)
	})
}

func TestStudentReport(t *testing.T) {
	report := StudentReport("s1", tasks, evals)

	require.Len(t, report, 2)
	assert.Equal(t, "tB", report[0].TaskID, "ordered like tasks")
	assert.Equal(t, TaskResult{
		EvaluationID:    "eA",
		TaskID:          "tA",
		TaskName:        "Sorting",
		Date:            "2024-01-10",
		MaxScore:        50,
		TaskScore:       40,
		TeamworkScore:   8,
		RubricMarks:     10,
		SelectedOptions: []string{"learned_can_write"},
		Total:           58,
	}, report[1])

	assert.Empty(t, StudentReport("s2", tasks, []classroom.Evaluation{evalB}), "nil records are not reported")
	assert.Empty(t, StudentReport("s3", tasks, evals))
}

func TestCountProblems(t *testing.T) {
	eval := classroom.Evaluation{Scores: map[string]*classroom.Score{
		"s1": {OptionMarks: map[string]classroom.OptionMark{
			"understood": {Selected: true, OptionID: "cannot_do"},
			"made_up":    {Selected: true},
			"cannot_do":  {Selected: false},
		}},
		"s2": {OptionMarks: selected("understood", "can_teach_others")},
	}}

	stats := CountProblems([]classroom.Evaluation{eval, evalA, evalB, {ID: "no scores"}})

	assert.Equal(t, 2+3+1, stats.Entries)
	assert.Equal(t, 2, stats.Counts["understood"], "the map key identifies the option")
	assert.Equal(t, 0, stats.Counts["cannot_do"])
	assert.Equal(t, 1, stats.Counts["can_teach_others"])
	assert.Equal(t, 1, stats.Counts["learned_can_write"])
	assert.Equal(t, 1, stats.Unknown)
	assert.Len(t, stats.Counts, 5)

	empty := CountProblems(nil)
	assert.Equal(t, 0, empty.Entries)
	assert.Len(t, empty.Counts, 5)
}

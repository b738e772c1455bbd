// Package scoring derives student, group and task scores from evaluations.
//
// Every function is pure: inputs are never modified.
package scoring

import (
	"sort"

	"github.com/trezcool/tathmini/core/classroom"
)

// EvaluationTotalForStudent returns the points of a student in an evaluation:
// task score + teamwork score + the marks of the selected rubric options. 0 if the student has no record.
func EvaluationTotalForStudent(eval classroom.Evaluation, studentID string) int {
	score, ok := eval.Score(studentID)
	if !ok {
		return 0
	}
	return scoreTotal(*score)
}

func scoreTotal(s classroom.Score) int {
	return s.TaskScore.ValueOrZero() + s.TeamworkScore.ValueOrZero() + s.RubricMarks()
}

// EvaluationTotal returns the sum of the totals of every student recorded in the evaluation.
func EvaluationTotal(eval classroom.Evaluation) int {
	var total int
	for sid := range eval.Scores {
		total += EvaluationTotalForStudent(eval, sid)
	}
	return total
}

// GroupScore is the average of the members' average scores.
type GroupScore struct {
	Score   float64 `json:"score"`
	Members int     `json:"members"`
}

type GroupScores map[string]GroupScore

// studentAverage returns the average total of a student over the evaluations holding a record for them.
func studentAverage(studentID string, evals []classroom.Evaluation) (avg float64, count int) {
	var sum int
	for _, eval := range evals {
		if _, ok := eval.Score(studentID); ok {
			sum += EvaluationTotalForStudent(eval, studentID)
			count++
		}
	}
	if count == 0 {
		return 0, 0
	}
	return float64(sum) / float64(count), count
}

// GroupScores averages, for every group, the average scores of its members.
// Members without any evaluation count with an average of 0. Groups without members score 0.
// Students pointing at an unknown group are ignored.
func GroupScores(groups []classroom.Group, students []classroom.Student, evals []classroom.Evaluation) GroupScores {
	sums := make(map[string]float64, len(groups))
	scores := make(GroupScores, len(groups))
	for _, grp := range groups {
		scores[grp.ID] = GroupScore{}
	}

	for _, std := range students {
		if std.GroupID == "" {
			continue
		}
		gs, ok := scores[std.GroupID]
		if !ok {
			continue
		}
		avg, _ := studentAverage(std.ID, evals)
		sums[std.GroupID] += avg
		gs.Members++
		scores[std.GroupID] = gs
	}

	for id, gs := range scores {
		if gs.Members > 0 {
			gs.Score = sums[id] / float64(gs.Members)
			scores[id] = gs
		}
	}
	return scores
}

type StudentAverage struct {
	StudentID       string  `json:"studentId"`
	Name            string  `json:"name"`
	GroupID         string  `json:"groupId"`
	AverageScore    float64 `json:"averageScore"`
	EvaluationCount int     `json:"evaluationCount"`
}

// StudentRankings returns the students with at least one evaluation, best average first.
// Ties are broken by name, then by id.
func StudentRankings(students []classroom.Student, evals []classroom.Evaluation) []StudentAverage {
	averages := make([]StudentAverage, 0, len(students))
	for _, std := range students {
		avg, count := studentAverage(std.ID, evals)
		if count == 0 {
			continue
		}
		averages = append(averages, StudentAverage{
			StudentID:       std.ID,
			Name:            std.Name,
			GroupID:         std.GroupID,
			AverageScore:    avg,
			EvaluationCount: count,
		})
	}

	sort.SliceStable(averages, func(i, j int) bool {
		a, b := averages[i], averages[j]
		if a.AverageScore != b.AverageScore {
			return a.AverageScore > b.AverageScore
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.StudentID < b.StudentID
	})
	return averages
}

// TaskScore summarizes the evaluations of a task.
type TaskScore struct {
	TaskID      string  `json:"taskId"`
	Name        string  `json:"name"`
	MaxScore    int     `json:"maxScore"`
	Evaluations int     `json:"evaluations"`
	Entries     int     `json:"entries"`
	Average     float64 `json:"average"` // per entry
	Best        int     `json:"best"`
}

// TaskScores summarizes the evaluations of every task, in the order of tasks.
// Evaluations of unknown tasks are ignored.
func TaskScores(tasks []classroom.Task, evals []classroom.Evaluation) []TaskScore {
	idx := make(map[string]int, len(tasks))
	scores := make([]TaskScore, len(tasks))
	sums := make([]int, len(tasks))
	for i, tsk := range tasks {
		idx[tsk.ID] = i
		scores[i] = TaskScore{TaskID: tsk.ID, Name: tsk.Name, MaxScore: tsk.MaxScore}
	}

	for _, eval := range evals {
		i, ok := idx[eval.TaskID]
		if !ok {
			continue
		}
		ts := &scores[i]
		ts.Evaluations++
		for _, score := range eval.Scores {
			if score == nil {
				continue
			}
			total := scoreTotal(*score)
			if ts.Entries == 0 || total > ts.Best {
				ts.Best = total
			}
			sums[i] += total
			ts.Entries++
		}
	}

	for i := range scores {
		if scores[i].Entries > 0 {
			scores[i].Average = float64(sums[i]) / float64(scores[i].Entries)
		}
	}
	return scores
}

// TaskResult is the detail of a student's record in one evaluation.
type TaskResult struct {
	EvaluationID    string   `json:"evaluationId"`
	TaskID          string   `json:"taskId"`
	TaskName        string   `json:"taskName"`
	Date            string   `json:"date"`
	MaxScore        int      `json:"maxScore"`
	TaskScore       int      `json:"taskScore"`
	TeamworkScore   int      `json:"teamworkScore"`
	RubricMarks     int      `json:"rubricMarks"`
	SelectedOptions []string `json:"selectedOptions"`
	Comments        string   `json:"comments"`
	Total           int      `json:"total"`
}

// StudentReport returns the results of a student in every evaluation holding a record for them,
// in the order of tasks. Evaluations of unknown tasks come last.
func StudentReport(studentID string, tasks []classroom.Task, evals []classroom.Evaluation) []TaskResult {
	pos := make(map[string]int, len(tasks))
	for i, tsk := range tasks {
		pos[tsk.ID] = i
	}
	taskOf := func(id string) (classroom.Task, int) {
		if i, ok := pos[id]; ok {
			return tasks[i], i
		}
		return classroom.Task{ID: id}, len(tasks)
	}

	type ordered struct {
		res TaskResult
		pos int
	}
	results := make([]ordered, 0)
	for _, eval := range evals {
		score, ok := eval.Score(studentID)
		if !ok {
			continue
		}
		tsk, p := taskOf(eval.TaskID)
		results = append(results, ordered{pos: p, res: TaskResult{
			EvaluationID:    eval.ID,
			TaskID:          eval.TaskID,
			TaskName:        tsk.Name,
			Date:            tsk.Date,
			MaxScore:        tsk.MaxScore,
			TaskScore:       score.TaskScore.ValueOrZero(),
			TeamworkScore:   score.TeamworkScore.ValueOrZero(),
			RubricMarks:     score.RubricMarks(),
			SelectedOptions: score.SelectedOptions(),
			Comments:        score.Comments,
			Total:           scoreTotal(*score),
		}})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].pos < results[j].pos })

	report := make([]TaskResult, len(results))
	for i, r := range results {
		report[i] = r.res
	}
	return report
}

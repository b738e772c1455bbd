// Package dashboard holds the loaded collections and everything derived from them.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tathmini/core"
	"github.com/trezcool/tathmini/core/classroom"
	"github.com/trezcool/tathmini/core/loader"
	"github.com/trezcool/tathmini/core/ranking"
	"github.com/trezcool/tathmini/core/rubric"
	"github.com/trezcool/tathmini/core/scoring"
)

type EvaluationSummary struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	TaskName  string    `json:"taskName"`
	GroupID   string    `json:"groupId"`
	GroupName string    `json:"groupName"`
	Students  int       `json:"students"`
	Total     int       `json:"total"`
	UpdatedAt null.Time `json:"updatedAt"`
}

type StudentReport struct {
	Student      classroom.Student    `json:"student"`
	GroupName    string               `json:"groupName"`
	AverageScore float64              `json:"averageScore"`
	Rank         int                  `json:"rank"` // 0 when not ranked
	Results      []scoring.TaskResult `json:"results"`
}

type Dashboard struct {
	loader  *loader.Loader
	log     core.Logger
	nowFunc func() time.Time

	loads atomic.Uint64 // started loads

	mu          sync.RWMutex
	applied     uint64 // sequence number of the load snap comes from
	snap        loader.Snapshot
	groupScores scoring.GroupScores
	groups      []ranking.RankedGroup
	students    []ranking.RankedStudent
	tasks       []scoring.TaskScore
	problems    scoring.ProblemStats
	refreshedAt time.Time
}

var _ classroom.Invalidator = (*Dashboard)(nil)

func New(l *loader.Loader, logger core.Logger) *Dashboard {
	return &Dashboard{
		loader:   l,
		log:      logger,
		nowFunc:  time.Now,
		problems: scoring.CountProblems(nil),
	}
}

// Refresh reloads the collections (bypassing fresh cache entries if force) and recomputes every aggregate.
// Without force, nothing is done while the loaded data is fresh.
// Collections that fail to load keep their previous data; the load error is returned once the rest is applied.
// A load finishing after one started later is dropped.
func (d *Dashboard) Refresh(ctx context.Context, force bool) error {
	if !force && d.fresh() {
		return nil
	}

	seq := d.loads.Add(1)
	var (
		snap loader.Snapshot
		err  error
	)
	if force {
		snap, err = d.loader.Refresh(ctx)
	} else {
		snap, err = d.loader.LoadAll(ctx)
	}
	if err != nil {
		d.log.Warn(fmt.Sprintf("loading collections: %v", err), err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if seq < d.applied {
		d.log.Debug(fmt.Sprintf("dashboard: dropping load #%d, #%d is newer", seq, d.applied))
		return err
	}
	d.applied = seq
	d.snap = snap.Merge(d.snap)
	d.recompute()
	d.refreshedAt = d.nowFunc()
	return err
}

func (d *Dashboard) fresh() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.applied > 0 && d.loader.Fresh(d.snap)
}

// recompute must be called with mu held.
func (d *Dashboard) recompute() {
	s := d.snap
	d.groupScores = scoring.GroupScores(s.Groups, s.Students, s.Evaluations)
	d.groups = ranking.Groups(s.Groups, d.groupScores)
	d.students = ranking.Students(scoring.StudentRankings(s.Students, s.Evaluations), s.Groups)
	d.tasks = scoring.TaskScores(s.Tasks, s.Evaluations)
	d.problems = scoring.CountProblems(s.Evaluations)
}

// Invalidate drops the cached copy of collection and reloads.
func (d *Dashboard) Invalidate(ctx context.Context, collection string) error {
	if err := d.loader.Invalidate(collection); err != nil {
		return errors.Wrapf(err, "invalidating %s", collection)
	}
	return d.Refresh(ctx, false)
}

// Missing returns the collections, among the given ones, for which no data was ever loaded.
func (d *Dashboard) Missing(collections ...string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var missing []string
	for _, coll := range collections {
		if !d.snap.Loaded(coll) {
			missing = append(missing, coll)
		}
	}
	return missing
}

func (d *Dashboard) RefreshedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.refreshedAt
}

func (d *Dashboard) Snapshot() loader.Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap
}

// GroupRanking returns the ranked groups; see ranking.Groups for filter.
func (d *Dashboard) GroupRanking(filter ...string) []ranking.RankedGroup {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if len(filter) > 0 {
		return ranking.Groups(d.snap.Groups, d.groupScores, filter...)
	}
	return append([]ranking.RankedGroup(nil), d.groups...)
}

func (d *Dashboard) StudentRanking() []ranking.RankedStudent {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]ranking.RankedStudent(nil), d.students...)
}

func (d *Dashboard) ProblemStats() scoring.ProblemStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := d.problems
	stats.Counts = make(map[rubric.Option]int, len(d.problems.Counts))
	for opt, n := range d.problems.Counts {
		stats.Counts[opt] = n
	}
	return stats
}

func (d *Dashboard) TaskSummaries() []scoring.TaskScore {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]scoring.TaskScore(nil), d.tasks...)
}

// EvaluationSummaries returns the total of every evaluation, most recently updated first.
func (d *Dashboard) EvaluationSummaries() []EvaluationSummary {
	d.mu.RLock()
	defer d.mu.RUnlock()

	taskNames := make(map[string]string, len(d.snap.Tasks))
	for _, tsk := range d.snap.Tasks {
		taskNames[tsk.ID] = tsk.Name
	}
	groupNames := make(map[string]string, len(d.snap.Groups))
	for _, grp := range d.snap.Groups {
		groupNames[grp.ID] = grp.Name
	}

	summaries := make([]EvaluationSummary, 0, len(d.snap.Evaluations))
	for _, eval := range d.snap.Evaluations {
		var students int
		for sid := range eval.Scores {
			if _, ok := eval.Score(sid); ok {
				students++
			}
		}
		summaries = append(summaries, EvaluationSummary{
			ID:        eval.ID,
			TaskID:    eval.TaskID,
			TaskName:  taskNames[eval.TaskID],
			GroupID:   eval.GroupID,
			GroupName: groupNames[eval.GroupID],
			Students:  students,
			Total:     scoring.EvaluationTotal(eval),
			UpdatedAt: eval.UpdatedAt,
		})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.Time.After(summaries[j].UpdatedAt.Time)
	})
	return summaries
}

// EvaluationTotal returns the total of the evaluation with the given id.
func (d *Dashboard) EvaluationTotal(id string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, eval := range d.snap.Evaluations {
		if eval.ID == id {
			return scoring.EvaluationTotal(eval), nil
		}
	}
	return 0, errors.Wrapf(core.ErrNotFound, "evaluation %q", id)
}

// StudentReport returns the results of the student with the given id.
func (d *Dashboard) StudentReport(id string) (StudentReport, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var (
		std   classroom.Student
		found bool
	)
	for _, s := range d.snap.Students {
		if s.ID == id {
			std, found = s, true
			break
		}
	}
	if !found {
		return StudentReport{}, errors.Wrapf(core.ErrNotFound, "student %q", id)
	}

	report := StudentReport{
		Student: std,
		Results: scoring.StudentReport(id, d.snap.Tasks, d.snap.Evaluations),
	}
	for _, grp := range d.snap.Groups {
		if grp.ID == std.GroupID {
			report.GroupName = grp.Name
			break
		}
	}
	for _, rs := range d.students {
		if rs.StudentID == id {
			report.AverageScore = rs.AverageScore
			report.Rank = rs.Rank
			break
		}
	}
	return report, nil
}

package loader

import "github.com/trezcool/tathmini/core/classroom"

// Snapshot is the state of the classroom collections after a load.
// A nil collection was not loaded; see Failed.
type Snapshot struct {
	Groups      []classroom.Group
	Students    []classroom.Student
	Tasks       []classroom.Task
	Evaluations []classroom.Evaluation

	Sources map[string]Source
	Failed  []string
	Epoch   uint64 // Loader invalidation count when the load started
}

// Loaded reports whether collection is part of the snapshot.
func (s Snapshot) Loaded(collection string) bool {
	_, ok := s.Sources[collection]
	return ok
}

// Merge returns s where the collections that failed to load are taken from prev.
func (s Snapshot) Merge(prev Snapshot) Snapshot {
	merged := s
	merged.Sources = make(map[string]Source, len(s.Sources))
	for coll, src := range s.Sources {
		merged.Sources[coll] = src
	}
	merged.Failed = nil

	for _, coll := range s.Failed {
		if !prev.Loaded(coll) {
			merged.Failed = append(merged.Failed, coll)
			continue
		}
		merged.Sources[coll] = prev.Sources[coll]
		switch coll {
		case classroom.CollGroups:
			merged.Groups = prev.Groups
		case classroom.CollStudents:
			merged.Students = prev.Students
		case classroom.CollTasks:
			merged.Tasks = prev.Tasks
		case classroom.CollEvaluations:
			merged.Evaluations = prev.Evaluations
		}
	}
	return merged
}

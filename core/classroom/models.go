package classroom

import (
	"sort"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tathmini/core"
	"github.com/trezcool/tathmini/core/rubric"
)

// Collections
const (
	CollGroups      = "groups"
	CollStudents    = "students"
	CollTasks       = "tasks"
	CollEvaluations = "evaluations"
)

// Collections lists the collections evaluations are derived from.
var Collections = []string{CollGroups, CollStudents, CollTasks, CollEvaluations}

// Student roles
const (
	RoleLeader    Role = "leader"
	RoleSecretary Role = "secretary"
	RolePresenter Role = "presenter"
	RoleCoder     Role = "coder"
	RoleReviewer  Role = "reviewer"
)

var Roles = []Role{RoleLeader, RoleSecretary, RolePresenter, RoleCoder, RoleReviewer}

// Role is the responsibility a student holds within their group.
type Role string

func (r Role) Valid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt null.Time `json:"createdAt"`
}

type Student struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Roll          string `json:"roll"`
	Gender        string `json:"gender"`
	GroupID       string `json:"groupId"`
	AcademicGroup string `json:"academicGroup"`
	Session       string `json:"session"`
	Role          Role   `json:"role"`
	Contact       string `json:"contact"`
}

type Task struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxScore    int    `json:"maxScore"`
	Date        string `json:"date"` // YYYY-MM-DD
}

// Evaluation is the assessment of one task performed by one group.
// A nil Score means the student has no record in this evaluation.
type Evaluation struct {
	ID        string            `json:"id"`
	TaskID    string            `json:"taskId"`
	GroupID   string            `json:"groupId"`
	Scores    map[string]*Score `json:"scores"`
	UpdatedAt null.Time         `json:"updatedAt"`
}

// Score returns the record of the given student, if any.
func (e Evaluation) Score(studentID string) (*Score, bool) {
	s, ok := e.Scores[studentID]
	return s, ok && s != nil
}

type Score struct {
	TaskScore     null.Int              `json:"taskScore" validate:"omitempty,min=0"`
	TeamworkScore null.Int              `json:"teamworkScore" validate:"omitempty,min=0,max=10"`
	Comments      string                `json:"comments"`
	OptionMarks   map[string]OptionMark `json:"optionMarks"`
}

// OptionMark tells whether a rubric option was selected.
// The key it is stored under in Score.OptionMarks identifies the option; OptionID is informational.
type OptionMark struct {
	Selected bool   `json:"selected"`
	OptionID string `json:"optionId"`
}

// SelectedOptions returns the ids of the selected options, sorted.
func (s Score) SelectedOptions() []string {
	ids := make([]string, 0, len(s.OptionMarks))
	for id, mark := range s.OptionMarks {
		if mark.Selected {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// RubricMarks returns the sum of the marks of the selected known options.
func (s Score) RubricMarks() int {
	var sum int
	for id, mark := range s.OptionMarks {
		if mark.Selected {
			sum += rubric.Marks(id)
		}
	}
	return sum
}

// NewGroup contains information needed to create a new Group.
type NewGroup struct {
	Name string `json:"name" validate:"required,max=50"`
}

func (ng *NewGroup) Clean() { ng.Name = core.CleanString(ng.Name) }

type UpdateGroup struct {
	Name string `json:"name" validate:"required,max=50"`
}

func (ug *UpdateGroup) Clean() { ug.Name = core.CleanString(ug.Name) }

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	Name          string `json:"name" validate:"required"`
	Roll          string `json:"roll" validate:"required"`
	Gender        string `json:"gender"`
	GroupID       string `json:"groupId"`
	AcademicGroup string `json:"academicGroup"`
	Session       string `json:"session"`
	Role          Role   `json:"role" validate:"omitempty,role"`
	Contact       string `json:"contact"`
}

func (ns *NewStudent) Clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.Roll = core.CleanString(ns.Roll)
	ns.GroupID = core.CleanString(ns.GroupID)
	ns.AcademicGroup = core.CleanString(ns.AcademicGroup)
	ns.Session = core.CleanString(ns.Session)
	ns.Contact = core.CleanString(ns.Contact)
	ns.Role = Role(core.CleanString(string(ns.Role), true /* lower */))
}

// UpdateStudent replaces every editable field of a Student.
type UpdateStudent NewStudent

func (us *UpdateStudent) Clean() { (*NewStudent)(us).Clean() }

// NewTask contains information needed to create a new Task.
type NewTask struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	MaxScore    int    `json:"maxScore" validate:"min=1,max=1000"`
	Date        string `json:"date" validate:"omitempty,isodate"`
}

func (nt *NewTask) Clean() {
	nt.Name = core.CleanString(nt.Name)
	nt.Description = core.CleanString(nt.Description)
	nt.Date = core.CleanString(nt.Date)
}

// UpdateTask replaces every editable field of a Task.
type UpdateTask NewTask

func (ut *UpdateTask) Clean() { (*NewTask)(ut).Clean() }

// SaveEvaluation creates the evaluation of a task for a group, or replaces its scores if one exists.
type SaveEvaluation struct {
	TaskID  string            `json:"taskId" validate:"required"`
	GroupID string            `json:"groupId" validate:"required"`
	Scores  map[string]*Score `json:"scores" validate:"dive"`
}

func (se *SaveEvaluation) Clean() {
	se.TaskID = core.CleanString(se.TaskID)
	se.GroupID = core.CleanString(se.GroupID)
}

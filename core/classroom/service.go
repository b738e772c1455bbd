package classroom

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tathmini/core"
)

var (
	// errors
	ErrRollExists   = errors.New("a student with this roll already exists in this academic group")
	ErrUnknownTask  = errors.New("task not found")
	ErrUnknownGroup = errors.New("group not found")
)

// Invalidator is notified of every successful mutation of a collection.
type Invalidator interface {
	Invalidate(ctx context.Context, collection string) error
}

type Service struct {
	store    core.DocumentStore
	validate *validator.Validate
	inval    Invalidator
	log      core.Logger
	nowFunc  func() time.Time
}

func NewService(store core.DocumentStore, validate *validator.Validate, inval Invalidator, logger core.Logger) *Service {
	return &Service{
		store:    store,
		validate: validate,
		inval:    inval,
		log:      logger,
		nowFunc:  time.Now,
	}
}

func (svc *Service) now() null.Time { return null.TimeFrom(svc.nowFunc().UTC()) }

// invalidate never fails a mutation that already succeeded.
func (svc *Service) invalidate(ctx context.Context, collection string) {
	if err := svc.inval.Invalidate(ctx, collection); err != nil {
		svc.log.Warn(fmt.Sprintf("reloading %s after mutation: %v", collection, err), err)
	}
}

func (svc *Service) add(ctx context.Context, collection string, v interface{}, dst interface{}) error {
	fields, err := toFields(v)
	if err != nil {
		return err
	}
	doc, err := svc.store.Add(ctx, collection, fields)
	if err != nil {
		return errors.Wrapf(err, "adding to %s", collection)
	}
	svc.invalidate(ctx, collection)
	return decodeInto(doc, dst)
}

func (svc *Service) update(ctx context.Context, collection, id string, v interface{}, dst interface{}) error {
	fields, err := toFields(v)
	if err != nil {
		return err
	}
	doc, err := svc.store.Update(ctx, collection, id, fields)
	if err != nil {
		return errors.Wrapf(err, "updating %s %q", collection, id)
	}
	svc.invalidate(ctx, collection)
	return decodeInto(doc, dst)
}

func (svc *Service) delete(ctx context.Context, collection, id string) error {
	if err := svc.store.Delete(ctx, collection, id); err != nil {
		return errors.Wrapf(err, "deleting %s %q", collection, id)
	}
	svc.invalidate(ctx, collection)
	return nil
}

// Groups

func (svc *Service) CreateGroup(ctx context.Context, ng NewGroup) (Group, error) {
	ng.Clean()
	if err := svc.validate.Struct(ng); err != nil {
		return Group{}, err
	}

	var grp Group
	err := svc.add(ctx, CollGroups, Group{Name: ng.Name, CreatedAt: svc.now()}, &grp)
	return grp, err
}

func (svc *Service) UpdateGroup(ctx context.Context, id string, ug UpdateGroup) (Group, error) {
	ug.Clean()
	if err := svc.validate.Struct(ug); err != nil {
		return Group{}, err
	}

	var grp Group
	err := svc.update(ctx, CollGroups, id, map[string]interface{}{"name": ug.Name}, &grp)
	return grp, err
}

// DeleteGroup deletes the group only: its students keep their (now orphaned) group reference.
func (svc *Service) DeleteGroup(ctx context.Context, id string) error {
	return svc.delete(ctx, CollGroups, id)
}

// Students

// CheckStudentUniqueness makes sure no student other than excludedIDs has the same roll in the same academic group.
func (svc *Service) CheckStudentUniqueness(ctx context.Context, roll, academicGroup string, excludedIDs ...string) error {
	docs, err := svc.store.Find(ctx, CollStudents, map[string]interface{}{
		"roll":          roll,
		"academicGroup": academicGroup,
	})
	if err != nil {
		return errors.Wrap(err, "checking roll uniqueness")
	}

outer:
	for _, doc := range docs {
		for _, id := range excludedIDs {
			if doc.ID == id {
				continue outer
			}
		}
		return core.NewValidationError(ErrRollExists, core.FieldError{Field: "roll", Error: ErrRollExists.Error()})
	}
	return nil
}

func (svc *Service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	ns.Clean()
	if err := svc.validate.Struct(ns); err != nil {
		return Student{}, err
	}
	if err := svc.CheckStudentUniqueness(ctx, ns.Roll, ns.AcademicGroup); err != nil {
		return Student{}, err
	}

	var std Student
	err := svc.add(ctx, CollStudents, studentOf(ns), &std)
	return std, err
}

func (svc *Service) UpdateStudent(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	us.Clean()
	if err := svc.validate.Struct(us); err != nil {
		return Student{}, err
	}
	if _, err := svc.store.Get(ctx, CollStudents, id); err != nil {
		return Student{}, errors.Wrapf(err, "getting student %q", id)
	}
	if err := svc.CheckStudentUniqueness(ctx, us.Roll, us.AcademicGroup, id); err != nil {
		return Student{}, err
	}

	var std Student
	err := svc.update(ctx, CollStudents, id, studentOf(NewStudent(us)), &std)
	return std, err
}

func (svc *Service) DeleteStudent(ctx context.Context, id string) error {
	return svc.delete(ctx, CollStudents, id)
}

func studentOf(ns NewStudent) Student {
	return Student{
		Name:          ns.Name,
		Roll:          ns.Roll,
		Gender:        ns.Gender,
		GroupID:       ns.GroupID,
		AcademicGroup: ns.AcademicGroup,
		Session:       ns.Session,
		Role:          ns.Role,
		Contact:       ns.Contact,
	}
}

// Tasks

func (svc *Service) CreateTask(ctx context.Context, nt NewTask) (Task, error) {
	nt.Clean()
	if err := svc.validate.Struct(nt); err != nil {
		return Task{}, err
	}

	var tsk Task
	err := svc.add(ctx, CollTasks, taskOf(nt), &tsk)
	return tsk, err
}

func (svc *Service) UpdateTask(ctx context.Context, id string, ut UpdateTask) (Task, error) {
	ut.Clean()
	if err := svc.validate.Struct(ut); err != nil {
		return Task{}, err
	}

	var tsk Task
	err := svc.update(ctx, CollTasks, id, taskOf(NewTask(ut)), &tsk)
	return tsk, err
}

func (svc *Service) DeleteTask(ctx context.Context, id string) error {
	return svc.delete(ctx, CollTasks, id)
}

func taskOf(nt NewTask) Task {
	return Task{
		Name:        nt.Name,
		Description: nt.Description,
		MaxScore:    nt.MaxScore,
		Date:        nt.Date,
	}
}

// Evaluations

func (svc *Service) getTask(ctx context.Context, id string) (Task, error) {
	doc, err := svc.store.Get(ctx, CollTasks, id)
	if err != nil {
		if core.IsNotFound(err) {
			return Task{}, core.NewValidationError(ErrUnknownTask, core.FieldError{Field: "taskId", Error: ErrUnknownTask.Error()})
		}
		return Task{}, errors.Wrapf(err, "getting task %q", id)
	}
	var tsk Task
	_, err = decode(doc, &tsk)
	return tsk, err
}

func (svc *Service) checkGroup(ctx context.Context, id string) error {
	if _, err := svc.store.Get(ctx, CollGroups, id); err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(ErrUnknownGroup, core.FieldError{Field: "groupId", Error: ErrUnknownGroup.Error()})
		}
		return errors.Wrapf(err, "getting group %q", id)
	}
	return nil
}

// SaveEvaluation upserts the evaluation of se.TaskID for se.GroupID.
// Task scores may not exceed the task's max score.
func (svc *Service) SaveEvaluation(ctx context.Context, se SaveEvaluation) (Evaluation, error) {
	se.Clean()
	if err := svc.validate.Struct(se); err != nil {
		return Evaluation{}, err
	}

	tsk, err := svc.getTask(ctx, se.TaskID)
	if err != nil {
		return Evaluation{}, err
	}
	if err = svc.checkGroup(ctx, se.GroupID); err != nil {
		return Evaluation{}, err
	}

	var flds []core.FieldError
	for sid, score := range se.Scores {
		if score != nil && score.TaskScore.Valid && score.TaskScore.Int > tsk.MaxScore {
			flds = append(flds, core.FieldError{
				Field: fmt.Sprintf("scores.%s.taskScore", sid),
				Error: fmt.Sprintf("taskScore must be %d or less", tsk.MaxScore),
			})
		}
	}
	if len(flds) > 0 {
		sort.Slice(flds, func(i, j int) bool { return flds[i].Field < flds[j].Field })
		return Evaluation{}, core.NewValidationError(nil, flds...)
	}

	existing, err := svc.store.Find(ctx, CollEvaluations, map[string]interface{}{
		"taskId":  se.TaskID,
		"groupId": se.GroupID,
	})
	if err != nil {
		return Evaluation{}, errors.Wrap(err, "looking up evaluation")
	}

	eval := Evaluation{
		TaskID:    se.TaskID,
		GroupID:   se.GroupID,
		Scores:    se.Scores,
		UpdatedAt: svc.now(),
	}
	var saved Evaluation
	if len(existing) > 0 {
		err = svc.update(ctx, CollEvaluations, existing[0].ID, eval, &saved)
	} else {
		err = svc.add(ctx, CollEvaluations, eval, &saved)
	}
	return saved, err
}

func (svc *Service) DeleteEvaluation(ctx context.Context, id string) error {
	return svc.delete(ctx, CollEvaluations, id)
}

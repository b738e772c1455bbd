package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tathmini/core/classroom"
)

type classroomApi struct {
	svc *classroom.Service
}

func registerClassroomAPI(g *echo.Group, jwt, sess echo.MiddlewareFunc, svc *classroom.Service) {
	api := classroomApi{svc: svc}

	// admin endpoints
	ag := g.Group("", jwt, sess, adminMiddleware)

	ag.POST("/groups", api.createGroup)
	ag.PUT("/groups/:id", api.updateGroup)
	ag.DELETE("/groups/:id", api.deleteGroup)

	ag.POST("/students", api.createStudent)
	ag.PUT("/students/:id", api.updateStudent)
	ag.DELETE("/students/:id", api.deleteStudent)

	ag.POST("/tasks", api.createTask)
	ag.PUT("/tasks/:id", api.updateTask)
	ag.DELETE("/tasks/:id", api.deleteTask)

	ag.PUT("/evaluations", api.saveEvaluation)
	ag.DELETE("/evaluations/:id", api.deleteEvaluation)
}

// Handlers

func (api *classroomApi) createGroup(ctx echo.Context) error {
	var data classroom.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	grp, err := api.svc.CreateGroup(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *classroomApi) updateGroup(ctx echo.Context) error {
	var data classroom.UpdateGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGroup")
	}
	grp, err := api.svc.UpdateGroup(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *classroomApi) deleteGroup(ctx echo.Context) error {
	if err := api.svc.DeleteGroup(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting group")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classroomApi) createStudent(ctx echo.Context) error {
	var data classroom.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	std, err := api.svc.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, std)
}

func (api *classroomApi) updateStudent(ctx echo.Context) error {
	var data classroom.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	std, err := api.svc.UpdateStudent(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *classroomApi) deleteStudent(ctx echo.Context) error {
	if err := api.svc.DeleteStudent(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classroomApi) createTask(ctx echo.Context) error {
	var data classroom.NewTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}
	tsk, err := api.svc.CreateTask(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return ctx.JSON(http.StatusCreated, tsk)
}

func (api *classroomApi) updateTask(ctx echo.Context) error {
	var data classroom.UpdateTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTask")
	}
	tsk, err := api.svc.UpdateTask(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating task")
	}
	return ctx.JSON(http.StatusOK, tsk)
}

func (api *classroomApi) deleteTask(ctx echo.Context) error {
	if err := api.svc.DeleteTask(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting task")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classroomApi) saveEvaluation(ctx echo.Context) error {
	var data classroom.SaveEvaluation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveEvaluation")
	}
	eval, err := api.svc.SaveEvaluation(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "saving evaluation")
	}
	return ctx.JSON(http.StatusOK, eval)
}

func (api *classroomApi) deleteEvaluation(ctx echo.Context) error {
	if err := api.svc.DeleteEvaluation(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting evaluation")
	}
	return ctx.NoContent(http.StatusNoContent)
}

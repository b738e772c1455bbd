package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tathmini/core/classroom"
	"github.com/trezcool/tathmini/core/dashboard"
	"github.com/trezcool/tathmini/core/loader"
	"github.com/trezcool/tathmini/core/rubric"
)

type dashboardApi struct {
	dash *dashboard.Dashboard
}

type (
	TotalResponse struct {
		ID    string `json:"id"`
		Total int    `json:"total"`
	}

	// RefreshResponse lists the collections that could not be fetched from the store:
	// Stale ones are served from an expired cached copy, Failed ones from what was loaded before, if anything.
	RefreshResponse struct {
		RefreshedAt time.Time `json:"refreshedAt"`
		Stale       []string  `json:"stale"`
		Failed      []string  `json:"failed"`
	}
)

func registerDashboardAPI(g *echo.Group, jwt, sess echo.MiddlewareFunc, dash *dashboard.Dashboard) {
	api := dashboardApi{dash: dash}

	// un-authed endpoints
	g.GET("/rubric", api.rubric)
	g.GET("/rankings/groups", api.groupRanking)
	g.GET("/rankings/students", api.studentRanking)
	g.GET("/stats/problems", api.problemStats)
	g.GET("/tasks/summary", api.taskSummaries)
	g.GET("/evaluations", api.evaluations)
	g.GET("/evaluations/:id/total", api.evaluationTotal)
	g.GET("/students/:id/report", api.studentReport)

	// authed endpoints
	g.POST("/refresh", api.refresh, jwt, sess)
}

// ensure refreshes the dashboard if its data expired and fails if one of collections was never loaded.
func (api *dashboardApi) ensure(ctx echo.Context, collections ...string) error {
	// a failed load is served from what was loaded before; only missing data fails the request
	_ = api.dash.Refresh(ctx.Request().Context(), false)
	if missing := api.dash.Missing(collections...); len(missing) > 0 {
		return &unavailableError{collections: missing}
	}
	return nil
}

// Handlers

func (api *dashboardApi) rubric(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, rubric.Infos())
}

func (api *dashboardApi) groupRanking(ctx echo.Context) error {
	if err := api.ensure(ctx, classroom.CollGroups, classroom.CollStudents, classroom.CollEvaluations); err != nil {
		return err
	}
	var filter GroupFilter
	filter.Bind(ctx)
	return ctx.JSON(http.StatusOK, api.dash.GroupRanking(filter.IDs...))
}

func (api *dashboardApi) studentRanking(ctx echo.Context) error {
	if err := api.ensure(ctx, classroom.CollGroups, classroom.CollStudents, classroom.CollEvaluations); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.dash.StudentRanking())
}

func (api *dashboardApi) problemStats(ctx echo.Context) error {
	if err := api.ensure(ctx, classroom.CollEvaluations); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.dash.ProblemStats())
}

func (api *dashboardApi) taskSummaries(ctx echo.Context) error {
	if err := api.ensure(ctx, classroom.CollTasks, classroom.CollEvaluations); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.dash.TaskSummaries())
}

func (api *dashboardApi) evaluations(ctx echo.Context) error {
	if err := api.ensure(ctx, classroom.Collections...); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.dash.EvaluationSummaries())
}

func (api *dashboardApi) evaluationTotal(ctx echo.Context) error {
	if err := api.ensure(ctx, classroom.CollEvaluations); err != nil {
		return err
	}
	id := ctx.Param("id")
	total, err := api.dash.EvaluationTotal(id)
	if err != nil {
		return errors.Wrap(err, "getting evaluation total")
	}
	return ctx.JSON(http.StatusOK, TotalResponse{ID: id, Total: total})
}

func (api *dashboardApi) studentReport(ctx echo.Context) error {
	if err := api.ensure(ctx, classroom.Collections...); err != nil {
		return err
	}
	report, err := api.dash.StudentReport(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student report")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *dashboardApi) refresh(ctx echo.Context) error {
	err := api.dash.Refresh(ctx.Request().Context(), true)
	if missing := api.dash.Missing(classroom.Collections...); len(missing) == len(classroom.Collections) {
		return &unavailableError{collections: missing}
	}

	resp := RefreshResponse{RefreshedAt: api.dash.RefreshedAt(), Stale: []string{}, Failed: []string{}}
	sources := api.dash.Snapshot().Sources
	for _, coll := range classroom.Collections {
		if src, ok := sources[coll]; ok && src == loader.SourceStale {
			resp.Stale = append(resp.Stale, coll)
		}
	}
	if errs, ok := errors.Cause(err).(loader.Errors); ok {
		resp.Failed = errs.Collections()
	}
	return ctx.JSON(http.StatusOK, resp)
}

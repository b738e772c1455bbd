package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tathmini/core"
	"github.com/trezcool/tathmini/core/session"
)

type sessionApi struct {
	mgr *session.Manager
}

type SessionResponse struct {
	core.Identity
	Role    session.Role `json:"role"`
	IsAdmin bool         `json:"isAdmin"`
}

func registerSessionAPI(g *echo.Group, jwt, sess echo.MiddlewareFunc, mgr *session.Manager) {
	api := sessionApi{mgr: mgr}

	sg := g.Group("/session", jwt)
	sg.GET("", api.retrieve, sess)
	sg.POST("/logout", api.logout)
}

// Handlers

func (api *sessionApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	role := getContextRole(ctx)
	return ctx.JSON(http.StatusOK, SessionResponse{
		Identity: claims.identity(),
		Role:     role,
		IsAdmin:  role.IsAdmin(),
	})
}

func (api *sessionApi) logout(ctx echo.Context) error {
	if err := api.mgr.SignedOut(); err != nil {
		return errors.Wrap(err, "clearing session cache")
	}
	return ctx.NoContent(http.StatusNoContent)
}

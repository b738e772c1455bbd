package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tathmini/core/session"
)

// sessionMiddleware resolves the role of the authenticated user and stores it in the context.
func sessionMiddleware(mgr *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			role, err := mgr.SignedIn(ctx.Request().Context(), claims.Subject)
			if err != nil {
				return errors.Wrap(err, "resolving role")
			}
			ctx.Set(contextRoleKey, role)
			return next(ctx)
		}
	}
}

func adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if getContextRole(ctx).IsAdmin() {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

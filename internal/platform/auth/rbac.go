package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that checks if the user has at least one of
// the specified roles. Admins always pass.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := ActorFromContext(c.Request().Context())
			if actor.IsAdmin() {
				return next(c)
			}
			for _, required := range roles {
				if actor.HasRole(required) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// RequireSelfOrRole allows the request when the :param path value is the
// caller's own id, or when the caller holds one of roles.
func RequireSelfOrRole(param string, roles ...string) echo.MiddlewareFunc {
	byRole := RequireRole(roles...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		guarded := byRole(next)
		return func(c echo.Context) error {
			actor := ActorFromContext(c.Request().Context())
			if actor.ID != "" && actor.ID == c.Param(param) {
				return next(c)
			}
			return guarded(c)
		}
	}
}

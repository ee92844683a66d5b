package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/ArRuslan/ticketer/internal/apperr"
	"github.com/ArRuslan/ticketer/internal/model"
)

// RequireRole rejects users whose role is below min.  It must run after
// SessionAuth.
func RequireRole(min model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := CurrentUser(c)
			if !ok {
				return apperr.InvalidToken
			}
			if u.Role < min {
				return apperr.InsufficientPermissions
			}
			return next(c)
		}
	}
}

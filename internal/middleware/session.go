package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ArRuslan/ticketer/internal/apperr"
	"github.com/ArRuslan/ticketer/internal/model"
)

// Context keys set by SessionAuth.
const (
	ContextUser    = "user"
	ContextSession = "session"
)

// Authenticator resolves a session claim.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (model.User, model.Session, error)
}

// SessionAuth reads the session claim from the Authorization header (a
// "Bearer " prefix is accepted) and stores the user and session in the
// context.  Failures are returned as errors so that the echo error
// handler renders them.
func SessionAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
			raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
			if raw == "" {
				return apperr.InvalidToken
			}
			u, sess, err := auth.Authenticate(c.Request().Context(), raw)
			if err != nil {
				return err
			}
			c.Set(ContextUser, u)
			c.Set(ContextSession, sess)
			return next(c)
		}
	}
}

// CurrentUser returns the user stored by SessionAuth.
func CurrentUser(c echo.Context) (model.User, bool) {
	u, ok := c.Get(ContextUser).(model.User)
	return u, ok
}

// CurrentSession returns the session stored by SessionAuth.
func CurrentSession(c echo.Context) (model.Session, bool) {
	s, ok := c.Get(ContextSession).(model.Session)
	return s, ok
}

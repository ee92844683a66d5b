package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArRuslan/ticketer/internal/apperr"
	"github.com/ArRuslan/ticketer/internal/config"
	"github.com/ArRuslan/ticketer/internal/model"
)

type fakeAuth struct {
	token string
	user  model.User
}

func (f fakeAuth) Authenticate(_ context.Context, token string) (model.User, model.Session, error) {
	if token != f.token {
		return model.User{}, model.Session{}, apperr.InvalidToken
	}
	return f.user, model.Session{ID: 9, UserID: f.user.ID}, nil
}

func serve(e *echo.Echo, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestSessionAuthAndRole(t *testing.T) {
	e := echo.New()
	auth := fakeAuth{token: "good", user: model.User{ID: 5, Role: model.RoleUser}}
	e.GET("/me", func(c echo.Context) error {
		u, ok := CurrentUser(c)
		require.True(t, ok)
		s, ok := CurrentSession(c)
		require.True(t, ok)
		assert.Equal(t, uint64(5), s.UserID)
		return c.String(http.StatusOK, userID(c)+"/"+u.FirstName)
	}, SessionAuth(auth))
	e.GET("/admin", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		SessionAuth(auth), RequireRole(model.RoleManager))

	rec := serve(e, http.MethodGet, "/me", "good")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5/", rec.Body.String())

	rec = serve(e, http.MethodGet, "/me", "Bearer good")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Domain errors fall through to echo's default handler here, which
	// renders any non-HTTPError as 500; the API installs its own handler.
	assert.Equal(t, http.StatusInternalServerError, serve(e, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(e, http.MethodGet, "/admin", "good").Code)
}

func TestRequireRoleAllowsHigher(t *testing.T) {
	e := echo.New()
	var got error
	e.HTTPErrorHandler = func(err error, c echo.Context) { got = err; _ = c.NoContent(http.StatusTeapot) }
	auth := fakeAuth{token: "t", user: model.User{ID: 1, Role: model.RoleAdmin}}
	e.GET("/admin", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		SessionAuth(auth), RequireRole(model.RoleManager))
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/admin", "t").Code)

	auth.user.Role = model.RoleUser
	e.GET("/admin2", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		SessionAuth(auth), RequireRole(model.RoleManager))
	assert.Equal(t, http.StatusTeapot, serve(e, http.MethodGet, "/admin2", "t").Code)
	assert.ErrorIs(t, got, apperr.InsufficientPermissions)
}

func TestRateLimitBlocksAfterCapacity(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour,
		TTL: time.Hour, KeyStrategy: "ip", Prefix: "rl",
	}
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, RateLimit(cfg, rdb))

	first := serve(e, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/x", "").Code)

	blocked := serve(e, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))
}

func TestRateLimitDisabledWithoutRedis(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		RateLimit(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/x", "").Code)
	}
}

func TestResponseCache(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute,
		KeyStrategy: "route_query", Prefix: "http",
	}
	calls := 0
	e := echo.New()
	e.GET("/v1/events/:id", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, map[string]any{"id": c.Param("id"), "n": calls})
	}, ResponseCache(cfg, rdb))
	e.GET("/missing", func(c echo.Context) error {
		calls++
		return c.NoContent(http.StatusNotFound)
	}, ResponseCache(cfg, rdb))

	miss := serve(e, http.MethodGet, "/v1/events/1", "")
	assert.Equal(t, "MISS", miss.Header().Get("X-Cache"))
	hit := serve(e, http.MethodGet, "/v1/events/1", "")
	assert.Equal(t, "HIT", hit.Header().Get("X-Cache"))
	assert.Equal(t, miss.Body.String(), hit.Body.String())
	assert.Contains(t, hit.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
	assert.Equal(t, 1, calls)

	serve(e, http.MethodGet, "/v1/events/2", "")
	assert.Equal(t, 2, calls)

	mr.FastForward(2 * time.Minute)
	serve(e, http.MethodGet, "/v1/events/1", "")
	assert.Equal(t, 3, calls)

	serve(e, http.MethodGet, "/missing", "")
	serve(e, http.MethodGet, "/missing", "")
	assert.Equal(t, 5, calls)
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(201, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)
	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, 201, status)
	assert.Equal(t, hdr, got)
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 0})
	assert.False(t, ok)
}

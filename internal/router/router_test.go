package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ArRuslan/ticketer/internal/claims"
	"github.com/ArRuslan/ticketer/internal/model"
	"github.com/ArRuslan/ticketer/internal/repository"
	"github.com/ArRuslan/ticketer/internal/service/auth"
	"github.com/ArRuslan/ticketer/internal/service/tickets"
	"github.com/ArRuslan/ticketer/internal/utils"
)

type paidGateway struct{}

func (paidGateway) CreateOrder(context.Context, int64) (string, error)  { return "ORDER-1", nil }
func (paidGateway) CaptureOrder(context.Context, string) (bool, error) { return true, nil }

type api struct {
	e     *echo.Echo
	store *repository.MemoryStore
	event model.Event
	plan  model.Plan
}

func newAPI(t *testing.T) *api {
	t.Helper()
	store := repository.NewMemoryStore()
	codec := claims.NewCodec([]byte("router-test"))
	a := auth.New(store, codec, nil, auth.Config{BcryptCost: bcrypt.MinCost})
	ts := tickets.New(store, paidGateway{}, codec, tickets.Options{})

	e := echo.New()
	Register(e, Deps{Auth: a, Tickets: ts})

	event := store.AddEvent(model.Event{Name: "Gig", Category: "concert", StartTime: time.Now().Add(48 * time.Hour)})
	plan := store.AddPlan(model.Plan{EventID: event.ID, Name: "GA", PriceCents: 1999, Capacity: 3})
	return &api{e: e, store: store, event: event, plan: plan}
}

func (a *api) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func (a *api) register(t *testing.T, email string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email": email, "password": "secret-pw", "first_name": "Ann", "last_name": "Lee",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Token     string `json:"token"`
		ExpiresAt int64  `json:"expires_at"`
	}
	decode(t, rec, &out)
	require.NotEmpty(t, out.Token)
	return out.Token
}

type errBody struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_message"`
}

func TestHealthz(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAuthFlow(t *testing.T) {
	a := newAPI(t)
	token := a.register(t, "ann@example.com")

	rec := a.do(t, http.MethodGet, "/v1/users/me", "Bearer "+token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		Email      string `json:"email"`
		FirstName  string `json:"first_name"`
		MFAEnabled bool   `json:"mfa_enabled"`
	}
	decode(t, rec, &me)
	assert.Equal(t, "ann@example.com", me.Email)
	assert.False(t, me.MFAEnabled)

	rec = a.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email": "ann@example.com", "password": "x", "first_name": "A", "last_name": "B",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var eb errBody
	decode(t, rec, &eb)
	assert.Equal(t, 17, eb.Code)

	rec = a.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "ann@example.com", "password": "bad"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	decode(t, rec, &eb)
	assert.Equal(t, 1, eb.Code)

	rec = a.do(t, http.MethodPost, "/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(t, http.MethodGet, "/v1/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	decode(t, rec, &eb)
	assert.Equal(t, 13, eb.Code)
}

func TestUpdateProfile(t *testing.T) {
	a := newAPI(t)
	token := "Bearer " + a.register(t, "ann@example.com")

	rec := a.do(t, http.MethodPatch, "/v1/users/me", token, map[string]any{"phone_number": 380501234567})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var eb errBody
	decode(t, rec, &eb)
	assert.Equal(t, 20, eb.Code)

	rec = a.do(t, http.MethodPatch, "/v1/users/me", token, map[string]any{"first_name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPatch, "/v1/users/me", token, map[string]any{
		"last_name": "Smith", "phone_number": 380501234567, "password": "secret-pw",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var me struct {
		LastName    string `json:"last_name"`
		PhoneNumber *int64 `json:"phone_number"`
	}
	decode(t, rec, &me)
	assert.Equal(t, "Smith", me.LastName)
	require.NotNil(t, me.PhoneNumber)
	assert.Equal(t, int64(380501234567), *me.PhoneNumber)

	other := "Bearer " + a.register(t, "bob@example.com")
	rec = a.do(t, http.MethodPatch, "/v1/users/me", other, map[string]any{
		"phone_number": 380501234567, "password": "secret-pw",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	decode(t, rec, &eb)
	assert.Equal(t, 19, eb.Code)
}

func TestGoogleNotConfigured(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodGet, "/v1/auth/google", "", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestEventAvailability(t *testing.T) {
	a := newAPI(t)
	path := "/v1/events/" + strconv.FormatUint(a.event.ID, 10)

	var ev struct {
		ID    uint64 `json:"id"`
		Name  string `json:"name"`
		Plans []struct {
			ID        uint64  `json:"id"`
			Price     float64 `json:"price"`
			Available int     `json:"available"`
		} `json:"plans"`
	}
	rec := a.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &ev)
	assert.Equal(t, "Gig", ev.Name)
	require.Len(t, ev.Plans, 1)
	assert.Equal(t, 19.99, ev.Plans[0].Price)
	assert.Equal(t, 3, ev.Plans[0].Available)

	rec = a.do(t, http.MethodGet, "/v1/events/999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = a.do(t, http.MethodGet, "/v1/events/abc", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTicketLifecycle(t *testing.T) {
	a := newAPI(t)
	token := a.register(t, "buyer@example.com")

	rec := a.do(t, http.MethodPost, "/v1/tickets/request-payment", token, map[string]any{
		"plan_id": a.plan.ID, "event_id": a.event.ID, "amount": 2,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		TicketID   uint64  `json:"ticket_id"`
		TotalPrice float64 `json:"total_price"`
		ExpiresAt  int64   `json:"expires_at"`
	}
	decode(t, rec, &res)
	assert.Equal(t, 39.98, res.TotalPrice)
	base := "/v1/tickets/" + strconv.FormatUint(res.TicketID, 10)

	rec = a.do(t, http.MethodPost, "/v1/tickets/request-payment", token, map[string]any{
		"plan_id": a.plan.ID, "amount": 2,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var eb errBody
	decode(t, rec, &eb)
	assert.Equal(t, 26, eb.Code)

	rec = a.do(t, http.MethodGet, base+"/validation-tokens", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPost, base+"/verify-payment", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, base+"/check-verification", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ver struct {
		PaymentState int     `json:"payment_state"`
		PayPalID     *string `json:"paypal_id"`
	}
	decode(t, rec, &ver)
	assert.Equal(t, int(model.PaymentAwaitingPayment), ver.PaymentState)
	require.NotNil(t, ver.PayPalID)
	assert.Equal(t, "ORDER-1", *ver.PayPalID)

	rec = a.do(t, http.MethodPost, base+"/check-payment", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/v1/tickets", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []struct {
		ID             uint64 `json:"id"`
		Amount         int    `json:"amount"`
		PaymentState   int    `json:"payment_state"`
		CanBeCancelled bool   `json:"can_be_cancelled"`
	}
	decode(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Amount)
	assert.Equal(t, int(model.PaymentDone), list[0].PaymentState)
	assert.True(t, list[0].CanBeCancelled)

	rec = a.do(t, http.MethodGet, base+"/validation-tokens", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var toks []string
	decode(t, rec, &toks)
	require.Len(t, toks, 2)

	// A plain user cannot validate.
	rec = a.do(t, http.MethodPost, "/v1/admin/tickets/validate", token, map[string]any{"event_id": a.event.ID, "ticket": toks[0]})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := a.admin(t)
	rec = a.do(t, http.MethodPost, "/v1/admin/tickets/validate", admin, map[string]any{"event_id": a.event.ID, "ticket": toks[1]})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var val struct {
		User struct {
			FirstName string `json:"first_name"`
		} `json:"user"`
		TicketNum int `json:"ticket_num"`
		Plan      struct {
			Name string `json:"name"`
		} `json:"plan"`
	}
	decode(t, rec, &val)
	assert.Equal(t, "Ann", val.User.FirstName)
	assert.Equal(t, 1, val.TicketNum)
	assert.Equal(t, "GA", val.Plan.Name)

	rec = a.do(t, http.MethodDelete, base, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(t, http.MethodGet, base+"/check-verification", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func (a *api) admin(t *testing.T) string {
	t.Helper()
	email := "admin@example.com"
	hash, err := utils.HashPassword("admin-pw", bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, a.store.Atomic(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateUser(ctx, &model.User{Email: &email, PasswordHash: &hash, FirstName: "Root", Role: model.RoleAdmin})
	}))
	rec := a.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": email, "password": "admin-pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Token string `json:"token"`
	}
	decode(t, rec, &out)
	return out.Token
}

func TestTicketsRequireSession(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodGet, "/v1/tickets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = a.do(t, http.MethodGet, "/v1/tickets", "not-a-claim", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEventSearch(t *testing.T) {
	a := newAPI(t)
	a.store.AddEvent(model.Event{Name: "Gallery Walk", Category: "art", StartTime: time.Now().Add(24 * time.Hour)})

	rec := a.do(t, http.MethodPost, "/v1/events/search?sort_by=name&with_plans=true", "", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var hits []struct {
		Name  string `json:"name"`
		Plans []struct {
			Name string `json:"name"`
		} `json:"plans"`
	}
	decode(t, rec, &hits)
	require.Len(t, hits, 2)
	assert.Equal(t, "Gallery Walk", hits[0].Name)
	assert.Empty(t, hits[0].Plans)
	assert.Equal(t, "Gig", hits[1].Name)
	require.Len(t, hits[1].Plans, 1)

	rec = a.do(t, http.MethodPost, "/v1/events/search", "", map[string]any{"category": "art"})
	require.Equal(t, http.StatusOK, rec.Code)
	hits = nil
	decode(t, rec, &hits)
	require.Len(t, hits, 1)
	assert.Equal(t, "Gallery Walk", hits[0].Name)
}

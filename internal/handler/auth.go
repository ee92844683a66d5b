package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ArRuslan/ticketer/internal/apperr"
	"github.com/ArRuslan/ticketer/internal/middleware"
	"github.com/ArRuslan/ticketer/internal/service/auth"
)

// AuthHandler serves /v1/auth and /v1/users/me.
type AuthHandler struct {
	Auth *auth.Service
}

func NewAuthHandler(a *auth.Service) *AuthHandler {
	return &AuthHandler{Auth: a}
}

// ----- DTOs -----

type registerReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MFACode  string `json:"mfa_code"`
}

type googleCallbackReq struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

type mfaReq struct {
	Password string  `json:"password"`
	MFAKey   *string `json:"mfa_key"`
	MFACode  string  `json:"mfa_code"`
}

type profileReq struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	Email       *string `json:"email"`
	PhoneNumber *int64  `json:"phone_number"`
	NewPassword *string `json:"new_password"`
	Password    string  `json:"password"`
}

func (r profileReq) validate() error {
	for _, f := range []*string{r.FirstName, r.LastName, r.Email, r.NewPassword} {
		if f != nil && strings.TrimSpace(*f) == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "profile fields must not be empty")
		}
	}
	if r.PhoneNumber != nil && *r.PhoneNumber <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid phone_number")
	}
	return nil
}

type sessionResp struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

type callbackResp struct {
	Token     *string `json:"token"`
	ExpiresAt *int64  `json:"expires_at"`
	Connect   bool    `json:"connect"`
}

type urlResp struct {
	URL string `json:"url"`
}

func toSessionResp(s auth.Session) sessionResp {
	return sessionResp{Token: s.Token, ExpiresAt: s.ExpiresAt.Unix()}
}

// Register handles POST /v1/auth/register.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" || req.FirstName == "" || req.LastName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email, password, first_name and last_name are required")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.Auth.Register(ctx, req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSessionResp(s))
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	if req.Email == "" || req.Password == "" {
		return apperr.WrongCredentials
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.Auth.Login(ctx, req.Email, req.Password, req.MFACode)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSessionResp(s))
}

// Logout handles POST /v1/auth/logout and deletes the calling session.
func (h *AuthHandler) Logout(c echo.Context) error {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		return apperr.InvalidToken
	}
	if err := h.Auth.Logout(c.Request().Context(), sess.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func googleErr(err error) error {
	if errors.Is(err, auth.ErrGoogleDisabled) {
		return echo.NewHTTPError(http.StatusNotImplemented, "google sign-in is not configured")
	}
	return err
}

// GoogleURL handles GET /v1/auth/google.
func (h *AuthHandler) GoogleURL(c echo.Context) error {
	url, err := h.Auth.GoogleLoginURL()
	if err != nil {
		return googleErr(err)
	}
	return c.JSON(http.StatusOK, urlResp{URL: url})
}

// GoogleConnect handles POST /v1/auth/google/connect.
func (h *AuthHandler) GoogleConnect(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	url, err := h.Auth.GoogleConnectURL(c.Request().Context(), u)
	if err != nil {
		return googleErr(err)
	}
	return c.JSON(http.StatusOK, urlResp{URL: url})
}

// GoogleCallback handles POST /v1/auth/google/callback.
func (h *AuthHandler) GoogleCallback(c echo.Context) error {
	var req googleCallbackReq
	if err := c.Bind(&req); err != nil || req.Code == "" {
		return errInvalidBody
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Auth.GoogleCallback(ctx, req.Code, req.State)
	if err != nil {
		return googleErr(err)
	}
	out := callbackResp{Connect: res.Connected}
	if res.Session != nil {
		exp := res.Session.ExpiresAt.Unix()
		out.Token, out.ExpiresAt = &res.Session.Token, &exp
	}
	return c.JSON(http.StatusOK, out)
}

// Me handles GET /v1/users/me.
func (h *AuthHandler) Me(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserJSON(u))
}

// UpdateProfile handles PATCH /v1/users/me.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	if err := req.validate(); err != nil {
		return err
	}
	u, err = h.Auth.UpdateProfile(c.Request().Context(), u, auth.ProfileUpdate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		NewPassword: req.NewPassword,
		Password:    req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserJSON(u))
}

// UpdateMFA handles PATCH /v1/users/me/mfa.  A null or absent mfa_key
// disables MFA.
func (h *AuthHandler) UpdateMFA(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	var req mfaReq
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	u, err = h.Auth.UpdateMFA(c.Request().Context(), u, req.Password, req.MFAKey, req.MFACode)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserJSON(u))
}

// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/ArRuslan/ticketer/internal/config"
	"github.com/ArRuslan/ticketer/internal/handler"
	"github.com/ArRuslan/ticketer/internal/middleware"
	"github.com/ArRuslan/ticketer/internal/model"
	"github.com/ArRuslan/ticketer/internal/service/auth"
	"github.com/ArRuslan/ticketer/internal/service/tickets"
)

// Deps are the services and infrastructure shared by all routes.  Redis
// may be nil, which disables rate limiting and response caching.
type Deps struct {
	Auth      *auth.Service
	Tickets   *tickets.Service
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers /v1/auth and /v1/users/me.
func RegisterAuth(e *echo.Echo, d Deps) {
	h := handler.NewAuthHandler(d.Auth)
	session := middleware.SessionAuth(d.Auth)
	limit := middleware.RateLimit(d.RateLimit, d.Redis)

	g := e.Group("/v1/auth", limit)
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.GET("/google", h.GoogleURL)
	g.POST("/google/callback", h.GoogleCallback)
	g.POST("/google/connect", h.GoogleConnect, session)
	g.POST("/logout", h.Logout, session)

	me := e.Group("/v1/users/me", session)
	me.GET("", h.Me)
	me.PATCH("", h.UpdateProfile)
	me.PATCH("/mfa", h.UpdateMFA)
}

// RegisterPublic registers the unauthenticated event view, served through
// the response cache, and event search.
func RegisterPublic(e *echo.Echo, d Deps) {
	h := handler.NewEventHandler(d.Tickets)
	e.GET("/v1/events/:id", h.GetEvent, middleware.ResponseCache(d.Cache, d.Redis))
	e.POST("/v1/events/search", h.Search, middleware.RateLimit(d.RateLimit, d.Redis))
}

// RegisterTickets registers the buyer's ticket routes.
func RegisterTickets(e *echo.Echo, d Deps) {
	h := handler.NewTicketHandler(d.Tickets)
	// Session first so that the limiter keys on the user.
	g := e.Group("/v1/tickets", middleware.SessionAuth(d.Auth), middleware.RateLimit(d.RateLimit, d.Redis))
	g.GET("", h.List)
	g.POST("/request-payment", h.RequestPayment)
	g.GET("/:id/check-verification", h.CheckVerification)
	g.POST("/:id/verify-payment", h.VerifyPayment)
	g.POST("/:id/check-payment", h.CheckPayment)
	g.GET("/:id/validation-tokens", h.ValidationTokens)
	g.DELETE("/:id", h.Cancel)
}

// RegisterAdmin registers gate validation for managers and admins.
func RegisterAdmin(e *echo.Echo, d Deps) {
	h := handler.NewAdminHandler(d.Tickets)
	g := e.Group("/v1/admin", middleware.SessionAuth(d.Auth), middleware.RequireRole(model.RoleManager))
	g.POST("/tickets/validate", h.ValidateTicket)
}

// Register installs the error handler and every route group.
func Register(e *echo.Echo, d Deps) {
	e.HTTPErrorHandler = handler.ErrorHandler
	RegisterRoutes(e)
	RegisterAuth(e, d)
	RegisterPublic(e, d)
	RegisterTickets(e, d)
	RegisterAdmin(e, d)
}

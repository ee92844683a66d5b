// Package handler implements the HTTP API on top of the auth and tickets
// services.  Handlers return errors and leave rendering to ErrorHandler.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ArRuslan/ticketer/internal/apperr"
	"github.com/ArRuslan/ticketer/internal/middleware"
	"github.com/ArRuslan/ticketer/internal/model"
	"github.com/ArRuslan/ticketer/internal/service/tickets"
)

// requestTimeout bounds the service work of one request.
const requestTimeout = 15 * time.Second

var errInvalidBody = echo.NewHTTPError(http.StatusBadRequest, "invalid body")

// currentUser returns the user stored by middleware.SessionAuth.
func currentUser(c echo.Context) (model.User, error) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return model.User{}, apperr.InvalidToken
	}
	return u, nil
}

// pathID parses a positive numeric path parameter; notFound is returned
// for anything else.
func pathID(c echo.Context, name string, notFound error) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, notFound
	}
	return id, nil
}

type eventJSON struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	StartTime   int64  `json:"start_time"`
	EndTime     *int64 `json:"end_time"`
}

func toEventJSON(e model.Event) eventJSON {
	out := eventJSON{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Category:    e.Category,
		StartTime:   e.StartTime.Unix(),
	}
	if e.EndTime != nil {
		end := e.EndTime.Unix()
		out.EndTime = &end
	}
	return out
}

type planJSON struct {
	ID        uint64  `json:"id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Available *int    `json:"available,omitempty"`
}

func toPlanJSON(p model.Plan) planJSON {
	return planJSON{ID: p.ID, Name: p.Name, Price: model.Price(p.PriceCents)}
}

type userJSON struct {
	ID          uint64  `json:"id"`
	Email       *string `json:"email"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	PhoneNumber *int64  `json:"phone_number"`
	MFAEnabled  bool    `json:"mfa_enabled"`
}

func toUserJSON(u model.User) userJSON {
	return userJSON{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PhoneNumber: u.PhoneNumber,
		MFAEnabled:  u.MFAEnabled(),
	}
}

type ticketJSON struct {
	ID             uint64    `json:"id"`
	Amount         int       `json:"amount"`
	Plan           planJSON  `json:"plan"`
	Event          eventJSON `json:"event"`
	PaymentState   int       `json:"payment_state"`
	CanBeCancelled bool      `json:"can_be_cancelled"`
}

func toTicketJSON(svc *tickets.Service, d model.TicketDetails) ticketJSON {
	return ticketJSON{
		ID:             d.Ticket.ID,
		Amount:         d.Ticket.Amount,
		Plan:           toPlanJSON(d.Plan),
		Event:          toEventJSON(d.Event),
		PaymentState:   int(d.Payment.State),
		CanBeCancelled: svc.Cancellable(d),
	}
}

package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ArRuslan/ticketer/internal/apperr"
	"github.com/ArRuslan/ticketer/internal/service/tickets"
)

// AdminHandler serves gate validation for managers and admins.
type AdminHandler struct {
	Tickets *tickets.Service
}

func NewAdminHandler(t *tickets.Service) *AdminHandler {
	return &AdminHandler{Tickets: t}
}

type validateReq struct {
	EventID uint64 `json:"event_id"`
	Ticket  string `json:"ticket"`
}

type validateUserJSON struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type validateResp struct {
	User      validateUserJSON `json:"user"`
	TicketNum int              `json:"ticket_num"`
	Plan      planJSON         `json:"plan"`
}

// ValidateTicket handles POST /v1/admin/tickets/validate.
func (h *AdminHandler) ValidateTicket(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	var req validateReq
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	if req.Ticket == "" {
		return apperr.InvalidTicket
	}
	r, err := h.Tickets.Redeem(c.Request().Context(), u, req.EventID, req.Ticket)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, validateResp{
		User:      validateUserJSON{FirstName: r.FirstName, LastName: r.LastName},
		TicketNum: r.SeatIndex,
		Plan:      toPlanJSON(r.Plan),
	})
}

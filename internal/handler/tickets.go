package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ArRuslan/ticketer/internal/apperr"
	"github.com/ArRuslan/ticketer/internal/model"
	"github.com/ArRuslan/ticketer/internal/service/tickets"
)

// TicketHandler serves the buyer's reservation lifecycle under
// /v1/tickets.  All routes require a session.
type TicketHandler struct {
	Tickets *tickets.Service
}

func NewTicketHandler(t *tickets.Service) *TicketHandler {
	return &TicketHandler{Tickets: t}
}

type reserveReq struct {
	PlanID  uint64 `json:"plan_id"`
	EventID uint64 `json:"event_id"`
	Amount  int    `json:"amount"`
}

type reserveResp struct {
	TicketID   uint64  `json:"ticket_id"`
	TotalPrice float64 `json:"total_price"`
	ExpiresAt  int64   `json:"expires_at"`
}

type verifyReq struct {
	MFACode string `json:"mfa_code"`
}

type verificationResp struct {
	TicketID     uint64  `json:"ticket_id"`
	PaymentState int     `json:"payment_state"`
	PayPalID     *string `json:"paypal_id"`
	ExpiresAt    int64   `json:"expires_at"`
}

// List handles GET /v1/tickets.
func (h *TicketHandler) List(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	list, err := h.Tickets.List(c.Request().Context(), u.ID)
	if err != nil {
		return err
	}
	out := make([]ticketJSON, 0, len(list))
	for _, d := range list {
		out = append(out, toTicketJSON(h.Tickets, d))
	}
	return c.JSON(http.StatusOK, out)
}

// RequestPayment handles POST /v1/tickets/request-payment and reserves
// units of a plan.
func (h *TicketHandler) RequestPayment(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	if req.PlanID == 0 {
		return apperr.UnknownPlan
	}
	r, err := h.Tickets.Reserve(c.Request().Context(), u.ID, req.PlanID, req.EventID, req.Amount)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reserveResp{
		TicketID:   r.TicketID,
		TotalPrice: model.Price(r.TotalCents),
		ExpiresAt:  r.ExpiresAt.Unix(),
	})
}

// CheckVerification handles GET /v1/tickets/:id/check-verification.
func (h *TicketHandler) CheckVerification(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", apperr.UnknownTicket)
	if err != nil {
		return err
	}
	d, err := h.Tickets.Get(c.Request().Context(), u.ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, verificationResp{
		TicketID:     d.Ticket.ID,
		PaymentState: int(d.Payment.State),
		PayPalID:     d.Payment.OrderID,
		ExpiresAt:    d.Payment.ExpiresAt.Unix(),
	})
}

// VerifyPayment handles POST /v1/tickets/:id/verify-payment.
func (h *TicketHandler) VerifyPayment(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", apperr.UnknownTicket)
	if err != nil {
		return err
	}
	var req verifyReq
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return errInvalidBody
		}
	}
	if err := h.Tickets.Verify(c.Request().Context(), u.ID, id, req.MFACode); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// CheckPayment handles POST /v1/tickets/:id/check-payment.
func (h *TicketHandler) CheckPayment(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", apperr.UnknownTicket)
	if err != nil {
		return err
	}
	if err := h.Tickets.CheckPayment(c.Request().Context(), u.ID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ValidationTokens handles GET /v1/tickets/:id/validation-tokens.
func (h *TicketHandler) ValidationTokens(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", apperr.UnknownTicket)
	if err != nil {
		return err
	}
	toks, err := h.Tickets.IssueTokens(c.Request().Context(), u.ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toks)
}

// Cancel handles DELETE /v1/tickets/:id.
func (h *TicketHandler) Cancel(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", apperr.UnknownTicket)
	if err != nil {
		return err
	}
	if err := h.Tickets.Cancel(c.Request().Context(), u.ID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

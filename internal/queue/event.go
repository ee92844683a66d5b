// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/ArRuslan/ticketer/internal/model"
)

// TicketsQueue is the durable queue carrying ticket lifecycle events.
const TicketsQueue = "tickets.events"

// Event types published on TicketsQueue.
const (
	TicketReserved  = "ticket.reserved"
	TicketVerified  = "ticket.verified"
	TicketPaid      = "ticket.paid"
	TicketCancelled = "ticket.cancelled"
	TicketReclaimed = "ticket.reclaimed"
)

// TicketEvent is published after a ticket state change commits.  It
// contains enough information for the push service to notify the buyer
// (e.g. "Payment verification is needed" on ticket.reserved) without
// querying the primary database.
type TicketEvent struct {
	Type         string `json:"type"`
	TicketID     uint64 `json:"ticket_id"`
	UserID       uint64 `json:"user_id"`
	PlanID       uint64 `json:"plan_id"`
	EventID      uint64 `json:"event_id"`
	Amount       int    `json:"amount"`
	PaymentState string `json:"payment_state"`
	ExpiresAt    int64  `json:"expires_at"`
	OccurredAt   string `json:"occurred_at"`
}

// NewTicketEvent builds an event of type typ from a ticket snapshot.
func NewTicketEvent(typ string, d model.TicketDetails, now time.Time) TicketEvent {
	return TicketEvent{
		Type:         typ,
		TicketID:     d.Ticket.ID,
		UserID:       d.Ticket.UserID,
		PlanID:       d.Plan.ID,
		EventID:      d.Plan.EventID,
		Amount:       d.Ticket.Amount,
		PaymentState: d.Payment.State.String(),
		ExpiresAt:    d.Payment.ExpiresAt.Unix(),
		OccurredAt:   now.UTC().Format(time.RFC3339),
	}
}

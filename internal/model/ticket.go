package model

import "time"

// Ticket is a buyer's reservation of one or more units of a plan.  A
// ticket is created together with its Payment and is never mutated
// afterwards; it is either cancelled or reclaimed.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – buyer owning the reservation.
//  PlanID    – reserved plan.
//  Amount    – number of units (>= 1).
//  CreatedAt – creation timestamp.
type Ticket struct {
	ID        uint64    // tickets.id
	UserID    uint64    // tickets.user_id
	PlanID    uint64    // tickets.event_plan_id
	Amount    int       // tickets.amount
	CreatedAt time.Time // tickets.created_at
}

// TicketDetails joins a ticket with its payment, plan and event.  It is the
// unit the store hands to the service layer for any ticket operation.
type TicketDetails struct {
	Ticket  Ticket
	Payment Payment
	Plan    Plan
	Event   Event
}

// CanBeCancelled reports whether the reservation may still be cancelled at
// now.  Paid tickets cannot be cancelled once the event starts within the
// cancellation window.
func (d TicketDetails) CanBeCancelled(now time.Time) bool {
	return !(d.Event.StartsWithin(now, CancellationWindow) && d.Payment.State == PaymentDone)
}

// CancellationWindow is the period before an event start during which paid
// tickets become non-cancellable.
const CancellationWindow = 3 * time.Hour

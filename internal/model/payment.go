package model

import (
	"fmt"
	"time"
)

// PaymentState tracks a ticket's progress toward being paid.  Values are
// persisted as small integers.
type PaymentState int

const (
	PaymentAwaitingVerification PaymentState = 0
	PaymentAwaitingPayment      PaymentState = 1
	PaymentDone                 PaymentState = 2
)

// Hold windows applied when a payment enters a state.
const (
	VerificationHold = 15 * time.Minute
	PaymentHold      = 30 * time.Minute
)

func (s PaymentState) String() string {
	switch s {
	case PaymentAwaitingVerification:
		return "AWAITING_VERIFICATION"
	case PaymentAwaitingPayment:
		return "AWAITING_PAYMENT"
	case PaymentDone:
		return "DONE"
	}
	return fmt.Sprintf("PaymentState(%d)", int(s))
}

// AllowedTransitions lists the only forward edges of the payment state
// machine.  DONE is terminal.
var AllowedTransitions = map[PaymentState][]PaymentState{
	PaymentAwaitingVerification: {PaymentAwaitingPayment},
	PaymentAwaitingPayment:      {PaymentDone},
	PaymentDone:                 {},
}

// CanTransition checks whether moving from one state to another is allowed.
func CanTransition(from, to PaymentState) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Payment is the 1:1 companion of a Ticket.
//
// Fields:
//  ID        – primary key identifier.
//  TicketID  – owning ticket (unique).
//  State     – current PaymentState.
//  OrderID   – external gateway order id, set on verification (nullable).
//  ExpiresAt – end of the current hold window.
type Payment struct {
	ID        uint64       // payments.id
	TicketID  uint64       // payments.ticket_id
	State     PaymentState // payments.state
	OrderID   *string      // payments.paypal_id (nullable)
	ExpiresAt time.Time    // payments.expires_at
}

// Void reports whether the payment is unpaid and past its hold window.
// Void payments and their tickets must be reclaimed.
func (p Payment) Void(now time.Time) bool {
	return p.State != PaymentDone && !now.Before(p.ExpiresAt)
}

// Advance moves the payment to the next state, rejecting any edge not in
// AllowedTransitions.
func (p *Payment) Advance(to PaymentState) error {
	if !CanTransition(p.State, to) {
		return fmt.Errorf("payment %d: invalid transition %s -> %s", p.ID, p.State, to)
	}
	p.State = to
	return nil
}

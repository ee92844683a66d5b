package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ArRuslan/ticketer/internal/apperr"
	"github.com/ArRuslan/ticketer/internal/model"
	"github.com/ArRuslan/ticketer/internal/queue"
	"github.com/ArRuslan/ticketer/internal/repository"
)

// Reservation is the result of a successful Reserve.
type Reservation struct {
	TicketID   uint64
	TotalCents int64
	ExpiresAt  time.Time
}

// Reserve holds amount units of a plan for the buyer.  When eventID is
// non-zero the plan must belong to that event.
//
// The plan row is locked for the whole unit of work, void reservations of
// the plan are purged, and only then is the remaining capacity counted, so
// concurrent calls can never jointly oversell the plan.
func (s *Service) Reserve(ctx context.Context, buyerID, planID, eventID uint64, amount int) (Reservation, error) {
	if amount < 1 {
		return Reservation{}, apperr.InvalidAmount
	}
	now := s.now()
	var d model.TicketDetails
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		plan, err := tx.LockPlan(ctx, planID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.UnknownPlan
		}
		if err != nil {
			return fmt.Errorf("lock plan %d: %w", planID, err)
		}
		if eventID != 0 && plan.EventID != eventID {
			return apperr.UnknownPlan
		}
		event, err := tx.GetEvent(ctx, plan.EventID)
		if err != nil {
			return fmt.Errorf("event of plan %d: %w", planID, err)
		}

		if _, err := tx.PurgeExpired(ctx, plan.ID, now); err != nil {
			return fmt.Errorf("purge plan %d: %w", planID, err)
		}
		held, err := tx.ReservedAmount(ctx, plan.ID)
		if err != nil {
			return fmt.Errorf("count plan %d: %w", planID, err)
		}
		if plan.Capacity-held < amount {
			return apperr.TicketsNotAvailable.Withf(amount)
		}

		t := &model.Ticket{UserID: buyerID, PlanID: plan.ID, Amount: amount, CreatedAt: now}
		p := &model.Payment{State: model.PaymentAwaitingVerification, ExpiresAt: now.Add(model.VerificationHold)}
		if err := tx.CreateTicket(ctx, t, p); err != nil {
			return fmt.Errorf("create ticket: %w", err)
		}
		d = model.TicketDetails{Ticket: *t, Payment: *p, Plan: plan, Event: event}
		return nil
	})
	if err != nil {
		return Reservation{}, err
	}

	s.committed(ctx, queue.TicketReserved, d)
	return Reservation{
		TicketID:   d.Ticket.ID,
		TotalCents: d.Plan.Total(amount),
		ExpiresAt:  d.Payment.ExpiresAt,
	}, nil
}

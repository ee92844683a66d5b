package tickets

import (
	"context"
	"errors"
	"fmt"

	"github.com/ArRuslan/ticketer/internal/apperr"
	"github.com/ArRuslan/ticketer/internal/mfa"
	"github.com/ArRuslan/ticketer/internal/model"
	"github.com/ArRuslan/ticketer/internal/queue"
	"github.com/ArRuslan/ticketer/internal/repository"
)

// lockTicket loads and locks a ticket owned by buyerID.
func lockTicket(ctx context.Context, tx repository.Tx, ticketID, buyerID uint64) (model.TicketDetails, error) {
	d, err := tx.LockTicket(ctx, ticketID, buyerID)
	if errors.Is(err, repository.ErrNotFound) {
		return d, apperr.UnknownTicket
	}
	if err != nil {
		return d, fmt.Errorf("lock ticket %d: %w", ticketID, err)
	}
	return d, nil
}

// Verify confirms the buyer's intent to pay, gated by their TOTP code when
// MFA is enabled, and opens a gateway order for the reservation's total.
//
// A reservation whose hold has expired is deleted (and the deletion
// committed) before Verify reports ReservationExpired.
func (s *Service) Verify(ctx context.Context, buyerID, ticketID uint64, mfaCode string) error {
	now := s.now()
	var (
		d       model.TicketDetails
		expired bool
		opened  string
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		expired, opened = false, ""
		if d, err = lockTicket(ctx, tx, ticketID, buyerID); err != nil {
			return err
		}
		if d.Payment.Void(now) {
			expired = true
			return tx.DeleteTicket(ctx, d.Ticket.ID)
		}
		if d.Payment.State != model.PaymentAwaitingVerification {
			return apperr.AlreadyVerified
		}
		buyer, err := tx.GetUser(ctx, buyerID)
		if err != nil {
			return fmt.Errorf("buyer %d: %w", buyerID, err)
		}
		if buyer.MFAEnabled() && !mfa.Check(*buyer.MFAKey, mfaCode, now) {
			return apperr.WrongMFACode
		}

		gctx, cancel := s.gatewayContext(ctx)
		orderID, err := s.gateway.CreateOrder(gctx, d.Plan.Total(d.Ticket.Amount))
		cancel()
		if err != nil {
			s.log.Warnf("gateway: create order for ticket %d: %v", d.Ticket.ID, err)
			return apperr.GatewayUnavailable
		}
		opened = orderID

		if err := d.Payment.Advance(model.PaymentAwaitingPayment); err != nil {
			return err
		}
		d.Payment.OrderID = &orderID
		d.Payment.ExpiresAt = now.Add(model.PaymentHold)
		return tx.UpdatePayment(ctx, d.Payment)
	})
	if err != nil {
		if opened != "" {
			s.log.Errorf("gateway: order %s for ticket %d opened but not recorded: %v", opened, ticketID, err)
		}
		return err
	}
	if expired {
		s.committed(ctx, queue.TicketReclaimed, d)
		return apperr.ReservationExpired
	}
	s.committed(ctx, queue.TicketVerified, d)
	return nil
}

// CheckPayment captures the gateway order and marks the payment DONE.  It
// is idempotent: a DONE payment succeeds without contacting the gateway.
// An uncaptured payment yields PaymentNotReceived, which callers retry;
// if the gateway definitely reports it uncaptured and its hold has also
// expired, the reservation is reclaimed and ReservationExpired is returned
// instead.  A failed capture call never reclaims.
func (s *Service) CheckPayment(ctx context.Context, buyerID, ticketID uint64) error {
	now := s.now()
	var (
		d             model.TicketDetails
		paid, expired bool
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		paid, expired = false, false
		if d, err = lockTicket(ctx, tx, ticketID, buyerID); err != nil {
			return err
		}
		if d.Payment.State == model.PaymentDone {
			return nil
		}

		captured := false
		if d.Payment.OrderID != nil {
			gctx, cancel := s.gatewayContext(ctx)
			ok, err := s.gateway.CaptureOrder(gctx, *d.Payment.OrderID)
			cancel()
			if err != nil {
				// The capture may have gone through; keep the reservation.
				s.log.Warnf("gateway: capture order %s: %v", *d.Payment.OrderID, err)
				return apperr.PaymentNotReceived
			}
			captured = ok
		}
		if captured {
			if err := d.Payment.Advance(model.PaymentDone); err != nil {
				return err
			}
			paid = true
			return tx.UpdatePayment(ctx, d.Payment)
		}
		if d.Payment.Void(now) {
			expired = true
			return tx.DeleteTicket(ctx, d.Ticket.ID)
		}
		return apperr.PaymentNotReceived
	})
	if err != nil {
		return err
	}
	switch {
	case paid:
		s.committed(ctx, queue.TicketPaid, d)
	case expired:
		s.committed(ctx, queue.TicketReclaimed, d)
		return apperr.ReservationExpired
	}
	return nil
}

// Cancel deletes the reservation and its payment, returning the units to
// the plan.  Paid reservations cannot be cancelled once the event starts
// within model.CancellationWindow.
func (s *Service) Cancel(ctx context.Context, buyerID, ticketID uint64) error {
	now := s.now()
	var d model.TicketDetails
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		if d, err = lockTicket(ctx, tx, ticketID, buyerID); err != nil {
			return err
		}
		if !d.CanBeCancelled(now) {
			return apperr.CannotCancel
		}
		return tx.DeleteTicket(ctx, d.Ticket.ID)
	})
	if err != nil {
		return err
	}
	s.committed(ctx, queue.TicketCancelled, d)
	return nil
}

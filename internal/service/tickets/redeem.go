package tickets

import (
	"context"
	"errors"
	"fmt"

	"github.com/ArRuslan/ticketer/internal/apperr"
	"github.com/ArRuslan/ticketer/internal/claims"
	"github.com/ArRuslan/ticketer/internal/model"
	"github.com/ArRuslan/ticketer/internal/repository"
)

// IssueTokens mints one gate token per unit of a paid reservation.  Tokens
// expire when the event ends.
func (s *Service) IssueTokens(ctx context.Context, buyerID, ticketID uint64) ([]string, error) {
	var d model.TicketDetails
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		d, err = tx.GetTicket(ctx, ticketID, buyerID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.UnknownTicket
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if d.Payment.State != model.PaymentDone {
		return nil, apperr.PaymentNotReceivedToken
	}

	exp := d.Event.Ends()
	tokens := make([]string, 0, d.Ticket.Amount)
	for seat := 0; seat < d.Ticket.Amount; seat++ {
		tok, err := s.codec.EncodeRedemption(claims.RedemptionClaim{
			UserID:        d.Ticket.UserID,
			ReservationID: d.Ticket.ID,
			PlanID:        d.Plan.ID,
			EventID:       d.Event.ID,
			SeatIndex:     seat,
		}, exp)
		if err != nil {
			return nil, fmt.Errorf("sign seat %d of ticket %d: %w", seat, d.Ticket.ID, err)
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// Redemption is what the gate sees for a valid token.
type Redemption struct {
	FirstName string
	LastName  string
	SeatIndex int
	Plan      model.Plan
}

// Redeem validates a gate token presented at eventID by validator, who
// must manage the event (admins manage every event).  The reservation
// behind the token must still exist and be paid, so tokens of cancelled
// tickets stop working.  When a ledger is configured each seat is admitted
// once.
func (s *Service) Redeem(ctx context.Context, validator model.User, eventID uint64, token string) (Redemption, error) {
	c, ok := s.codec.DecodeRedemption(token)
	if !ok {
		return Redemption{}, apperr.InvalidTicket
	}
	if c.EventID != eventID {
		return Redemption{}, apperr.TicketAnotherEvent
	}

	var (
		d     model.TicketDetails
		buyer model.User
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		event, err := tx.GetEvent(ctx, eventID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.UnknownEvent
		}
		if err != nil {
			return err
		}
		if validator.Role < model.RoleAdmin && event.ManagerID != validator.ID {
			return apperr.UnknownEvent
		}

		d, err = tx.FindTicket(ctx, c.ReservationID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.InvalidTicket
		}
		if err != nil {
			return err
		}
		if d.Payment.State != model.PaymentDone || d.Ticket.UserID != c.UserID ||
			d.Plan.ID != c.PlanID || d.Event.ID != c.EventID || c.SeatIndex >= d.Ticket.Amount {
			return apperr.InvalidTicket
		}

		buyer, err = tx.GetUser(ctx, c.UserID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.InvalidTicket
		}
		return err
	})
	if err != nil {
		return Redemption{}, err
	}

	if s.ledger != nil {
		first, err := s.ledger.MarkRedeemed(ctx, c.ReservationID, c.SeatIndex, d.Event.Ends())
		if err != nil {
			return Redemption{}, fmt.Errorf("redemption ledger: %w", err)
		}
		if !first {
			return Redemption{}, apperr.AlreadyRedeemed
		}
	}
	return Redemption{
		FirstName: buyer.FirstName,
		LastName:  buyer.LastName,
		SeatIndex: c.SeatIndex,
		Plan:      d.Plan,
	}, nil
}

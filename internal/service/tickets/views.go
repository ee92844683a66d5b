package tickets

import (
	"context"
	"errors"
	"fmt"

	"github.com/ArRuslan/ticketer/internal/apperr"
	"github.com/ArRuslan/ticketer/internal/model"
	"github.com/ArRuslan/ticketer/internal/repository"
)

// Get returns one of the buyer's tickets.  Cached views are used while
// their hold is still live; otherwise the store is read, and void
// reservations of the buyer found on the way are reclaimed.
func (s *Service) Get(ctx context.Context, buyerID, ticketID uint64) (model.TicketDetails, error) {
	now := s.now()
	if s.cache != nil {
		var d model.TicketDetails
		hit, err := s.cache.Get(ctx, tagTicket, &d, buyerID, ticketID)
		if err != nil {
			s.log.Warnf("cache: read ticket %d: %v", ticketID, err)
		}
		if hit && !d.Payment.Void(now) {
			return d, nil
		}
	}

	var (
		d         model.TicketDetails
		reclaimed []uint64
		missing   bool
	)
	// A missing ticket still commits the purge.
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		if reclaimed, err = tx.PurgeExpiredForUser(ctx, buyerID, now); err != nil {
			return fmt.Errorf("purge tickets of user %d: %w", buyerID, err)
		}
		d, err = tx.GetTicket(ctx, ticketID, buyerID)
		missing = errors.Is(err, repository.ErrNotFound)
		if missing {
			return nil
		}
		return err
	})
	if err != nil {
		return model.TicketDetails{}, err
	}
	if len(reclaimed) > 0 {
		s.invalidate(ctx, buyerID, reclaimed...)
	}
	if missing {
		return model.TicketDetails{}, apperr.UnknownTicket
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, tagTicket, d, s.cacheTTL, buyerID, ticketID); err != nil {
			s.log.Warnf("cache: store ticket %d: %v", ticketID, err)
		}
	}
	return d, nil
}

// List returns the buyer's live tickets ordered by id.
func (s *Service) List(ctx context.Context, buyerID uint64) ([]model.TicketDetails, error) {
	now := s.now()
	if s.cache != nil {
		var cached []model.TicketDetails
		hit, err := s.cache.Get(ctx, tagTickets, &cached, buyerID)
		if err != nil {
			s.log.Warnf("cache: read tickets of user %d: %v", buyerID, err)
		}
		if hit {
			live := cached[:0]
			for _, d := range cached {
				if !d.Payment.Void(now) {
					live = append(live, d)
				}
			}
			return live, nil
		}
	}

	var (
		list      []model.TicketDetails
		reclaimed []uint64
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		if reclaimed, err = tx.PurgeExpiredForUser(ctx, buyerID, now); err != nil {
			return fmt.Errorf("purge tickets of user %d: %w", buyerID, err)
		}
		list, err = tx.ListTickets(ctx, buyerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(reclaimed) > 0 {
		s.invalidate(ctx, buyerID, reclaimed...)
	}
	if list == nil {
		list = []model.TicketDetails{}
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, tagTickets, list, s.cacheTTL, buyerID); err != nil {
			s.log.Warnf("cache: store tickets of user %d: %v", buyerID, err)
		}
	}
	return list, nil
}

// PlanAvailability is a plan with the number of units still on sale.
type PlanAvailability struct {
	Plan      model.Plan
	Available int
}

// Event returns an event and the availability of each of its plans.  Void
// reservations are reclaimed before counting, as Reserve does.
func (s *Service) Event(ctx context.Context, eventID uint64) (model.Event, []PlanAvailability, error) {
	now := s.now()
	var (
		event model.Event
		plans []PlanAvailability
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		event, err = tx.GetEvent(ctx, eventID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.UnknownEvent
		}
		if err != nil {
			return err
		}
		list, err := tx.ListPlans(ctx, eventID)
		if err != nil {
			return err
		}
		plans = make([]PlanAvailability, 0, len(list))
		for _, p := range list {
			if _, err := tx.PurgeExpired(ctx, p.ID, now); err != nil {
				return err
			}
			held, err := tx.ReservedAmount(ctx, p.ID)
			if err != nil {
				return err
			}
			avail := p.Capacity - held
			if avail < 0 {
				avail = 0
			}
			plans = append(plans, PlanAvailability{Plan: p, Available: avail})
		}
		return nil
	})
	return event, plans, err
}

// Cancellable reports whether Cancel would currently accept d.
func (s *Service) Cancellable(d model.TicketDetails) bool {
	return d.CanBeCancelled(s.now())
}

package tickets

import (
	"context"
	"time"

	"github.com/ArRuslan/ticketer/internal/model"
	"github.com/ArRuslan/ticketer/internal/repository"
)

const (
	tagSearch = "search"
	searchTTL = time.Minute
)

// EventListing is one search hit.  Plans is only filled when requested.
type EventListing struct {
	Event model.Event
	Plans []model.Plan
}

func unixOrZero(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.Unix()
}

// SearchEvents returns one page of events matching q.  Results are cached
// for a minute per distinct query.
func (s *Service) SearchEvents(ctx context.Context, q repository.EventSearchQuery, withPlans bool) ([]EventListing, error) {
	q = q.Normalize()
	parts := []interface{}{q.Page, q.PageSize, q.Name, q.Category, unixOrZero(q.TimeMin), unixOrZero(q.TimeMax), q.SortBy, q.SortDesc, withPlans}

	var out []EventListing
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, tagSearch, &out, parts...); err != nil {
			s.log.Warnf("search cache: %v", err)
		} else if hit {
			return out, nil
		}
	}

	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		events, err := tx.SearchEvents(ctx, q)
		if err != nil {
			return err
		}
		out = make([]EventListing, 0, len(events))
		for _, e := range events {
			l := EventListing{Event: e}
			if withPlans {
				if l.Plans, err = tx.ListPlans(ctx, e.ID); err != nil {
					return err
				}
			}
			out = append(out, l)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, tagSearch, out, searchTTL, parts...); err != nil {
			s.log.Warnf("search cache: %v", err)
		}
	}
	return out, nil
}

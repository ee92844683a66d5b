package tickets

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArRuslan/ticketer/internal/apperr"
	"github.com/ArRuslan/ticketer/internal/model"
	"github.com/ArRuslan/ticketer/internal/queue"
)

func TestReserve(t *testing.T) {
	f := newFixture(t, 10, 48*time.Hour)

	r := f.reserve(t, 3)
	assert.Equal(t, int64(3750), r.TotalCents)
	assert.Equal(t, base.Add(15*time.Minute), r.ExpiresAt)
	assert.Equal(t, 3, f.held(t))

	p := f.payment(t, r.TicketID)
	assert.Equal(t, model.PaymentAwaitingVerification, p.State)
	assert.Nil(t, p.OrderID)
	assert.Equal(t, []string{queue.TicketReserved}, f.events.types())
}

func TestReserveValidation(t *testing.T) {
	f := newFixture(t, 10, 48*time.Hour)
	ctx := context.Background()

	_, err := f.svc.Reserve(ctx, f.buyer.ID, f.plan.ID, 0, 0)
	assert.ErrorIs(t, err, apperr.InvalidAmount)

	_, err = f.svc.Reserve(ctx, f.buyer.ID, 999, 0, 1)
	assert.ErrorIs(t, err, apperr.UnknownPlan)

	_, err = f.svc.Reserve(ctx, f.buyer.ID, f.plan.ID, f.event.ID+100, 1)
	assert.ErrorIs(t, err, apperr.UnknownPlan)

	_, err = f.svc.Reserve(ctx, f.buyer.ID, f.plan.ID, 0, 1)
	assert.NoError(t, err)
}

func TestReserveInsufficientInventoryChangesNothing(t *testing.T) {
	f := newFixture(t, 5, 48*time.Hour)
	f.reserve(t, 4)

	_, err := f.svc.Reserve(context.Background(), f.buyer.ID, f.plan.ID, f.event.ID, 2)
	require.ErrorIs(t, err, apperr.TicketsNotAvailable)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, 4, f.held(t))
}

func TestReserveNoOversell(t *testing.T) {
	const capacity = 10
	f := newFixture(t, capacity, 48*time.Hour)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved int
		rejected int
	)
	for i := 0; i < 40; i++ {
		amount := i%3 + 1
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Reserve(context.Background(), f.buyer.ID, f.plan.ID, f.event.ID, amount)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				reserved += amount
				return
			}
			assert.ErrorIs(t, err, apperr.TicketsNotAvailable)
			rejected++
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, reserved, capacity)
	assert.Equal(t, reserved, f.held(t))
	assert.Positive(t, rejected)
}

func TestReserveCapacityOne(t *testing.T) {
	f := newFixture(t, 1, 48*time.Hour)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Reserve(context.Background(), f.buyer.ID, f.plan.ID, f.event.ID, 1)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, apperr.TicketsNotAvailable)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, f.held(t))
}

func TestReserveReclaimsExpiredHolds(t *testing.T) {
	f := newFixture(t, 1, 48*time.Hour)
	first := f.reserve(t, 1)

	f.clock.Advance(14 * time.Minute)
	_, err := f.svc.Reserve(context.Background(), f.buyer.ID, f.plan.ID, f.event.ID, 1)
	require.ErrorIs(t, err, apperr.TicketsNotAvailable)

	f.clock.Advance(time.Minute)
	second := f.reserve(t, 1)
	assert.NotEqual(t, first.TicketID, second.TicketID)
	assert.Equal(t, 1, f.held(t))

	_, err = f.svc.Get(context.Background(), f.buyer.ID, first.TicketID)
	assert.ErrorIs(t, err, apperr.UnknownTicket)
}

func TestReserveDoesNotReclaimPaid(t *testing.T) {
	f := newFixture(t, 1, 48*time.Hour)
	f.pay(t, 1)

	f.clock.Advance(24 * time.Hour)
	_, err := f.svc.Reserve(context.Background(), f.buyer.ID, f.plan.ID, f.event.ID, 1)
	assert.ErrorIs(t, err, apperr.TicketsNotAvailable)
}

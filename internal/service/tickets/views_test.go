package tickets

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ArRuslan/ticketer/internal/apperr"
	"github.com/ArRuslan/ticketer/internal/cache"
	"github.com/ArRuslan/ticketer/internal/model"
)

func withCache(t *testing.T) func(*Options) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return func(o *Options) { o.Cache = cache.New(rdb) }
}

func TestListDropsExpiredReservations(t *testing.T) {
	f := newFixture(t, 5, 48*time.Hour)
	paid := f.pay(t, 1)
	f.reserve(t, 2)

	list, err := f.svc.List(context.Background(), f.buyer.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	f.clock.Advance(time.Hour)
	list, err = f.svc.List(context.Background(), f.buyer.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, paid.TicketID, list[0].Ticket.ID)
	assert.Equal(t, 1, f.held(t))
}

func TestListIsEmptyNotNil(t *testing.T) {
	f := newFixture(t, 5, 48*time.Hour)
	list, err := f.svc.List(context.Background(), f.buyer.ID)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestCachedViewsAreInvalidatedOnStateChange(t *testing.T) {
	f := newFixture(t, 5, 48*time.Hour, withCache(t))
	r := f.reserve(t, 1)
	ctx := context.Background()

	d, err := f.svc.Get(ctx, f.buyer.ID, r.TicketID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentAwaitingVerification, d.Payment.State)
	list, err := f.svc.List(ctx, f.buyer.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	f.gw.On("CreateOrder", mock.Anything).Return("ORDER-1", nil).Once()
	require.NoError(t, f.svc.Verify(ctx, f.buyer.ID, r.TicketID, ""))

	d, err = f.svc.Get(ctx, f.buyer.ID, r.TicketID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentAwaitingPayment, d.Payment.State)
	require.NotNil(t, d.Payment.OrderID)
	list, err = f.svc.List(ctx, f.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentAwaitingPayment, list[0].Payment.State)

	require.NoError(t, f.svc.Cancel(ctx, f.buyer.ID, r.TicketID))
	_, err = f.svc.Get(ctx, f.buyer.ID, r.TicketID)
	assert.ErrorIs(t, err, apperr.UnknownTicket)
	list, err = f.svc.List(ctx, f.buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCachedViewsFilterVoidEntries(t *testing.T) {
	f := newFixture(t, 5, 48*time.Hour, withCache(t))
	r := f.reserve(t, 1)
	ctx := context.Background()

	_, err := f.svc.List(ctx, f.buyer.ID)
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, f.buyer.ID, r.TicketID)
	require.NoError(t, err)

	f.clock.Advance(16 * time.Minute)
	list, err := f.svc.List(ctx, f.buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.svc.Get(ctx, f.buyer.ID, r.TicketID)
	assert.ErrorIs(t, err, apperr.UnknownTicket)
	assert.Zero(t, f.held(t))
}

func TestEventAvailability(t *testing.T) {
	f := newFixture(t, 5, 48*time.Hour)
	f.pay(t, 2)
	f.reserve(t, 1)

	ev, plans, err := f.svc.Event(context.Background(), f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, f.event.ID, ev.ID)
	require.Len(t, plans, 1)
	assert.Equal(t, 2, plans[0].Available)

	f.clock.Advance(time.Hour)
	_, plans, err = f.svc.Event(context.Background(), f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, plans[0].Available)

	_, _, err = f.svc.Event(context.Background(), 999)
	assert.ErrorIs(t, err, apperr.UnknownEvent)
}

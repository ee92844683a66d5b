package tickets

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ArRuslan/ticketer/internal/claims"
	"github.com/ArRuslan/ticketer/internal/model"
	"github.com/ArRuslan/ticketer/internal/queue"
	"github.com/ArRuslan/ticketer/internal/repository"
)

// base is 10s into a TOTP step so that codes at base-5s and base+1s agree.
var base = time.Date(2026, 5, 1, 12, 0, 10, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateOrder(ctx context.Context, amountCents int64) (string, error) {
	ret := m.Called(amountCents)
	return ret.String(0), ret.Error(1)
}

func (m *mockGateway) CaptureOrder(ctx context.Context, orderID string) (bool, error) {
	ret := m.Called(orderID)
	return ret.Bool(0), ret.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.TicketEvent
}

func (p *recordingPublisher) PublishTicketEvent(_ context.Context, ev queue.TicketEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	store   *repository.MemoryStore
	svc     *Service
	gw      *mockGateway
	events  *recordingPublisher
	clock   *fakeClock
	codec   *claims.Codec
	event   model.Event
	plan    model.Plan
	buyer   model.User
	manager model.User
}

func newFixture(t *testing.T, capacity int, startsIn time.Duration, opts ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		store:  repository.NewMemoryStore(),
		gw:     &mockGateway{},
		events: &recordingPublisher{},
		clock:  &fakeClock{t: base},
	}
	f.manager = f.addUser(t, "Gate", "Keeper", model.RoleManager, nil)
	f.buyer = f.addUser(t, "Ada", "Lovelace", model.RoleUser, nil)
	f.event = f.store.AddEvent(model.Event{Name: "Concert", StartTime: base.Add(startsIn), ManagerID: f.manager.ID})
	f.plan = f.store.AddPlan(model.Plan{EventID: f.event.ID, Name: "GA", PriceCents: 1250, Capacity: capacity})

	f.codec = claims.NewCodec([]byte("test-secret")).WithClock(f.clock.Now)
	o := Options{Events: f.events, Now: f.clock.Now, GatewayTimeout: time.Second}
	for _, fn := range opts {
		fn(&o)
	}
	f.svc = New(f.store, f.gw, f.codec, o)
	return f
}

func (f *fixture) addUser(t *testing.T, first, last string, role model.Role, mfaKey *string) model.User {
	t.Helper()
	u := model.User{FirstName: first, LastName: last, Role: role, MFAKey: mfaKey}
	require.NoError(t, f.store.Atomic(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateUser(ctx, &u)
	}))
	return u
}

func (f *fixture) reserve(t *testing.T, amount int) Reservation {
	t.Helper()
	r, err := f.svc.Reserve(context.Background(), f.buyer.ID, f.plan.ID, f.event.ID, amount)
	require.NoError(t, err)
	return r
}

// pay drives a fresh reservation to DONE.
func (f *fixture) pay(t *testing.T, amount int) Reservation {
	t.Helper()
	r := f.reserve(t, amount)
	f.gw.On("CreateOrder", f.plan.Total(amount)).Return("ORDER-PAY", nil).Once()
	f.gw.On("CaptureOrder", "ORDER-PAY").Return(true, nil).Once()
	require.NoError(t, f.svc.Verify(context.Background(), f.buyer.ID, r.TicketID, ""))
	require.NoError(t, f.svc.CheckPayment(context.Background(), f.buyer.ID, r.TicketID))
	return r
}

func (f *fixture) held(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.store.Atomic(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		var err error
		n, err = tx.ReservedAmount(ctx, f.plan.ID)
		return err
	}))
	return n
}

func (f *fixture) payment(t *testing.T, ticketID uint64) model.Payment {
	t.Helper()
	var d model.TicketDetails
	require.NoError(t, f.store.Atomic(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		var err error
		d, err = tx.FindTicket(ctx, ticketID)
		return err
	}))
	return d.Payment
}

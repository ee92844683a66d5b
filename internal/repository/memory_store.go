package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ArRuslan/ticketer/internal/model"
)

// MemoryStore is an in-process Store used for local development and
// tests.  Units of work are fully serialised by one mutex; writes are
// staged on a copy of the state and only become visible on commit.
//
// The mutex is held for the whole of fn, including any gateway call made
// inside it (Verify and CheckPayment), so one slow gateway round trip
// stalls every other request for up to GATEWAY_TIMEOUT.  Use the MySQL
// store, which only locks the rows involved, for anything but a single
// local user.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	nextID    uint64
	users     map[uint64]model.User
	sessions  map[uint64]model.Session
	externals map[uint64]model.ExternalAuth
	events    map[uint64]model.Event
	plans     map[uint64]model.Plan
	tickets   map[uint64]model.Ticket
	payments  map[uint64]model.Payment // keyed by ticket id
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		users:     map[uint64]model.User{},
		sessions:  map[uint64]model.Session{},
		externals: map[uint64]model.ExternalAuth{},
		events:    map[uint64]model.Event{},
		plans:     map[uint64]model.Plan{},
		tickets:   map[uint64]model.Ticket{},
		payments:  map[uint64]model.Payment{},
	}}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memState) clone() *memState {
	return &memState{
		nextID:    s.nextID,
		users:     cloneMap(s.users),
		sessions:  cloneMap(s.sessions),
		externals: cloneMap(s.externals),
		events:    cloneMap(s.events),
		plans:     cloneMap(s.plans),
		tickets:   cloneMap(s.tickets),
		payments:  cloneMap(s.payments),
	}
}

func (s *memState) id() uint64 {
	s.nextID++
	return s.nextID
}

// Atomic runs fn against a private copy of the state and publishes the
// copy only if fn succeeds and ctx is still live.
func (m *MemoryStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	st := m.state.clone()
	if err := fn(ctx, &memTx{s: st}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = st
	return nil
}

// AddEvent inserts an event (assigning an id when zero).  Event and plan
// management is not part of the API, so seeding goes through here.
func (m *MemoryStore) AddEvent(e model.Event) model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == 0 {
		e.ID = m.state.id()
	} else if e.ID > m.state.nextID {
		m.state.nextID = e.ID
	}
	m.state.events[e.ID] = e
	return e
}

// AddPlan inserts a plan (assigning an id when zero).
func (m *MemoryStore) AddPlan(p model.Plan) model.Plan {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = m.state.id()
	} else if p.ID > m.state.nextID {
		m.state.nextID = p.ID
	}
	m.state.plans[p.ID] = p
	return p
}

type memTx struct {
	s *memState
}

func (t *memTx) LockPlan(ctx context.Context, planID uint64) (model.Plan, error) {
	return t.GetPlan(ctx, planID)
}

func (t *memTx) GetPlan(_ context.Context, planID uint64) (model.Plan, error) {
	p, ok := t.s.plans[planID]
	if !ok {
		return model.Plan{}, ErrNotFound
	}
	return p, nil
}

func (t *memTx) ListPlans(_ context.Context, eventID uint64) ([]model.Plan, error) {
	var out []model.Plan
	for _, p := range t.s.plans {
		if p.EventID == eventID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) GetEvent(_ context.Context, eventID uint64) (model.Event, error) {
	e, ok := t.s.events[eventID]
	if !ok {
		return model.Event{}, ErrNotFound
	}
	return e, nil
}

func (t *memTx) SearchEvents(_ context.Context, q EventSearchQuery) ([]model.Event, error) {
	q = q.Normalize()
	name := strings.ToLower(q.Name)
	var hits []model.Event
	for _, e := range t.s.events {
		switch {
		case name != "" && !strings.Contains(strings.ToLower(e.Name), name):
		case q.Category != "" && e.Category != q.Category:
		case q.TimeMin != nil && e.StartTime.Before(*q.TimeMin):
		case q.TimeMax != nil && e.StartTime.After(*q.TimeMax):
		default:
			hits = append(hits, e)
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if q.SortDesc {
			a, b = b, a
		}
		switch q.SortBy {
		case "name":
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		case "category":
			if a.Category != b.Category {
				return a.Category < b.Category
			}
		case "start_time":
			if !a.StartTime.Equal(b.StartTime) {
				return a.StartTime.Before(b.StartTime)
			}
		}
		return hits[i].ID < hits[j].ID
	})
	from := (q.Page - 1) * q.PageSize
	if from >= len(hits) {
		return []model.Event{}, nil
	}
	to := from + q.PageSize
	if to > len(hits) {
		to = len(hits)
	}
	return hits[from:to], nil
}

func (t *memTx) purge(match func(model.Ticket) bool, now time.Time) []uint64 {
	ids := []uint64{}
	for id, tk := range t.s.tickets {
		if !match(tk) {
			continue
		}
		if p, ok := t.s.payments[id]; ok && p.Void(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		delete(t.s.tickets, id)
		delete(t.s.payments, id)
	}
	return ids
}

func (t *memTx) PurgeExpired(_ context.Context, planID uint64, now time.Time) ([]uint64, error) {
	return t.purge(func(tk model.Ticket) bool { return tk.PlanID == planID }, now), nil
}

func (t *memTx) PurgeExpiredForUser(_ context.Context, userID uint64, now time.Time) ([]uint64, error) {
	return t.purge(func(tk model.Ticket) bool { return tk.UserID == userID }, now), nil
}

func (t *memTx) ReservedAmount(_ context.Context, planID uint64) (int, error) {
	n := 0
	for _, tk := range t.s.tickets {
		if tk.PlanID == planID {
			n += tk.Amount
		}
	}
	return n, nil
}

func (t *memTx) CreateTicket(_ context.Context, tk *model.Ticket, p *model.Payment) error {
	if _, ok := t.s.plans[tk.PlanID]; !ok {
		return ErrNotFound
	}
	if tk.CreatedAt.IsZero() {
		tk.CreatedAt = time.Now().UTC()
	}
	tk.ID = t.s.id()
	p.ID = t.s.id()
	p.TicketID = tk.ID
	t.s.tickets[tk.ID] = *tk
	t.s.payments[tk.ID] = *p
	return nil
}

func (t *memTx) details(tk model.Ticket) (model.TicketDetails, error) {
	p, ok := t.s.payments[tk.ID]
	if !ok {
		return model.TicketDetails{}, ErrInvariant
	}
	plan, ok := t.s.plans[tk.PlanID]
	if !ok {
		return model.TicketDetails{}, ErrInvariant
	}
	ev, ok := t.s.events[plan.EventID]
	if !ok {
		return model.TicketDetails{}, ErrInvariant
	}
	return model.TicketDetails{Ticket: tk, Payment: p, Plan: plan, Event: ev}, nil
}

func (t *memTx) GetTicket(_ context.Context, ticketID, userID uint64) (model.TicketDetails, error) {
	tk, ok := t.s.tickets[ticketID]
	if !ok || tk.UserID != userID {
		return model.TicketDetails{}, ErrNotFound
	}
	return t.details(tk)
}

func (t *memTx) LockTicket(ctx context.Context, ticketID, userID uint64) (model.TicketDetails, error) {
	return t.GetTicket(ctx, ticketID, userID)
}

func (t *memTx) FindTicket(_ context.Context, ticketID uint64) (model.TicketDetails, error) {
	tk, ok := t.s.tickets[ticketID]
	if !ok {
		return model.TicketDetails{}, ErrNotFound
	}
	return t.details(tk)
}

func (t *memTx) ListTickets(_ context.Context, userID uint64) ([]model.TicketDetails, error) {
	var out []model.TicketDetails
	for _, tk := range t.s.tickets {
		if tk.UserID != userID {
			continue
		}
		d, err := t.details(tk)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket.ID < out[j].Ticket.ID })
	return out, nil
}

func (t *memTx) UpdatePayment(_ context.Context, p model.Payment) error {
	if _, ok := t.s.payments[p.TicketID]; !ok {
		return ErrNotFound
	}
	t.s.payments[p.TicketID] = p
	return nil
}

func (t *memTx) DeleteTicket(_ context.Context, ticketID uint64) error {
	delete(t.s.tickets, ticketID)
	delete(t.s.payments, ticketID)
	return nil
}

func (t *memTx) CreateUser(_ context.Context, u *model.User) error {
	if u.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*u.Email))
		u.Email = &e
		for _, other := range t.s.users {
			if other.Email != nil && *other.Email == e {
				return ErrEmailExists
			}
		}
	}
	if u.PhoneNumber != nil {
		for _, other := range t.s.users {
			if other.PhoneNumber != nil && *other.PhoneNumber == *u.PhoneNumber {
				return ErrPhoneExists
			}
		}
	}
	u.ID = t.s.id()
	t.s.users[u.ID] = *u
	return nil
}

func (t *memTx) GetUser(_ context.Context, id uint64) (model.User, error) {
	u, ok := t.s.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (t *memTx) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range t.s.users {
		if u.Email != nil && *u.Email == email {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (t *memTx) SetUserMFA(_ context.Context, userID uint64, key *string) error {
	u, ok := t.s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.MFAKey = key
	t.s.users[userID] = u
	return nil
}

func (t *memTx) UpdateUser(_ context.Context, u model.User) error {
	old, ok := t.s.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	if u.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*u.Email))
		u.Email = &e
	}
	for id, other := range t.s.users {
		if id == u.ID {
			continue
		}
		if u.Email != nil && other.Email != nil && *other.Email == *u.Email {
			return ErrEmailExists
		}
		if u.PhoneNumber != nil && other.PhoneNumber != nil && *other.PhoneNumber == *u.PhoneNumber {
			return ErrPhoneExists
		}
	}
	old.Email, old.PasswordHash = u.Email, u.PasswordHash
	old.FirstName, old.LastName, old.PhoneNumber = u.FirstName, u.LastName, u.PhoneNumber
	t.s.users[u.ID] = old
	return nil
}

func (t *memTx) PhoneNumberUsed(_ context.Context, phone int64, exceptUserID uint64) (bool, error) {
	for id, u := range t.s.users {
		if id != exceptUserID && u.PhoneNumber != nil && *u.PhoneNumber == phone {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) CreateSession(_ context.Context, s *model.Session) error {
	s.ID = t.s.id()
	t.s.sessions[s.ID] = *s
	return nil
}

func (t *memTx) GetSession(_ context.Context, sessionID, userID uint64, token string) (model.Session, error) {
	s, ok := t.s.sessions[sessionID]
	if !ok || s.UserID != userID || s.Token != token {
		return model.Session{}, ErrNotFound
	}
	return s, nil
}

func (t *memTx) DeleteSession(_ context.Context, sessionID uint64) error {
	delete(t.s.sessions, sessionID)
	return nil
}

func (t *memTx) GetExternalAuth(_ context.Context, service, serviceID string) (model.ExternalAuth, error) {
	for _, a := range t.s.externals {
		if a.Service == service && a.ServiceID == serviceID {
			return a, nil
		}
	}
	return model.ExternalAuth{}, ErrNotFound
}

func (t *memTx) HasExternalAuth(_ context.Context, userID uint64) (bool, error) {
	for _, a := range t.s.externals {
		if a.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) SaveExternalAuth(_ context.Context, a *model.ExternalAuth) error {
	for id, cur := range t.s.externals {
		if cur.Service == a.Service && cur.ServiceID == a.ServiceID {
			cur.AccessToken, cur.RefreshToken, cur.ExpiresAt = a.AccessToken, a.RefreshToken, a.ExpiresAt
			t.s.externals[id] = cur
			a.ID, a.UserID = id, cur.UserID
			return nil
		}
	}
	for _, cur := range t.s.externals {
		if cur.UserID == a.UserID {
			return ErrConflict
		}
	}
	a.ID = t.s.id()
	t.s.externals[a.ID] = *a
	return nil
}

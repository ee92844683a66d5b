package repository

import (
	"context"
	"time"

	"github.com/ArRuslan/ticketer/internal/model"
)

// Store runs units of work atomically.  Every read and write of the
// service layer happens through a Tx handed out by Atomic.  If fn returns
// an error, or ctx is cancelled before commit, no write of fn is visible.
type Store interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of operations available inside a unit of work.
type Tx interface {
	// LockPlan returns the plan and holds a lock on it until the unit of
	// work ends, serialising concurrent reservations of the same plan.
	LockPlan(ctx context.Context, planID uint64) (model.Plan, error)
	GetPlan(ctx context.Context, planID uint64) (model.Plan, error)
	ListPlans(ctx context.Context, eventID uint64) ([]model.Plan, error)
	GetEvent(ctx context.Context, eventID uint64) (model.Event, error)
	SearchEvents(ctx context.Context, q EventSearchQuery) ([]model.Event, error)

	// PurgeExpired deletes the tickets (and payments) of a plan whose
	// payment is not done and expired at or before now.
	PurgeExpired(ctx context.Context, planID uint64, now time.Time) ([]uint64, error)
	// PurgeExpiredForUser is PurgeExpired scoped to a buyer instead of a plan.
	PurgeExpiredForUser(ctx context.Context, userID uint64, now time.Time) ([]uint64, error)
	// ReservedAmount sums the amount of all tickets of a plan.
	ReservedAmount(ctx context.Context, planID uint64) (int, error)
	// CreateTicket inserts t and p, filling in their ids.
	CreateTicket(ctx context.Context, t *model.Ticket, p *model.Payment) error
	GetTicket(ctx context.Context, ticketID, userID uint64) (model.TicketDetails, error)
	// LockTicket is GetTicket holding a lock on the ticket and payment.
	LockTicket(ctx context.Context, ticketID, userID uint64) (model.TicketDetails, error)
	// FindTicket looks a ticket up regardless of its owner.
	FindTicket(ctx context.Context, ticketID uint64) (model.TicketDetails, error)
	ListTickets(ctx context.Context, userID uint64) ([]model.TicketDetails, error)
	UpdatePayment(ctx context.Context, p model.Payment) error
	DeleteTicket(ctx context.Context, ticketID uint64) error

	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id uint64) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	SetUserMFA(ctx context.Context, userID uint64, key *string) error
	UpdateUser(ctx context.Context, u model.User) error
	PhoneNumberUsed(ctx context.Context, phone int64, exceptUserID uint64) (bool, error)

	CreateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, sessionID, userID uint64, token string) (model.Session, error)
	DeleteSession(ctx context.Context, sessionID uint64) error

	GetExternalAuth(ctx context.Context, service, serviceID string) (model.ExternalAuth, error)
	HasExternalAuth(ctx context.Context, userID uint64) (bool, error)
	SaveExternalAuth(ctx context.Context, a *model.ExternalAuth) error
}

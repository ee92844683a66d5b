// Package tickets implements the reservation and payment lifecycle: capacity
// safe reservation, the forward-only payment state machine with lazy
// reclamation of abandoned holds, and issuing and redeeming per-seat gate
// tokens.
package tickets

import (
	"context"
	"time"

	"github.com/ArRuslan/ticketer/internal/claims"
	"github.com/ArRuslan/ticketer/internal/model"
	"github.com/ArRuslan/ticketer/internal/queue"
	"github.com/ArRuslan/ticketer/internal/repository"
)

// Gateway opens and captures payment orders.
type Gateway interface {
	CreateOrder(ctx context.Context, amountCents int64) (string, error)
	CaptureOrder(ctx context.Context, orderID string) (bool, error)
}

// Cache is a TTL cache for read views.
type Cache interface {
	Get(ctx context.Context, tag string, dst interface{}, parts ...interface{}) (bool, error)
	Put(ctx context.Context, tag string, value interface{}, ttl time.Duration, parts ...interface{}) error
	Delete(ctx context.Context, tag string, parts ...interface{}) error
}

// Ledger records redeemed seats.
type Ledger interface {
	MarkRedeemed(ctx context.Context, reservationID uint64, seatIndex int, until time.Time) (bool, error)
}

// Publisher delivers ticket events to the broker.
type Publisher interface {
	PublishTicketEvent(ctx context.Context, ev queue.TicketEvent) error
}

// Logger is satisfied by echo's logger.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Options holds the optional collaborators of a Service.  Nil Cache,
// Ledger and Events disable caching, replay protection and events.
type Options struct {
	Cache  Cache
	Ledger Ledger
	Events Publisher
	Logger Logger
	Now    func() time.Time

	// GatewayTimeout bounds each gateway call.  Defaults to 10s.
	GatewayTimeout time.Duration
	// CacheTTL is the lifetime of cached ticket views.  Defaults to 5m.
	CacheTTL time.Duration
}

// Service is the ticket lifecycle engine.
type Service struct {
	store   repository.Store
	gateway Gateway
	codec   *claims.Codec

	cache  Cache
	ledger Ledger
	events Publisher
	log    Logger
	now    func() time.Time

	gatewayTimeout time.Duration
	cacheTTL       time.Duration
}

// Cache tags of the buyer's ticket views.
const (
	tagTickets = "tickets"
	tagTicket  = "ticket"
)

// sideEffectTimeout bounds cache invalidation and event publishing after
// a commit.
const sideEffectTimeout = 3 * time.Second

// New builds a Service.
func New(store repository.Store, gateway Gateway, codec *claims.Codec, opts Options) *Service {
	s := &Service{
		store:          store,
		gateway:        gateway,
		codec:          codec,
		cache:          opts.Cache,
		ledger:         opts.Ledger,
		events:         opts.Events,
		log:            opts.Logger,
		now:            opts.Now,
		gatewayTimeout: opts.GatewayTimeout,
		cacheTTL:       opts.CacheTTL,
	}
	if s.log == nil {
		s.log = nopLogger{}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.gatewayTimeout <= 0 {
		s.gatewayTimeout = 10 * time.Second
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = 5 * time.Minute
	}
	return s
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// invalidate drops the buyer's list view and the single views of ticketIDs.
// Failures only cost staleness up to the cache TTL and are logged.
func (s *Service) invalidate(ctx context.Context, userID uint64, ticketIDs ...uint64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, tagTickets, userID); err != nil {
		s.log.Warnf("cache: drop tickets of user %d: %v", userID, err)
	}
	for _, id := range ticketIDs {
		if err := s.cache.Delete(ctx, tagTicket, userID, id); err != nil {
			s.log.Warnf("cache: drop ticket %d: %v", id, err)
		}
	}
}

// committed runs the side effects of a committed state change.  It is
// detached from the request's cancellation so that a client hanging up
// right after commit still gets its cache invalidated.
func (s *Service) committed(ctx context.Context, typ string, d model.TicketDetails) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	s.invalidate(ctx, d.Ticket.UserID, d.Ticket.ID)
	if s.events == nil {
		return
	}
	if err := s.events.PublishTicketEvent(ctx, queue.NewTicketEvent(typ, d, s.now())); err != nil {
		s.log.Warnf("events: publish %s for ticket %d: %v", typ, d.Ticket.ID, err)
	}
}

func (s *Service) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.gatewayTimeout)
}

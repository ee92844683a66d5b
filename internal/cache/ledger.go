package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ledger remembers which gate tokens have been redeemed.  Entries live
// until the token itself expires, after which the token is rejected by
// its signature envelope anyway.
type Ledger struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// NewLedger returns a Ledger storing its marks in rdb.
func NewLedger(rdb *redis.Client) *Ledger {
	return &Ledger{rdb: rdb, prefix: "redeemed", now: time.Now}
}

// MarkRedeemed records the redemption of one seat of a reservation.  It
// reports false when the seat was already redeemed.
func (l *Ledger) MarkRedeemed(ctx context.Context, reservationID uint64, seatIndex int, until time.Time) (bool, error) {
	ttl := until.Sub(l.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	key := fmt.Sprintf("%s:%d:%d", l.prefix, reservationID, seatIndex)
	return l.rdb.SetNX(ctx, key, l.now().UTC().Unix(), ttl).Result()
}

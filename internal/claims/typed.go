package claims

import (
	"math"
	"time"
)

// SessionClaim authenticates a request on behalf of a session.  Token is
// the session's opaque token and must match the stored session.
type SessionClaim struct {
	UserID    uint64
	SessionID uint64
	Token     string
}

// LinkStateClaim is the short-lived OAuth "state" parameter used when a
// logged-in user connects an external account.
type LinkStateClaim struct {
	UserID uint64
}

// RedemptionClaim represents one physical seat of a paid reservation.
type RedemptionClaim struct {
	UserID        uint64
	ReservationID uint64
	PlanID        uint64
	EventID       uint64
	SeatIndex     int
}

// LinkStateTTL bounds how long a link-state claim remains usable.
const LinkStateTTL = 180 * time.Second

const linkStateType = "google-connect"

// EncodeSession signs a session claim expiring at exp.
func (c *Codec) EncodeSession(s SessionClaim, exp time.Time) (string, error) {
	return c.Encode(map[string]any{
		"user":    s.UserID,
		"session": s.SessionID,
		"token":   s.Token,
	}, exp)
}

// DecodeSession verifies token and extracts a session claim.
func (c *Codec) DecodeSession(token string) (SessionClaim, bool) {
	p, ok := c.Decode(token)
	if !ok {
		return SessionClaim{}, false
	}
	uid, ok1 := uintField(p, "user")
	sid, ok2 := uintField(p, "session")
	tok, ok3 := p["token"].(string)
	if !ok1 || !ok2 || !ok3 || tok == "" {
		return SessionClaim{}, false
	}
	return SessionClaim{UserID: uid, SessionID: sid, Token: tok}, true
}

// EncodeLinkState signs a link-state claim valid for LinkStateTTL.
func (c *Codec) EncodeLinkState(s LinkStateClaim) (string, error) {
	return c.Encode(map[string]any{
		"user_id": s.UserID,
		"type":    linkStateType,
	}, c.now().Add(LinkStateTTL))
}

// DecodeLinkState verifies token and extracts a link-state claim.  Claims
// of any other purpose are rejected.
func (c *Codec) DecodeLinkState(token string) (LinkStateClaim, bool) {
	p, ok := c.Decode(token)
	if !ok {
		return LinkStateClaim{}, false
	}
	if typ, _ := p["type"].(string); typ != linkStateType {
		return LinkStateClaim{}, false
	}
	uid, ok := uintField(p, "user_id")
	if !ok {
		return LinkStateClaim{}, false
	}
	return LinkStateClaim{UserID: uid}, true
}

// EncodeRedemption signs a redemption claim expiring at exp.
func (c *Codec) EncodeRedemption(r RedemptionClaim, exp time.Time) (string, error) {
	return c.Encode(map[string]any{
		"userId":        r.UserID,
		"reservationId": r.ReservationID,
		"planId":        r.PlanID,
		"eventId":       r.EventID,
		"seatIndex":     r.SeatIndex,
	}, exp)
}

// DecodeRedemption verifies token and extracts a redemption claim.
func (c *Codec) DecodeRedemption(token string) (RedemptionClaim, bool) {
	p, ok := c.Decode(token)
	if !ok {
		return RedemptionClaim{}, false
	}
	var r RedemptionClaim
	var oks [5]bool
	r.UserID, oks[0] = uintField(p, "userId")
	r.ReservationID, oks[1] = uintField(p, "reservationId")
	r.PlanID, oks[2] = uintField(p, "planId")
	r.EventID, oks[3] = uintField(p, "eventId")
	var seat uint64
	seat, oks[4] = uintField(p, "seatIndex")
	for _, ok := range oks {
		if !ok {
			return RedemptionClaim{}, false
		}
	}
	r.SeatIndex = int(seat)
	return r, true
}

// uintField reads a non-negative integral JSON number.
func uintField(p map[string]any, key string) (uint64, bool) {
	f, ok := p[key].(float64)
	if !ok || f < 0 || f != math.Trunc(f) || f > 1<<53 {
		return 0, false
	}
	return uint64(f), true
}

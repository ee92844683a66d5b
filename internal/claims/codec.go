// Package claims implements the signed claim sets used for session
// authentication, external account link state and seat redemption.
//
// A claim is a compact three-part token: base64url(header) "."
// base64url(payload) "." base64url(signature), without padding.  The
// header is {"alg":"HS512","typ":"JWT","exp":<unix seconds or 0>}; the
// payload is an arbitrary JSON object; the signature is HMAC-SHA512 over
// the first two segments.  Expiry lives in the header, not in the payload.
package claims

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	errBadHeader = errors.New("claims: malformed header")
	errExpired   = errors.New("claims: expired")
)

// Codec signs and verifies claims with a single process-wide secret.
type Codec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// NewCodec returns a Codec bound to secret.
func NewCodec(secret []byte) *Codec {
	return &Codec{
		secret: secret,
		now:    time.Now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
			jwt.WithoutClaimsValidation(),
			jwt.WithStrictDecoding(),
		),
	}
}

// WithClock returns a copy of c that reads the current time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// Encode signs payload.  A zero exp produces a claim that never expires.
func (c *Codec) Encode(payload map[string]any, exp time.Time) (string, error) {
	var expUnix int64
	if !exp.IsZero() {
		expUnix = exp.Unix()
	}
	if payload == nil {
		payload = map[string]any{}
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims(payload))
	t.Header["exp"] = expUnix
	return t.SignedString(c.secret)
}

// Decode verifies token and returns its payload.  Any failure (wrong
// shape, wrong header, expired, bad signature) returns ok=false; callers
// must treat that as an authentication failure.
func (c *Codec) Decode(token string) (payload map[string]any, ok bool) {
	if token == "" {
		return nil, false
	}
	t, err := c.parser.ParseWithClaims(token, jwt.MapClaims{}, c.keyFunc)
	if err != nil || !t.Valid {
		return nil, false
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}
	return map[string]any(claims), true
}

func (c *Codec) keyFunc(t *jwt.Token) (any, error) {
	if typ, _ := t.Header["typ"].(string); typ != "JWT" {
		return nil, errBadHeader
	}
	exp, ok := t.Header["exp"].(float64)
	if !ok {
		return nil, errBadHeader
	}
	if exp != 0 && float64(c.now().UnixNano())/1e9 >= exp {
		return nil, errExpired
	}
	return c.secret, nil
}

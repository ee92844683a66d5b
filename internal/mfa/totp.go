// Package mfa validates time-based one-time codes (RFC 6238) used to gate
// login, payment verification and MFA settings changes.
package mfa

import (
	"encoding/base32"
	"regexp"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Step is the TOTP time step.
const Step = 30 * time.Second

// Codes are accepted when generated at now-earlySkew or now+lateSkew.  The
// window is asymmetric and narrower than the usual ±1 step: a code from
// the bucket that ended more than 5s ago is rejected, and a code is only
// accepted from the next bucket in the last second of the current one.
// Kept as is; widening it changes which codes existing clients may send.
const (
	earlySkew = 5 * time.Second
	lateSkew  = 1 * time.Second
)

var secretRe = regexp.MustCompile(`^[A-Z0-9]{16}$`)

var opts = totp.ValidateOpts{
	Period:    uint(Step / time.Second),
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// ValidSecret reports whether secret has the expected format: sixteen
// upper-case alphanumerics that decode as base32.
func ValidSecret(secret string) bool {
	if !secretRe.MatchString(secret) {
		return false
	}
	_, err := base32.StdEncoding.DecodeString(secret)
	return err == nil
}

// CurrentCode returns the six digit code for secret at t.
func CurrentCode(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(strings.ToUpper(secret), t, opts)
}

// AcceptedCodes returns the set of codes accepted at now.  An undecodable
// secret accepts nothing.
func AcceptedCodes(secret string, now time.Time) map[string]struct{} {
	out := make(map[string]struct{}, 2)
	for _, t := range []time.Time{now.Add(-earlySkew), now.Add(lateSkew)} {
		code, err := CurrentCode(secret, t)
		if err != nil {
			return map[string]struct{}{}
		}
		out[code] = struct{}{}
	}
	return out
}

// Check reports whether code is accepted for secret at now.
func Check(secret, code string, now time.Time) bool {
	if code == "" {
		return false
	}
	_, ok := AcceptedCodes(secret, now)[code]
	return ok
}

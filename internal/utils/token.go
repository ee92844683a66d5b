package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// SessionTokenBytes is the entropy of a session's opaque token.
const SessionTokenBytes = 32

// RandomToken returns n bytes of cryptographically secure random data
// encoded as standard base64.
func RandomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

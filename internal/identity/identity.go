// Package identity generates and validates the short self-asserted
// tokens peers use to find each other through the relay. Identities are
// not authenticated; the first registrant of a token wins.
package identity

import (
	"crypto/rand"
	"log"
	"math/big"
)

// Length is the fixed identity length.
const Length = 10

// alphabet avoids lookalike characters so identities survive being read
// aloud or retyped from another screen.
const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"

// New returns a fresh random identity.
func New() string {
	b := make([]byte, Length)
	for i := range b {
		b[i] = alphabet[randomIndex(len(alphabet))]
	}
	return string(b)
}

// Valid reports whether s is a well-formed identity token.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}

// randomIndex returns a cryptographically secure random index below max.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		log.Panic("Failed to generate random index:", err)
	}
	return int(n.Int64())
}

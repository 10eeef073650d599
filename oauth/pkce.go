package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// RandomToken returns n bytes of cryptographic randomness, base64url encoded
// without padding.
func RandomToken(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// PKCE is a verifier/challenge pair per RFC 7636. The verifier never leaves
// the server; only the S256 challenge is sent to the provider.
type PKCE struct {
	Verifier  string
	Challenge string
}

// ChallengeMethod is the only challenge method this service uses.
const ChallengeMethod = "S256"

func NewPKCE() PKCE {
	verifier := RandomToken(64)
	return PKCE{
		Verifier:  verifier,
		Challenge: S256Challenge(verifier),
	}
}

// S256Challenge computes base64url(SHA256(verifier)).
func S256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

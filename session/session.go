// Package session manages server-side authentication sessions: opaque
// high-entropy identifiers resolving to records in a transient store with a
// rolling TTL.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"time"
)

// TTL is the rolling session lifetime; every successful authenticated access
// resets it.
const TTL = 7 * 24 * time.Hour

// RotationHeader carries the replacement session id to the caller when a
// request asked for rotation.
const RotationHeader = "x-session-rotate"

// idEntropy is the number of random bytes behind a session id.
const idEntropy = 48

// User is the identity snapshot cached on a session.
type User struct {
	Sub           string `json:"sub"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
}

// Record is the stored session. Token is an opaque bag: access/refresh/ID
// token material from a code exchange, or an id_token_hint marker for the
// direct-verification path.
type Record struct {
	Provider  string         `json:"provider"`
	CreatedAt int64          `json:"created_at"`
	Token     map[string]any `json:"token,omitempty"`
	User      *User          `json:"user,omitempty"`
}

// NewID generates a session identifier. It is never derived from user input.
func NewID() string {
	b := make([]byte, idEntropy)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (r *Record) AccessToken() string {
	return tokenString(r.Token, "access_token")
}

func (r *Record) RefreshToken() string {
	return tokenString(r.Token, "refresh_token")
}

// ExpiresIn returns the provider token lifetime if the bag carries one.
func (r *Record) ExpiresIn() *int64 {
	if r.Token == nil {
		return nil
	}
	switch v := r.Token["expires_in"].(type) {
	case float64:
		n := int64(v)
		return &n
	case int64:
		return &v
	case int:
		n := int64(v)
		return &n
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return &n
		}
	}
	return nil
}

func tokenString(bag map[string]any, key string) string {
	if bag == nil {
		return ""
	}
	s, _ := bag[key].(string)
	return s
}

// UserFromClaims extracts the cached identity fields from a userinfo
// document or verified claim set.
func UserFromClaims(m map[string]any) *User {
	if m == nil {
		return nil
	}
	u := &User{}
	u.Sub, _ = m["sub"].(string)
	u.Email, _ = m["email"].(string)
	u.Name, _ = m["name"].(string)
	u.Picture, _ = m["picture"].(string)
	if v, ok := m["email_verified"].(bool); ok {
		u.EmailVerified = &v
	}
	return u
}

// PlanRotation decides which id a successful authenticated access should be
// written back under. It is pure so the rotation policy can be tested
// without a store: the caller writes the record under the returned id, and
// deletes the old key only when rotated is true.
func PlanRotation(currentID string, wantRotate bool) (id string, rotated bool) {
	if !wantRotate {
		return currentID, false
	}
	return NewID(), true
}

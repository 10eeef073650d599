package oauth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// State is the opaque value carried through the external redirect. It is
// fully self-describing: nothing about the encoding is stored server-side.
// The short JSON keys are the wire format and must stay stable.
type State struct {
	CSRF     string `json:"s"`
	TxnID    string `json:"t"`
	Provider string `json:"p"`
	IssuedAt int64  `json:"ts"`
}

func (s State) Encode() string {
	b, _ := json.Marshal(s)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeState is the exact inverse of Encode. Any failure is a hard error;
// a partially decoded State is never returned.
func DecodeState(raw string) (State, error) {
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return State{}, fmt.Errorf("decoding state: %w", err)
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return State{}, fmt.Errorf("decoding state: %w", err)
	}
	return st, nil
}

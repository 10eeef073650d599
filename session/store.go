package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("session not found")
	// ErrCorrupt marks a stored record that no longer parses. Logout deletes
	// such keys anyway; everything else treats them as missing.
	ErrCorrupt = errors.New("session record corrupt")
)

// Store keeps sessions in a transient store with per-key expiry. Put always
// (re)writes with a fresh full TTL; calling it on every authenticated access
// is what implements the rolling-TTL contract.
type Store interface {
	Get(ctx context.Context, id string) (*Record, error)
	Put(ctx context.Context, id string, rec *Record) error
	Delete(ctx context.Context, id string) error
}

func encodeRecord(rec *Record) ([]byte, error) {
	return json.Marshal(rec)
}

func decodeRecord(b []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &rec, nil
}


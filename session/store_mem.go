package session

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemStore is an in-process Store for single-node deployments and tests.
// Add resets an entry's expiry, matching the rolling-TTL contract.
type MemStore struct {
	data *expirable.LRU[string, []byte]
}

var _ Store = (*MemStore)(nil)

func NewMemStore(capacity int, ttl time.Duration) *MemStore {
	return &MemStore{
		data: expirable.NewLRU[string, []byte](capacity, nil, ttl),
	}
}

func (s *MemStore) Get(ctx context.Context, id string) (*Record, error) {
	b, ok := s.data.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return decodeRecord(b)
}

func (s *MemStore) Put(ctx context.Context, id string, rec *Record) error {
	b, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	s.data.Add(id, b)
	return nil
}

func (s *MemStore) Delete(ctx context.Context, id string) error {
	s.data.Remove(id)
	return nil
}

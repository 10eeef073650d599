package oauth

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemTxnStore is an in-process TxnStore for single-node deployments and
// tests.
type MemTxnStore struct {
	data *expirable.LRU[string, Transaction]
}

var _ TxnStore = (*MemTxnStore)(nil)

func NewMemTxnStore(capacity int, ttl time.Duration) *MemTxnStore {
	return &MemTxnStore{
		data: expirable.NewLRU[string, Transaction](capacity, nil, ttl),
	}
}

func (s *MemTxnStore) Put(ctx context.Context, id string, txn *Transaction) error {
	s.data.Add(id, *txn)
	return nil
}

func (s *MemTxnStore) Get(ctx context.Context, id string) (*Transaction, error) {
	txn, ok := s.data.Get(id)
	if !ok {
		return nil, ErrTxnNotFound
	}
	return &txn, nil
}

func (s *MemTxnStore) Delete(ctx context.Context, id string) error {
	s.data.Remove(id)
	return nil
}

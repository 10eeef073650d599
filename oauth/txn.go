package oauth

import (
	"context"
	"errors"
	"time"
)

// TxnTTL bounds how long a started flow can wait for its callback.
const TxnTTL = 10 * time.Minute

var ErrTxnNotFound = errors.New("transaction not found")

// Transaction is the ephemeral record created by Start and consumed exactly
// once by Callback (or expired by TTL).
type Transaction struct {
	Provider     string `json:"provider"`
	CodeVerifier string `json:"code_verifier"`
	CSRF         string `json:"csrf"`
	CreatedAt    int64  `json:"created_at"`
	ReturnTo     string `json:"return_to,omitempty"`
}

// TxnStore holds pending flow transactions in a transient store with per-key
// expiry. Get on a missing or expired id returns ErrTxnNotFound.
type TxnStore interface {
	Put(ctx context.Context, id string, txn *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)
	Delete(ctx context.Context, id string) error
}

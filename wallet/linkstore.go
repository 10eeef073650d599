package wallet

import (
	"context"
	"errors"
)

var ErrLinkNotFound = errors.New("wallet link not found")

// Link relates an OAuth identity to a wallet address. Unique on
// (provider, sub); the wallet address is globally unique across identities,
// enforced by eviction on link rather than rejection.
type Link struct {
	ID            uint   `gorm:"primarykey" json:"-"`
	Provider      string `gorm:"uniqueIndex:idx_wallet_link_identity;size:64" json:"provider"`
	Sub           string `gorm:"uniqueIndex:idx_wallet_link_identity;size:255" json:"sub"`
	WalletAddress string `gorm:"uniqueIndex;size:42" json:"wallet_address"`
	ProofToken    string `json:"token"`
	LinkedAt      int64  `json:"linked_at"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}

func (Link) TableName() string {
	return "wallet_links"
}

// LinkStore persists identity-to-wallet links. Only primary-key and
// unique-constraint operations; never iteration.
type LinkStore interface {
	// Upsert replaces the link for (provider, sub), keeping the row's
	// logical identity.
	Upsert(ctx context.Context, link *Link) error
	GetByIdentity(ctx context.Context, provider, sub string) (*Link, error)
	GetByAddress(ctx context.Context, provider, address string) (*Link, error)
	DeleteByIdentity(ctx context.Context, provider, sub string) (int64, error)
	// DeleteByAddress matches case-insensitively, regardless of which
	// identity owns the address.
	DeleteByAddress(ctx context.Context, address string) (int64, error)
}

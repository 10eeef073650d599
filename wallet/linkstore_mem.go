package wallet

import (
	"context"
	"strings"
	"sync"
)

// MemLinkStore is an in-process LinkStore for tests.
type MemLinkStore struct {
	mu    sync.Mutex
	links map[string]Link // keyed by provider + "\x00" + sub
}

var _ LinkStore = (*MemLinkStore)(nil)

func NewMemLinkStore() *MemLinkStore {
	return &MemLinkStore{links: make(map[string]Link)}
}

func identityKey(provider, sub string) string {
	return provider + "\x00" + sub
}

func (s *MemLinkStore) Upsert(ctx context.Context, link *Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[identityKey(link.Provider, link.Sub)] = *link
	return nil
}

func (s *MemLinkStore) GetByIdentity(ctx context.Context, provider, sub string) (*Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[identityKey(provider, sub)]
	if !ok {
		return nil, ErrLinkNotFound
	}
	return &link, nil
}

func (s *MemLinkStore) GetByAddress(ctx context.Context, provider, address string) (*Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, link := range s.links {
		if link.Provider == provider && link.WalletAddress == address {
			return &link, nil
		}
	}
	return nil, ErrLinkNotFound
}

func (s *MemLinkStore) DeleteByIdentity(ctx context.Context, provider, sub string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := identityKey(provider, sub)
	if _, ok := s.links[key]; !ok {
		return 0, nil
	}
	delete(s.links, key)
	return 1, nil
}

func (s *MemLinkStore) DeleteByAddress(ctx context.Context, address string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for key, link := range s.links {
		if strings.EqualFold(link.WalletAddress, address) {
			delete(s.links, key)
			deleted++
		}
	}
	return deleted, nil
}

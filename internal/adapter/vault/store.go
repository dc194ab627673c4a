package vault

import (
	"context"
	"sync"
	"time"

	"tokendrop/internal/core/domain"
)

// Record is one encrypted wallet row: the key material is stored as
// salt + nonce + ciphertext, never in plaintext.
type Record struct {
	CampaignID string
	Family     domain.ChainFamily
	Address    string
	Salt       []byte
	Nonce      []byte
	Ciphertext []byte
	CreatedAt  time.Time
}

// Store persists encrypted wallet records. Records are write-once per
// campaign and never deleted by the engine.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, campaignID string) (Record, error)
}

// MemoryStore is an in-memory Store for tests and embedded runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Put(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.CampaignID] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, campaignID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[campaignID]
	if !ok {
		return Record{}, domain.ErrWalletNotFound
	}
	return rec, nil
}

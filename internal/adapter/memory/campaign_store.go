package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tokendrop/internal/core/domain"
)

// CampaignStore is an in-memory port.CampaignStore used by tests and
// embedded runs.
type CampaignStore struct {
	mu        sync.RWMutex
	campaigns map[string]domain.Campaign
}

func NewCampaignStore() *CampaignStore {
	return &CampaignStore{campaigns: make(map[string]domain.Campaign)}
}

func (s *CampaignStore) Create(_ context.Context, c *domain.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[c.ID] = *c
	return nil
}

func (s *CampaignStore) Get(_ context.Context, id string) (*domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	out := c
	return &out, nil
}

func (s *CampaignStore) List(_ context.Context) ([]domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *CampaignStore) UpdateStatus(_ context.Context, id string, status domain.CampaignStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return domain.ErrCampaignNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	s.campaigns[id] = c
	return nil
}

func (s *CampaignStore) UpdateCounters(_ context.Context, id string, agg domain.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return domain.ErrCampaignNotFound
	}
	c.ApplyAggregate(agg)
	c.UpdatedAt = time.Now().UTC()
	s.campaigns[id] = c
	return nil
}

func (s *CampaignStore) SetWalletAddress(_ context.Context, id string, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return domain.ErrCampaignNotFound
	}
	c.WalletAddress = address
	c.UpdatedAt = time.Now().UTC()
	s.campaigns[id] = c
	return nil
}

func (s *CampaignStore) SetBatchContract(_ context.Context, id string, contract string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return domain.ErrCampaignNotFound
	}
	c.BatchContract = contract
	c.UpdatedAt = time.Now().UTC()
	s.campaigns[id] = c
	return nil
}

package collision

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
)

// MemoryStore keeps contact history in process. Used by tests and local runs.
type MemoryStore struct {
	mu           sync.Mutex
	contacts     map[string]domain.Contact
	interactions []domain.Interaction
	calls        []domain.CallLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{contacts: make(map[string]domain.Contact)}
}

func (s *MemoryStore) PutContact(c domain.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[c.ID] = c
}

func (s *MemoryStore) AddInteraction(i domain.Interaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = append(s.interactions, i)
}

func (s *MemoryStore) AddCall(c domain.CallLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

func (s *MemoryStore) RecentInteractions(_ context.Context, contactID, excludeAgent string, since time.Time) ([]domain.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Interaction
	for _, i := range s.interactions {
		if i.ContactID == contactID && i.CreatedBy != excludeAgent && !i.CreatedAt.Before(since) {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) RecentCalls(_ context.Context, contactID, excludeAgent string, since time.Time) ([]domain.CallLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CallLog
	for _, c := range s.calls {
		if c.ContactID == contactID && c.AgentID != excludeAgent && !c.StartedAt.Before(since) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].StartedAt.After(out[b].StartedAt) })
	return out, nil
}

func (s *MemoryStore) GetContact(_ context.Context, contactID string) (*domain.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[contactID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *MemoryStore) TouchContact(_ context.Context, contactID, agentID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[contactID]
	if !ok {
		return fmt.Errorf("contact %s: %w", contactID, domain.ErrNotFound)
	}
	c.LastContactedBy = agentID
	c.LastContactDate = &at
	s.contacts[contactID] = c
	return nil
}

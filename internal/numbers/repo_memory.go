package numbers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
)

type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]domain.PhoneNumber
}

func NewMemoryRepo(seed ...domain.PhoneNumber) *MemoryRepo {
	r := &MemoryRepo{rows: make(map[string]domain.PhoneNumber, len(seed))}
	for _, n := range seed {
		r.rows[n.ID] = n
	}
	return r
}

func (r *MemoryRepo) ListActive(_ context.Context, f Filter) ([]domain.PhoneNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.PhoneNumber, 0, len(r.rows))
	for _, n := range r.rows {
		if !n.IsActive {
			continue
		}
		if f.Region != "" && n.Region != f.Region {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PhoneNumber < out[j].PhoneNumber })
	return out, nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (domain.PhoneNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return domain.PhoneNumber{}, notFound(id)
	}
	return n, nil
}

func (r *MemoryRepo) Insert(_ context.Context, n domain.PhoneNumber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.PhoneNumber == n.PhoneNumber {
			return fmt.Errorf("phone number %s already in pool: %w", n.PhoneNumber, domain.ErrConflict)
		}
	}
	r.rows[n.ID] = n
	return nil
}

func (r *MemoryRepo) IncrementUsage(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return notFound(id)
	}
	n.UsageCount++
	n.LastUsedAt = &at
	n.UpdatedAt = at
	r.rows[id] = n
	return nil
}

func (r *MemoryRepo) Deactivate(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return notFound(id)
	}
	n.IsActive = false
	n.UpdatedAt = at
	r.rows[id] = n
	return nil
}

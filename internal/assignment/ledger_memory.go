package assignment

import (
	"context"
	"sync"
	"time"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
)

// MemoryLedger is an in-memory append-only ledger for tests and local runs.
type MemoryLedger struct {
	mu      sync.Mutex
	entries []domain.Assignment
}

func NewMemoryLedger() *MemoryLedger { return &MemoryLedger{} }

func (l *MemoryLedger) Append(_ context.Context, a domain.Assignment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, a)
	return nil
}

func (l *MemoryLedger) CountsSince(_ context.Context, since time.Time) (map[string]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int64)
	for _, a := range l.entries {
		if !a.CreatedAt.Before(since) {
			out[a.PhoneNumberID]++
		}
	}
	return out, nil
}

func (l *MemoryLedger) Entries() []domain.Assignment {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Assignment, len(l.entries))
	copy(out, l.entries)
	return out
}

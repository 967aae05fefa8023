package quality

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
)

type MemoryRepo struct {
	mu      sync.RWMutex
	samples []domain.QualitySample
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (r *MemoryRepo) Insert(_ context.Context, s domain.QualitySample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.Violations = append([]string(nil), s.Violations...)
	r.samples = append(r.samples, s)
	return nil
}

func (r *MemoryRepo) ListSince(_ context.Context, since time.Time) ([]domain.QualitySample, error) {
	return r.filter(func(s domain.QualitySample) bool { return !s.CreatedAt.Before(since) }), nil
}

func (r *MemoryRepo) ListByCall(_ context.Context, callSid string) ([]domain.QualitySample, error) {
	return r.filter(func(s domain.QualitySample) bool { return s.CallSid == callSid }), nil
}

func (r *MemoryRepo) filter(keep func(domain.QualitySample) bool) []domain.QualitySample {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.QualitySample
	for _, s := range r.samples {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

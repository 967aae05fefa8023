// Package sessions tracks live media streams between start and stop events.
package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
)

const DefaultTTL = 10 * time.Minute

type Session struct {
	StreamSid string    `json:"streamSid"`
	CallSid   string    `json:"callSid"`
	StartedAt time.Time `json:"startedAt"`
}

// Registry holds sessions and their buffered audio. A session that sees no
// activity for the TTL is evicted.
type Registry interface {
	Start(ctx context.Context, s Session) error
	Get(ctx context.Context, streamSid string) (Session, bool, error)
	Touch(ctx context.Context, streamSid string) error
	// Append buffers one audio chunk and returns the buffered chunk count.
	Append(ctx context.Context, streamSid string, chunk []byte) (int, error)
	Drain(ctx context.Context, streamSid string) ([][]byte, error)
	Stop(ctx context.Context, streamSid string) (Session, bool, error)
	Sweep(ctx context.Context) (int, error)
	Active(ctx context.Context) (int, error)
}

func notFound(streamSid string) error {
	return fmt.Errorf("stream %s: %w", streamSid, domain.ErrNotFound)
}

type memoryEntry struct {
	session Session
	chunks  [][]byte
	expires time.Time
}

type MemoryRegistry struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	byID map[string]*memoryEntry
}

func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryRegistry{ttl: ttl, now: time.Now, byID: make(map[string]*memoryEntry)}
}

func (r *MemoryRegistry) Start(_ context.Context, s Session) error {
	if s.StreamSid == "" {
		return domain.Validation("streamSid required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.StartedAt.IsZero() {
		s.StartedAt = r.now()
	}
	r.byID[s.StreamSid] = &memoryEntry{session: s, expires: r.now().Add(r.ttl)}
	return nil
}

// live returns the entry when present and not expired. Caller holds mu.
func (r *MemoryRegistry) live(streamSid string) (*memoryEntry, bool) {
	e, ok := r.byID[streamSid]
	if !ok {
		return nil, false
	}
	if !r.now().Before(e.expires) {
		delete(r.byID, streamSid)
		return nil, false
	}
	return e, true
}

func (r *MemoryRegistry) Get(_ context.Context, streamSid string) (Session, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.live(streamSid)
	if !ok {
		return Session{}, false, nil
	}
	return e.session, true, nil
}

func (r *MemoryRegistry) Touch(_ context.Context, streamSid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.live(streamSid)
	if !ok {
		return notFound(streamSid)
	}
	e.expires = r.now().Add(r.ttl)
	return nil
}

func (r *MemoryRegistry) Append(_ context.Context, streamSid string, chunk []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.live(streamSid)
	if !ok {
		return 0, notFound(streamSid)
	}
	e.chunks = append(e.chunks, chunk)
	e.expires = r.now().Add(r.ttl)
	return len(e.chunks), nil
}

func (r *MemoryRegistry) Drain(_ context.Context, streamSid string) ([][]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.live(streamSid)
	if !ok {
		return nil, notFound(streamSid)
	}
	out := e.chunks
	e.chunks = nil
	return out, nil
}

func (r *MemoryRegistry) Stop(_ context.Context, streamSid string) (Session, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.live(streamSid)
	if !ok {
		return Session{}, false, nil
	}
	delete(r.byID, streamSid)
	return e.session, true, nil
}

func (r *MemoryRegistry) Sweep(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for sid, e := range r.byID {
		if !now.Before(e.expires) {
			delete(r.byID, sid)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRegistry) Active(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID), nil
}

// Sweeper evicts expired entries and counts what remains. Registry
// implementations and telephony.CallMachine satisfy it.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
	Active(ctx context.Context) (int, error)
}

// RunJanitor sweeps reg every interval until ctx is done. onSweep, when
// set, receives the evicted and remaining counts.
func RunJanitor(ctx context.Context, reg Sweeper, interval time.Duration, onSweep func(evicted, active int, err error)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			evicted, err := reg.Sweep(ctx)
			active, aerr := reg.Active(ctx)
			if err == nil {
				err = aerr
			}
			if onSweep != nil {
				onSweep(evicted, active, err)
			}
		}
	}
}

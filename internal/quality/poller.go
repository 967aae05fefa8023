package quality

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 5 * time.Second
	// DefaultMaxCallDuration stops polling a call whose end was never
	// reported.
	DefaultMaxCallDuration = 4 * time.Hour
	// DefaultMaxStatsFailures is how many consecutive stats errors end a
	// poll loop.
	DefaultMaxStatsFailures = 5
)

// RawStats is what the telephony side reports for a live call. Any field
// may be missing.
type RawStats struct {
	MOS                 *float64
	RTTMs               *float64
	JitterMs            *float64
	PacketsLostFraction *float64
}

// Empty reports whether no metric was reported at all.
func (r RawStats) Empty() bool {
	return r.MOS == nil && r.RTTMs == nil && r.JitterMs == nil && r.PacketsLostFraction == nil
}

type StatsSource interface {
	CallStats(ctx context.Context, callSid string) (RawStats, error)
}

type SampleRecorder interface {
	Record(ctx context.Context, in RecordInput) (Recorded, error)
}

type PollerOption func(*Poller)

// WithMaxCallDuration caps how long one call is polled.
func WithMaxCallDuration(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.maxDuration = d
		}
	}
}

// WithMaxStatsFailures ends a poll loop after n consecutive stats errors.
func WithMaxStatsFailures(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.maxFailures = n
		}
	}
}

// Poller samples quality for every connected call until it ends, the call
// outlives the max duration, or stats keep failing.
type Poller struct {
	rec         SampleRecorder
	src         StatsSource
	interval    time.Duration
	maxDuration time.Duration
	maxFailures int
	log         *zap.Logger

	mu     sync.Mutex
	calls  map[string]*pollLoop
	wg     sync.WaitGroup
	closed bool
}

type pollLoop struct {
	cancel context.CancelFunc
}

func NewPoller(rec SampleRecorder, src StatsSource, interval time.Duration, log *zap.Logger, opts ...PollerOption) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Poller{
		rec:         rec,
		src:         src,
		interval:    interval,
		maxDuration: DefaultMaxCallDuration,
		maxFailures: DefaultMaxStatsFailures,
		log:         log,
		calls:       make(map[string]*pollLoop),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// OnCallConnected starts polling callSid. A second call for the same sid
// is a no-op.
func (p *Poller) OnCallConnected(callSid, phoneNumberID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if _, ok := p.calls[callSid]; ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.maxDuration)
	loop := &pollLoop{cancel: cancel}
	p.calls[callSid] = loop
	p.wg.Add(1)
	go p.run(ctx, loop, callSid, phoneNumberID)
}

func (p *Poller) OnCallEnded(callSid string) {
	p.mu.Lock()
	loop, ok := p.calls[callSid]
	delete(p.calls, callSid)
	p.mu.Unlock()
	if ok {
		loop.cancel()
	}
}

// forget drops loop unless callSid has since been re-registered.
func (p *Poller) forget(callSid string, loop *pollLoop) {
	p.mu.Lock()
	if p.calls[callSid] == loop {
		delete(p.calls, callSid)
	}
	p.mu.Unlock()
	loop.cancel()
}

// Active is the number of calls being polled.
func (p *Poller) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// Close stops every poll loop and waits for them to exit.
func (p *Poller) Close() {
	p.mu.Lock()
	p.closed = true
	for sid, loop := range p.calls {
		loop.cancel()
		delete(p.calls, sid)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context, loop *pollLoop, callSid, phoneNumberID string) {
	defer p.wg.Done()
	defer p.forget(callSid, loop)

	t := time.NewTicker(p.interval)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				p.log.Warn("quality polling stopped at max call duration",
					zap.String("call_sid", callSid), zap.Duration("max", p.maxDuration))
			}
			return
		case <-t.C:
			if p.sample(ctx, callSid, phoneNumberID) {
				failures = 0
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			failures++
			if failures >= p.maxFailures {
				p.log.Warn("quality polling stopped after repeated stats failures",
					zap.String("call_sid", callSid), zap.Int("failures", failures))
				return
			}
		}
	}
}

// sample records one reading and reports whether stats were fetched.
func (p *Poller) sample(ctx context.Context, callSid, phoneNumberID string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	raw, err := p.src.CallStats(ctx, callSid)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn("call stats unavailable", zap.String("call_sid", callSid), zap.Error(err))
		}
		return false
	}
	if raw.Empty() {
		p.log.Debug("call stats empty, sample skipped", zap.String("call_sid", callSid))
		return true
	}

	in := RecordInput{
		CallSid:       callSid,
		PhoneNumberID: phoneNumberID,
		MOS:           raw.MOS,
		LatencyMs:     raw.RTTMs,
		JitterMs:      raw.JitterMs,
	}
	if raw.PacketsLostFraction != nil {
		pct := *raw.PacketsLostFraction * 100
		in.PacketLossPct = &pct
	}
	if _, err := p.rec.Record(ctx, in); err != nil && ctx.Err() == nil {
		p.log.Warn("record quality sample failed", zap.String("call_sid", callSid), zap.Error(err))
	}
	return true
}

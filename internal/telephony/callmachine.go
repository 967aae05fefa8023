package telephony

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
)

// CallState is the client-facing state of a call.
type CallState string

const (
	StateIdle       CallState = "idle"
	StateConnecting CallState = "connecting"
	StateConnected  CallState = "connected"
	StateError      CallState = "error"
)

// StateForStatus maps a Twilio CallStatus onto a CallState.
func StateForStatus(status string) (CallState, bool) {
	switch status {
	case "queued", "initiated", "ringing":
		return StateConnecting, true
	case "in-progress", "answered":
		return StateConnected, true
	case "completed":
		return StateIdle, true
	case "busy", "failed", "no-answer", "canceled":
		return StateError, true
	default:
		return "", false
	}
}

// CallHooks observe transitions into and out of connected.
type CallHooks interface {
	OnCallConnected(callSid, phoneNumberID string)
	OnCallEnded(callSid string)
}

// DefaultCallMaxAge is how long a call may go without a status callback
// before Sweep drops it.
const DefaultCallMaxAge = 4 * time.Hour

type callEntry struct {
	state         CallState
	phoneNumberID string
	seen          time.Time
}

// CallMachine tracks live calls by sid. Terminal states drop the entry;
// Sweep drops calls whose terminal callback never arrived.
type CallMachine struct {
	hooks  CallHooks
	log    *zap.Logger
	maxAge time.Duration
	now    func() time.Time

	mu    sync.Mutex
	calls map[string]*callEntry
}

func NewCallMachine(hooks CallHooks, maxAge time.Duration, log *zap.Logger) *CallMachine {
	if log == nil {
		log = zap.NewNop()
	}
	if maxAge <= 0 {
		maxAge = DefaultCallMaxAge
	}
	return &CallMachine{
		hooks:  hooks,
		log:    log,
		maxAge: maxAge,
		now:    time.Now,
		calls:  make(map[string]*callEntry),
	}
}

// Bind attaches the carousel number used as caller ID to a call.
func (m *CallMachine) Bind(callSid, phoneNumberID string) {
	if callSid == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entry(callSid)
	e.phoneNumberID = phoneNumberID
}

// Handle applies a provider status to the call and returns the new state.
// Late callbacks that would move a connected call back to connecting are
// ignored.
func (m *CallMachine) Handle(callSid, status string) (CallState, error) {
	if callSid == "" {
		return "", domain.Validation("CallSid required")
	}
	next, ok := StateForStatus(status)
	if !ok {
		return "", domain.Validation("unknown call status %q", status)
	}

	m.mu.Lock()
	e := m.entry(callSid)
	prev := e.state
	if prev == StateConnected && next == StateConnecting {
		m.mu.Unlock()
		return prev, nil
	}
	e.state = next
	numberID := e.phoneNumberID
	if next == StateIdle || next == StateError {
		delete(m.calls, callSid)
	}
	m.mu.Unlock()

	if prev != next {
		m.log.Debug("call state changed",
			zap.String("call_sid", callSid),
			zap.String("from", string(prev)),
			zap.String("to", string(next)),
		)
	}
	if m.hooks == nil {
		return next, nil
	}
	switch {
	case next == StateConnected && prev != StateConnected:
		m.hooks.OnCallConnected(callSid, numberID)
	case prev == StateConnected && next != StateConnected:
		m.hooks.OnCallEnded(callSid)
	}
	return next, nil
}

// State returns the tracked state, idle when the call is unknown.
func (m *CallMachine) State(callSid string) CallState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.calls[callSid]; ok {
		return e.state
	}
	return StateIdle
}

// Sweep drops calls not heard from within the max age. A dropped call that
// was connected is reported ended to the hooks.
func (m *CallMachine) Sweep(context.Context) (int, error) {
	cutoff := m.now().Add(-m.maxAge)

	var ended []string
	m.mu.Lock()
	n := 0
	for sid, e := range m.calls {
		if e.seen.After(cutoff) {
			continue
		}
		delete(m.calls, sid)
		n++
		if e.state == StateConnected {
			ended = append(ended, sid)
		}
		m.log.Debug("stale call dropped",
			zap.String("call_sid", sid),
			zap.String("state", string(e.state)),
			zap.Time("last_seen", e.seen),
		)
	}
	m.mu.Unlock()

	if m.hooks != nil {
		for _, sid := range ended {
			m.hooks.OnCallEnded(sid)
		}
	}
	return n, nil
}

// Active is the number of tracked calls.
func (m *CallMachine) Active(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls), nil
}

// entry returns the call's entry, creating it, and marks it seen.
func (m *CallMachine) entry(callSid string) *callEntry {
	e, ok := m.calls[callSid]
	if !ok {
		e = &callEntry{state: StateIdle}
		m.calls[callSid] = e
	}
	e.seen = m.now()
	return e
}

package assignment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
)

type failingLedger struct{}

func (failingLedger) Append(context.Context, domain.Assignment) error {
	return errors.New("disk full")
}

func (failingLedger) CountsSince(context.Context, time.Time) (map[string]int64, error) {
	return nil, errors.New("disk full")
}

type usageStub struct {
	calls []string
	err   error
}

func (u *usageStub) IncrementUsage(_ context.Context, id string) error {
	u.calls = append(u.calls, id)
	return u.err
}

type touch struct {
	contactID, agentID string
	at                 time.Time
}

type contactStub struct {
	touched []touch
	err     error
}

func (c *contactStub) TouchContact(_ context.Context, contactID, agentID string, at time.Time) error {
	c.touched = append(c.touched, touch{contactID, agentID, at})
	return c.err
}

var number = domain.PhoneNumber{ID: "n1", PhoneNumber: "+61298765432"}

func fixedClock(r *Recorder) time.Time {
	now := time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)
	r.clock = func() time.Time { return now }
	return now
}

func TestRecord_FullSequence(t *testing.T) {
	ledger := NewMemoryLedger()
	usage := &usageStub{}
	contacts := &contactStub{}
	r := NewRecorder(ledger, usage, contacts, nil)
	now := fixedClock(r)

	a, err := r.Record(context.Background(), RecordInput{
		AgentID:     "agent-1",
		ContactID:   "contact-9",
		Number:      number,
		Destination: "+61412345678",
		Strategy:    "health_weighted",
		Reason:      "Highest health score (90%)",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "+61298765432", a.FromNumber)
	assert.Equal(t, now, a.CreatedAt)
	assert.Equal(t, []domain.Assignment{a}, ledger.Entries())
	assert.Equal(t, []string{"n1"}, usage.calls)
	assert.Equal(t, []touch{{"contact-9", "agent-1", now}}, contacts.touched)
}

func TestRecord_NoContactSkipsContactUpdate(t *testing.T) {
	contacts := &contactStub{}
	r := NewRecorder(NewMemoryLedger(), &usageStub{}, contacts, nil)

	_, err := r.Record(context.Background(), RecordInput{AgentID: "agent-1", Number: number, Destination: "0412345678"})
	require.NoError(t, err)
	assert.Empty(t, contacts.touched)
}

func TestRecord_LedgerFailureAborts(t *testing.T) {
	usage := &usageStub{}
	r := NewRecorder(failingLedger{}, usage, &contactStub{}, nil)

	_, err := r.Record(context.Background(), RecordInput{AgentID: "agent-1", Number: number})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAssignmentPersist)
	assert.ErrorContains(t, err, "disk full")
	assert.Empty(t, usage.calls)
}

func TestRecord_FollowUpFailuresAreLoggedOnly(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	ledger := NewMemoryLedger()
	r := NewRecorder(ledger,
		&usageStub{err: errors.New("timeout")},
		&contactStub{err: errors.New("row locked")},
		zap.New(core))

	a, err := r.Record(context.Background(), RecordInput{AgentID: "agent-1", ContactID: "c1", Number: number})
	require.NoError(t, err)
	assert.Len(t, ledger.Entries(), 1)

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "usage increment failed", entries[0].Message)
	assert.Equal(t, a.ID, entries[0].ContextMap()["assignment_id"])
	assert.Equal(t, "contact update failed", entries[1].Message)
	assert.Equal(t, "c1", entries[1].ContextMap()["contact_id"])
}

func TestRecord_Validation(t *testing.T) {
	r := NewRecorder(NewMemoryLedger(), nil, nil, nil)

	_, err := r.Record(context.Background(), RecordInput{Number: number})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = r.Record(context.Background(), RecordInput{AgentID: "a"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMemoryLedger_CountsSince(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	midnight := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	for _, a := range []domain.Assignment{
		{PhoneNumberID: "n1", CreatedAt: midnight.Add(-time.Minute)},
		{PhoneNumberID: "n1", CreatedAt: midnight},
		{PhoneNumberID: "n1", CreatedAt: midnight.Add(time.Hour)},
		{PhoneNumberID: "n2", CreatedAt: midnight.Add(2 * time.Hour)},
	} {
		require.NoError(t, l.Append(ctx, a))
	}

	got, err := l.CountsSince(ctx, midnight)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"n1": 2, "n2": 1}, got)
}

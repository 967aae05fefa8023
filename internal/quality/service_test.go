package quality

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/internal/metrics"
)

var fixedNow = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

const (
	numberA = "0b6f3a8e-5d2c-4f1e-9a7b-1c2d3e4f5a6b"
	numberB = "7e1d9c2b-3a4f-4b5c-8d6e-9f0a1b2c3d4e"
)

func newTestService(t *testing.T, repo Repository) (*Service, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.WarnLevel)
	s := NewService(repo, zap.New(core), metrics.New())
	s.now = func() time.Time { return fixedNow }
	return s, logs
}

func TestService_RecordStoresVerdict(t *testing.T) {
	repo := NewMemoryRepo()
	s, logs := newTestService(t, repo)

	got, err := s.Record(context.Background(), RecordInput{CallSid: "CA1", PhoneNumberID: numberA, MOS: f(4.0), LatencyMs: f(120)})
	require.NoError(t, err)

	assert.False(t, got.Evaluation.MeetsSLO)
	assert.Equal(t, fixedNow, got.Sample.CreatedAt)
	assert.NotEmpty(t, got.Sample.ID)

	stored, _ := repo.ListByCall(context.Background(), "CA1")
	require.Len(t, stored, 1)
	assert.Equal(t, []string{"MOS below target: 4 < 4.2"}, stored[0].Violations)
	assert.False(t, stored[0].MeetsSLO)
	assert.Equal(t, numberA, stored[0].PhoneNumberID)

	entries := logs.FilterMessage("slo violation").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "CA1", entries[0].ContextMap()["call_sid"])
}

func TestService_RecordKeepsTimestamp(t *testing.T) {
	s, logs := newTestService(t, NewMemoryRepo())
	at := fixedNow.Add(-time.Minute)

	got, err := s.Record(context.Background(), RecordInput{CallSid: "CA1", MOS: f(4.5), Timestamp: &at})
	require.NoError(t, err)
	assert.Equal(t, at, got.Sample.CreatedAt)
	assert.True(t, got.Evaluation.MeetsSLO)
	assert.Zero(t, logs.Len())
}

func TestService_RecordRequiresCallSid(t *testing.T) {
	s, _ := newTestService(t, NewMemoryRepo())
	_, err := s.Record(context.Background(), RecordInput{CallSid: "  "})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestService_RecordRejectsMalformedNumberID(t *testing.T) {
	repo := NewMemoryRepo()
	s, _ := newTestService(t, repo)
	ctx := context.Background()

	for _, id := range []string{"n1", "not-a-uuid", "0b6f3a8e-5d2c-4f1e-9a7b"} {
		_, err := s.Record(ctx, RecordInput{CallSid: "CA1", PhoneNumberID: id, MOS: f(4.5)})
		require.ErrorIs(t, err, domain.ErrValidation, id)
		assert.Contains(t, err.Error(), "phone_number_id must be a uuid")
	}
	stored, _ := repo.ListByCall(ctx, "CA1")
	assert.Empty(t, stored)

	got, err := s.Record(ctx, RecordInput{CallSid: "CA1", PhoneNumberID: " " + strings.ToUpper(numberA) + " "})
	require.NoError(t, err)
	assert.Equal(t, numberA, got.Sample.PhoneNumberID)
}

type brokenRepo struct{ MemoryRepo }

func (*brokenRepo) Insert(context.Context, domain.QualitySample) error {
	return domain.StorageError(errors.New("down"), "insert quality sample")
}

func TestService_RecordStorageFailure(t *testing.T) {
	s, _ := newTestService(t, &brokenRepo{})
	_, err := s.Record(context.Background(), RecordInput{CallSid: "CA1"})
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestService_QueryTimeframes(t *testing.T) {
	repo := NewMemoryRepo()
	s, _ := newTestService(t, repo)
	ctx := context.Background()

	for _, age := range []time.Duration{10 * time.Minute, 2 * time.Hour, 48 * time.Hour, 10 * 24 * time.Hour} {
		at := fixedNow.Add(-age)
		_, err := s.Record(ctx, RecordInput{CallSid: "CA-" + age.String(), MOS: f(4.5), Timestamp: &at})
		require.NoError(t, err)
	}

	cases := map[string]int{"1h": 1, "24h": 2, "": 2, "168h": 3, "7d": 3}
	for tf, want := range cases {
		rep, err := s.Query(ctx, QueryInput{Timeframe: tf})
		require.NoError(t, err)
		assert.Equal(t, want, rep.Statistics.TotalCalls, "timeframe %q", tf)
	}
}

func TestService_QueryCallSidOverridesTimeframe(t *testing.T) {
	repo := NewMemoryRepo()
	s, _ := newTestService(t, repo)
	ctx := context.Background()

	old := fixedNow.Add(-3 * time.Hour)
	_, err := s.Record(ctx, RecordInput{CallSid: "CA1", MOS: f(3.9), Timestamp: &old})
	require.NoError(t, err)
	_, err = s.Record(ctx, RecordInput{CallSid: "CA1", MOS: f(4.5)})
	require.NoError(t, err)
	_, err = s.Record(ctx, RecordInput{CallSid: "CA2", MOS: f(4.5)})
	require.NoError(t, err)

	rep, err := s.Query(ctx, QueryInput{Timeframe: "1h", CallSid: "CA1"})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Statistics.TotalCalls)
	assert.Equal(t, 50.0, rep.Statistics.SLOCompliance)
	assert.Equal(t, 1, rep.Statistics.ViolationCount)
	require.Len(t, rep.Samples, 2)
	assert.True(t, rep.Samples[0].CreatedAt.After(rep.Samples[1].CreatedAt))
	assert.Equal(t, DefaultTargets, rep.Targets)
}

func TestService_QueryCapsSamples(t *testing.T) {
	repo := NewMemoryRepo()
	s, _ := newTestService(t, repo)
	ctx := context.Background()

	for i := 0; i < 120; i++ {
		at := fixedNow.Add(-time.Duration(i) * time.Second)
		_, err := s.Record(ctx, RecordInput{CallSid: fmt.Sprintf("CA%d", i), MOS: f(4.5), Timestamp: &at})
		require.NoError(t, err)
	}

	rep, err := s.Query(ctx, QueryInput{Timeframe: "1h"})
	require.NoError(t, err)
	assert.Equal(t, 120, rep.Statistics.TotalCalls)
	assert.Len(t, rep.Samples, MaxReportSamples)
	assert.Equal(t, "CA0", rep.Samples[0].CallSid)
}

func TestService_QueryEmpty(t *testing.T) {
	s, _ := newTestService(t, NewMemoryRepo())
	rep, err := s.Query(context.Background(), QueryInput{Timeframe: "24h"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, rep.Statistics.SLOCompliance)
	assert.NotNil(t, rep.Samples)
	assert.Equal(t, "24h", rep.Timeframe)
}

func TestService_ByNumberSince(t *testing.T) {
	repo := NewMemoryRepo()
	s, _ := newTestService(t, repo)
	ctx := context.Background()

	inputs := []RecordInput{
		{CallSid: "CA1", PhoneNumberID: numberA, MOS: f(4.4)},
		{CallSid: "CA2", PhoneNumberID: numberA, MOS: f(3.0)},
		{CallSid: "CA3", PhoneNumberID: numberB, LatencyMs: f(90)},
		{CallSid: "CA4", LatencyMs: f(90)},
	}
	for _, in := range inputs {
		_, err := s.Record(ctx, in)
		require.NoError(t, err)
	}

	got, err := s.ByNumberSince(ctx, fixedNow.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.NotNil(t, got[numberA].AverageMOS)
	assert.InDelta(t, 3.7, *got[numberA].AverageMOS, 1e-9)
	assert.Equal(t, 50.0, got[numberA].SLOCompliance)
	assert.Nil(t, got[numberB].AverageMOS)
	assert.Equal(t, 100.0, got[numberB].SLOCompliance)
}

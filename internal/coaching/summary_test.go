package coaching

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/internal/transcribe"
	"github.com/oakmontrealty/voicrm-sydney/pkg/anthropic"
)

func seededTranscripts(t *testing.T, callSid string, lines ...string) *transcribe.MemoryRepo {
	t.Helper()
	repo := transcribe.NewMemoryRepo()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, l := range lines {
		require.NoError(t, repo.Insert(context.Background(), domain.Transcript{
			ID:        l,
			CallSid:   callSid,
			Speaker:   "caller",
			Text:      l,
			StartTime: float64(i * 2),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	return repo
}

func TestSummarize_StoresCallSummary(t *testing.T) {
	m := &mockCompleter{}
	m.On("Complete", mock.Anything, mock.MatchedBy(func(r anthropic.CompletionRequest) bool {
		return strings.HasSuffix(r.Prompt, "first second third")
	})).Return(&anthropic.Completion{Text: " - wants a 3 bedroom house \n"}, nil).Once()

	store := NewMemoryAnalysisStore()
	c := New(Deps{
		Completer:   m,
		Transcripts: seededTranscripts(t, "CA1", "first", "second", "third"),
		Analyses:    store,
	})

	s, err := c.Summarize(context.Background(), "CA1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "- wants a 3 bedroom house", s.Summary)
	assert.Equal(t, 3, s.TranscriptCount)

	saved := store.All()
	require.Len(t, saved, 1)
	assert.Equal(t, domain.AnalysisCallSummary, saved[0].AnalysisType)
	var body Summary
	require.NoError(t, json.Unmarshal(saved[0].Result, &body))
	assert.Equal(t, "CA1", body.CallSid)
	m.AssertExpectations(t)
}

func TestSummarize_NothingToSummarize(t *testing.T) {
	m := &mockCompleter{}
	c := New(Deps{Completer: m, Transcripts: transcribe.NewMemoryRepo()})

	s, err := c.Summarize(context.Background(), "CA-empty")
	require.NoError(t, err)
	assert.Nil(t, s)
	m.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)

	s, err = New(Deps{}).Summarize(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = c.Summarize(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSummarize_CompletionError(t *testing.T) {
	m := &mockCompleter{}
	m.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded")).Once()

	store := NewMemoryAnalysisStore()
	c := New(Deps{Completer: m, Transcripts: seededTranscripts(t, "CA2", "hello"), Analyses: store})

	_, err := c.Summarize(context.Background(), "CA2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
	assert.Empty(t, store.All())
}

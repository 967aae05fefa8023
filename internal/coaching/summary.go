package coaching

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/pkg/anthropic"
)

const summaryTranscripts = 100

const summaryPrompt = "Summarize this real estate call in three short bullet points covering key points, client needs and next steps.\n\n"

type Summary struct {
	CallSid         string `json:"callSid"`
	Summary         string `json:"summary"`
	TranscriptCount int    `json:"transcriptCount"`
}

// Summarize condenses the stored transcript of a finished call into a
// call_summary analysis. Calls without transcripts or without a completer
// produce no summary and no error.
func (c *Coach) Summarize(ctx context.Context, callSid string) (*Summary, error) {
	if callSid == "" {
		return nil, domain.Validation("callSid required")
	}
	if c.completer == nil || c.transcripts == nil {
		return nil, nil
	}

	ts, err := c.transcripts.Recent(ctx, callSid, summaryTranscripts)
	if err != nil {
		return nil, eris.Wrap(err, "load transcripts for summary")
	}
	if len(ts) == 0 {
		return nil, nil
	}
	slices.Reverse(ts)

	lines := make([]string, 0, len(ts))
	for _, t := range ts {
		lines = append(lines, t.Text)
	}

	start := c.now()
	comp, err := c.completer.Complete(ctx, anthropic.CompletionRequest{
		Prompt:    summaryPrompt + strings.Join(lines, " "),
		MaxTokens: 300,
	})
	if err != nil {
		return nil, eris.Wrap(err, "summarize call")
	}

	s := &Summary{CallSid: callSid, Summary: strings.TrimSpace(comp.Text), TranscriptCount: len(ts)}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, eris.Wrap(err, "encode call summary")
	}
	if c.analyses != nil {
		err = c.analyses.SaveAnalysis(ctx, domain.Analysis{
			ID:               uuid.NewString(),
			CallSid:          callSid,
			AnalysisType:     domain.AnalysisCallSummary,
			Result:           raw,
			ProcessingTimeMs: float64(c.now().Sub(start).Microseconds()) / 1000,
			Confidence:       0.8,
			CreatedAt:        c.now().UTC(),
		})
		if err != nil {
			c.log.Warn("store call summary failed", zap.String("call_sid", callSid), zap.Error(err))
		}
	}
	return s, nil
}

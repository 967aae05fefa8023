// Package coaching produces near-real-time sales tips from call transcripts.
package coaching

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/internal/metrics"
	"github.com/oakmontrealty/voicrm-sydney/pkg/anthropic"
)

const (
	DefaultTimeout = 250 * time.Millisecond
	// TargetLatency is the budget reported back as targetMet.
	TargetLatency = 300 * time.Millisecond

	// Sources reported to metrics.
	SourceLLM     = "llm"
	SourceRules   = "rules"
	SourceTimeout = "timeout"

	recentTranscripts = 5
	transcriptTail    = 200
	abandonAfter      = 10 * time.Second
)

type Request struct {
	Transcript string `json:"transcript"`
	CallSid    string `json:"callSid,omitempty"`
	ContactID  string `json:"contactId,omitempty"`
	CallStage  string `json:"callStage,omitempty"`
}

type Result struct {
	Tip               string     `json:"tip"`
	NextQuestion      string     `json:"nextQuestion"`
	Urgency           string     `json:"urgency"`
	Sentiment         string     `json:"sentiment"`
	Stage             string     `json:"stage"`
	Confidence        float64    `json:"confidence"`
	Keywords          []string   `json:"keywords"`
	ObjectionDetected *Objection `json:"objectionDetected,omitempty"`
	ObjectionResponse string     `json:"objectionResponse,omitempty"`
	StageGuidance     string     `json:"stageGuidance,omitempty"`
	Fallback          bool       `json:"fallback,omitempty"`
	ProcessingTime    float64    `json:"processingTime"`
	TargetMet         bool       `json:"targetMet"`

	source string
}

type ContactLookup interface {
	GetContact(ctx context.Context, id string) (*domain.Contact, error)
}

type TranscriptSource interface {
	Recent(ctx context.Context, callSid string, limit int) ([]domain.Transcript, error)
}

type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, a domain.Analysis) error
}

type Deps struct {
	Completer   anthropic.Completer
	Contacts    ContactLookup
	Transcripts TranscriptSource
	Analyses    AnalysisStore
	Metrics     *metrics.Metrics
	Log         *zap.Logger
	Timeout     time.Duration
}

type Coach struct {
	completer   anthropic.Completer
	contacts    ContactLookup
	transcripts TranscriptSource
	analyses    AnalysisStore
	metrics     *metrics.Metrics
	log         *zap.Logger
	timeout     time.Duration
	now         func() time.Time
}

func New(d Deps) *Coach {
	c := &Coach{
		completer:   d.Completer,
		contacts:    d.Contacts,
		transcripts: d.Transcripts,
		analyses:    d.Analyses,
		metrics:     d.Metrics,
		log:         d.Log,
		timeout:     d.Timeout,
		now:         time.Now,
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	return c
}

// Generate always yields coaching for a non-empty transcript. Work that
// outlives the timeout is abandoned and the fixed fallback is returned.
func (c *Coach) Generate(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Transcript) == "" {
		return Result{}, domain.Validation("Transcript required")
	}
	if req.CallStage == "" {
		req.CallStage = StageDiscovery
	}
	start := c.now()
	qa := AnalyzeQuick(req.Transcript)

	done := make(chan Result, 1)
	work, cancel := context.WithTimeout(context.WithoutCancel(ctx), abandonAfter)
	go func() {
		defer cancel()
		done <- c.generate(work, req, qa)
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	var res Result
	select {
	case res = <-done:
	case <-timer.C:
		res = timeoutFallback(req.CallStage)
		c.log.Warn("coaching timed out",
			zap.String("call_sid", req.CallSid),
			zap.Error(domain.ErrUpstreamTimeout),
		)
	case <-ctx.Done():
		res = timeoutFallback(req.CallStage)
	}

	elapsed := c.now().Sub(start)
	res.ProcessingTime = float64(elapsed.Microseconds()) / 1000
	res.TargetMet = elapsed < TargetLatency
	c.metrics.ObserveCoaching(res.source, elapsed)

	if res.source != SourceTimeout {
		c.persist(ctx, req, res)
	}
	return res, nil
}

func (c *Coach) generate(ctx context.Context, req Request, qa QuickAnalysis) Result {
	if c.completer == nil {
		return ruleBased(qa, req.CallStage)
	}

	comp, err := c.completer.Complete(ctx, anthropic.CompletionRequest{
		System:      systemPrompt,
		Prompt:      buildPrompt(c.gather(ctx, req), req.CallStage, req.Transcript, qa),
		MaxTokens:   200,
		Temperature: ptr(0.3),
	})
	if err != nil {
		c.log.Warn("coaching completion failed", zap.String("call_sid", req.CallSid), zap.Error(err))
		return ruleBased(qa, req.CallStage)
	}

	res, err := parseCompletion(comp.Text)
	if err != nil {
		c.log.Warn("coaching completion unparseable", zap.String("call_sid", req.CallSid), zap.Error(err))
		return ruleBased(qa, req.CallStage)
	}
	if len(qa.Objections) > 0 {
		o := qa.Objections[0]
		res.ObjectionDetected = &o
		res.Urgency = UrgencyHigh
	}
	res.StageGuidance = StageGuidance(req.CallStage)
	res.source = SourceLLM
	return res
}

// gather loads optional prompt context. Lookup failures only thin the prompt.
func (c *Coach) gather(ctx context.Context, req Request) callContext {
	var cc callContext
	if c.contacts != nil && req.ContactID != "" {
		contact, err := c.contacts.GetContact(ctx, req.ContactID)
		if err != nil {
			c.log.Debug("coaching contact lookup failed", zap.Error(err))
		}
		cc.contact = contact
	}
	if c.transcripts != nil && req.CallSid != "" {
		ts, err := c.transcripts.Recent(ctx, req.CallSid, recentTranscripts)
		if err != nil {
			c.log.Debug("coaching transcript lookup failed", zap.Error(err))
		}
		cc.transcripts = ts
	}
	return cc
}

func (c *Coach) persist(ctx context.Context, req Request, res Result) {
	if c.analyses == nil {
		return
	}
	body := struct {
		Result
		Transcript string `json:"transcript"`
	}{res, tail(req.Transcript, transcriptTail)}
	raw, err := json.Marshal(body)
	if err != nil {
		c.log.Warn("encode coaching analysis failed", zap.Error(err))
		return
	}

	err = c.analyses.SaveAnalysis(ctx, domain.Analysis{
		ID:               uuid.NewString(),
		CallSid:          req.CallSid,
		ContactID:        req.ContactID,
		AnalysisType:     domain.AnalysisRealtimeCoaching,
		Result:           raw,
		ProcessingTimeMs: res.ProcessingTime,
		Confidence:       res.Confidence,
		CreatedAt:        c.now().UTC(),
	})
	if err != nil {
		c.log.Warn("store coaching analysis failed", zap.String("call_sid", req.CallSid), zap.Error(err))
	}
}

func parseCompletion(text string) (Result, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return Result{}, eris.New("no JSON object in completion")
	}
	var res Result
	if err := json.Unmarshal([]byte(text[start:end+1]), &res); err != nil {
		return Result{}, eris.Wrap(err, "decode coaching JSON")
	}
	if res.Tip == "" {
		return Result{}, eris.New("coaching JSON has no tip")
	}
	if res.Keywords == nil {
		res.Keywords = []string{}
	}
	res.Fallback = false
	return res, nil
}

func ruleBased(qa QuickAnalysis, stage string) Result {
	if len(qa.Objections) > 0 {
		o := qa.Objections[0]
		return Result{
			Tip:               "Address objection with empathy and evidence",
			NextQuestion:      "What specifically concerns you about that?",
			Urgency:           UrgencyHigh,
			Sentiment:         qa.Sentiment,
			Stage:             StageHandlingObjection,
			Confidence:        0.7,
			Keywords:          []string{o.Objection},
			ObjectionResponse: o.SuggestedResponse,
			Fallback:          true,
			source:            SourceRules,
		}
	}

	tip, ok := stageTips[stage]
	if !ok {
		tip = stageTips[StageDiscovery]
	}
	return Result{
		Tip:          tip.tip,
		NextQuestion: tip.nextQuestion,
		Urgency:      qa.Urgency,
		Sentiment:    qa.Sentiment,
		Stage:        stage,
		Confidence:   0.6,
		Keywords:     qa.IntentKeywords,
		Fallback:     true,
		source:       SourceRules,
	}
}

func timeoutFallback(stage string) Result {
	return Result{
		Tip:          "Continue active listening and ask open-ended questions",
		NextQuestion: "What's most important to you in your next property?",
		Urgency:      UrgencyLow,
		Sentiment:    SentimentNeutral,
		Stage:        stage,
		Confidence:   0.5,
		Keywords:     []string{},
		Fallback:     true,
		source:       SourceTimeout,
	}
}

func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

func ptr[T any](v T) *T { return &v }

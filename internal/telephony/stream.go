package telephony

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/oakmontrealty/voicrm-sydney/internal/coaching"
	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/internal/metrics"
	"github.com/oakmontrealty/voicrm-sydney/internal/sessions"
	"github.com/oakmontrealty/voicrm-sydney/internal/transcribe"
)

const (
	// ChunksPerTranscription is how many media frames are buffered before
	// a transcription pass.
	ChunksPerTranscription = 40

	transcriptWindowSeconds = 2.0
	speakerCaller           = "caller"
	summaryTimeout          = 30 * time.Second

	// DefaultTranscribeTimeout bounds one transcription pass when
	// StreamDeps.TranscribeTimeout is zero.
	DefaultTranscribeTimeout = 5 * time.Second
)

// Media stream event names.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
)

type StreamEvent struct {
	Event     string       `json:"event"`
	StreamSid string       `json:"streamSid"`
	CallSid   string       `json:"callSid,omitempty"`
	Start     *StreamStart `json:"start,omitempty"`
	Media     *StreamMedia `json:"media,omitempty"`
}

type StreamStart struct {
	StreamSid string `json:"streamSid"`
	CallSid   string `json:"callSid"`
}

type StreamMedia struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

func (e StreamEvent) streamSid() string {
	if e.StreamSid == "" && e.Start != nil {
		return e.Start.StreamSid
	}
	return e.StreamSid
}

func (e StreamEvent) callSid() string {
	if e.CallSid == "" && e.Start != nil {
		return e.Start.CallSid
	}
	return e.CallSid
}

type TranscriptStore interface {
	Insert(ctx context.Context, t domain.Transcript) error
}

type Coacher interface {
	Generate(ctx context.Context, req coaching.Request) (coaching.Result, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, callSid string) (*coaching.Summary, error)
}

type StreamDeps struct {
	Sessions    sessions.Registry
	Transcriber transcribe.Transcriber
	Transcripts TranscriptStore
	Coach       Coacher
	Summarizer  Summarizer
	Metrics     *metrics.Metrics
	Log         *zap.Logger

	TranscribeTimeout time.Duration
}

// StreamProcessor turns media stream events into transcripts and
// coaching. Audio is buffered per stream in the session registry.
type StreamProcessor struct {
	sessions    sessions.Registry
	transcriber transcribe.Transcriber
	transcripts TranscriptStore
	coach       Coacher
	summarizer  Summarizer
	metrics     *metrics.Metrics
	log         *zap.Logger
	now         func() time.Time

	transcribeTimeout time.Duration

	wg sync.WaitGroup
}

func NewStreamProcessor(d StreamDeps) *StreamProcessor {
	p := &StreamProcessor{
		sessions:    d.Sessions,
		transcriber: d.Transcriber,
		transcripts: d.Transcripts,
		coach:       d.Coach,
		summarizer:  d.Summarizer,
		metrics:     d.Metrics,
		log:         d.Log,
		now:         time.Now,

		transcribeTimeout: d.TranscribeTimeout,
	}
	if p.transcribeTimeout <= 0 {
		p.transcribeTimeout = DefaultTranscribeTimeout
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	return p
}

// Handle processes one event. Unknown events and media for unknown
// streams are ignored.
func (p *StreamProcessor) Handle(ctx context.Context, ev StreamEvent) error {
	switch strings.ToLower(ev.Event) {
	case EventConnected:
		p.log.Debug("media stream connected")
		return nil
	case EventStart:
		return p.start(ctx, ev)
	case EventMedia:
		return p.media(ctx, ev)
	case EventStop:
		return p.stop(ctx, ev)
	case "":
		return domain.Validation("event required")
	default:
		p.log.Debug("media stream event ignored", zap.String("event", ev.Event))
		return nil
	}
}

func (p *StreamProcessor) start(ctx context.Context, ev StreamEvent) error {
	sid := ev.streamSid()
	if sid == "" {
		return domain.Validation("streamSid required")
	}
	err := p.sessions.Start(ctx, sessions.Session{
		StreamSid: sid,
		CallSid:   ev.callSid(),
		StartedAt: p.now().UTC(),
	})
	if err != nil {
		return err
	}
	p.log.Info("media stream started", zap.String("stream_sid", sid), zap.String("call_sid", ev.callSid()))
	p.refreshActive(ctx)
	return nil
}

func (p *StreamProcessor) media(ctx context.Context, ev StreamEvent) error {
	sid := ev.streamSid()
	if sid == "" {
		return domain.Validation("streamSid required")
	}
	if ev.Media == nil || ev.Media.Payload == "" {
		return nil
	}
	chunk, err := base64.StdEncoding.DecodeString(ev.Media.Payload)
	if err != nil {
		return domain.Validation("media payload is not base64")
	}

	sess, ok, err := p.sessions.Get(ctx, sid)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	n, err := p.sessions.Append(ctx, sid, chunk)
	if err != nil {
		return err
	}
	if n < ChunksPerTranscription {
		return nil
	}

	chunks, err := p.sessions.Drain(ctx, sid)
	if err != nil {
		return err
	}
	p.transcribe(ctx, sess, bytes.Join(chunks, nil))
	return nil
}

// transcribe is best effort; failures are logged and the audio dropped.
func transcribeTimeoutError(err error, timeout time.Duration) error {
	return domain.Classify(domain.ErrUpstreamTimeout, eris.Wrapf(err, "transcription exceeded %s", timeout))
}

func (p *StreamProcessor) transcribe(ctx context.Context, sess sessions.Session, audio []byte) {
	if p.transcriber == nil || len(audio) == 0 {
		return
	}
	log := p.log.With(zap.String("stream_sid", sess.StreamSid), zap.String("call_sid", sess.CallSid))

	tctx, cancel := context.WithTimeout(ctx, p.transcribeTimeout)
	text, err := p.transcriber.Transcribe(tctx, audio)
	timedOut := errors.Is(tctx.Err(), context.DeadlineExceeded)
	cancel()
	if err != nil {
		if timedOut {
			err = transcribeTimeoutError(err, p.transcribeTimeout)
		}
		log.Warn("transcription failed",
			zap.Int("bytes", len(audio)),
			zap.Duration("timeout", p.transcribeTimeout),
			zap.Bool("timed_out", timedOut),
			zap.Error(err),
		)
		return
	}
	if strings.TrimSpace(text.Transcript) == "" {
		return
	}

	now := p.now().UTC()
	if p.transcripts != nil {
		err = p.transcripts.Insert(ctx, domain.Transcript{
			ID:         uuid.NewString(),
			CallSid:    sess.CallSid,
			Speaker:    speakerCaller,
			Text:       text.Transcript,
			Confidence: text.Confidence,
			StartTime:  now.Sub(sess.StartedAt).Seconds(),
			Duration:   transcriptWindowSeconds,
			CreatedAt:  now,
		})
		if err != nil {
			log.Warn("store transcript failed", zap.Error(err))
		}
	}

	if p.coach == nil {
		return
	}
	res, err := p.coach.Generate(ctx, coaching.Request{Transcript: text.Transcript, CallSid: sess.CallSid})
	if err != nil {
		log.Warn("stream coaching failed", zap.Error(err))
		return
	}
	log.Debug("stream coaching", zap.String("tip", res.Tip), zap.Bool("fallback", res.Fallback))
}

func (p *StreamProcessor) stop(ctx context.Context, ev StreamEvent) error {
	sid := ev.streamSid()
	if sid == "" {
		return domain.Validation("streamSid required")
	}
	sess, ok, err := p.sessions.Stop(ctx, sid)
	if err != nil {
		return err
	}
	p.refreshActive(ctx)
	if !ok {
		return nil
	}
	p.log.Info("media stream stopped", zap.String("stream_sid", sid), zap.String("call_sid", sess.CallSid))

	if p.summarizer != nil && sess.CallSid != "" {
		p.wg.Add(1)
		go p.summarize(context.WithoutCancel(ctx), sess.CallSid)
	}
	return nil
}

func (p *StreamProcessor) summarize(ctx context.Context, callSid string) {
	defer p.wg.Done()
	ctx, cancel := context.WithTimeout(ctx, summaryTimeout)
	defer cancel()
	if _, err := p.summarizer.Summarize(ctx, callSid); err != nil {
		p.log.Warn("call summary failed", zap.String("call_sid", callSid), zap.Error(err))
	}
}

func (p *StreamProcessor) refreshActive(ctx context.Context) {
	n, err := p.sessions.Active(ctx)
	if err != nil {
		p.log.Debug("count active streams failed", zap.Error(err))
		return
	}
	p.metrics.SetActiveStreams(n)
}

// Close waits for in-flight call summaries.
func (p *StreamProcessor) Close() {
	p.wg.Wait()
}

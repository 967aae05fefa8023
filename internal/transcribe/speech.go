// Package transcribe turns call audio into stored transcript rows.
package transcribe

import (
	"context"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"
)

const DefaultConfidence = 0.9

// Transcriber is the speech-to-text black box.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (Text, error)
}

type Text struct {
	Transcript string
	Confidence float64
}

type SpeechConfig struct {
	LanguageCode    string
	SampleRateHertz int
	// Credentials is a service-account file path or inline JSON.
	Credentials string
}

// recognizer is the part of the Speech client this package calls.
type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
}

type clientRecognizer struct{ c *speech.Client }

func (r clientRecognizer) Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	return r.c.Recognize(ctx, req)
}

// GoogleSpeech transcribes 8kHz mu-law telephony audio with Cloud Speech.
type GoogleSpeech struct {
	rec    recognizer
	cfg    SpeechConfig
	closer func() error
}

func NewGoogleSpeech(ctx context.Context, cfg SpeechConfig) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx, clientOptions(cfg.Credentials)...)
	if err != nil {
		return nil, eris.Wrap(err, "speech client")
	}
	return newGoogleSpeech(clientRecognizer{c}, cfg, c.Close), nil
}

func newGoogleSpeech(rec recognizer, cfg SpeechConfig, closer func() error) *GoogleSpeech {
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-AU"
	}
	if cfg.SampleRateHertz <= 0 {
		cfg.SampleRateHertz = 8000
	}
	return &GoogleSpeech{rec: rec, cfg: cfg, closer: closer}
}

func (g *GoogleSpeech) Close() error {
	if g == nil || g.closer == nil {
		return nil
	}
	return g.closer()
}

func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte) (Text, error) {
	if len(audio) == 0 {
		return Text{}, nil
	}
	resp, err := g.rec.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_MULAW,
			SampleRateHertz:            int32(g.cfg.SampleRateHertz),
			LanguageCode:               g.cfg.LanguageCode,
			Model:                      "phone_call",
			UseEnhanced:                true,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}},
	})
	if err != nil {
		return Text{}, eris.Wrap(err, "speech recognize")
	}
	return parseResponse(resp), nil
}

func parseResponse(resp *speechpb.RecognizeResponse) Text {
	var (
		parts []string
		sum   float64
		n     int
	)
	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		best := alts[0]
		if t := strings.TrimSpace(best.GetTranscript()); t != "" {
			parts = append(parts, t)
		}
		if c := best.GetConfidence(); c > 0 {
			sum += float64(c)
			n++
		}
	}

	out := Text{Transcript: strings.Join(parts, " "), Confidence: DefaultConfidence}
	if n > 0 {
		out.Confidence = sum / float64(n)
	}
	return out
}

func clientOptions(creds string) []option.ClientOption {
	creds = strings.TrimSpace(creds)
	switch {
	case creds == "":
		return nil
	case strings.HasPrefix(creds, "{"):
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	default:
		return []option.ClientOption{option.WithCredentialsFile(creds)}
	}
}

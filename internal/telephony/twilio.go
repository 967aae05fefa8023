package telephony

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/oakmontrealty/voicrm-sydney/internal/config"
	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/internal/quality"
)

const defaultTwilioTimeout = 10 * time.Second

// TwilioProvider talks to the Twilio REST and Voice Insights APIs.
type TwilioProvider struct {
	client      *resty.Client
	accountSID  string
	baseURL     string
	insightsURL string
	voiceURL    string
	statusURL   string
	limiter     *rate.Limiter
}

func NewTwilioProvider(cfg config.TwilioConfig) (*TwilioProvider, error) {
	client := resty.New()
	client.SetTimeout(defaultTwilioTimeout)
	return NewTwilioProviderWithClient(cfg, client)
}

func NewTwilioProviderWithClient(cfg config.TwilioConfig, client *resty.Client) (*TwilioProvider, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" {
		return nil, eris.New("twilio: account sid is required")
	}
	if client == nil {
		return nil, eris.New("twilio: resty client is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, eris.Wrap(err, "twilio: invalid base url")
	}
	cps := cfg.CallsPerSec
	if cps <= 0 {
		cps = 1
	}

	client.SetRetryCount(0)
	client.SetBasicAuth(cfg.AccountSID, cfg.AuthToken)
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultTwilioTimeout)
	}

	return &TwilioProvider{
		client:      client,
		accountSID:  cfg.AccountSID,
		baseURL:     base,
		insightsURL: strings.TrimRight(cfg.InsightsURL, "/"),
		voiceURL:    cfg.VoiceURL,
		statusURL:   cfg.StatusURL,
		limiter:     rate.NewLimiter(rate.Limit(cps), 1),
	}, nil
}

func (p *TwilioProvider) Name() string { return "twilio" }

type twilioAccount struct {
	Status string `json:"status"`
}

type twilioCall struct {
	Sid    string `json:"sid"`
	Status string `json:"status"`
	To     string `json:"to"`
	From   string `json:"from"`
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// HealthCheck fetches the account and requires it to be active.
func (p *TwilioProvider) HealthCheck(ctx context.Context) error {
	var acct twilioAccount
	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&acct).
		SetError(&twilioError{}).
		Get(p.accountURL(".json"))
	if err != nil {
		return transportErr(err, "twilio: fetch account")
	}
	if err := replyErr(resp); err != nil {
		return err
	}
	if acct.Status != "active" {
		return eris.Errorf("twilio: account status %q", acct.Status)
	}
	return nil
}

// Connect creates an outbound call. Calls are paced to the configured
// calls-per-second so bursts never exceed the account's CPS.
func (p *TwilioProvider) Connect(ctx context.Context, req ConnectRequest) (CallHandle, error) {
	if strings.TrimSpace(req.To) == "" || strings.TrimSpace(req.From) == "" {
		return CallHandle{}, domain.Validation("to and from are required")
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return CallHandle{}, domain.Classify(domain.ErrRateLimited, eris.Wrap(err, "twilio: pacing"))
	}

	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", req.From)
	if p.voiceURL != "" {
		form.Set("Url", p.voiceURL)
	}
	status := req.StatusCallback
	if status == "" {
		status = p.statusURL
	}
	if status != "" {
		form.Set("StatusCallback", status)
		for _, ev := range []string{"initiated", "ringing", "answered", "completed"} {
			form.Add("StatusCallbackEvent", ev)
		}
	}

	var call twilioCall
	resp, err := p.client.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		SetResult(&call).
		SetError(&twilioError{}).
		Post(p.accountURL("/Calls.json"))
	if err != nil {
		return CallHandle{}, transportErr(err, "twilio: create call")
	}
	if err := replyErr(resp); err != nil {
		return CallHandle{}, err
	}
	return CallHandle{CallSid: call.Sid, Status: call.Status, To: call.To, From: call.From}, nil
}

type insightsMetrics struct {
	Metrics []struct {
		Edge    string `json:"edge"`
		SDKEdge *struct {
			Interval insightsInterval `json:"interval"`
		} `json:"sdk_edge"`
	} `json:"metrics"`
}

type insightsAvg struct {
	Avg *float64 `json:"avg"`
}

type insightsInterval struct {
	MOS                 *float64     `json:"mos"`
	RTT                 *insightsAvg `json:"rtt"`
	Jitter              *insightsAvg `json:"jitter"`
	PacketsLostFraction *float64     `json:"packets_lost_fraction"`
}

// CallStats reads the latest SDK-edge interval that carries any metric from
// Voice Insights. A call with no such interval yet yields empty stats.
func (p *TwilioProvider) CallStats(ctx context.Context, callSid string) (quality.RawStats, error) {
	if callSid == "" {
		return quality.RawStats{}, domain.Validation("call sid required")
	}
	var m insightsMetrics
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("Edge", "sdk_edge").
		SetResult(&m).
		SetError(&twilioError{}).
		Get(fmt.Sprintf("%s/v1/Voice/%s/Metrics", p.insightsURL, url.PathEscape(callSid)))
	if err != nil {
		return quality.RawStats{}, transportErr(err, "twilio: fetch call metrics")
	}
	if err := replyErr(resp); err != nil {
		return quality.RawStats{}, err
	}

	for i := len(m.Metrics) - 1; i >= 0; i-- {
		edge := m.Metrics[i].SDKEdge
		if edge == nil {
			continue
		}
		iv := edge.Interval
		out := quality.RawStats{MOS: iv.MOS, PacketsLostFraction: iv.PacketsLostFraction}
		if iv.RTT != nil {
			out.RTTMs = iv.RTT.Avg
		}
		if iv.Jitter != nil {
			out.JitterMs = iv.Jitter.Avg
		}
		if out.Empty() {
			continue
		}
		return out, nil
	}
	return quality.RawStats{}, nil
}

func (p *TwilioProvider) accountURL(suffix string) string {
	return fmt.Sprintf("%s/2010-04-01/Accounts/%s%s", p.baseURL, url.PathEscape(p.accountSID), suffix)
}

func transportErr(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Classify(domain.ErrUpstreamTimeout, eris.Wrap(err, msg))
	}
	return eris.Wrap(err, msg)
}

func replyErr(resp *resty.Response) error {
	if resp == nil {
		return &ProviderError{StatusCode: http.StatusBadGateway, Message: "empty response"}
	}
	if !resp.IsError() {
		return nil
	}
	pe := &ProviderError{StatusCode: resp.StatusCode()}
	if te, ok := resp.Error().(*twilioError); ok && te != nil {
		pe.Code = te.Code
		pe.Message = te.Message
	}
	if pe.Message == "" {
		pe.Message = fmt.Sprintf("status %d", resp.StatusCode())
	}
	return pe
}

package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmontrealty/voicrm-sydney/internal/config"
	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
)

func newTestTwilio(t *testing.T, h http.HandlerFunc) *TwilioProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	p, err := NewTwilioProvider(config.TwilioConfig{
		AccountSID:  "AC123",
		AuthToken:   "tok",
		BaseURL:     srv.URL,
		InsightsURL: srv.URL,
		VoiceURL:    "https://voicrm.example/webhooks/twilio/voice",
		StatusURL:   "https://voicrm.example/webhooks/twilio/status",
		CallsPerSec: 100,
	})
	require.NoError(t, err)
	return p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestTwilioConnect(t *testing.T) {
	p := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Calls.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "tok", pass)

		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "+61412345678", r.PostForm.Get("To"))
		assert.Equal(t, "+61298765432", r.PostForm.Get("From"))
		assert.Equal(t, "https://voicrm.example/webhooks/twilio/status", r.PostForm.Get("StatusCallback"))
		assert.Len(t, r.PostForm["StatusCallbackEvent"], 4)

		writeJSON(w, http.StatusCreated, map[string]string{
			"sid": "CA999", "status": "queued", "to": "+61412345678", "from": "+61298765432",
		})
	})

	h, err := p.Connect(context.Background(), ConnectRequest{To: "+61412345678", From: "+61298765432"})
	require.NoError(t, err)
	assert.Equal(t, CallHandle{CallSid: "CA999", Status: "queued", To: "+61412345678", From: "+61298765432"}, h)
}

func TestTwilioConnect_ProviderError(t *testing.T) {
	p := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 21211, "message": "Invalid 'To' Phone Number", "status": 400})
	})

	_, err := p.Connect(context.Background(), ConnectRequest{To: "+610", From: "+61298765432"})
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 21211, pe.Code)
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
	assert.False(t, pe.Transient())
}

func TestTwilioConnect_RequiresNumbers(t *testing.T) {
	p := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Fail(t, "no request expected")
	})
	_, err := p.Connect(context.Background(), ConnectRequest{To: "+61412345678"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTwilioHealthCheck(t *testing.T) {
	status := "active"
	p := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2010-04-01/Accounts/AC123.json", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]string{"status": status})
	})

	require.NoError(t, p.HealthCheck(context.Background()))
	status = "suspended"
	assert.Error(t, p.HealthCheck(context.Background()))
}

func TestTwilioCallStats(t *testing.T) {
	p := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/Voice/CA1/Metrics", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"metrics":[
			{"edge":"sdk_edge","sdk_edge":{"interval":{"mos":4.1,"rtt":{"avg":120},"jitter":{"avg":9},"packets_lost_fraction":0.02}}},
			{"edge":"sdk_edge","sdk_edge":{"interval":{"mos":4.3,"rtt":{"avg":90}}}},
			{"edge":"carrier_edge"}
		]}`))
	})

	stats, err := p.CallStats(context.Background(), "CA1")
	require.NoError(t, err)
	require.NotNil(t, stats.MOS)
	assert.Equal(t, 4.3, *stats.MOS)
	assert.Equal(t, 90.0, *stats.RTTMs)
	assert.Nil(t, stats.JitterMs)
	assert.Nil(t, stats.PacketsLostFraction)
}

func TestTwilioCallStats_NoIntervals(t *testing.T) {
	p := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"metrics": []any{}})
	})
	stats, err := p.CallStats(context.Background(), "CA2")
	require.NoError(t, err)
	assert.Nil(t, stats.MOS)
}

func TestTwilioCallStats_SkipsEmptyIntervals(t *testing.T) {
	p := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"metrics":[
			{"edge":"sdk_edge","sdk_edge":{"interval":{"mos":3.9,"jitter":{"avg":12}}}},
			{"edge":"sdk_edge","sdk_edge":{"interval":{"rtt":{},"jitter":{}}}},
			{"edge":"sdk_edge","sdk_edge":{"interval":{}}}
		]}`))
	})
	stats, err := p.CallStats(context.Background(), "CA3")
	require.NoError(t, err)
	require.NotNil(t, stats.MOS)
	assert.Equal(t, 3.9, *stats.MOS)
	assert.Equal(t, 12.0, *stats.JitterMs)
}

func TestTwilioCallStats_OnlyEmptyIntervals(t *testing.T) {
	p := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"metrics":[{"edge":"sdk_edge","sdk_edge":{"interval":{}}}]}`))
	})
	stats, err := p.CallStats(context.Background(), "CA4")
	require.NoError(t, err)
	assert.True(t, stats.Empty())
}

func TestProviderErrorTransient(t *testing.T) {
	assert.True(t, (&ProviderError{StatusCode: 503}).Transient())
	assert.True(t, (&ProviderError{StatusCode: 429}).Transient())
	assert.False(t, (&ProviderError{StatusCode: 404}).Transient())
}

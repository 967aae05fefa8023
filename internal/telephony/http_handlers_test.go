package telephony

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmontrealty/voicrm-sydney/internal/carousel"
	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
)

type chooserStub struct {
	got carousel.ChooseRequest
	res carousel.ChooseResult
	err error
}

func (s *chooserStub) Choose(_ context.Context, req carousel.ChooseRequest) (carousel.ChooseResult, error) {
	s.got = req
	return s.res, s.err
}

func webhookRouter(h TwilioWebhookHandler, mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/webhooks/twilio", mw...)
	g.POST("/voice", h.HandleVoice)
	g.POST("/status", h.HandleStatus)
	return r
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, formRequest(path, body))
	return w
}

func TestHandleVoice_SelectsCallerID(t *testing.T) {
	ch := &chooserStub{res: carousel.ChooseResult{SelectedNumber: carousel.SelectedNumber{
		ID: "num-1", E164: "+61298765432", Strategy: carousel.StrategyHealthWeighted,
	}}}
	hooks := &recordingHooks{}
	calls := NewCallMachine(hooks, 0, nil)
	r := webhookRouter(TwilioWebhookHandler{Chooser: ch, Calls: calls})

	w := post(r, "/webhooks/twilio/voice", "CallSid=CA1&From=client%3Aagent-1&To=%2B61412345678&ContactId=c-9")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/xml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `callerId="+61298765432"`)
	assert.Contains(t, w.Body.String(), "<Number>+61412345678</Number>")
	assert.Equal(t, carousel.ChooseRequest{AgentID: "agent-1", ContactID: "c-9", DestinationNumber: "+61412345678"}, ch.got)

	// the chosen number follows the call into the state machine
	w = post(r, "/webhooks/twilio/status", "CallSid=CA1&CallStatus=in-progress")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"CA1/num-1"}, hooks.connected)
}

func TestHandleVoice_ExplicitCallerIDSkipsSelection(t *testing.T) {
	ch := &chooserStub{err: fmt.Errorf("must not be called")}
	r := webhookRouter(TwilioWebhookHandler{Chooser: ch})

	w := post(r, "/webhooks/twilio/voice", "CallSid=CA2&From=client%3Aagent-1&To=%2B61412345678&CallerId=%2B61398765432")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `callerId="+61398765432"`)
	assert.Empty(t, ch.got.AgentID)
}

func TestHandleVoice_EmptyPoolRejects(t *testing.T) {
	ch := &chooserStub{err: fmt.Errorf("choose: %w", domain.ErrNoAvailableNumbers)}
	r := webhookRouter(TwilioWebhookHandler{Chooser: ch})

	w := post(r, "/webhooks/twilio/voice", "CallSid=CA3&From=client%3Aagent-1&To=%2B61412345678")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<Reject")
	assert.NotContains(t, w.Body.String(), "<Dial")
}

func TestHandleVoice_MissingDestinationRejects(t *testing.T) {
	r := webhookRouter(TwilioWebhookHandler{Chooser: &chooserStub{}})
	w := post(r, "/webhooks/twilio/voice", "CallSid=CA4&From=client%3Aagent-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<Reject")
}

func TestHandleStatus_UnknownStatus(t *testing.T) {
	r := webhookRouter(TwilioWebhookHandler{Calls: NewCallMachine(nil, 0, nil)})
	w := post(r, "/webhooks/twilio/status", "CallSid=CA5&CallStatus=weird")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequireSignature(t *testing.T) {
	ch := &chooserStub{}
	r := webhookRouter(TwilioWebhookHandler{Chooser: ch}, RequireSignature("tok", "https://voicrm.example/"))

	body := "CallSid=CA6&CallerId=%2B61398765432&To=%2B61412345678"
	params, err := url.ParseQuery(body)
	require.NoError(t, err)
	mac := hmac.New(sha1.New, []byte("tok"))
	mac.Write([]byte("https://voicrm.example/webhooks/twilio/voice" + "CallSidCA6" + "CallerId+61398765432" + "To+61412345678"))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	require.True(t, ValidSignature("tok", "https://voicrm.example/webhooks/twilio/voice", params, sig))

	req := formRequest("/webhooks/twilio/voice", body)
	req.Header.Set(SignatureHeader, sig)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/webhooks/twilio/voice", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(SignatureHeader, "bogus")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

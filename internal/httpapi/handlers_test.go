package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmontrealty/voicrm-sydney/internal/assignment"
	"github.com/oakmontrealty/voicrm-sydney/internal/auth"
	"github.com/oakmontrealty/voicrm-sydney/internal/carousel"
	"github.com/oakmontrealty/voicrm-sydney/internal/coaching"
	"github.com/oakmontrealty/voicrm-sydney/internal/collision"
	"github.com/oakmontrealty/voicrm-sydney/internal/config"
	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/internal/numbers"
	"github.com/oakmontrealty/voicrm-sydney/internal/quality"
	"github.com/oakmontrealty/voicrm-sydney/internal/sessions"
	"github.com/oakmontrealty/voicrm-sydney/internal/telephony"
	"github.com/oakmontrealty/voicrm-sydney/internal/transcribe"
)

type apiFixture struct {
	router      *gin.Engine
	repo        *numbers.MemoryRepo
	ledger      *assignment.MemoryLedger
	contacts    *collision.MemoryStore
	transcripts *transcribe.MemoryRepo
}

func newAPI(t *testing.T, seed ...domain.PhoneNumber) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &apiFixture{
		repo:        numbers.NewMemoryRepo(seed...),
		ledger:      assignment.NewMemoryLedger(),
		contacts:    collision.NewMemoryStore(),
		transcripts: transcribe.NewMemoryRepo(),
	}
	dir := numbers.NewDirectory(f.repo, f.ledger)
	detector := collision.NewDetector(f.contacts, 0, nil)
	qsvc := quality.NewService(quality.NewMemoryRepo(), nil, nil)
	coach := coaching.New(coaching.Deps{Transcripts: f.transcripts, Contacts: f.contacts})
	tokens, err := telephony.NewTokenIssuer(config.TwilioConfig{
		AccountSID: "AC1", APIKey: "SK1", APISecret: "s", TwiMLAppSID: "AP1",
	})
	require.NoError(t, err)

	h := Handlers{
		Selector: carousel.NewSelector(carousel.Deps{
			Numbers:    dir,
			Recorder:   assignment.NewRecorder(f.ledger, dir, f.contacts, nil),
			Collisions: detector,
			Quality:    qsvc,
		}),
		Numbers:    dir,
		Collisions: detector,
		Quality:    qsvc,
		Coach:      coach,
		Streams: telephony.NewStreamProcessor(telephony.StreamDeps{
			Sessions:    sessions.NewMemoryRegistry(time.Minute),
			Transcripts: f.transcripts,
		}),
		Transcripts: f.transcripts,
		Tokens:      tokens,
		Checks: []HealthCheck{
			{Name: "postgres", Check: func(context.Context) error { return nil }},
		},
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), "agent-1", "agent"))
		c.Next()
	})
	Register(r.Group("/api"), h, nil)
	r.GET("/healthz", h.Health)
	f.router = r
	return f
}

func (f *apiFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func pool() []domain.PhoneNumber {
	return []domain.PhoneNumber{
		{ID: "n1", PhoneNumber: "+61298765432", IsActive: true, Region: "NSW", HealthScore: 0.9, SuccessRate: 0.8, UsageCount: 5},
		{ID: "n2", PhoneNumber: "+61398765432", IsActive: true, Region: "VIC", HealthScore: 0.7, SuccessRate: 0.9},
	}
}

func TestChooseCallerID(t *testing.T) {
	f := newAPI(t, pool()...)

	w := f.do(http.MethodPost, "/api/caller-id/choose", map[string]any{
		"agentId": "agent-1", "destinationNumber": "0412345678",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	sel := body["selectedNumber"].(map[string]any)
	assert.Equal(t, "n1", sel["id"])
	assert.Equal(t, "02 9876 5432", sel["phoneNumber"])
	assert.Equal(t, 0.9, body["healthScore"])
	assert.Equal(t, "Highest health score (90%)", body["reason"])
	assert.Nil(t, body["collisionWarning"])
	meta := body["metadata"].(map[string]any)
	assert.EqualValues(t, 2, meta["totalAvailable"])
	assert.EqualValues(t, 6, meta["usageCount"])
	assert.Len(t, f.ledger.Entries(), 1)
}

func TestChooseCallerID_Errors(t *testing.T) {
	f := newAPI(t)

	w := f.do(http.MethodPost, "/api/caller-id/choose", map[string]any{"agentId": "agent-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", decode(t, w)["code"])

	w = f.do(http.MethodPost, "/api/caller-id/choose", map[string]any{"agentId": "agent-1", "destinationNumber": "0412345678"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Empty(t, f.ledger.Entries())

	req := httptest.NewRequest(http.MethodPost, "/api/caller-id/choose", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChooseCallerID_BlockedByCollision(t *testing.T) {
	f := newAPI(t, pool()...)
	f.contacts.PutContact(domain.Contact{ID: "c1", FirstName: "Ada"})
	f.contacts.AddCall(domain.CallLog{ID: "call-1", ContactID: "c1", AgentID: "agent-2", StartedAt: time.Now().Add(-10 * time.Minute)})

	w := f.do(http.MethodPost, "/api/caller-id/choose", map[string]any{
		"agentId": "agent-1", "contactId": "c1", "destinationNumber": "0412345678", "blockOnCollision": true,
	})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "collision", body["code"])
	assert.Equal(t, "high", body["collision"].(map[string]any)["severity"])
	assert.Empty(t, f.ledger.Entries())
}

func TestPoolLifecycle(t *testing.T) {
	f := newAPI(t)

	w := f.do(http.MethodPost, "/api/pool", map[string]any{"phoneNumber": "02 9876 5432"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	n := decode(t, w)["number"].(map[string]any)
	assert.Equal(t, "+61298765432", n["phone_number"])
	assert.Equal(t, 1.0, n["health_score"])
	assert.Equal(t, "NSW", n["region"])

	w = f.do(http.MethodPost, "/api/pool", map[string]any{"phoneNumber": "12345"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/api/pool", nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode(t, w)["numbers"].([]any)
	require.Len(t, listed, 1)
	entry := listed[0].(map[string]any)
	assert.Equal(t, "healthy", entry["status"])

	w = f.do(http.MethodDelete, "/api/pool/"+n["id"].(string), nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(http.MethodGet, "/api/pool", nil)
	assert.Empty(t, decode(t, w)["numbers"])
}

func TestCheckCollision(t *testing.T) {
	f := newAPI(t)
	f.contacts.PutContact(domain.Contact{ID: "c1", FirstName: "Ada", LastName: "Lovelace", LeadScore: 7, Status: "hot"})

	w := f.do(http.MethodPost, "/api/collision-check", map[string]any{"contactId": "c1", "agentId": "agent-1"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Nil(t, body["collision"])
	assert.Nil(t, body["recommendations"])
	assert.Equal(t, "Ada", body["contact"].(map[string]any)["firstName"])

	w = f.do(http.MethodPost, "/api/collision-check", map[string]any{"agentId": "agent-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQualityRecordAndQuery(t *testing.T) {
	f := newAPI(t)

	w := f.do(http.MethodPost, "/api/quality", map[string]any{
		"call_sid": "CA1", "mos_score": 4.0, "latency": 100, "jitter": 10, "packet_loss": 0.2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, false, body["meetsSlo"])
	assert.Equal(t, []any{"MOS below target: 4 < 4.2"}, body["sloViolations"])
	assert.Equal(t, 4.2, body["targets"].(map[string]any)["mos"])

	w = f.do(http.MethodGet, "/api/quality?call_sid=CA1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, true, body["success"])
	stats := body["statistics"].(map[string]any)
	assert.EqualValues(t, 1, stats["totalCalls"])
	assert.EqualValues(t, 0, stats["sloCompliance"])
	assert.Len(t, body["metrics"], 1)

	w = f.do(http.MethodGet, "/api/quality?timeframe=30d", nil)
	assert.Equal(t, "168h", decode(t, w)["timeframe"])

	w = f.do(http.MethodPost, "/api/quality", map[string]any{"mos_score": 4.5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/quality", map[string]any{"call_sid": "CA2", "phone_number_id": "n1", "mos_score": 4.5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "phone_number_id must be a uuid")
}

func TestCoaching(t *testing.T) {
	f := newAPI(t)

	w := f.do(http.MethodPost, "/api/coaching", map[string]any{"transcript": "honestly it is too expensive"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["fallback"])
	assert.Equal(t, "high", body["urgency"])

	w = f.do(http.MethodPost, "/api/coaching", map[string]any{"transcript": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamAndTranscripts(t *testing.T) {
	f := newAPI(t)

	w := f.do(http.MethodPost, "/api/stream", map[string]any{"event": "start", "streamSid": "MZ1", "callSid": "CA1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = f.do(http.MethodPost, "/api/stream", map[string]any{"event": "stop", "streamSid": "MZ1"})
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, f.transcripts.Insert(context.Background(), domain.Transcript{ID: "t1", CallSid: "CA1", Text: "hello"}))
	w = f.do(http.MethodGet, "/api/stream?callSid=CA1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["transcripts"], 1)

	w = f.do(http.MethodGet, "/api/stream", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckPhone(t *testing.T) {
	f := newAPI(t, pool()...)

	w := f.do(http.MethodGet, "/api/phone/check?number=0412345678", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["validation"].(map[string]any)["isValid"])
	assert.NotNil(t, body["answerRate"])
	assert.NotNil(t, body["suggestion"])

	w = f.do(http.MethodGet, "/api/phone/check?number=123", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["validation"].(map[string]any)["isValid"])
}

func TestVoiceToken(t *testing.T) {
	f := newAPI(t)
	w := f.do(http.MethodPost, "/api/voice/token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "agent-1", body["identity"])
	assert.NotEmpty(t, body["token"])
}

func TestHealth(t *testing.T) {
	f := newAPI(t)
	w := f.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", Handlers{Checks: []HealthCheck{
		{Name: "redis", Check: func(context.Context) error { return errors.New("down") }},
	}}.Health)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
}

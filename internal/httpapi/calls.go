package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oakmontrealty/voicrm-sydney/internal/apierr"
	"github.com/oakmontrealty/voicrm-sydney/internal/auth"
	"github.com/oakmontrealty/voicrm-sydney/internal/coaching"
	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/internal/quality"
	"github.com/oakmontrealty/voicrm-sydney/internal/telephony"
)

// --- Quality ---

func (h Handlers) RecordQuality(c *gin.Context) {
	if h.Quality == nil {
		notConfigured(c, "quality")
		return
	}
	var in quality.RecordInput
	if !bind(c, &in) {
		return
	}

	rec, err := h.Quality.Record(c.Request.Context(), in)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"sloViolations": rec.Evaluation.Violations,
		"meetsSlo":      rec.Evaluation.MeetsSLO,
		"targets":       h.Quality.Targets(),
	})
}

func (h Handlers) QueryQuality(c *gin.Context) {
	if h.Quality == nil {
		notConfigured(c, "quality")
		return
	}
	report, err := h.Quality.Query(c.Request.Context(), quality.QueryInput{
		Timeframe: c.Query("timeframe"),
		CallSid:   c.Query("call_sid"),
	})
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, struct {
		Success bool `json:"success"`
		quality.Report
	}{true, report})
}

// --- Coaching ---

// Coaching always answers 200 for a non-empty transcript; degraded results
// carry fallback=true.
func (h Handlers) Coaching(c *gin.Context) {
	if h.Coach == nil {
		notConfigured(c, "coaching")
		return
	}
	var req coaching.Request
	if !bind(c, &req) {
		return
	}

	res, err := h.Coach.Generate(c.Request.Context(), req)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, struct {
		Success bool `json:"success"`
		coaching.Result
	}{true, res})
}

// --- Media stream ---

func (h Handlers) StreamEvent(c *gin.Context) {
	if h.Streams == nil {
		notConfigured(c, "media streams")
		return
	}
	var ev telephony.StreamEvent
	if !bind(c, &ev) {
		return
	}
	if err := h.Streams.Handle(c.Request.Context(), ev); err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h Handlers) ListTranscripts(c *gin.Context) {
	if h.Transcripts == nil {
		notConfigured(c, "transcripts")
		return
	}
	callSid := strings.TrimSpace(c.Query("callSid"))
	if callSid == "" {
		apierr.Respond(c, domain.Validation("callSid required"))
		return
	}
	rows, err := h.Transcripts.ListByCall(c.Request.Context(), callSid)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "callSid": callSid, "transcripts": rows})
}

// --- Softphone ---

// VoiceToken mints a softphone token for the authenticated agent.
func (h Handlers) VoiceToken(c *gin.Context) {
	if h.Tokens == nil {
		notConfigured(c, "voice tokens")
		return
	}
	agent, err := auth.FromContext(c.Request.Context())
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	tok, err := h.Tokens.Issue(agent.AgentID, h.now())
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"token":    tok.Token,
		"identity": tok.Identity,
		"expires":  tok.Expires,
	})
}

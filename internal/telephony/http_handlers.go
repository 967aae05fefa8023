package telephony

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/oakmontrealty/voicrm-sydney/internal/carousel"
	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/pkg/logger"
)

const (
	msgNoDestination = "No destination number was provided."
	msgNoCallerID    = "No caller ID is available right now. Please try again shortly."
)

type Chooser interface {
	Choose(ctx context.Context, req carousel.ChooseRequest) (carousel.ChooseResult, error)
}

// TwilioWebhookHandler converts Twilio webhooks to internal calls and
// writes TwiML. Caller ID selection is delegated to the carousel.
type TwilioWebhookHandler struct {
	Chooser Chooser
	Calls   *CallMachine
}

// HandleVoice answers the TwiML app voice request for an outbound call
// placed by an agent's softphone.
func (h TwilioWebhookHandler) HandleVoice(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseVoiceForm(c.Request)
	if err != nil {
		log.Warn("twilio voice parse failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	log = log.With(zap.String("call_sid", form.CallSid))

	if form.To == "" {
		writeTwiML(c, rejectOrEmpty(RejectTwiML(msgNoDestination)))
		return
	}

	callerID, numberID := form.CallerID, ""
	if callerID == "" {
		res, err := h.choose(c.Request.Context(), form)
		if err != nil {
			if errors.Is(err, domain.ErrNoAvailableNumbers) {
				log.Warn("no caller id available", zap.String("to", form.To))
			} else {
				log.Error("caller id selection failed", zap.Error(err))
			}
			writeTwiML(c, rejectOrEmpty(RejectTwiML(msgNoCallerID)))
			return
		}
		callerID, numberID = res.SelectedNumber.E164, res.SelectedNumber.ID
		log.Info("caller id selected",
			zap.String("phone_number_id", numberID),
			zap.String("strategy", res.SelectedNumber.Strategy.String()),
		)
	}

	if h.Calls != nil {
		h.Calls.Bind(form.CallSid, numberID)
	}

	twiml, err := DialTwiML(callerID, form.To)
	if err != nil {
		log.Error("twiml render failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	writeTwiML(c, twiml)
}

func (h TwilioWebhookHandler) choose(ctx context.Context, form VoiceForm) (carousel.ChooseResult, error) {
	agentID := form.AgentID()
	if h.Chooser == nil || agentID == "" {
		return carousel.ChooseResult{}, domain.Validation("agent identity required for caller id selection")
	}
	return h.Chooser.Choose(ctx, carousel.ChooseRequest{
		AgentID:           agentID,
		ContactID:         form.ContactID,
		DestinationNumber: form.To,
	})
}

// HandleStatus feeds call status callbacks into the call state machine.
func (h TwilioWebhookHandler) HandleStatus(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseStatusForm(c.Request)
	if err != nil {
		log.Warn("twilio status parse failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call tracking not configured"})
		return
	}

	state, err := h.Calls.Handle(form.CallSid, form.CallStatus)
	if err != nil {
		log.Warn("call status rejected", zap.String("call_sid", form.CallSid), zap.String("status", form.CallStatus), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Debug("call status", zap.String("call_sid", form.CallSid), zap.String("state", string(state)))
	writeTwiML(c, EmptyTwiML())
}

// RequireSignature rejects webhooks whose X-Twilio-Signature does not match.
// baseURL is the public origin Twilio was configured with; when empty the
// request host and forwarded proto are used.
func RequireSignature(authToken, baseURL string) gin.HandlerFunc {
	baseURL = strings.TrimRight(baseURL, "/")
	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
			return
		}
		origin := baseURL
		if origin == "" {
			scheme := "https"
			if p := c.GetHeader("X-Forwarded-Proto"); p != "" {
				scheme = p
			} else if c.Request.TLS == nil {
				scheme = "http"
			}
			origin = scheme + "://" + c.Request.Host
		}

		if !ValidSignature(authToken, origin+c.Request.URL.RequestURI(), c.Request.PostForm, c.GetHeader(SignatureHeader)) {
			logger.FromGin(c).Warn("twilio signature mismatch", zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}
		c.Next()
	}
}

func rejectOrEmpty(twiml string, err error) string {
	if err != nil {
		return EmptyTwiML()
	}
	return twiml
}

func writeTwiML(c *gin.Context, twiml string) {
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, twiml)
}

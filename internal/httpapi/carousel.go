package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oakmontrealty/voicrm-sydney/internal/apierr"
	"github.com/oakmontrealty/voicrm-sydney/internal/carousel"
	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/internal/numbers"
	"github.com/oakmontrealty/voicrm-sydney/internal/phone"
)

// ChooseCallerID runs the selection flow for one outbound call.
func (h Handlers) ChooseCallerID(c *gin.Context) {
	if h.Selector == nil {
		notConfigured(c, "selector")
		return
	}
	var req carousel.ChooseRequest
	if !bind(c, &req) {
		return
	}

	res, err := h.Selector.Choose(c.Request.Context(), req)
	if err != nil {
		var ce *carousel.CollisionError
		if errors.As(err, &ce) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error":     err.Error(),
				"code":      "collision",
				"collision": ce.Record,
			})
			return
		}
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"selectedNumber":   res.SelectedNumber,
		"reason":           res.Reason,
		"healthScore":      res.SelectedNumber.HealthScore,
		"assignmentId":     res.AssignmentID,
		"collisionWarning": res.CollisionWarning,
		"metadata":         res.Metadata,
	})
}

// ListPool returns the active pool with usage, quality and status.
func (h Handlers) ListPool(c *gin.Context) {
	if h.Selector == nil {
		notConfigured(c, "selector")
		return
	}
	ov, err := h.Selector.PoolOverview(c.Request.Context())
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"numbers":     ov.Numbers,
		"lastUpdated": ov.LastUpdated,
	})
}

type provisionRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Carrier     string `json:"carrier"`
	Region      string `json:"region"`
}

func (h Handlers) ProvisionNumber(c *gin.Context) {
	if h.Numbers == nil {
		notConfigured(c, "number directory")
		return
	}
	var req provisionRequest
	if !bind(c, &req) {
		return
	}

	n, err := h.Numbers.Provision(c.Request.Context(), numbers.ProvisionInput{
		PhoneNumber: req.PhoneNumber,
		Carrier:     req.Carrier,
		Region:      req.Region,
	})
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "number": n})
}

func (h Handlers) DeactivateNumber(c *gin.Context) {
	if h.Numbers == nil {
		notConfigured(c, "number directory")
		return
	}
	if err := h.Numbers.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type collisionCheckRequest struct {
	ContactID string `json:"contactId"`
	AgentID   string `json:"agentId"`
}

func (h Handlers) CheckCollision(c *gin.Context) {
	if h.Collisions == nil {
		notConfigured(c, "collision detector")
		return
	}
	var req collisionCheckRequest
	if !bind(c, &req) {
		return
	}

	res, err := h.Collisions.Check(c.Request.Context(), req.ContactID, req.AgentID)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"collision":       res.Collision,
		"contact":         res.Contact,
		"recommendations": res.Recommendations,
	})
}

// CheckPhone validates an Australian number, scores its answer rate and,
// when the pool has numbers, suggests a caller ID for dialing it.
func (h Handlers) CheckPhone(c *gin.Context) {
	number := strings.TrimSpace(c.Query("number"))
	if number == "" {
		apierr.Respond(c, domain.Validation("number required"))
		return
	}

	info := phone.Validate(number)
	body := gin.H{
		"success":    true,
		"validation": info,
		"answerRate": phone.AnalyzeAnswerRate(number),
	}
	if info.Valid && h.Numbers != nil {
		pool, err := h.Numbers.ListActive(c.Request.Context(), numbers.Filter{})
		if err != nil {
			apierr.Respond(c, err)
			return
		}
		if s, err := phone.SuggestCallerID(number, pool, h.now()); err == nil {
			body["suggestion"] = s
		}
	}
	c.JSON(http.StatusOK, body)
}

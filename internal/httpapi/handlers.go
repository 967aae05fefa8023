// Package httpapi exposes the carousel, quality and coaching services over
// HTTP. Handlers stay thin: parse, call a service, write JSON.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/oakmontrealty/voicrm-sydney/internal/apierr"
	"github.com/oakmontrealty/voicrm-sydney/internal/carousel"
	"github.com/oakmontrealty/voicrm-sydney/internal/coaching"
	"github.com/oakmontrealty/voicrm-sydney/internal/collision"
	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/internal/numbers"
	"github.com/oakmontrealty/voicrm-sydney/internal/quality"
	"github.com/oakmontrealty/voicrm-sydney/internal/telephony"
	"github.com/oakmontrealty/voicrm-sydney/internal/transcribe"
	"github.com/oakmontrealty/voicrm-sydney/pkg/logger"
)

const healthTimeout = 2 * time.Second

// HealthCheck is one dependency probed by /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handlers groups HTTP handlers for dependency injection.
type Handlers struct {
	Selector    *carousel.Selector
	Numbers     *numbers.Directory
	Collisions  *collision.Detector
	Quality     *quality.Service
	Coach       *coaching.Coach
	Streams     *telephony.StreamProcessor
	Transcripts transcribe.Repository
	Tokens      *telephony.TokenIssuer
	Checks      []HealthCheck

	Now func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// bind decodes a JSON body, reporting malformed input as a validation error.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		logger.FromGin(c).Debug("invalid json body", zap.Error(err))
		apierr.Respond(c, domain.Validation("invalid json"))
		return false
	}
	return true
}

func notConfigured(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": what + " not configured", "code": "not_configured"})
}

// Health pings each dependency and reports the first failure.
func (h Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	for _, chk := range h.Checks {
		if err := chk.Check(ctx); err != nil {
			logger.FromGin(c).Warn("health check failed", zap.String("dependency", chk.Name), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "dependency": chk.Name})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

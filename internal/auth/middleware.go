package auth

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/oakmontrealty/voicrm-sydney/internal/apierr"
	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/pkg/logger"
)

var (
	errNoBearer     = domain.Classify(domain.ErrUnauthenticated, errorString("missing bearer token"))
	errInvalidToken = domain.Classify(domain.ErrUnauthenticated, errorString("invalid token"))
)

// RequireAccessToken puts the caller's Identity on the request context.
// Role gates live in internal/rbac.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			apierr.Respond(c, errNoBearer)
			return
		}
		claims, err := m.Verify(raw, KindAccess, time.Now())
		if err != nil {
			logger.FromGin(c).Debug("access token rejected", zap.Error(err))
			apierr.Respond(c, errInvalidToken)
			return
		}

		id := claims.Identity()
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id.AgentID, id.Role))
		c.Set("agent_id", id.AgentID)
		c.Next()
	}
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

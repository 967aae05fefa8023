package rbac

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/oakmontrealty/voicrm-sydney/internal/apierr"
	"github.com/oakmontrealty/voicrm-sydney/internal/auth"
	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
)

// RequireAnyRole lets the request through when the agent's role is one of
// allowed. Admins pass every gate.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	set := make(map[string]bool, len(allowed))
	for _, r := range allowed {
		set[r] = true
	}

	return func(c *gin.Context) {
		id, err := auth.FromContext(c.Request.Context())
		if err != nil {
			apierr.Respond(c, err)
			return
		}
		if !IsAdmin(id.Role) && !set[id.Role] {
			apierr.Respond(c, fmt.Errorf("%w: role %q", domain.ErrForbidden, id.Role))
			return
		}
		c.Next()
	}
}

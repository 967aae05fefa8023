package auth

import (
	"context"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
)

// Identity is the authenticated agent behind a request.
type Identity struct {
	AgentID string
	Role    string
}

type identityKey struct{}

var errNoIdentity = domain.Classify(domain.ErrUnauthenticated, errorString("no agent identity on request"))

func WithIdentity(ctx context.Context, agentID, role string) context.Context {
	return context.WithValue(ctx, identityKey{}, Identity{AgentID: agentID, Role: role})
}

// FromContext returns the agent set by RequireAccessToken. The error is
// classified as domain.ErrUnauthenticated.
func FromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.AgentID == "" {
		return Identity{}, errNoIdentity
	}
	return id, nil
}

type errorString string

func (e errorString) Error() string { return string(e) }

package telephony

import (
	"context"

	"github.com/oakmontrealty/voicrm-sydney/internal/quality"
)

// Provider is the telephony collaborator used by business logic.
//
// Rules:
// - No provider API calls outside telephony adapters.
// - Numbers crossing this boundary are E.164.
type Provider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	// Connect places an outbound call from a carousel number to a destination.
	Connect(ctx context.Context, req ConnectRequest) (CallHandle, error)

	// CallStats reports live quality figures for a call in progress.
	CallStats(ctx context.Context, callSid string) (quality.RawStats, error)
}

type ConnectRequest struct {
	To   string `json:"to"`
	From string `json:"from"`

	// StatusCallback overrides the configured status webhook URL.
	StatusCallback string `json:"status_callback,omitempty"`
}

// CallHandle identifies a call accepted by the provider.
type CallHandle struct {
	CallSid string `json:"call_sid"`
	Status  string `json:"status"`
	To      string `json:"to"`
	From    string `json:"from"`
}

// ProviderError is a non-2xx reply from a provider API.
type ProviderError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return "telephony provider error"
	}
	return "telephony provider error: " + e.Message
}

// Transient reports whether a retry could succeed.
func (e *ProviderError) Transient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

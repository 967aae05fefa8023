package telephony

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/oakmontrealty/voicrm-sydney/internal/config"
	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
)

const accessTokenContentType = "twilio-fpa;v=1"

type voiceOutgoing struct {
	ApplicationSID string `json:"application_sid"`
}

type voiceIncoming struct {
	Allow bool `json:"allow"`
}

type voiceGrant struct {
	Outgoing voiceOutgoing `json:"outgoing"`
	Incoming voiceIncoming `json:"incoming"`
}

type accessGrants struct {
	Identity string     `json:"identity"`
	Voice    voiceGrant `json:"voice"`
}

type accessClaims struct {
	jwt.RegisteredClaims
	Grants accessGrants `json:"grants"`
}

// VoiceToken is a browser softphone credential.
type VoiceToken struct {
	Token    string    `json:"token"`
	Identity string    `json:"identity"`
	Expires  time.Time `json:"expires"`
}

// TokenIssuer mints Twilio access tokens carrying a voice grant for the
// configured TwiML app.
type TokenIssuer struct {
	accountSID string
	apiKey     string
	apiSecret  []byte
	appSID     string
	ttl        time.Duration
}

func NewTokenIssuer(cfg config.TwilioConfig) (*TokenIssuer, error) {
	if cfg.AccountSID == "" || cfg.APIKey == "" || cfg.APISecret == "" || cfg.TwiMLAppSID == "" {
		return nil, eris.New("twilio: account sid, api key, api secret and twiml app sid are required for tokens")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{
		accountSID: cfg.AccountSID,
		apiKey:     cfg.APIKey,
		apiSecret:  []byte(cfg.APISecret),
		appSID:     cfg.TwiMLAppSID,
		ttl:        ttl,
	}, nil
}

func (i *TokenIssuer) Issue(identity string, now time.Time) (VoiceToken, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return VoiceToken{}, domain.Validation("identity required")
	}
	exp := now.Add(i.ttl)
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        i.apiKey + "-" + uuid.NewString(),
			Issuer:    i.apiKey,
			Subject:   i.accountSID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Grants: accessGrants{
			Identity: identity,
			Voice: voiceGrant{
				Outgoing: voiceOutgoing{ApplicationSID: i.appSID},
				Incoming: voiceIncoming{Allow: true},
			},
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t.Header["cty"] = accessTokenContentType
	signed, err := t.SignedString(i.apiSecret)
	if err != nil {
		return VoiceToken{}, eris.Wrap(err, "sign voice token")
	}
	return VoiceToken{Token: signed, Identity: identity, Expires: exp.UTC()}, nil
}

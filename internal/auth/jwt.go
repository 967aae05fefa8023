package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/oakmontrealty/voicrm-sydney/internal/config"
	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
)

const clockSkew = 30 * time.Second

var (
	ErrWrongKind    = eris.New("unexpected token kind")
	ErrNoSubject    = eris.New("token has no subject")
	ErrNoRole       = eris.New("access token has no role")
	ErrNoSigningKey = eris.New("JWT_SECRET is required")
)

// Manager signs and verifies HS256 dashboard tokens.
type Manager struct {
	key      []byte
	issuer   string
	audience string
	ttl      map[TokenKind]time.Duration
	parser   *jwt.Parser
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, ErrNoSigningKey
	}
	return &Manager{
		key:      []byte(cfg.JWTSecret),
		issuer:   cfg.JWTIssuer,
		audience: cfg.JWTAudience,
		ttl: map[TokenKind]time.Duration{
			KindAccess:  cfg.AccessTokenTTL,
			KindRefresh: cfg.RefreshTokenTTL,
		},
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// Session is what an agent's dashboard holds: a short access token and a
// role-less refresh token.
type Session struct {
	AccessToken   string    `json:"accessToken"`
	RefreshToken  string    `json:"refreshToken"`
	AccessExpires time.Time `json:"accessExpires"`
}

func (m *Manager) Issue(now time.Time, id Identity) (Session, error) {
	if id.AgentID == "" || id.Role == "" {
		return Session{}, domain.Validation("agent id and role required")
	}
	access, err := m.sign(now, KindAccess, id.AgentID, id.Role)
	if err != nil {
		return Session{}, err
	}
	refresh, err := m.sign(now, KindRefresh, id.AgentID, "")
	if err != nil {
		return Session{}, err
	}
	return Session{
		AccessToken:   access,
		RefreshToken:  refresh,
		AccessExpires: now.Add(m.ttl[KindAccess]),
	}, nil
}

// Verify parses raw and checks its registered claims against now. Every
// failure is classified as domain.ErrUnauthenticated.
func (m *Manager) Verify(raw string, kind TokenKind, now time.Time) (Claims, error) {
	var c Claims
	if _, err := m.parser.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) { return m.key, nil }); err != nil {
		return Claims{}, unauthenticated(eris.Wrap(err, "parse token"))
	}
	if err := m.validator(now).Validate(c.RegisteredClaims); err != nil {
		return Claims{}, unauthenticated(eris.Wrap(err, "validate claims"))
	}

	switch {
	case c.Kind != kind:
		return Claims{}, unauthenticated(ErrWrongKind)
	case c.Subject == "":
		return Claims{}, unauthenticated(ErrNoSubject)
	case kind == KindAccess && c.Role == "":
		return Claims{}, unauthenticated(ErrNoRole)
	}
	return c, nil
}

func (m *Manager) validator(now time.Time) *jwt.Validator {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(clockSkew),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}
	return jwt.NewValidator(opts...)
}

func (m *Manager) sign(now time.Time, kind TokenKind, agentID, role string) (string, error) {
	rc := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   agentID,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl[kind])),
	}
	if m.audience != "" {
		rc.Audience = jwt.ClaimStrings{m.audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: rc, Role: role, Kind: kind}).SignedString(m.key)
	if err != nil {
		return "", eris.Wrapf(err, "sign %s token", kind)
	}
	return signed, nil
}

func unauthenticated(err error) error {
	return domain.Classify(domain.ErrUnauthenticated, err)
}

package auth

import "github.com/golang-jwt/jwt/v5"

type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Claims on dashboard tokens. The subject is the agent's profile id, the
// same id carried on assignments, call logs and interactions.
type Claims struct {
	jwt.RegisteredClaims

	Role string    `json:"role,omitempty"`
	Kind TokenKind `json:"kind"`
}

func (c Claims) Identity() Identity {
	return Identity{AgentID: c.Subject, Role: c.Role}
}

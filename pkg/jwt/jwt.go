package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// IsAdmin reports whether the role carries admin privileges.
func (r Role) IsAdmin() bool { return r == RoleAdmin || r == RoleSuperAdmin }

// Claims extends jwt.RegisteredClaims with the actor role supplied by the
// identity service.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// Manager validates HS256 actor tokens issued by the identity service.
// The signing key is shared with that service; this module never issues
// tokens in production, only Validate is on the request path (Issue
// exists for service-local tooling and tests).
type Manager struct {
	signingKey []byte
	issuer     string
	tokenTTL   time.Duration
}

func NewManager(signingKey string, issuer string, tokenTTL time.Duration) *Manager {
	return &Manager{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		tokenTTL:   tokenTTL,
	}
}

// Issue creates a signed actor token for a given node ID and role.
func (m *Manager) Issue(actorID uuid.UUID, role Role) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   actorID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
			ID:        uuid.New().String(),
		},
		Role: role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.signingKey)
}

// Validate parses and validates a token string, returning claims.
func (m *Manager) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.signingKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.Issuer != m.issuer {
		return nil, errors.New("invalid issuer")
	}

	return claims, nil
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Role string

const (
	RoleNone  Role = "none"
	RoleBooth Role = "booth"
	RoleAdmin Role = "admin"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is the caller as resolved from a session. Booth is set only for
// booth sessions.
type Identity struct {
	Role  Role   `json:"role"`
	Booth string `json:"booth,omitempty"`
}

func Anonymous() Identity {
	return Identity{Role: RoleNone}
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }
func (i Identity) IsBooth() bool { return i.Role == RoleBooth && i.Booth != "" }

// Actor names the identity in audit rows and logs.
func (i Identity) Actor() string {
	switch {
	case i.IsAdmin():
		return "admin"
	case i.IsBooth():
		return "booth:" + i.Booth
	default:
		return "anonymous"
	}
}

type Claims struct {
	Role  Role   `json:"role"`
	Booth string `json:"booth,omitempty"`
	jwt.RegisteredClaims
}

func (c Claims) Identity() Identity {
	return Identity{Role: c.Role, Booth: c.Booth}
}

// GenerateToken issues an HS256 session token for identity. Each token gets a
// random jti so it can be revoked on logout.
func GenerateToken(secret string, identity Identity, ttl time.Duration) (string, Claims, error) {
	now := time.Now()
	claims := Claims{
		Role:  identity.Role,
		Booth: identity.Booth,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

func ParseToken(secret, tokenString string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	switch claims.Role {
	case RoleAdmin:
	case RoleBooth:
		if claims.Booth == "" {
			return Claims{}, ErrInvalidToken
		}
	default:
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

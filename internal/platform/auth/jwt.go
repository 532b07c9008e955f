package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrTokenExpired signals that the bearer token has expired.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals that the bearer token failed verification.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Claims is the JWT claim set issued for storefront and admin principals.
type Claims struct {
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 bearer tokens issued by the identity service.
type JWTVerifier struct {
	secret []byte
	issuer string
}

// NewJWTVerifier constructs a verifier for the shared signing secret.
func NewJWTVerifier(secret, issuer string) (*JWTVerifier, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	return &JWTVerifier{
		secret: []byte(trimmed),
		issuer: strings.TrimSpace(issuer),
	}, nil
}

// Verify parses and validates the token, returning the resolved identity.
func (v *JWTVerifier) Verify(tokenStr string) (*Identity, error) {
	if v == nil {
		return nil, ErrTokenInvalid
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	if v.issuer != "" && !strings.EqualFold(strings.TrimSpace(claims.Issuer), v.issuer) {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrTokenInvalid)
	}

	uid := strings.TrimSpace(claims.Subject)
	if uid == "" {
		return nil, fmt.Errorf("%w: subject missing", ErrTokenInvalid)
	}

	return &Identity{
		UID:   uid,
		Email: strings.TrimSpace(claims.Email),
		Roles: normaliseRoles(claims.Roles),
	}, nil
}

// Issue signs a token for the given identity. Used by local tooling and tests;
// production tokens come from the identity service sharing the same secret.
func (v *JWTVerifier) Issue(identity Identity, ttl time.Duration, now time.Time) (string, error) {
	if v == nil {
		return "", errors.New("auth: verifier not initialised")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	claims := Claims{
		Email: identity.Email,
		Roles: normaliseRoles(identity.Roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.TrimSpace(identity.UID),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

func normaliseRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}

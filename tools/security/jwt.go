package security

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"lchat/tools/errs"
)

// AccessClaims is the access token payload the gateway cares about.
type AccessClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// VerifyAccessToken validates a handshake token and returns the user id.
// Failures map onto the protocol's authentication errors: no token, expired
// token, or anything else (bad signature, malformed, wrong alg) invalid.
func VerifyAccessToken(token, secret string) (string, error) {
	if token == "" {
		return "", &errs.ErrNoToken
	}
	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	switch {
	case err == nil && parsed.Valid:
		if claims.UserID == "" {
			return "", &errs.ErrInvalidToken
		}
		return claims.UserID, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", &errs.ErrTokenExpired
	default:
		return "", &errs.ErrInvalidToken
	}
}

// Package auth issues and reads the session tokens that scope remote record
// operations to an owner. A token is an HS256 JWT whose subject is the
// owner id and whose "tier" claim carries the subscription tier.
//
// The record service verifies signatures with the shared secret; the client
// only needs the claims and reads them without verification.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/quotekeeper/internal/common"
)

// Subscription tiers.
const (
	TierFree = "free"
	TierPro  = "pro"
	TierTeam = "team"
)

// ErrTokenExpired is wrapped together with common.ErrInvalidToken.
var ErrTokenExpired = errors.New("token expired")

// Claims are the registered claims plus the owner's tier.
type Claims struct {
	jwt.RegisteredClaims
	Tier string `json:"tier,omitempty"`
}

// OwnerID is the token subject.
func (c *Claims) OwnerID() string { return c.Subject }

// GenerateToken signs a token for ownerID valid for validity from now.
func GenerateToken(ownerID, tier string, secretKey []byte, validity time.Duration, now time.Time) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("%w: empty owner", common.ErrInvalidToken)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		Tier: tier,
	})
	return token.SignedString(secretKey)
}

// VerifyToken checks signature and expiry at now and returns the claims.
func VerifyToken(tokenString string, secretKey []byte, now time.Time) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return secretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// ParseUnverified reads the claims without checking the signature. Expiry
// is still enforced against now.
func ParseUnverified(tokenString string, now time.Time) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: no subject", common.ErrInvalidToken)
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, ErrTokenExpired)
	}
	return claims, nil
}

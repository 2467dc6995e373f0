// Package auth validates access tokens issued by the Cartify auth service.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cartify/cartify/pkg/middleware"
)

// Claims represents the JWT claims for an access token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTValidator checks HS256 access tokens signed with the shared secret.
type JWTValidator struct {
	secret []byte
}

// NewJWTValidator creates a validator for tokens signed with secret.
func NewJWTValidator(secret string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret)}
}

// ValidateAccessToken parses and validates an access token, returning the claims.
func (v *JWTValidator) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid access token claims")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("access token has no user_id")
	}

	return claims, nil
}

// Middleware adapts the validator to middleware.Auth.
func (v *JWTValidator) Middleware(token string) (*middleware.Claims, error) {
	claims, err := v.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	return &middleware.Claims{OwnerID: claims.UserID, Role: claims.Role}, nil
}

// SignAccessToken creates an HS256 token for userID. Used by tests and local tooling.
func SignAccessToken(secret, userID, role string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "auth-service",
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

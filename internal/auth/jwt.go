// Package auth issues and validates the JWT tokens that protect the API.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Values of the typ claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Token lifetimes.
const (
	AccessTokenExpiry  = 15 * time.Minute
	RefreshTokenExpiry = 7 * 24 * time.Hour
)

// DefaultLeeway absorbs small clock skew between issuer and validator.
const DefaultLeeway = 30 * time.Second

var (
	// ErrInvalidToken is returned when a token fails validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when a token is past its expiry.
	ErrExpiredToken = errors.New("token has expired")

	// ErrEmptyUserID is returned when a token is requested for no user.
	ErrEmptyUserID = errors.New("userID cannot be empty")
)

// Claims is the token payload. The user ID travels in the registered
// Subject claim; Type distinguishes access from refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"`
}

// JWTService signs and validates tokens. Signing always uses
// currentSecret; validation additionally accepts previousSecret when set,
// which allows rotating secrets without invalidating live sessions.
type JWTService struct {
	currentSecret  []byte
	previousSecret []byte
	leeway         time.Duration
}

// NewJWTService builds a single-secret service with the default leeway.
func NewJWTService(secret string) *JWTService {
	return NewJWTServiceWithRotationAndLeeway(secret, "", DefaultLeeway)
}

// NewJWTServiceWithLeeway builds a single-secret service with custom leeway.
func NewJWTServiceWithLeeway(secret string, leeway time.Duration) *JWTService {
	return NewJWTServiceWithRotationAndLeeway(secret, "", leeway)
}

// NewJWTServiceWithRotation builds a dual-secret service for zero-downtime
// rotation. Pass an empty previousSecret when no rotation is in progress.
func NewJWTServiceWithRotation(currentSecret, previousSecret string) *JWTService {
	return NewJWTServiceWithRotationAndLeeway(currentSecret, previousSecret, DefaultLeeway)
}

// NewJWTServiceWithRotationAndLeeway builds a dual-secret service with
// custom leeway.
func NewJWTServiceWithRotationAndLeeway(currentSecret, previousSecret string, leeway time.Duration) *JWTService {
	svc := &JWTService{
		currentSecret: []byte(currentSecret),
		leeway:        leeway,
	}
	if previousSecret != "" {
		svc.previousSecret = []byte(previousSecret)
	}
	return svc
}

// GenerateAccessToken signs a short-lived access token for userID.
func (s *JWTService) GenerateAccessToken(userID string) (string, error) {
	return s.generate(userID, TokenTypeAccess, AccessTokenExpiry)
}

// GenerateRefreshToken signs a long-lived refresh token for userID.
func (s *JWTService) GenerateRefreshToken(userID string) (string, error) {
	return s.generate(userID, TokenTypeRefresh, RefreshTokenExpiry)
}

func (s *JWTService) generate(userID, typ string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type: typ,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.currentSecret)
}

// ValidateToken parses tokenString and returns its claims. The current
// secret is tried first, then the previous one when rotation is active.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := s.parseWith(tokenString, s.currentSecret)
	if err == nil {
		return claims, nil
	}

	if s.previousSecret != nil {
		var prevErr error
		if claims, prevErr = s.parseWith(tokenString, s.previousSecret); prevErr == nil {
			return claims, nil
		}
		// The previous-secret failure is the more specific one: a token
		// signed with the old key that merely expired should surface as
		// expired, not invalid.
		err = prevErr
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	return nil, ErrInvalidToken
}

func (s *JWTService) parseWith(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Only HS256 is accepted, whatever the token header claims.
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithLeeway(s.leeway))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

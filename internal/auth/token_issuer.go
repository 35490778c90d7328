package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

var (
	// ErrMissingToken indicates no credential was supplied.
	ErrMissingToken = errors.New("auth: token required")
	// ErrInvalidToken indicates the credential is malformed or badly signed.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrExpiredToken indicates the credential is past its expiry.
	ErrExpiredToken = errors.New("auth: token expired")

	errMissingSigningSecret = errors.New("auth: signing secret must be provided")
	errMissingSubject       = errors.New("auth: subject claim must be provided")
)

// AccessClaims is the payload embedded in access tokens.
type AccessClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuerConfig configures access and refresh token issuance.
type TokenIssuerConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Clock         func() time.Time
}

// TokenIssuer issues and validates the HS256 token pair used by the API
// and the realtime handshake.
type TokenIssuer struct {
	config TokenIssuerConfig
	clock  func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer with sane defaults.
func NewTokenIssuer(cfg TokenIssuerConfig) *TokenIssuer {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTokenTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	cfg.Clock = clock
	return &TokenIssuer{config: cfg, clock: clock}
}

// IssueAccessToken produces a signed access token and its expiry in seconds.
func (i *TokenIssuer) IssueAccessToken(userID, role string) (string, int64, error) {
	if len(i.config.AccessSecret) == 0 {
		return "", 0, errMissingSigningSecret
	}
	if strings.TrimSpace(userID) == "" {
		return "", 0, errMissingSubject
	}

	now := i.clock().UTC()
	expiresAt := now.Add(i.config.AccessTTL)

	claims := AccessClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.config.Issuer,
			Audience:  []string{i.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.config.AccessSecret)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(i.config.AccessTTL.Seconds()), nil
}

// IssueRefreshToken produces a signed refresh token for the subject.
func (i *TokenIssuer) IssueRefreshToken(userID string) (string, error) {
	if len(i.config.RefreshSecret) == 0 {
		return "", errMissingSigningSecret
	}
	if strings.TrimSpace(userID) == "" {
		return "", errMissingSubject
	}

	now := i.clock().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    i.config.Issuer,
		Audience:  []string{i.config.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.config.RefreshTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.config.RefreshSecret)
}

// ValidateAccessToken parses the supplied access token and returns its claims.
func (i *TokenIssuer) ValidateAccessToken(tokenString string) (AccessClaims, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return AccessClaims{}, ErrMissingToken
	}

	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidToken, t.Method.Alg())
			}
			return i.config.AccessSecret, nil
		},
		jwt.WithAudience(i.config.Audience),
		jwt.WithIssuer(i.config.Issuer),
		jwt.WithTimeFunc(i.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return AccessClaims{}, ErrExpiredToken
		}
		return AccessClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if parsed == nil || !parsed.Valid {
		return AccessClaims{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return AccessClaims{}, ErrInvalidToken
	}
	return *claims, nil
}

// ValidateRefreshToken parses the supplied refresh token and returns its subject.
func (i *TokenIssuer) ValidateRefreshToken(tokenString string) (string, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return "", ErrMissingToken
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidToken, t.Method.Alg())
			}
			return i.config.RefreshSecret, nil
		},
		jwt.WithAudience(i.config.Audience),
		jwt.WithIssuer(i.config.Issuer),
		jwt.WithTimeFunc(i.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RefreshTokenPurpose marks a JWT as a refresh credential. Access tokens
// never carry the claim, so the two kinds cannot be swapped for each other.
const RefreshTokenPurpose = "refresh"

var (
	ErrTokenExpired   = errors.New("security: token expired")
	ErrTokenInvalid   = errors.New("security: token invalid")
	ErrWrongTokenKind = errors.New("security: wrong token kind")
)

// AccessTokenClaims is the payload embedded in short lived access tokens.
type AccessTokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshTokenClaims is the payload embedded in refresh tokens.
type RefreshTokenClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenSigner signs and verifies HS256 tokens. Access and refresh tokens
// use independent secrets so a leaked verification key for one kind does
// not compromise the other.
type TokenSigner struct {
	accessSecret  []byte
	refreshSecret []byte
}

func NewTokenSigner(accessSecret, refreshSecret string) (*TokenSigner, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("security: token secrets must not be empty")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("security: access and refresh secrets must differ")
	}

	return &TokenSigner{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
	}, nil
}

// SignAccessToken issues an access token for the identity.
func (s *TokenSigner) SignAccessToken(identityID, email, role string, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := AccessTokenClaims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
	if err != nil {
		return "", fmt.Errorf("security: sign access token: %w", err)
	}
	return signed, nil
}

// SignRefreshToken issues a refresh token for the identity.
func (s *TokenSigner) SignRefreshToken(identityID string, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := RefreshTokenClaims{
		Purpose: RefreshTokenPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("security: sign refresh token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature and expiry of an access token and
// returns its claims. Expired tokens map to ErrTokenExpired, everything
// else that fails verification maps to ErrTokenInvalid.
func (s *TokenSigner) ParseAccessToken(token string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	if err := s.parse(token, claims, s.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRefreshToken verifies signature and expiry of a refresh token and
// returns its claims. Tokens missing the refresh purpose claim are
// rejected with ErrWrongTokenKind.
func (s *TokenSigner) ParseRefreshToken(token string) (*RefreshTokenClaims, error) {
	claims := &RefreshTokenClaims{}
	if err := s.parse(token, claims, s.refreshSecret); err != nil {
		return nil, err
	}
	if claims.Purpose != RefreshTokenPurpose {
		return nil, ErrWrongTokenKind
	}
	return claims, nil
}

func (s *TokenSigner) parse(token string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if !parsed.Valid {
		return ErrTokenInvalid
	}
	return nil
}

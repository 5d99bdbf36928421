package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
)

const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Claims are the registered JWT claims plus the token kind. The subject is
// the user ID.
type Claims struct {
	jwt.RegisteredClaims
	Kind string `json:"kind"`
}

// TokenService issues and validates HS256 access and refresh tokens.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (s *TokenService) IssueAccessToken(subject string) (string, error) {
	return s.issue(subject, KindAccess, s.accessTTL)
}

func (s *TokenService) IssueRefreshToken(subject string) (string, error) {
	return s.issue(subject, KindRefresh, s.refreshTTL)
}

func (s *TokenService) issue(subject, kind string, ttl time.Duration) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind: kind,
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Validate checks signature, algorithm and expiry and returns the claims.
// Expired tokens yield common.ErrTokenExpired, everything else
// common.ErrInvalidToken.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// ValidateAccessToken validates tokenString and additionally requires it to
// be an access token. It returns the subject.
func (s *TokenService) ValidateAccessToken(tokenString string) (string, error) {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return "", err
	}
	if claims.Kind != KindAccess {
		return "", common.ErrInvalidToken
	}
	return claims.Subject, nil
}

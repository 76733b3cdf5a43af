package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

type Identity struct {
	UserID      int64
	DisplayName string
}

// IdentityVerifier authenticates a connection credential before any chat
// logic runs.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

type JWTClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type jwtVerifier struct {
	log    *logger.Logger
	secret []byte
	leeway time.Duration
}

func NewJWTVerifier(log *logger.Logger, secret string) (IdentityVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("missing jwt secret")
	}
	return &jwtVerifier{
		log:    log.With("service", "JWTVerifier"),
		secret: []byte(secret),
		leeway: 30 * time.Second,
	}, nil
}

func (v *jwtVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("missing token")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	)
	claims := &JWTClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}
	userID, err := strconv.ParseInt(strings.TrimSpace(claims.Subject), 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("invalid user id in token")
	}
	return &Identity{UserID: userID, DisplayName: strings.TrimSpace(claims.Name)}, nil
}

// IssueToken signs an HS256 access token. Production tokens come from the
// account service; this exists for local tooling and tests.
func IssueToken(secret string, userID int64, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	pkgerrors "github.com/tesla-ce/trust-backend/internal/pkg/errors"
	"github.com/tesla-ce/trust-backend/internal/repos"
	"github.com/tesla-ce/trust-backend/internal/types"
)

// Token scopes. VLE tokens drive the assessment API (activities, requests,
// reports); provider tokens drive the provider API (results, validations,
// models, notifications).
const (
	ScopeVLE      = "vle"
	ScopeProvider = "provider"
)

// AuthClaims is the JWT payload. Subject carries the provider id for provider
// tokens and the VLE name for VLE tokens.
type AuthClaims struct {
	jwt.RegisteredClaims
	Scope   string `json:"scope"`
	Acronym string `json:"acronym,omitempty"`
}

// ProviderID returns the provider id of a provider-scoped token.
func (c *AuthClaims) ProviderID() (uuid.UUID, error) {
	if c.Scope != ScopeProvider {
		return uuid.Nil, fmt.Errorf("%w: token scope %q is not a provider token", pkgerrors.ErrUnauthorized, c.Scope)
	}
	return uuid.Parse(c.Subject)
}

type AuthService interface {
	LoginProvider(ctx context.Context, acronym, secret string) (string, *types.Provider, error)
	LoginVLE(ctx context.Context, name, secret string) (string, error)
	VerifyToken(ctx context.Context, tokenString string) (*AuthClaims, error)
	HashSecret(secret string) (string, error)
	GetAccessTTL() time.Duration
}

type authService struct {
	db            *gorm.DB
	log           *logger.Logger
	providers     repos.ProviderRepo
	jwtSecretKey  string
	vleSecretHash string
	accessTTL     time.Duration
}

func NewAuthService(
	db *gorm.DB,
	log *logger.Logger,
	providers repos.ProviderRepo,
	jwtSecretKey string,
	vleSecretHash string,
	accessTTL time.Duration,
) AuthService {
	return &authService{
		db:            db,
		log:           log.With("service", "AuthService"),
		providers:     providers,
		jwtSecretKey:  jwtSecretKey,
		vleSecretHash: vleSecretHash,
		accessTTL:     accessTTL,
	}
}

func (s *authService) LoginProvider(ctx context.Context, acronym, secret string) (string, *types.Provider, error) {
	provider, err := s.providers.GetByAcronym(ctx, nil, acronym)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load provider by acronym: %w", err)
	}
	if provider == nil || !provider.Enabled || provider.SecretHash == "" {
		return "", nil, fmt.Errorf("%w: unknown provider", pkgerrors.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(provider.SecretHash), []byte(secret)); err != nil {
		s.log.Warn("Provider login with bad secret", "acronym", acronym)
		return "", nil, fmt.Errorf("%w: invalid secret", pkgerrors.ErrUnauthorized)
	}
	token, err := s.signToken(AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   provider.ID.String(),
			ExpiresAt: jwt.NewNumericDate(timeNow().Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(timeNow()),
		},
		Scope:   ScopeProvider,
		Acronym: provider.Acronym,
	})
	if err != nil {
		return "", nil, err
	}
	return token, provider, nil
}

func (s *authService) LoginVLE(ctx context.Context, name, secret string) (string, error) {
	if s.vleSecretHash == "" {
		return "", fmt.Errorf("%w: vle login is not configured", pkgerrors.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.vleSecretHash), []byte(secret)); err != nil {
		s.log.Warn("VLE login with bad secret", "vle", name)
		return "", fmt.Errorf("%w: invalid secret", pkgerrors.ErrUnauthorized)
	}
	return s.signToken(AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   name,
			ExpiresAt: jwt.NewNumericDate(timeNow().Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(timeNow()),
		},
		Scope: ScopeVLE,
	})
}

func (s *authService) VerifyToken(ctx context.Context, tokenString string) (*AuthClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.jwtSecretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*AuthClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid token", pkgerrors.ErrUnauthorized)
	}
	return claims, nil
}

func (s *authService) HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *authService) GetAccessTTL() time.Duration {
	return s.accessTTL
}

func (s *authService) signToken(claims AuthClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecretKey))
}

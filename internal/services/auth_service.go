package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"storycraft/internal/common"
	"storycraft/internal/config"
	"storycraft/internal/models"
	"storycraft/internal/repositories"

	"github.com/dgrijalva/jwt-go"
)

// DefaultTokenTTL is used by IssueToken when no positive lifetime is given.
const DefaultTokenTTL = 15 * time.Minute

// AuthService handles registration, login and bearer token verification.
type AuthService struct {
	userRepo      repositories.UserRepository
	jwtSecret     []byte
	signingMethod jwt.SigningMethod
	tokenDurat    time.Duration // lifetime of tokens issued by LoginUser
}

// NewAuthService creates a new AuthService. Only HMAC algorithms are accepted.
func NewAuthService(userRepo repositories.UserRepository, cfg config.JWTConfig) (*AuthService, error) {
	method, ok := jwt.GetSigningMethod(cfg.Algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	if cfg.Secret == "" {
		return nil, errors.New("signing secret must not be empty")
	}

	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	return &AuthService{
		userRepo:      userRepo,
		jwtSecret:     []byte(cfg.Secret),
		signingMethod: method,
		tokenDurat:    ttl,
	}, nil
}

// RegisterUser creates an active user with a hashed password.
func (s *AuthService) RegisterUser(ctx context.Context, email, password string) (*models.User, error) {
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, fmt.Errorf("email '%s': %w", email, common.ErrDuplicateEmail)
	}
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:          email,
		HashedPassword: hashed,
		IsActive:       true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, common.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	user.Stories = []models.Story{}
	return user, nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// burnPasswordCheck spends the same bcrypt work as a real comparison so an
// unknown email takes as long to reject as a wrong password.
func burnPasswordCheck(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = HashPassword("storycraft-dummy-password")
	})
	VerifyPassword(password, dummyHash)
}

// LoginUser checks email and password and returns a signed access token.
// Unknown emails and wrong passwords both yield common.ErrInvalidCredentials.
func (s *AuthService) LoginUser(ctx context.Context, email, password string) (string, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			burnPasswordCheck(password)
			return "", common.ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	if !VerifyPassword(password, user.HashedPassword) {
		return "", common.ErrInvalidCredentials
	}

	return s.IssueToken(user.Email, s.tokenDurat)
}

// IssueToken signs a token for email that expires ttl from now.
// A non-positive ttl falls back to DefaultTokenTTL.
func (s *AuthService) IssueToken(email string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := jwt.TimeFunc()

	token := jwt.NewWithClaims(s.signingMethod, jwt.StandardClaims{
		Subject:   email,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// VerifyToken checks signature, algorithm and expiry of tokenString and
// loads the user named by its subject. Every failure is common.ErrInvalidCredentials
// except storage errors, which are returned wrapped.
func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*models.User, error) {
	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != s.signingMethod.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		log.Printf("Token validation error: %v", err)
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidCredentials, err)
	}
	if !token.Valid {
		return nil, common.ErrInvalidCredentials
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", common.ErrInvalidCredentials)
	}
	if claims.ExpiresAt == 0 {
		return nil, fmt.Errorf("%w: token has no expiry", common.ErrInvalidCredentials)
	}

	user, err := s.userRepo.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", common.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("failed to load token subject: %w", err)
	}
	return user, nil
}

// Authorize verifies tokenString and additionally requires the user to be active.
func (s *AuthService) Authorize(ctx context.Context, tokenString string) (*models.User, error) {
	user, err := s.VerifyToken(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, common.ErrInactiveUser
	}
	return user, nil
}

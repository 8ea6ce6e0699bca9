package services_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"storycraft/internal/common"
	"storycraft/internal/config"
	"storycraft/internal/models"
	"storycraft/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test_jwt_secret"

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	if args.Error(0) == nil {
		user.ID = 1
	}
	return args.Error(0)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// TestMain is used to setup test environment
func TestMain(m *testing.M) {
	log.SetOutput(os.Stdout)
	code := m.Run()
	os.Exit(code)
}

func newAuthService(t *testing.T, repo *MockUserRepository) *services.AuthService {
	t.Helper()
	svc, err := services.NewAuthService(repo, config.JWTConfig{
		Secret:         testJWTSecret,
		Algorithm:      "HS256",
		AccessTokenTTL: 30 * time.Minute,
	})
	require.NoError(t, err)
	return svc
}

func notFound(email string) error {
	return fmt.Errorf("user with email %s: %w", email, common.ErrNotFound)
}

func hashedUser(t *testing.T, email, password string, active bool) *models.User {
	t.Helper()
	hash, err := services.HashPassword(password)
	require.NoError(t, err)
	return &models.User{ID: 7, Email: email, HashedPassword: hash, IsActive: active}
}

func signToken(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestNewAuthService_RejectsUnsupportedAlgorithm(t *testing.T) {
	_, err := services.NewAuthService(new(MockUserRepository), config.JWTConfig{Secret: "s", Algorithm: "RS256"})
	assert.Error(t, err)

	_, err = services.NewAuthService(new(MockUserRepository), config.JWTConfig{Secret: "", Algorithm: "HS256"})
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := services.HashPassword("pw1")
	require.NoError(t, err)
	assert.NotEqual(t, "pw1", hash)
	assert.True(t, services.VerifyPassword("pw1", hash))
	assert.False(t, services.VerifyPassword("pw2", hash))

	again, err := services.HashPassword("pw1")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "hashes should be salted")
	assert.True(t, services.VerifyPassword("pw1", again))
}

func TestAuthService_RegisterUser(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(t, mockRepo)

	// Successful registration
	mockRepo.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, notFound("a@x.com")).Once()
	mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.Email == "a@x.com" && u.IsActive && services.VerifyPassword("pw1", u.HashedPassword)
	})).Return(nil).Once()

	user, err := authService.RegisterUser(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	assert.Equal(t, uint(1), user.ID)
	assert.True(t, user.IsActive)
	assert.NotNil(t, user.Stories)
	assert.Empty(t, user.Stories)
	mockRepo.AssertExpectations(t)

	// Email already registered
	mockRepo.On("GetByEmail", mock.Anything, "a@x.com").Return(&models.User{ID: 1, Email: "a@x.com"}, nil).Once()
	_, err = authService.RegisterUser(ctx, "a@x.com", "pw1")
	assert.ErrorIs(t, err, common.ErrDuplicateEmail)
	mockRepo.AssertExpectations(t)

	// Lost race against a concurrent registration: the unique index wins
	mockRepo.On("GetByEmail", mock.Anything, "b@x.com").Return(nil, notFound("b@x.com")).Once()
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.User")).
		Return(fmt.Errorf("email 'b@x.com': %w", common.ErrDuplicateEmail)).Once()
	_, err = authService.RegisterUser(ctx, "b@x.com", "pw")
	assert.ErrorIs(t, err, common.ErrDuplicateEmail)
	mockRepo.AssertExpectations(t)

	// Storage failure is not reported as a duplicate
	mockRepo.On("GetByEmail", mock.Anything, "c@x.com").Return(nil, fmt.Errorf("connection refused")).Once()
	_, err = authService.RegisterUser(ctx, "c@x.com", "pw")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrDuplicateEmail)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_LoginUser(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(t, mockRepo)
	user := hashedUser(t, "a@x.com", "pw1", true)

	// Successful login
	mockRepo.On("GetByEmail", mock.Anything, "a@x.com").Return(user, nil).Once()
	token, err := authService.LoginUser(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims := &jwt.StandardClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "HS256", parsed.Method.Alg())
	assert.Equal(t, "a@x.com", claims.Subject)
	assert.InDelta(t, time.Now().Add(30*time.Minute).Unix(), claims.ExpiresAt, 5)
	mockRepo.AssertExpectations(t)

	// Wrong password
	mockRepo.On("GetByEmail", mock.Anything, "a@x.com").Return(user, nil).Once()
	_, errWrongPassword := authService.LoginUser(ctx, "a@x.com", "wrong")

	// Unknown email
	mockRepo.On("GetByEmail", mock.Anything, "nobody@x.com").Return(nil, notFound("nobody@x.com")).Once()
	_, errUnknownEmail := authService.LoginUser(ctx, "nobody@x.com", "pw1")

	assert.ErrorIs(t, errWrongPassword, common.ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknownEmail, common.ErrInvalidCredentials)
	assert.Equal(t, errWrongPassword.Error(), errUnknownEmail.Error())
	mockRepo.AssertExpectations(t)
}

func TestAuthService_LoginUnknownEmailSpendsBcryptWork(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(t, mockRepo)
	mockRepo.On("GetByEmail", mock.Anything, "nobody@x.com").Return(nil, notFound("nobody@x.com"))

	// First call also builds the dummy hash
	_, err := authService.LoginUser(ctx, "nobody@x.com", "pw1")
	require.ErrorIs(t, err, common.ErrInvalidCredentials)

	hash, err := services.HashPassword("pw1")
	require.NoError(t, err)
	start := time.Now()
	services.VerifyPassword("wrong", hash)
	oneComparison := time.Since(start)

	start = time.Now()
	_, err = authService.LoginUser(ctx, "nobody@x.com", "pw1")
	unknownEmail := time.Since(start)
	require.ErrorIs(t, err, common.ErrInvalidCredentials)

	assert.GreaterOrEqual(t, int64(unknownEmail), int64(oneComparison/2),
		"unknown email took %v, one bcrypt comparison takes %v", unknownEmail, oneComparison)
}

func TestAuthService_IssueTokenDefaultsTTL(t *testing.T) {
	authService := newAuthService(t, new(MockUserRepository))

	token, err := authService.IssueToken("a@x.com", 0)
	require.NoError(t, err)

	claims := &jwt.StandardClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Add(services.DefaultTokenTTL).Unix(), claims.ExpiresAt, 5)
}

func TestAuthService_VerifyToken(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(t, mockRepo)
	user := hashedUser(t, "a@x.com", "pw1", true)

	valid, err := authService.IssueToken("a@x.com", time.Hour)
	require.NoError(t, err)

	mockRepo.On("GetByEmail", mock.Anything, "a@x.com").Return(user, nil).Once()
	got, err := authService.VerifyToken(ctx, valid)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)
	mockRepo.AssertExpectations(t)

	hourAgo := time.Now().Add(-time.Hour).Unix()
	inHour := time.Now().Add(time.Hour).Unix()

	invalid := map[string]string{
		"garbage":      "invalid.token.string",
		"empty":        "",
		"wrong secret": signToken(t, jwt.SigningMethodHS256, "other-secret", jwt.StandardClaims{Subject: "a@x.com", ExpiresAt: inHour}),
		"wrong alg":    signToken(t, jwt.SigningMethodHS512, testJWTSecret, jwt.StandardClaims{Subject: "a@x.com", ExpiresAt: inHour}),
		"expired":      signToken(t, jwt.SigningMethodHS256, testJWTSecret, jwt.StandardClaims{Subject: "a@x.com", ExpiresAt: hourAgo}),
		"no subject":   signToken(t, jwt.SigningMethodHS256, testJWTSecret, jwt.StandardClaims{ExpiresAt: inHour}),
		"no expiry":    signToken(t, jwt.SigningMethodHS256, testJWTSecret, jwt.StandardClaims{Subject: "a@x.com"}),
		"tampered sig": valid + "x",
	}
	for name, token := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := authService.VerifyToken(ctx, token)
			assert.ErrorIs(t, err, common.ErrInvalidCredentials)
		})
	}

	// Valid token for a user that no longer exists
	mockRepo.On("GetByEmail", mock.Anything, "gone@x.com").Return(nil, notFound("gone@x.com")).Once()
	orphan, err := authService.IssueToken("gone@x.com", time.Hour)
	require.NoError(t, err)
	_, err = authService.VerifyToken(ctx, orphan)
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_Authorize(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(t, mockRepo)

	active := hashedUser(t, "a@x.com", "pw1", true)
	inactive := hashedUser(t, "off@x.com", "pw1", false)

	activeToken, err := authService.IssueToken(active.Email, time.Hour)
	require.NoError(t, err)
	inactiveToken, err := authService.IssueToken(inactive.Email, time.Hour)
	require.NoError(t, err)

	mockRepo.On("GetByEmail", mock.Anything, active.Email).Return(active, nil).Once()
	got, err := authService.Authorize(ctx, activeToken)
	require.NoError(t, err)
	assert.Equal(t, active.Email, got.Email)

	mockRepo.On("GetByEmail", mock.Anything, inactive.Email).Return(inactive, nil).Once()
	_, err = authService.Authorize(ctx, inactiveToken)
	assert.ErrorIs(t, err, common.ErrInactiveUser)
	assert.NotErrorIs(t, err, common.ErrInvalidCredentials)

	_, err = authService.Authorize(ctx, "invalid.token.string")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	mockRepo.AssertExpectations(t)
}

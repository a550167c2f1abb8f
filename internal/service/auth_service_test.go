package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Avijadhav01/E-commerce/internal/models"
	appErrors "github.com/Avijadhav01/E-commerce/pkg/errors"
)

type mockAuthRepo struct {
	users        map[string]*models.User
	savedTokens  map[string]string
	clearedUsers []string
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{users: map[string]*models.User{}, savedTokens: map[string]string{}}
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *user
	copy.PasswordHash = ""
	copy.RefreshToken = sql.NullString{}
	return &copy, nil
}

func (m *mockAuthRepo) FindByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error) {
	for _, user := range m.users {
		if user.Email == strings.ToLower(email) || user.Username == strings.ToLower(username) {
			copy := *user
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockAuthRepo) SaveRefreshToken(ctx context.Context, id, token string) error {
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	m.savedTokens[id] = token
	user.RefreshToken = sql.NullString{String: token, Valid: true}
	return nil
}

func (m *mockAuthRepo) ClearRefreshToken(ctx context.Context, id string) error {
	m.clearedUsers = append(m.clearedUsers, id)
	if user, ok := m.users[id]; ok {
		user.RefreshToken = sql.NullString{}
	}
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessSecret:  "access_secret",
		RefreshSecret: "refresh_secret",
		AccessExpiry:  30 * time.Minute,
		RefreshExpiry: 240 * time.Hour,
		Issuer:        "test",
	}
}

func seedUser(t *testing.T, repo *mockAuthRepo, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           "user-1",
		FullName:     "Test User",
		Username:     "testuser",
		Email:        "test@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleUser,
	}
	repo.users[user.ID] = user
	return user
}

func TestAuthServiceLoginIssuesTokenPair(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "secret123")
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "test@example.com", Password: "secret123"})
	require.NoError(t, err)
	require.NotEmpty(t, res.AccessToken)
	require.NotEmpty(t, res.RefreshToken)
	assert.NotEqual(t, res.AccessToken, res.RefreshToken)
	assert.Equal(t, res.RefreshToken, repo.savedTokens["user-1"])
	assert.Equal(t, models.RoleUser, res.User.Role)

	claims, err := svc.VerifyAccessToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "test@example.com", claims.Email)
	assert.Equal(t, "testuser", claims.Username)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "secret123")
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "test@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.savedTokens)
}

func TestAuthServiceLoginUnknownUser(t *testing.T) {
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterCreatesUser(t *testing.T) {
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.Register(context.Background(), models.RegisterRequest{
		FullName: "New User",
		Username: "NewUser",
		Email:    "New@Example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.AccessToken)

	stored := repo.users[res.User.ID]
	require.NotNil(t, stored)
	assert.Equal(t, "newuser", stored.Username)
	assert.Equal(t, "new@example.com", stored.Email)
	assert.Equal(t, models.RoleUser, stored.Role)
	assert.NotEqual(t, "secret123", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret123")))
	assert.Equal(t, res.RefreshToken, repo.savedTokens[res.User.ID])
}

func TestAuthServiceRegisterDuplicate(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "secret123")
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		FullName: "Other",
		Username: "testuser",
		Email:    "other@example.com",
		Password: "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterShortPassword(t *testing.T) {
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		FullName: "New User",
		Username: "newuser",
		Email:    "new@example.com",
		Password: "short",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestVerifyAccessTokenExpired(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(t, repo, "secret123")
	config := testAuthConfig()
	config.AccessExpiry = -time.Minute
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), config)

	pair, err := svc.IssueTokenPair(context.Background(), user)
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(pair.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidToken.Code, appErrors.FromError(err).Code)
}

func TestVerifyAccessTokenBadSignature(t *testing.T) {
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.AccessClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := forged.SignedString([]byte("some_other_secret"))
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(raw)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidToken.Code, appErrors.FromError(err).Code)
}

func TestVerifyRejectsRefreshToken(t *testing.T) {
	// A valid refresh token must never pass access-token verification:
	// the pipeline does not auto-rotate expired sessions.
	repo := newMockAuthRepo()
	user := seedUser(t, repo, "secret123")
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	pair, err := svc.IssueTokenPair(context.Background(), user)
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(pair.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidToken.Code, appErrors.FromError(err).Code)
}

func TestAuthenticateLoadsUserWithoutSecrets(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(t, repo, "secret123")
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	pair, err := svc.IssueTokenPair(context.Background(), user)
	require.NoError(t, err)

	loaded, err := svc.Authenticate(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, loaded.ID)
	assert.Empty(t, loaded.PasswordHash)
	assert.False(t, loaded.RefreshToken.Valid)
}

func TestAuthenticateDeletedUser(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(t, repo, "secret123")
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	pair, err := svc.IssueTokenPair(context.Background(), user)
	require.NoError(t, err)

	delete(repo.users, user.ID)

	_, err = svc.Authenticate(context.Background(), pair.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidToken.Code, appErrors.FromError(err).Code)
}

func TestIssueTokenPairDeletedUser(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(t, repo, "secret123")
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	delete(repo.users, user.ID)

	// The refresh token must be persisted before the pair is handed out.
	_, err := svc.IssueTokenPair(context.Background(), user)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.savedTokens)
}

func TestSequentialLoginSupersedesRefreshToken(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "secret123")
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "test@example.com", Password: "secret123"})
	require.NoError(t, err)

	second, err := svc.Login(context.Background(), models.LoginRequest{Email: "test@example.com", Password: "secret123"})
	require.NoError(t, err)

	// Only one refresh token per user is retained; the latest login wins.
	assert.Equal(t, second.RefreshToken, repo.savedTokens["user-1"])
	assert.Equal(t, second.RefreshToken, repo.users["user-1"].RefreshToken.String)
}

func TestLogoutClearsRefreshToken(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "secret123")
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "test@example.com", Password: "secret123"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), "user-1"))
	assert.Contains(t, repo.clearedUsers, "user-1")
	assert.False(t, repo.users["user-1"].RefreshToken.Valid)
}

func TestAuthorize(t *testing.T) {
	assert.NoError(t, Authorize(models.RoleAdmin, models.RoleAdmin))
	assert.NoError(t, Authorize(models.RoleUser, models.RoleUser, models.RoleAdmin))

	err := Authorize(models.RoleUser, models.RoleAdmin)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = Authorize(models.RoleAdmin)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/andon-board/config"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/repositories"
	"github.com/upb/andon-board/repositories/mocks"
	"github.com/upb/andon-board/services"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var testAuthConfig = config.AuthConfig{
	JWTSecret: "test-secret",
	TokenTTL:  12 * time.Hour,
	Issuer:    "andon-board",
}

func newTestService(t *testing.T) (*Service, *mocks.Repositories) {
	t.Helper()
	repos := mocks.NewRepositories()
	return NewService(repos.Bundle(), testAuthConfig, zap.NewNop()), repos
}

func newUser(t *testing.T, password string, divisionID *uuid.UUID) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return models.NewUser(uuid.New(), "Sari", "sari@example.com", string(hash), models.RoleTeam, divisionID)
}

func TestLogin(t *testing.T) {
	service, repos := newTestService(t)
	divisionID := uuid.New()
	user := newUser(t, "password1", &divisionID)
	tenant := &models.Tenant{ID: user.TenantID, Name: "PT Maju", Slug: "maju"}

	repos.Users.On("GetByEmail", mock.Anything, "sari@example.com").Return(user, nil)
	repos.Tenants.On("GetByID", mock.Anything, user.TenantID).Return(tenant, nil)

	session, err := service.Login(context.Background(), " Sari@Example.com ", "password1")

	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "maju", session.Tenant.Slug)
	assert.WithinDuration(t, time.Now().Add(12*time.Hour), session.ExpiresAt, time.Minute)

	principal, err := service.ValidateToken(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.UserID)
	assert.Equal(t, user.TenantID, principal.TenantID)
	assert.Equal(t, models.RoleTeam, principal.Role)
	assert.Equal(t, divisionID, *principal.DivisionID)
	assert.Equal(t, "Sari", principal.Name)
	assert.False(t, principal.IsAdmin())
}

func TestLogin_InvalidCredentials(t *testing.T) {
	service, repos := newTestService(t)
	user := newUser(t, "password1", nil)
	repos.Users.On("GetByEmail", mock.Anything, "sari@example.com").Return(user, nil)
	repos.Users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, repositories.ErrNotFound)

	_, err := service.Login(context.Background(), "sari@example.com", "wrong")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	_, err = service.Login(context.Background(), "ghost@example.com", "password1")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	_, err = service.Login(context.Background(), "", "")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	assert.True(t, services.IsUnauthorizedError(err))

	repos.Tenants.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestLogin_StoreFailure(t *testing.T) {
	service, repos := newTestService(t)
	repos.Users.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	_, err := service.Login(context.Background(), "sari@example.com", "password1")

	assert.True(t, services.IsInternalError(err))
}

func TestValidateToken_Rejects(t *testing.T) {
	service, _ := newTestService(t)
	user := newUser(t, "password1", nil)

	expiredService, _ := newTestService(t)
	expiredService.now = func() time.Time { return time.Now().Add(-13 * time.Hour) }
	expired, _, err := expiredService.IssueToken(user)
	require.NoError(t, err)

	otherSecret := NewService(mocks.NewRepositories().Bundle(), config.AuthConfig{
		JWTSecret: "another-secret",
		TokenTTL:  time.Hour,
		Issuer:    "andon-board",
	}, zap.NewNop())
	forged, _, err := otherSecret.IssueToken(user)
	require.NoError(t, err)

	otherIssuer := NewService(mocks.NewRepositories().Bundle(), config.AuthConfig{
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
		Issuer:    "someone-else",
	}, zap.NewNop())
	wrongIssuer, _, err := otherIssuer.IssueToken(user)
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    "andon-board",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TenantID: user.TenantID.String(),
		Role:     "TEAM",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    "andon-board",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TenantID: user.TenantID.String(),
		Role:     "OWNER",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := map[string]string{
		"expired":      expired,
		"forged":       forged,
		"wrong issuer": wrongIssuer,
		"alg none":     noneAlg,
		"unknown role": badRole,
		"garbage":      "not-a-token",
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := service.ValidateToken(context.Background(), token)
			assert.ErrorIs(t, err, services.ErrInvalidToken)
			assert.True(t, services.IsUnauthorizedError(err))
		})
	}
}

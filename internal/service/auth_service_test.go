package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/service"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

func newAuthService() *service.AuthService {
	return service.NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 15,
		BcryptCost:            4,
	}, repository.NewMemoryUserRepository())
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	authService := newAuthService()

	user, err := authService.Register(ctx, service.RegisterInput{
		Email:    "Jamie@Example.com",
		Name:     "Jamie",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "jamie@example.com", user.Email)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.NotEqual(t, "correct horse", user.PasswordHash)

	loggedIn, token, err := authService.Login(ctx, "jamie@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	require.NotEmpty(t, token)

	claims, err := authService.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	authService := newAuthService()

	_, err := authService.Register(ctx, service.RegisterInput{Email: "not-an-email", Password: "longenough"})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	_, err = authService.Register(ctx, service.RegisterInput{Email: "ok@example.com", Password: "short"})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	authService := newAuthService()

	_, err := authService.Register(ctx, service.RegisterInput{Email: "a@example.com", Password: "longenough"})
	require.NoError(t, err)

	_, err = authService.Register(ctx, service.RegisterInput{Email: "A@example.com", Password: "longenough"})
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	authService := newAuthService()

	_, _, err := authService.Login(ctx, "ghost@example.com", "whatever")
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))

	_, err = authService.Register(ctx, service.RegisterInput{Email: "a@example.com", Password: "longenough"})
	require.NoError(t, err)

	_, _, err = authService.Login(ctx, "a@example.com", "wrongpassword")
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))
}

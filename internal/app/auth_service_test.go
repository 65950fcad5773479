package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docmind/internal/model"
	"docmind/internal/pkg/jwtutil"
)

func newTestAuth(t *testing.T) (*AuthService, testStores) {
	stores := newTestStores(t)
	return NewAuthService(stores.users, "test-secret", time.Hour), stores
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	svc, _ := newTestAuth(t)

	res, err := svc.Register(RegisterInput{Name: "Ana", Email: " Ana@Test.com ", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "ana@test.com", res.User.Email)
	assert.Equal(t, model.RoleClient, res.User.Role)
	assert.NotEqual(t, "password123", res.User.PasswordHash)

	claims, err := jwtutil.ParseToken("test-secret", res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, model.RoleClient, claims.Role)

	login, err := svc.Login(LoginInput{Email: "ana@test.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, login.User.ID)

	_, err = svc.Login(LoginInput{Email: "ana@test.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, err = svc.Login(LoginInput{Email: "nobody@test.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestAuth_DuplicateEmailRejectedBeforeInsert(t *testing.T) {
	svc, stores := newTestAuth(t)

	_, err := svc.Register(RegisterInput{Name: "Ana", Email: "ana@test.com", Password: "password123"})
	require.NoError(t, err)
	_, err = svc.Register(RegisterInput{Name: "Other", Email: "ANA@test.com", Password: "password456"})
	assert.ErrorIs(t, err, ErrEmailExists)

	u, err := stores.users.GetByEmail("ana@test.com")
	require.NoError(t, err)
	assert.Equal(t, "Ana", u.Name)
}

func TestAuth_RegisterValidation(t *testing.T) {
	svc, _ := newTestAuth(t)
	_, err := svc.Register(RegisterInput{Name: "", Email: "a@test.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Register(RegisterInput{Name: "A", Email: "a@test.com", Password: "short"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAuth_SeedAdminIsIdempotent(t *testing.T) {
	svc, stores := newTestAuth(t)

	created, err := svc.SeedAdmin("", "admin@test.com", "admin-password")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.SeedAdmin("Someone", "admin@test.com", "other-password")
	require.NoError(t, err)
	assert.False(t, created)

	admin, err := stores.users.GetByEmail("admin@test.com")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())
	assert.Equal(t, "System Administrator", admin.Name)

	res, err := svc.Login(LoginInput{Email: "admin@test.com", Password: "admin-password"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, res.User.Role)
}

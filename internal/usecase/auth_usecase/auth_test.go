package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	auth "cartsync/internal/usecase/auth_usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =====================
// Mocks
// =====================

type MockUserStore struct{ mock.Mock }

func (m *MockUserStore) Create(ctx context.Context, u auth.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserStore) FindByEmail(ctx context.Context, email string) (auth.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(auth.User)
	return u, args.Error(1)
}

type MockHasher struct{ mock.Mock }

func (m *MockHasher) Hash(plain string) (string, error) {
	args := m.Called(plain)
	return args.String(0), args.Error(1)
}

type fixedID string

func (f fixedID) NewID() string { return string(f) }

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

var now = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

// =====================
// Register
// =====================

func TestRegister_OK(t *testing.T) {
	users := new(MockUserStore)
	hasher := new(MockHasher)
	users.On("FindByEmail", mock.Anything, "lan@example.com").Return(nil, auth.ErrUserNotFound)
	hasher.On("Hash", "password123").Return("hashed", nil)
	users.On("Create", mock.Anything, mock.MatchedBy(func(u auth.User) bool {
		return u.ID == "id-1" && u.Email == "lan@example.com" && u.PasswordHash == "hashed" && u.CreatedAt.Equal(now)
	})).Return(nil)

	uc := auth.NewRegisterUserUsecase(users, hasher, fixedID("id-1"), fixedClock(now))
	u, err := uc.Execute(context.Background(), auth.RegisterUserInput{Email: "  Lan@Example.com ", Password: "password123"})

	require.NoError(t, err)
	assert.Equal(t, "id-1", u.ID)
	assert.Empty(t, u.PasswordHash)
	users.AssertExpectations(t)
}

func TestRegister_Validation(t *testing.T) {
	uc := auth.NewRegisterUserUsecase(new(MockUserStore), new(MockHasher), fixedID("x"), fixedClock(now))

	_, err := uc.Execute(context.Background(), auth.RegisterUserInput{Email: "not-an-email", Password: "password123"})
	assert.ErrorIs(t, err, auth.ErrInvalidEmailFormat)

	_, err = uc.Execute(context.Background(), auth.RegisterUserInput{Email: "a@b.co", Password: "short"})
	assert.ErrorIs(t, err, auth.ErrPasswordTooShort)
}

func TestRegister_Duplicate(t *testing.T) {
	users := new(MockUserStore)
	users.On("FindByEmail", mock.Anything, "a@b.co").Return(auth.User{ID: "old"}, nil)

	uc := auth.NewRegisterUserUsecase(users, new(MockHasher), fixedID("x"), fixedClock(now))
	_, err := uc.Execute(context.Background(), auth.RegisterUserInput{Email: "a@b.co", Password: "password123"})

	assert.ErrorIs(t, err, auth.ErrEmailAlreadyExists)
	users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_StoreError(t *testing.T) {
	users := new(MockUserStore)
	boom := errors.New("db down")
	users.On("FindByEmail", mock.Anything, "a@b.co").Return(nil, boom)

	uc := auth.NewRegisterUserUsecase(users, new(MockHasher), fixedID("x"), fixedClock(now))
	_, err := uc.Execute(context.Background(), auth.RegisterUserInput{Email: "a@b.co", Password: "password123"})
	assert.ErrorIs(t, err, boom)
}

// =====================
// Login
// =====================

func newLogin(t *testing.T, users *MockUserStore) *auth.LoginUsecase {
	t.Helper()
	return auth.NewLoginUsecase(users, auth.NewBcryptPasswordVerifier(), auth.NewJWTIssuer("secret", time.Hour), fixedClock(now))
}

func TestLogin_OK(t *testing.T) {
	hash, err := auth.NewBcryptPasswordHasher(4).Hash("password123")
	require.NoError(t, err)

	users := new(MockUserStore)
	users.On("FindByEmail", mock.Anything, "lan@example.com").Return(auth.User{ID: "u-1", Email: "lan@example.com", PasswordHash: hash}, nil)

	out, err := newLogin(t, users).Execute(context.Background(), auth.LoginInput{Email: "LAN@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", out.UserID)
	assert.Equal(t, 3600, out.ExpiresIn)
	assert.True(t, out.ExpiresAt.Equal(now.Add(time.Hour)))

	claims := jwt.MapClaims{}
	_, _, err = new(jwt.Parser).ParseUnverified(out.AccessToken, claims)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims["sub"])
	assert.EqualValues(t, now.Add(time.Hour).Unix(), claims["exp"])
}

func TestLogin_InvalidCredentials(t *testing.T) {
	hash, err := auth.NewBcryptPasswordHasher(4).Hash("password123")
	require.NoError(t, err)

	users := new(MockUserStore)
	users.On("FindByEmail", mock.Anything, "lan@example.com").Return(auth.User{ID: "u-1", PasswordHash: hash}, nil)
	users.On("FindByEmail", mock.Anything, "ghost@example.com").Return(nil, auth.ErrUserNotFound)

	uc := newLogin(t, users)

	_, err = uc.Execute(context.Background(), auth.LoginInput{Email: "lan@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = uc.Execute(context.Background(), auth.LoginInput{Email: "ghost@example.com", Password: "password123"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

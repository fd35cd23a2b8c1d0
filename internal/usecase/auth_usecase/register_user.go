package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// スタブAPIのログインユーザー
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type RegisterUserInput struct {
	Email    string
	Password string
}

var (
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrUserNotFound       = errors.New("user not found")
)

// ユーザーの保存先
type UserStore interface {
	Create(ctx context.Context, u User) error
	FindByEmail(ctx context.Context, email string) (User, error)
}

// 平文パスワードからハッシュへ。
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// UUID 等のIDを作る約束
type IDGenerator interface {
	NewID() string
}

// 現在の時間
type Clock interface {
	Now() time.Time
}

// RegisterUserUsecase はスタブ起動時のユーザー登録。
type RegisterUserUsecase struct {
	users  UserStore
	hasher PasswordHasher
	idGen  IDGenerator
	clock  Clock
}

// DI
func NewRegisterUserUsecase(users UserStore, hasher PasswordHasher, idGen IDGenerator, clock Clock) *RegisterUserUsecase {
	return &RegisterUserUsecase{
		users:  users,
		hasher: hasher,
		idGen:  idGen,
		clock:  clock,
	}
}

func (u *RegisterUserUsecase) Execute(ctx context.Context, in RegisterUserInput) (User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !isValidEmailFormat(email) {
		return User{}, ErrInvalidEmailFormat
	}
	if len(in.Password) < 8 {
		return User{}, ErrPasswordTooShort
	}

	// email重複チェック
	if _, err := u.users.FindByEmail(ctx, email); err == nil {
		return User{}, ErrEmailAlreadyExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, err
	}

	hashed, err := u.hasher.Hash(in.Password)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           u.idGen.NewID(),
		Email:        email,
		PasswordHash: hashed, // 平文は保存しない
		CreatedAt:    u.clock.Now(),
	}
	if err := u.users.Create(ctx, user); err != nil {
		return User{}, err
	}

	user.PasswordHash = ""
	return user, nil
}

func isValidEmailFormat(email string) bool {
	if email == "" {
		return false
	}
	_, err := mail.ParseAddress(email)
	return err == nil
}

// bcryptハッシュ化
type BcryptPasswordHasher struct {
	cost int
}

// DI
func NewBcryptPasswordHasher(cost int) *BcryptPasswordHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPasswordHasher{cost}
}

func (h *BcryptPasswordHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type BcryptPasswordVerifier struct{}

// DI
func NewBcryptPasswordVerifier() *BcryptPasswordVerifier {
	return &BcryptPasswordVerifier{}
}

func (v *BcryptPasswordVerifier) Verify(plain string, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

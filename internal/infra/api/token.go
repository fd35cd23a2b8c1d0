package api

import (
	"context"
	"sync"
	"time"

	"cartsync/internal/domain/model"

	"github.com/golang-jwt/jwt/v4"
)

// アクセストークンの取得元（セッション層が持つ）
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// 固定トークン。SetToken で差し替えられる
type StaticToken struct {
	mu    sync.RWMutex
	token string
}

func NewStaticToken(token string) *StaticToken {
	return &StaticToken{token: token}
}

func (t *StaticToken) Token(context.Context) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token, nil
}

func (t *StaticToken) SetToken(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = token
}

// checkExpiry は exp が過ぎたJWTを送る前に弾く。
// 署名は検証しない（サーバーの仕事）。JWTでなければサーバーに任せる
func checkExpiry(token string, now time.Time) error {
	if token == "" {
		return model.NewAuthExpiredError("not signed in")
	}
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return nil
	}
	if _, ok := claims["exp"]; !ok {
		return nil
	}
	if !claims.VerifyExpiresAt(now.Unix(), true) {
		return model.NewAuthExpiredError("access token expired")
	}
	return nil
}

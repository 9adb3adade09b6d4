package auth

import (
	"context"
	"time"
)

// 平文とハッシュの変換・照合（bcrypt実装はhasher.go）
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain string, hashed string) bool
}

// 現在の時間
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// usecaseがValidatorInterfaceに依存する約束
type Validator interface {
	ValidateSignUp(ctx context.Context, in SignUpInput) error
	ValidateLogin(ctx context.Context, email string, password string) error
	ValidateRefresh(ctx context.Context, refreshToken string) error
	ValidateUpdate(ctx context.Context, in UpdateInput) error
}

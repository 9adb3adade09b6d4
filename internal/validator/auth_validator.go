package validator

import (
	"context"
	"errors"
	"regexp"
	"strings"

	auth "memberauth/internal/usecase/auth_usecase"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// 簡易メール形式（会員登録はis.Emailも使う）
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// bcryptは72バイトまで
const (
	minPasswordLen = 8
	maxPasswordLen = 72
)

// パスワードのよくある弱いパスワード
var weakPasswords = map[string]struct{}{
	"password":     {},
	"password123":  {},
	"123456789012": {},
	"1234567890":   {},
	"12345678":     {},
	"qwertyuiop":   {},
	"letmein1":     {},
	"admin123":     {},
}

var ErrWeakPassword = errors.New("weak password")

type authValidator struct{}

// Usecaseは interface を依存注入
func NewAuthValidator() auth.Validator {
	return &authValidator{}
}

var (
	emailRules    = []validation.Rule{validation.Required, validation.Length(3, 254), validation.Match(emailPattern)}
	passwordRules = []validation.Rule{validation.Length(minPasswordLen, maxPasswordLen), validation.By(notWeak)}
)

// サインアップの入力を検証
func (v *authValidator) ValidateSignUp(ctx context.Context, in auth.SignUpInput) error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, append(emailRules, is.Email)...),
		validation.Field(&in.Password, append([]validation.Rule{validation.Required}, passwordRules...)...),
		validation.Field(&in.UserName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.NickName, validation.Length(0, 50)),
	)
}

// ログインの入力を検証
func (v *authValidator) ValidateLogin(ctx context.Context, email string, password string) error {
	return validation.Errors{
		"email":    validation.Validate(strings.TrimSpace(email), emailRules...),
		"password": validation.Validate(password, validation.Required),
	}.Filter()
}

// refresh 入力を検証
func (v *authValidator) ValidateRefresh(ctx context.Context, refreshToken string) error {
	return validation.Validate(strings.TrimSpace(refreshToken), validation.Required)
}

// 会員情報変更の入力を検証（nilは未指定）
func (v *authValidator) ValidateUpdate(ctx context.Context, in auth.UpdateInput) error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.UserName, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&in.NickName, validation.Length(0, 50)),
		validation.Field(&in.Password, append([]validation.Rule{validation.NilOrNotEmpty}, passwordRules...)...),
	)
}

func notWeak(value interface{}) error {
	v, isNil := validation.Indirect(value)
	if isNil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	if _, weak := weakPasswords[strings.ToLower(strings.TrimSpace(s))]; weak {
		return ErrWeakPassword
	}
	return nil
}

package auth

import (
	"context"
	"errors"
	"strings"

	"memberauth/internal/domain/model"
	"memberauth/internal/repository"
)

// 会員登録の入力
type SignUpInput struct {
	Email    string
	Password string
	UserName string
	NickName string
	Address  model.Address
}

// SignUpはメール・パスワードで会員登録する。ロールは常にUSER。
func (e *Engine) SignUp(ctx context.Context, in SignUpInput) (model.User, error) {
	const op = "sign up"

	in.Email = strings.TrimSpace(in.Email)
	if err := e.validator.ValidateSignUp(ctx, in); err != nil {
		return model.User{}, newError(op, KindValidation, err)
	}

	if err := e.ensureEmailFree(ctx, op, in.Email); err != nil {
		return model.User{}, err
	}

	// パスワードをハッシュ化
	hashed, err := e.hasher.Hash(in.Password)
	if err != nil {
		return model.User{}, newError(op, KindInternal, err)
	}

	user := &model.User{
		Email:        in.Email,
		PasswordHash: hashed,
		UserName:     in.UserName,
		NickName:     in.NickName,
		Role:         model.RoleUser,
		Address:      in.Address,
	}

	return e.createUser(ctx, op, user)
}

// RegisterExternalは外部プロバイダで初めてログインした人を会員にする（パスワード無し）。
func (e *Engine) RegisterExternal(ctx context.Context, ext model.ExternalIdentity) (model.User, error) {
	const op = "external sign up"

	if strings.TrimSpace(ext.Email) == "" || ext.ProviderID == "" {
		return model.User{}, newError(op, KindValidation, errors.New("email and provider id are required"))
	}

	if err := e.ensureEmailFree(ctx, op, ext.Email); err != nil {
		return model.User{}, err
	}

	name := ext.DisplayName
	if name == "" {
		name = ext.Email
	}

	user := &model.User{
		Email:      ext.Email,
		UserName:   name,
		NickName:   ext.DisplayName,
		Role:       model.RoleUser,
		Provider:   ext.Provider,
		ProviderID: ext.ProviderID,
	}

	return e.createUser(ctx, op, user)
}

// email重複チェック
func (e *Engine) ensureEmailFree(ctx context.Context, op string, email string) error {
	existing, err := e.users.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return newError(op, KindConflict, repository.ErrEmailTaken)
	}
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return newError(op, KindStorage, err)
	}
	return nil
}

func (e *Engine) createUser(ctx context.Context, op string, user *model.User) (model.User, error) {
	if err := e.users.Create(ctx, user); err != nil {
		//チェック後に同じemailが入った場合
		if errors.Is(err, repository.ErrEmailTaken) {
			return model.User{}, newError(op, KindConflict, err)
		}
		return model.User{}, newError(op, KindStorage, err)
	}

	// 返すときは password を空にして漏洩防止
	safeUser := *user
	safeUser.PasswordHash = ""
	return safeUser, nil
}

package auth

import (
	"context"
	"errors"
	"strings"

	"memberauth/internal/domain/model"
	"memberauth/internal/repository"
)

// ログイン処理を実行する
func (e *Engine) Login(ctx context.Context, email string, password string) (model.TokenRecord, error) {
	const op = "login"

	email = strings.TrimSpace(email)
	if err := e.validator.ValidateLogin(ctx, email, password); err != nil {
		return model.TokenRecord{}, newError(op, KindValidation, err)
	}

	//emailでユーザー取得
	user, err := e.findUserByEmail(ctx, op, email)
	if err != nil {
		return model.TokenRecord{}, err
	}

	//パスワード照合（OAuth2だけの会員はハッシュが無い）
	if user.PasswordHash == "" || !e.hasher.Verify(password, user.PasswordHash) {
		return model.TokenRecord{}, newError(op, KindInvalidCredentials, nil)
	}

	return e.issueAndStore(ctx, op, *user)
}

// LoginViaExternalIdentityは外部プロバイダで検証済みの本人でログインする。
// パスワード照合はしないが、provider idが登録済みの会員に限る。
func (e *Engine) LoginViaExternalIdentity(ctx context.Context, ext model.ExternalIdentity) (model.TokenRecord, error) {
	const op = "external login"

	user, err := e.findUserByEmail(ctx, op, ext.Email)
	if err != nil {
		return model.TokenRecord{}, err
	}

	if !user.Linked() {
		return model.TokenRecord{}, newError(op, KindUnlinkedAccount, nil)
	}
	if ext.ProviderID != "" && ext.ProviderID != user.ProviderID {
		return model.TokenRecord{}, newError(op, KindUnlinkedAccount, errors.New("provider id mismatch"))
	}

	//プロバイダの表示名でニックネームを更新
	if ext.DisplayName != "" && ext.DisplayName != user.NickName {
		next := model.ApplyProfileChange(*user, model.ProfileChange{NickName: &ext.DisplayName})
		if err := e.users.Update(ctx, &next); err != nil {
			return model.TokenRecord{}, newError(op, KindStorage, err)
		}
		user = &next
	}

	return e.issueAndStore(ctx, op, *user)
}

func (e *Engine) findUserByEmail(ctx context.Context, op string, email string) (*model.User, error) {
	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, newError(op, KindUserNotFound, nil)
		}
		return nil, newError(op, KindStorage, err)
	}
	return user, nil
}

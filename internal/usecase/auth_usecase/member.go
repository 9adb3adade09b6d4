package auth

import (
	"context"
	"errors"

	"memberauth/internal/domain/model"
	"memberauth/internal/repository"
)

// 会員情報変更の入力。nilは変更しない
type UpdateInput struct {
	UserName *string
	NickName *string
	Password *string
	Address  *model.Address
}

// Updateはログイン中の会員（authenticatedEmail）の情報を変更する。
// emailはリクエストから受け取らないので変更できない。
func (e *Engine) Update(ctx context.Context, in UpdateInput, authenticatedEmail string) (model.User, error) {
	const op = "update"

	if authenticatedEmail == "" {
		return model.User{}, newError(op, KindUnauthenticated, nil)
	}
	if err := e.validator.ValidateUpdate(ctx, in); err != nil {
		return model.User{}, newError(op, KindValidation, err)
	}

	current, err := e.findUserByEmail(ctx, op, authenticatedEmail)
	if err != nil {
		return model.User{}, err
	}

	ch := model.ProfileChange{
		UserName: in.UserName,
		NickName: in.NickName,
		Address:  in.Address,
	}
	if in.Password != nil {
		hashed, err := e.hasher.Hash(*in.Password)
		if err != nil {
			return model.User{}, newError(op, KindInternal, err)
		}
		ch.PasswordHash = &hashed
	}

	next := model.ApplyProfileChange(*current, ch)
	if err := e.users.Update(ctx, &next); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.User{}, newError(op, KindUserNotFound, nil)
		}
		return model.User{}, newError(op, KindStorage, err)
	}

	safeUser := next
	safeUser.PasswordHash = ""
	return safeUser, nil
}

// Searchは会員を1件取得する
func (e *Engine) Search(ctx context.Context, userID int64) (model.User, error) {
	const op = "search"

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.User{}, newError(op, KindUserNotFound, nil)
		}
		return model.User{}, newError(op, KindStorage, err)
	}

	safeUser := *user
	safeUser.PasswordHash = ""
	return safeUser, nil
}

// Withdrawは会員とそのTokenRecordを削除する
func (e *Engine) Withdraw(ctx context.Context, userID int64) error {
	const op = "withdraw"

	run := func(users repository.UserRepository, tokens repository.TokenRepository) error {
		user, err := users.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return newError(op, KindUserNotFound, nil)
			}
			return newError(op, KindStorage, err)
		}

		//会員の削除が成功してからトークンを消す（redisはTxの外なので先に消すと戻せない）
		if err := users.Delete(ctx, user.ID); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return newError(op, KindUserNotFound, nil)
			}
			return newError(op, KindStorage, err)
		}
		if err := tokens.DeleteByEmail(ctx, user.Email); err != nil {
			return newError(op, KindStorage, err)
		}
		return nil
	}

	if e.tx == nil {
		return run(e.users, e.tokens)
	}

	err := e.tx.WithinTx(ctx, func(r repository.TxRepos) error {
		return run(r.Users(), r.Tokens())
	})
	if err != nil && KindOf(err) == KindInternal {
		//Tx自体の失敗（commitなど）
		return newError(op, KindStorage, err)
	}
	return err
}

package repository

import (
	"context"
	"errors"

	"memberauth/internal/domain/model"
)

// ユーザーが見つかりませんを統一
var ErrUserNotFound = errors.New("user not found")

// emailが既に使われている
var ErrEmailTaken = errors.New("email already taken")

// 保存・取得を約束
type UserRepository interface {
	//新規ユーザー作成（IDが入る）
	Create(ctx context.Context, user *model.User) error
	// IDからユーザーを1件取得する。
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	//メールからユーザーを一件取得する。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// ユーザー情報の更新（emailは変えない）
	Update(ctx context.Context, user *model.User) error
	// 退会
	Delete(ctx context.Context, userID int64) error
}

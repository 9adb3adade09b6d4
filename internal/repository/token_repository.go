package repository

import (
	"context"
	"errors"
	"time"

	"memberauth/internal/domain/model"
)

var ErrTokenRecordNotFound = errors.New("token record not found")

// 保存中のrefreshトークンが一致しない（別のログインで置き換わった）
var ErrTokenRotated = errors.New("token record was rotated")

// email単位で最新のトークン1件を保存・取得する
type TokenRepository interface {
	// 同じemailのレコードがあればIDを保ったまま上書き、なければ作成。
	// 保存後のIDはrecord.IDに入る。
	Upsert(ctx context.Context, record *model.TokenRecord) error
	FindByEmail(ctx context.Context, email string) (*model.TokenRecord, error)
	// 保存中のrefreshがrefreshTokenと一致するときだけaccessを差し替える（CAS）。
	// 一致しなければErrTokenRotated、無ければErrTokenRecordNotFound。
	RotateAccess(ctx context.Context, email, refreshToken, accessToken string, accessExpiresAt time.Time) (*model.TokenRecord, error)
	// 退会時の連鎖削除。無くてもエラーにしない
	DeleteByEmail(ctx context.Context, email string) error
}

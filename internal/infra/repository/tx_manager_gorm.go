package repository

import (
	"context"

	repo "memberauth/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	users  repo.UserRepository
	tokens repo.TokenRepository
}

func (r *txReposGorm) Users() repo.UserRepository   { return r.users }
func (r *txReposGorm) Tokens() repo.TokenRepository { return r.tokens }

// txを受け取ってTokenRepositoryを作る。
// redis実装のときはtxを無視して同じstoreを返す。
type TokenRepositoryFactory func(tx *gorm.DB) repo.TokenRepository

// トークンもpostgresに置く場合のfactory
func GormTokens(tx *gorm.DB) repo.TokenRepository {
	return NewTokenGormRepository(tx)
}

// tx外のstoreをそのまま使うfactory
func SharedTokens(tokens repo.TokenRepository) TokenRepositoryFactory {
	return func(*gorm.DB) repo.TokenRepository { return tokens }
}

type TxManagerGorm struct {
	db     *gorm.DB
	tokens TokenRepositoryFactory
}

func NewTxManagerGorm(db *gorm.DB, tokens TokenRepositoryFactory) *TxManagerGorm {
	if tokens == nil {
		tokens = GormTokens
	}
	return &TxManagerGorm{db: db, tokens: tokens}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			users:  NewUserGormRepository(tx),
			tokens: tm.tokens(tx),
		}
		return fn(r)
	})
}

package repository

import (
	"context"
	"errors"
	"time"

	"memberauth/internal/domain/model"
	repo "memberauth/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type tokenGormRepository struct {
	db *gorm.DB //DB接続（GORM）
}

// GORM実装
func NewTokenGormRepository(db *gorm.DB) repo.TokenRepository {
	return &tokenGormRepository{db: db}
}

// email衝突時に上書きする列（id/email/created_atは残す）
var tokenOverwriteColumns = []string{
	"grant_type",
	"access_token",
	"access_token_expires_at",
	"refresh_token",
	"refresh_token_expires_at",
	"user_id",
	"nick_name",
	"authorities",
	"updated_at",
}

// INSERT ... ON CONFLICT (email) DO UPDATE ... RETURNING id
// 1文なので同じemailの同時ログインでも2件にはならない。
func (r *tokenGormRepository) Upsert(ctx context.Context, record *model.TokenRecord) error {
	//IDはDBが決める（既存なら既存のID）
	record.ID = 0

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns(tokenOverwriteColumns),
		}).
		Create(record).Error
	if err != nil {
		return err
	}
	return nil
}

// emailで1件検索します。
func (r *tokenGormRepository) FindByEmail(ctx context.Context, email string) (*model.TokenRecord, error) {
	var rec model.TokenRecord

	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&rec).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrTokenRecordNotFound
		}
		return nil, err
	}

	return &rec, nil
}

// refreshが一致する行だけUPDATEしてRETURNINGで受け取る
func (r *tokenGormRepository) RotateAccess(ctx context.Context, email, refreshToken, accessToken string, accessExpiresAt time.Time) (*model.TokenRecord, error) {
	var rec model.TokenRecord

	res := r.db.WithContext(ctx).
		Model(&rec).
		Clauses(clause.Returning{}).
		Where("email = ? AND refresh_token = ?", email, refreshToken).
		Updates(map[string]interface{}{
			"access_token":            accessToken,
			"access_token_expires_at": accessExpiresAt,
			"updated_at":              time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		//無いのか置き換わったのかを区別する
		if _, err := r.FindByEmail(ctx, email); err != nil {
			return nil, err
		}
		return nil, repo.ErrTokenRotated
	}

	return &rec, nil
}

// 指定emailのトークンを削除します。
func (r *tokenGormRepository) DeleteByEmail(ctx context.Context, email string) error {
	if err := r.db.WithContext(ctx).
		Where("email = ?", email).
		Delete(&model.TokenRecord{}).Error; err != nil {
		return err
	}
	return nil
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"memberauth/internal/domain/model"
	repo "memberauth/internal/repository"

	"github.com/redis/go-redis/v9"
)

const (
	tokenKeyPrefix = "token:"
	tokenSeqKey    = "token:seq"

	defaultUpsertRetries = 16
)

// WATCHの再試行回数を使い切った
var ErrUpsertContention = errors.New("token upsert: too much contention")

// redisに置く形（TokenRecordのjsonタグとは別）
type tokenRedisValue struct {
	ID                    int64     `json:"id"`
	GrantType             string    `json:"grant_type"`
	AccessToken           string    `json:"access_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshToken          string    `json:"refresh_token"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	Email                 string    `json:"email"`
	UserID                int64     `json:"user_id"`
	NickName              string    `json:"nick_name"`
	Authorities           []string  `json:"authorities"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func toRedisValue(r *model.TokenRecord) tokenRedisValue {
	return tokenRedisValue{
		ID:                    r.ID,
		GrantType:             r.GrantType,
		AccessToken:           r.AccessToken,
		AccessTokenExpiresAt:  r.AccessTokenExpiresAt,
		RefreshToken:          r.RefreshToken,
		RefreshTokenExpiresAt: r.RefreshTokenExpiresAt,
		Email:                 r.Email,
		UserID:                r.UserID,
		NickName:              r.NickName,
		Authorities:           r.Authorities,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}

func (v tokenRedisValue) record() *model.TokenRecord {
	return &model.TokenRecord{
		ID:                    v.ID,
		GrantType:             v.GrantType,
		AccessToken:           v.AccessToken,
		AccessTokenExpiresAt:  v.AccessTokenExpiresAt,
		RefreshToken:          v.RefreshToken,
		RefreshTokenExpiresAt: v.RefreshTokenExpiresAt,
		Email:                 v.Email,
		UserID:                v.UserID,
		NickName:              v.NickName,
		Authorities:           v.Authorities,
		CreatedAt:             v.CreatedAt,
		UpdatedAt:             v.UpdatedAt,
	}
}

type tokenRedisRepository struct {
	rdb     redis.UniversalClient
	retries int
	now     func() time.Time
}

type TokenRedisOption func(*tokenRedisRepository)

// WATCH競合時の再試行回数
func WithUpsertRetries(n int) TokenRedisOption {
	return func(r *tokenRedisRepository) {
		if n > 0 {
			r.retries = n
		}
	}
}

func WithRedisClock(now func() time.Time) TokenRedisOption {
	return func(r *tokenRedisRepository) {
		r.now = now
	}
}

// redis実装。キーはtoken:<email>、期限はrefreshの期限に合わせる
func NewTokenRedisRepository(rdb redis.UniversalClient, opts ...TokenRedisOption) repo.TokenRepository {
	r := &tokenRedisRepository{
		rdb:     rdb,
		retries: defaultUpsertRetries,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func tokenKey(email string) string {
	return tokenKeyPrefix + email
}

// WATCH -> GET -> MULTI/SET/EXEC。既存があればIDとcreated_atを引き継ぐ
func (r *tokenRedisRepository) Upsert(ctx context.Context, record *model.TokenRecord) error {
	key := tokenKey(record.Email)
	var saved tokenRedisValue

	txf := func(tx *redis.Tx) error {
		now := r.now()
		next := toRedisValue(record)
		next.CreatedAt = now
		next.UpdatedAt = now

		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			id, err := tx.Incr(ctx, tokenSeqKey).Result()
			if err != nil {
				return err
			}
			next.ID = id
		case err != nil:
			return err
		default:
			var existing tokenRedisValue
			if err := json.Unmarshal(raw, &existing); err != nil {
				return fmt.Errorf("token record %q is corrupt: %w", record.Email, err)
			}
			next.ID = existing.ID
			next.CreatedAt = existing.CreatedAt
		}

		payload, err := json.Marshal(next)
		if err != nil {
			return err
		}

		ttl := next.RefreshTokenExpiresAt.Sub(now)
		if ttl < time.Second {
			ttl = time.Second
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttl)
			return nil
		})
		if err != nil {
			return err
		}

		saved = next
		return nil
	}

	for i := 0; i < r.retries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			//他の書き込みが先に入った
			continue
		}
		if err != nil {
			return err
		}

		*record = *saved.record()
		return nil
	}

	return ErrUpsertContention
}

func (r *tokenRedisRepository) FindByEmail(ctx context.Context, email string) (*model.TokenRecord, error) {
	raw, err := r.rdb.Get(ctx, tokenKey(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repo.ErrTokenRecordNotFound
		}
		return nil, err
	}

	var v tokenRedisValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("token record %q is corrupt: %w", email, err)
	}
	return v.record(), nil
}

// WATCHした上でrefreshを比較し、一致すればaccessだけ書き換える
func (r *tokenRedisRepository) RotateAccess(ctx context.Context, email, refreshToken, accessToken string, accessExpiresAt time.Time) (*model.TokenRecord, error) {
	key := tokenKey(email)
	var saved tokenRedisValue

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return repo.ErrTokenRecordNotFound
			}
			return err
		}

		var cur tokenRedisValue
		if err := json.Unmarshal(raw, &cur); err != nil {
			return fmt.Errorf("token record %q is corrupt: %w", email, err)
		}
		if cur.RefreshToken != refreshToken {
			return repo.ErrTokenRotated
		}

		now := r.now()
		cur.AccessToken = accessToken
		cur.AccessTokenExpiresAt = accessExpiresAt
		cur.UpdatedAt = now

		payload, err := json.Marshal(cur)
		if err != nil {
			return err
		}

		ttl := cur.RefreshTokenExpiresAt.Sub(now)
		if ttl < time.Second {
			ttl = time.Second
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttl)
			return nil
		})
		if err != nil {
			return err
		}

		saved = cur
		return nil
	}

	for i := 0; i < r.retries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return saved.record(), nil
	}

	return nil, ErrUpsertContention
}

func (r *tokenRedisRepository) DeleteByEmail(ctx context.Context, email string) error {
	return r.rdb.Del(ctx, tokenKey(email)).Err()
}

package auth

import (
	"context"
	"errors"
	"time"

	"memberauth/internal/domain/model"
	"memberauth/internal/repository"
	"memberauth/internal/token"

	"github.com/rs/zerolog"
)

// 呼び出し元（リクエスト境界で検証済み）の本人情報
type Principal struct {
	Email       string
	Authorities []string
}

func (p Principal) HasAuthority(authority string) bool {
	for _, a := range p.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}

// refreshで再発行したaccessトークン
type AccessToken struct {
	GrantType   string    `json:"grantType"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"accessTokenTime"`
	Email       string    `json:"userEmail"`
}

// Engineに渡す部品
type Deps struct {
	Users        repository.UserRepository
	Tokens       repository.TokenRepository
	Tx           repository.TransactionManager // nilなら退会を順番に実行
	Hasher       PasswordHasher
	Issuer       *token.Issuer
	RefreshCodec *token.Codec
	Validator    Validator
	Clock        Clock
	Logger       zerolog.Logger
}

// Engineはログイン・外部ログイン・refresh・会員操作をまとめる。
// トークンは1ユーザー(email)につき1件だけ保存される。
type Engine struct {
	users     repository.UserRepository
	tokens    repository.TokenRepository
	tx        repository.TransactionManager
	hasher    PasswordHasher
	issuer    *token.Issuer
	refresh   *token.Codec
	validator Validator
	clock     Clock
	log       zerolog.Logger
}

// DI
func NewEngine(d Deps) (*Engine, error) {
	switch {
	case d.Users == nil:
		return nil, errors.New("auth engine: user repository is required")
	case d.Tokens == nil:
		return nil, errors.New("auth engine: token repository is required")
	case d.Hasher == nil:
		return nil, errors.New("auth engine: password hasher is required")
	case d.Issuer == nil:
		return nil, errors.New("auth engine: token issuer is required")
	case d.RefreshCodec == nil || d.RefreshCodec.Type() != token.TypeRefresh:
		return nil, errors.New("auth engine: refresh codec is required")
	case d.Validator == nil:
		return nil, errors.New("auth engine: validator is required")
	}

	clock := d.Clock
	if clock == nil {
		clock = ClockFunc(time.Now)
	}

	return &Engine{
		users:     d.Users,
		tokens:    d.Tokens,
		tx:        d.Tx,
		hasher:    d.Hasher,
		issuer:    d.Issuer,
		refresh:   d.RefreshCodec,
		validator: d.Validator,
		clock:     clock,
		log:       d.Logger.With().Str("component", "auth").Logger(),
	}, nil
}

// 発行 -> 保存 -> 返却。保存できなければトークンは返さない
func (e *Engine) issueAndStore(ctx context.Context, op string, user model.User) (model.TokenRecord, error) {
	now := e.clock.Now()

	pair, err := e.issuer.Issue(user.Email, user.Authorities(), now)
	if err != nil {
		return model.TokenRecord{}, newError(op, KindInternal, err)
	}

	rec := &model.TokenRecord{
		GrantType:             model.GrantTypeBearer,
		AccessToken:           pair.AccessToken,
		AccessTokenExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:          pair.RefreshToken,
		RefreshTokenExpiresAt: pair.RefreshExpiresAt,
		Email:                 user.Email,
		UserID:                user.ID,
		NickName:              user.NickName,
		Authorities:           user.Authorities(),
	}

	//既存があれば同じIDのまま上書きされる
	if err := e.tokens.Upsert(ctx, rec); err != nil {
		return model.TokenRecord{}, newError(op, KindStorage, err)
	}

	e.log.Debug().
		Str("op", op).
		Str("email", user.Email).
		Int64("token_id", rec.ID).
		Msg("token pair stored")

	return *rec, nil
}

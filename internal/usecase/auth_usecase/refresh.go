package auth

import (
	"context"
	"errors"

	"memberauth/internal/domain/model"
	"memberauth/internal/repository"
)

// Refreshはrefreshトークンからaccessトークンだけを再発行する。
// refreshトークンとその期限は変えない（期限まで有効）。
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (AccessToken, error) {
	const op = "refresh"

	if err := e.validator.ValidateRefresh(ctx, refreshToken); err != nil {
		return AccessToken{}, newError(op, KindMalformed, err)
	}

	//署名と期限はDBを見る前に確認
	claims, err := e.refresh.Decode(refreshToken)
	if err != nil {
		return AccessToken{}, tokenError(op, err)
	}

	rec, err := e.tokens.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrTokenRecordNotFound) {
			return AccessToken{}, newError(op, KindRevokedOrUnknown, nil)
		}
		return AccessToken{}, newError(op, KindStorage, err)
	}

	//後のログインで置き換わった古いrefreshは使えない
	if rec.RefreshToken != refreshToken {
		return AccessToken{}, newError(op, KindRevokedOrUnknown, nil)
	}

	now := e.clock.Now()
	if !rec.RefreshableAt(now) {
		return AccessToken{}, newError(op, KindExpired, nil)
	}

	access, accessExp, err := e.issuer.ReissueAccess(rec.Email, rec.Authorities, now, rec.AccessTokenExpiresAt)
	if err != nil {
		return AccessToken{}, newError(op, KindInternal, err)
	}

	//照合から保存までの間に別のログインが入った場合もここで弾く
	updated, err := e.tokens.RotateAccess(ctx, rec.Email, refreshToken, access, accessExp)
	if err != nil {
		if errors.Is(err, repository.ErrTokenRotated) || errors.Is(err, repository.ErrTokenRecordNotFound) {
			return AccessToken{}, newError(op, KindRevokedOrUnknown, err)
		}
		return AccessToken{}, newError(op, KindStorage, err)
	}

	e.log.Debug().
		Str("op", op).
		Str("email", updated.Email).
		Int64("token_id", updated.ID).
		Msg("access token reissued")

	return AccessToken{
		GrantType:   model.GrantTypeBearer,
		AccessToken: updated.AccessToken,
		ExpiresAt:   updated.AccessTokenExpiresAt,
		Email:       updated.Email,
	}, nil
}

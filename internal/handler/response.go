package handler

import (
	"net/http"
	"time"

	"memberauth/internal/domain/model"
	auth "memberauth/internal/usecase/auth_usecase"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}

type messageResponse struct {
	Message string `json:"message"`
}

// ログイン結果（保存済みのTokenRecord）
type tokenResponse struct {
	ID               int64     `json:"id"`
	GrantType        string    `json:"grantType"`
	AccessToken      string    `json:"accessToken"`
	AccessTokenTime  time.Time `json:"accessTokenTime"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshTokenTime time.Time `json:"refreshTokenTime"`
	UserEmail        string    `json:"userEmail"`
	UserID           int64     `json:"userId"`
	NickName         string    `json:"nickName"`
	Authorities      []string  `json:"authorities"`
}

func toTokenResponse(r model.TokenRecord) tokenResponse {
	return tokenResponse{
		ID:               r.ID,
		GrantType:        r.GrantType,
		AccessToken:      r.AccessToken,
		AccessTokenTime:  r.AccessTokenExpiresAt,
		RefreshToken:     r.RefreshToken,
		RefreshTokenTime: r.RefreshTokenExpiresAt,
		UserEmail:        r.Email,
		UserID:           r.UserID,
		NickName:         r.NickName,
		Authorities:      r.Authorities,
	}
}

// Kindごとのステータスとエラーコード
func statusOf(kind auth.Kind) (int, string) {
	switch kind {
	case auth.KindValidation:
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case auth.KindInvalidCredentials:
		return http.StatusUnauthorized, "INVALID_CREDENTIALS"
	case auth.KindUnlinkedAccount:
		return http.StatusUnauthorized, "UNLINKED_ACCOUNT"
	case auth.KindMalformed, auth.KindInvalidSignature:
		return http.StatusUnauthorized, "INVALID_TOKEN"
	case auth.KindExpired:
		return http.StatusUnauthorized, "TOKEN_EXPIRED"
	case auth.KindRevokedOrUnknown:
		return http.StatusUnauthorized, "TOKEN_REVOKED"
	case auth.KindUnauthenticated:
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case auth.KindUserNotFound:
		return http.StatusNotFound, "USER_NOT_FOUND"
	case auth.KindConflict:
		return http.StatusConflict, "CONFLICT"
	case auth.KindStorage:
		return http.StatusInternalServerError, "STORAGE_UNAVAILABLE"
	case auth.KindInternal:
		return http.StatusInternalServerError, "INTERNAL"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// usecaseのエラーをJSONにする。5xxだけログに残す
func writeError(c echo.Context, log zerolog.Logger, err error) error {
	status, code := statusOf(auth.KindOf(err))
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Msg("request failed")
	}
	return c.JSON(status, errorJSON(code))
}

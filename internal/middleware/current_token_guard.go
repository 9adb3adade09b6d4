package middleware

import (
	"errors"
	"net/http"

	"memberauth/internal/repository"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// 提示されたaccessトークンが保存中のものと一致するか確認。
// 後のログインで置き換わったトークンはここで401になる
func CurrentTokenGuard(tokens repository.TokenRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			rawToken, _ := c.Get(CtxAccessTokenKey).(string)
			if rawToken == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			rec, err := tokens.FindByEmail(c.Request().Context(), p.Email)
			if errors.Is(err, repository.ErrTokenRecordNotFound) || (err == nil && rec == nil) {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			if err != nil {
				//ストア障害は401にしない
				log.Error().Err(err).Str("email", p.Email).Msg("token store lookup failed")
				return c.JSON(http.StatusInternalServerError, errorJSON("storage unavailable"))
			}

			if rec.AccessToken != rawToken {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			return next(c)
		}
	}
}

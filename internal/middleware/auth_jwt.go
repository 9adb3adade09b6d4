package middleware

import (
	"net/http"
	"strings"

	"memberauth/internal/token"
	auth "memberauth/internal/usecase/auth_usecase"

	"github.com/labstack/echo/v4"
)

const (
	CtxPrincipalKey   = "principal"    // auth.Principal
	CtxAccessTokenKey = "access_token" // string
)

// bearerAuth用のJWT検証ミドルウェア。accessトークンのみ受け付ける
func AuthJWT(access *token.Codec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rawToken, ok := BearerToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//署名・期限・種類を検証
			claims, err := access.Decode(rawToken)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//contextへ保存
			c.Set(CtxPrincipalKey, auth.Principal{
				Email:       claims.Subject,
				Authorities: claims.Authorities,
			})
			c.Set(CtxAccessTokenKey, rawToken)

			return next(c)
		}
	}
}

// BearerTokenはAuthorizationヘッダからBearerトークンを抜き出す
func BearerToken(c echo.Context) (string, bool) {
	authz := c.Request().Header.Get("Authorization")
	if authz == "" {
		return "", false
	}

	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	rawToken := strings.TrimSpace(parts[1])
	if rawToken == "" {
		return "", false
	}
	return rawToken, true
}

// AuthJWTが入れた本人情報を取り出す
func PrincipalFrom(c echo.Context) (auth.Principal, bool) {
	p, ok := c.Get(CtxPrincipalKey).(auth.Principal)
	if !ok || p.Email == "" {
		return auth.Principal{}, false
	}
	return p, true
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}

package server

import (
	"memberauth/internal/handler"
	"memberauth/internal/middleware"
	"memberauth/internal/repository"
	"memberauth/internal/token"

	"github.com/labstack/echo/v4"
)

// ルーティングに必要な部品
type Routes struct {
	Access *token.Codec
	Tokens repository.TokenRepository
	Member *handler.MemberHandler
	Admin  *handler.AdminUserHandler
	OAuth  *handler.OAuthHandler // nilならOAuth2ログインは無効
}

func RegisterRoutes(e *echo.Echo, r Routes) {
	// JWT必須 + 最新のトークンであること
	authed := []echo.MiddlewareFunc{
		middleware.AuthJWT(r.Access),
		middleware.CurrentTokenGuard(r.Tokens),
	}
	// さらにADMIN限定
	adminOnly := append(append([]echo.MiddlewareFunc{}, authed...), middleware.AdminRoleGuard())

	users := e.Group("/api/v1/users")

	users.POST("", r.Member.SignUp)
	users.POST("/login", r.Member.Login)
	users.POST("/refresh", r.Member.Refresh)

	if r.OAuth != nil {
		users.GET("/oauth2/login", r.OAuth.Login)
		users.GET("/oauth2/callback", r.OAuth.Callback)
	}

	users.GET("/logout", r.Member.Logout, authed...)
	users.PUT("", r.Member.Update, authed...)
	users.GET("/:userId", r.Member.Search, authed...)
	users.DELETE("/:userId", r.Admin.Withdraw, adminOnly...)
}

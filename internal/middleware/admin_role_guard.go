package middleware

import (
	"net/http"

	"memberauth/internal/domain/model"

	"github.com/labstack/echo/v4"
)

//contextに入っている本人がROLE_ADMINを持つか確認します。

func AdminRoleGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//USERは拒否、ADMINだけ許可
			if !p.HasAuthority(model.RoleAdmin.Authority()) {
				return c.JSON(http.StatusForbidden, errorJSON("admin only"))
			}

			return next(c)
		}
	}
}

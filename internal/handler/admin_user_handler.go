package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type AdminUserHandler struct {
	svc MemberService
	log zerolog.Logger
}

func NewAdminUserHandler(svc MemberService, log zerolog.Logger) *AdminUserHandler {
	return &AdminUserHandler{svc: svc, log: log}
}

// WithdrawはDELETE /api/v1/users/:userId のハンドラ（ADMIN限定）
func (h *AdminUserHandler) Withdraw(c echo.Context) error {
	userID, ok := parseUserID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, errorJSON("invalid user_id"))
	}

	if err := h.svc.Withdraw(c.Request().Context(), userID); err != nil {
		return writeError(c, h.log, err)
	}

	h.log.Info().Int64("user_id", userID).Msg("member withdrawn")
	return c.NoContent(http.StatusNoContent)
}

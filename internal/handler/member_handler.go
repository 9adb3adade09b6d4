package handler

import (
	"context"
	"net/http"
	"strconv"

	"memberauth/internal/domain/model"
	"memberauth/internal/middleware"
	auth "memberauth/internal/usecase/auth_usecase"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// handlerが使うusecase（*auth.Engineが実装する）
type MemberService interface {
	SignUp(ctx context.Context, in auth.SignUpInput) (model.User, error)
	Login(ctx context.Context, email string, password string) (model.TokenRecord, error)
	LoginViaExternalIdentity(ctx context.Context, ext model.ExternalIdentity) (model.TokenRecord, error)
	RegisterExternal(ctx context.Context, ext model.ExternalIdentity) (model.User, error)
	Refresh(ctx context.Context, refreshToken string) (auth.AccessToken, error)
	Logout(ctx context.Context, p auth.Principal) error
	Update(ctx context.Context, in auth.UpdateInput, authenticatedEmail string) (model.User, error)
	Search(ctx context.Context, userID int64) (model.User, error)
	Withdraw(ctx context.Context, userID int64) error
}

var _ MemberService = (*auth.Engine)(nil)

type MemberHandler struct {
	svc MemberService
	log zerolog.Logger
}

// DIコンストラクタ
func NewMemberHandler(svc MemberService, log zerolog.Logger) *MemberHandler {
	return &MemberHandler{svc: svc, log: log}
}

// POST /api/v1/users のリクエストボディ。
type signUpRequest struct {
	Email          string `json:"userEmail"`
	Password       string `json:"userPassword"`
	UserName       string `json:"userName"`
	NickName       string `json:"nickName"`
	UserAddr       string `json:"userAddr"`
	UserAddrDetail string `json:"userAddrDetail"`
	UserAddrEtc    string `json:"userAddrEtc"`
}

// POST /api/v1/users/login のリクエストボディ。
type loginRequest struct {
	Email    string `json:"userEmail"`
	Password string `json:"userPassword"`
}

// PUT /api/v1/users のリクエストボディ。emailは受け取らない
type updateRequest struct {
	UserName *string        `json:"userName"`
	NickName *string        `json:"nickName"`
	Password *string        `json:"userPassword"`
	Address  *model.Address `json:"address"`
}

// SignUpはPOST /api/v1/users のハンドラ
func (h *MemberHandler) SignUp(c echo.Context) error {
	var req signUpRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON("VALIDATION_ERROR"))
	}

	user, err := h.svc.SignUp(c.Request().Context(), auth.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		UserName: req.UserName,
		NickName: req.NickName,
		Address: model.Address{
			Line:   req.UserAddr,
			Detail: req.UserAddrDetail,
			Etc:    req.UserAddrEtc,
		},
	})
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, user)
}

// LoginはPOST /api/v1/users/login のハンドラ。
func (h *MemberHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON("VALIDATION_ERROR"))
	}

	rec, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, toTokenResponse(rec))
}

// RefreshはPOST /api/v1/users/refresh のハンドラ。refreshトークンはBearerで受け取る
func (h *MemberHandler) Refresh(c echo.Context) error {
	raw, ok := middleware.BearerToken(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON("UNAUTHORIZED"))
	}

	out, err := h.svc.Refresh(c.Request().Context(), raw)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, out)
}

// LogoutはGET /api/v1/users/logout のハンドラ
func (h *MemberHandler) Logout(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON("UNAUTHORIZED"))
	}

	if err := h.svc.Logout(c.Request().Context(), p); err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, messageResponse{Message: "logged out"})
}

// UpdateはPUT /api/v1/users のハンドラ。対象はログイン中の本人
func (h *MemberHandler) Update(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON("UNAUTHORIZED"))
	}

	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON("VALIDATION_ERROR"))
	}

	user, err := h.svc.Update(c.Request().Context(), auth.UpdateInput{
		UserName: req.UserName,
		NickName: req.NickName,
		Password: req.Password,
		Address:  req.Address,
	}, p.Email)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, user)
}

// SearchはGET /api/v1/users/:userId のハンドラ
func (h *MemberHandler) Search(c echo.Context) error {
	userID, ok := parseUserID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, errorJSON("invalid user_id"))
	}

	user, err := h.svc.Search(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, user)
}

func parseUserID(c echo.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil || userID <= 0 {
		return 0, false
	}
	return userID, true
}

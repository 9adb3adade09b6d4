package handler

import (
	"context"
	"net/http"

	"memberauth/internal/domain/model"
	auth "memberauth/internal/usecase/auth_usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	stateCookieName    = "oauth_state"
	nonceCookieName    = "oauth_nonce"
	verifierCookieName = "oauth_verifier"
	oauthCookiePath    = "/api/v1/users/oauth2"
	oauthCookieMaxAge  = 300 // 認可画面からの戻りまで
)

// 外部プロバイダ（*oauth.Providerが実装する）
type ExternalProvider interface {
	AuthCodeURL(state, nonce, codeVerifier string) string
	Exchange(ctx context.Context, code, nonce, codeVerifier string) (model.ExternalIdentity, error)
}

type OAuthHandler struct {
	provider     ExternalProvider
	svc          MemberService
	cookieSecure bool
	log          zerolog.Logger
}

func NewOAuthHandler(provider ExternalProvider, svc MemberService, cookieSecure bool, log zerolog.Logger) *OAuthHandler {
	return &OAuthHandler{
		provider:     provider,
		svc:          svc,
		cookieSecure: cookieSecure,
		log:          log,
	}
}

// LoginはGET /api/v1/users/oauth2/login のハンドラ。プロバイダへリダイレクトする
func (h *OAuthHandler) Login(c echo.Context) error {
	state := uuid.NewString()
	nonce := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	h.setCookie(c, stateCookieName, state, oauthCookieMaxAge)
	h.setCookie(c, nonceCookieName, nonce, oauthCookieMaxAge)
	h.setCookie(c, verifierCookieName, verifier, oauthCookieMaxAge)

	return c.Redirect(http.StatusFound, h.provider.AuthCodeURL(state, nonce, verifier))
}

// CallbackはGET /api/v1/users/oauth2/callback のハンドラ。
// 初めての人は会員登録してからログインする
func (h *OAuthHandler) Callback(c echo.Context) error {
	if c.QueryParam("error") != "" {
		return c.JSON(http.StatusBadRequest, errorJSON("AUTHORIZATION_DENIED"))
	}

	code := c.QueryParam("code")
	state := c.QueryParam("state")
	if code == "" || state == "" {
		return c.JSON(http.StatusBadRequest, errorJSON("VALIDATION_ERROR"))
	}

	//stateはcookieと一致すること（CSRF）
	if cookieValue(c, stateCookieName) != state {
		return c.JSON(http.StatusBadRequest, errorJSON("INVALID_STATE"))
	}
	nonce := cookieValue(c, nonceCookieName)
	verifier := cookieValue(c, verifierCookieName)

	//一度使ったら消す
	h.setCookie(c, stateCookieName, "", -1)
	h.setCookie(c, nonceCookieName, "", -1)
	h.setCookie(c, verifierCookieName, "", -1)

	ctx := c.Request().Context()

	ext, err := h.provider.Exchange(ctx, code, nonce, verifier)
	if err != nil {
		h.log.Warn().Err(err).Msg("oauth2 exchange failed")
		return c.JSON(http.StatusUnauthorized, errorJSON("UNAUTHORIZED"))
	}

	rec, err := h.svc.LoginViaExternalIdentity(ctx, ext)
	if auth.KindOf(err) == auth.KindUserNotFound {
		if _, err := h.svc.RegisterExternal(ctx, ext); err != nil {
			return writeError(c, h.log, err)
		}
		h.log.Info().Str("provider", ext.Provider).Str("email", ext.Email).Msg("member provisioned")
		rec, err = h.svc.LoginViaExternalIdentity(ctx, ext)
	}
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, toTokenResponse(rec))
}

func (h *OAuthHandler) setCookie(c echo.Context, name, value string, maxAge int) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     oauthCookiePath,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func cookieValue(c echo.Context, name string) string {
	ck, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}

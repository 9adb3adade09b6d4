package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"memberauth/internal/domain/model"
	"memberauth/internal/middleware"
	auth "memberauth/internal/usecase/auth_usecase"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =====================
// Mock: MemberService
// =====================

type MockMemberService struct {
	mock.Mock
}

func (m *MockMemberService) SignUp(ctx context.Context, in auth.SignUpInput) (model.User, error) {
	args := m.Called(ctx, in)
	u, _ := args.Get(0).(model.User)
	return u, args.Error(1)
}

func (m *MockMemberService) Login(ctx context.Context, email string, password string) (model.TokenRecord, error) {
	args := m.Called(ctx, email, password)
	r, _ := args.Get(0).(model.TokenRecord)
	return r, args.Error(1)
}

func (m *MockMemberService) LoginViaExternalIdentity(ctx context.Context, ext model.ExternalIdentity) (model.TokenRecord, error) {
	args := m.Called(ctx, ext)
	r, _ := args.Get(0).(model.TokenRecord)
	return r, args.Error(1)
}

func (m *MockMemberService) RegisterExternal(ctx context.Context, ext model.ExternalIdentity) (model.User, error) {
	args := m.Called(ctx, ext)
	u, _ := args.Get(0).(model.User)
	return u, args.Error(1)
}

func (m *MockMemberService) Refresh(ctx context.Context, refreshToken string) (auth.AccessToken, error) {
	args := m.Called(ctx, refreshToken)
	a, _ := args.Get(0).(auth.AccessToken)
	return a, args.Error(1)
}

func (m *MockMemberService) Logout(ctx context.Context, p auth.Principal) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockMemberService) Update(ctx context.Context, in auth.UpdateInput, authenticatedEmail string) (model.User, error) {
	args := m.Called(ctx, in, authenticatedEmail)
	u, _ := args.Get(0).(model.User)
	return u, args.Error(1)
}

func (m *MockMemberService) Search(ctx context.Context, userID int64) (model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(model.User)
	return u, args.Error(1)
}

func (m *MockMemberService) Withdraw(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

var _ MemberService = (*MockMemberService)(nil)

// =====================
// Mock: ExternalProvider
// =====================

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) AuthCodeURL(state, nonce, codeVerifier string) string {
	args := m.Called(state, nonce, codeVerifier)
	return args.String(0)
}

func (m *MockProvider) Exchange(ctx context.Context, code, nonce, codeVerifier string) (model.ExternalIdentity, error) {
	args := m.Called(ctx, code, nonce, codeVerifier)
	ext, _ := args.Get(0).(model.ExternalIdentity)
	return ext, args.Error(1)
}

// =====================
// helper
// =====================

// 任意のPrincipalを入れるテスト用ミドルウェア
func withPrincipal(p auth.Principal) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.CtxPrincipalKey, p)
			return next(c)
		}
	}
}

func newTestEcho(svc MemberService, p *auth.Principal) *echo.Echo {
	e := echo.New()
	h := NewMemberHandler(svc, zerolog.Nop())
	admin := NewAdminUserHandler(svc, zerolog.Nop())

	var mw []echo.MiddlewareFunc
	if p != nil {
		mw = append(mw, withPrincipal(*p))
	}

	g := e.Group("/api/v1/users")
	g.POST("", h.SignUp)
	g.POST("/login", h.Login)
	g.POST("/refresh", h.Refresh)
	g.GET("/logout", h.Logout, mw...)
	g.PUT("", h.Update, mw...)
	g.GET("/:userId", h.Search, mw...)
	g.DELETE("/:userId", admin.Withdraw, mw...)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var r errorResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r.Error
}

func kindErr(kind auth.Kind) error {
	return &auth.Error{Kind: kind, Op: "test"}
}

// =====================
// tests
// =====================

func TestStatusOf_EveryKind(t *testing.T) {
	cases := map[auth.Kind]int{
		auth.KindValidation:         http.StatusBadRequest,
		auth.KindInvalidCredentials: http.StatusUnauthorized,
		auth.KindUnlinkedAccount:    http.StatusUnauthorized,
		auth.KindMalformed:          http.StatusUnauthorized,
		auth.KindInvalidSignature:   http.StatusUnauthorized,
		auth.KindExpired:            http.StatusUnauthorized,
		auth.KindRevokedOrUnknown:   http.StatusUnauthorized,
		auth.KindUnauthenticated:    http.StatusUnauthorized,
		auth.KindUserNotFound:       http.StatusNotFound,
		auth.KindConflict:           http.StatusConflict,
		auth.KindStorage:            http.StatusInternalServerError,
		auth.KindInternal:           http.StatusInternalServerError,
	}
	for kind, want := range cases {
		status, code := statusOf(kind)
		assert.Equal(t, want, status, kind.String())
		assert.NotEmpty(t, code)
	}
}

func TestSignUp(t *testing.T) {
	svc := new(MockMemberService)
	e := newTestEcho(svc, nil)

	in := auth.SignUpInput{
		Email:    "a@x.com",
		Password: "CorrectHorse1",
		UserName: "tester",
		NickName: "neo",
		Address:  model.Address{Line: "Osaka", Detail: "1-2", Etc: "301"},
	}
	svc.On("SignUp", mock.Anything, in).
		Return(model.User{ID: 1, Email: "a@x.com", UserName: "tester", Role: model.RoleUser}, nil).Once()

	body := `{"userEmail":"a@x.com","userPassword":"CorrectHorse1","userName":"tester","nickName":"neo",
		"userAddr":"Osaka","userAddrDetail":"1-2","userAddrEtc":"301"}`
	rec := doJSON(t, e, http.MethodPost, "/api/v1/users", body, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "CorrectHorse1")

	var got model.User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, int64(1), got.ID)
	svc.AssertExpectations(t)
}

func TestSignUp_Conflict(t *testing.T) {
	svc := new(MockMemberService)
	e := newTestEcho(svc, nil)

	svc.On("SignUp", mock.Anything, mock.Anything).Return(nil, kindErr(auth.KindConflict)).Once()

	rec := doJSON(t, e, http.MethodPost, "/api/v1/users", `{"userEmail":"a@x.com"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decodeErr(t, rec))
}

func TestLogin(t *testing.T) {
	svc := new(MockMemberService)
	e := newTestEcho(svc, nil)

	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.On("Login", mock.Anything, "a@x.com", "pw1").Return(model.TokenRecord{
		ID:                    7,
		GrantType:             model.GrantTypeBearer,
		AccessToken:           "access",
		AccessTokenExpiresAt:  exp,
		RefreshToken:          "refresh",
		RefreshTokenExpiresAt: exp.Add(time.Hour),
		Email:                 "a@x.com",
		UserID:                1,
		NickName:              "neo",
		Authorities:           []string{"ROLE_USER"},
	}, nil).Once()

	rec := doJSON(t, e, http.MethodPost, "/api/v1/users/login", `{"userEmail":"a@x.com","userPassword":"pw1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got tokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "Bearer", got.GrantType)
	assert.Equal(t, "access", got.AccessToken)
	assert.Equal(t, "refresh", got.RefreshToken)
	assert.True(t, got.AccessTokenTime.Equal(exp))
	assert.Equal(t, "a@x.com", got.UserEmail)
	assert.Equal(t, []string{"ROLE_USER"}, got.Authorities)
}

func TestLogin_Errors(t *testing.T) {
	cases := []struct {
		kind   auth.Kind
		status int
		code   string
	}{
		{auth.KindInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{auth.KindUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
		{auth.KindValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
		{auth.KindStorage, http.StatusInternalServerError, "STORAGE_UNAVAILABLE"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			svc := new(MockMemberService)
			e := newTestEcho(svc, nil)
			svc.On("Login", mock.Anything, "a@x.com", "bad").Return(nil, kindErr(tc.kind)).Once()

			rec := doJSON(t, e, http.MethodPost, "/api/v1/users/login", `{"userEmail":"a@x.com","userPassword":"bad"}`, nil)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decodeErr(t, rec))
		})
	}
}

func TestLogin_BadJSON(t *testing.T) {
	svc := new(MockMemberService)
	e := newTestEcho(svc, nil)

	rec := doJSON(t, e, http.MethodPost, "/api/v1/users/login", `{"userEmail":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
}

func TestRefresh(t *testing.T) {
	svc := new(MockMemberService)
	e := newTestEcho(svc, nil)

	svc.On("Refresh", mock.Anything, "refresh-token").Return(auth.AccessToken{
		GrantType:   model.GrantTypeBearer,
		AccessToken: "new-access",
		Email:       "a@x.com",
	}, nil).Once()

	rec := doJSON(t, e, http.MethodPost, "/api/v1/users/refresh", "", map[string]string{"Authorization": "Bearer refresh-token"})
	require.Equal(t, http.StatusOK, rec.Code)

	var got auth.AccessToken
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "new-access", got.AccessToken)
}

func TestRefresh_Errors(t *testing.T) {
	svc := new(MockMemberService)
	e := newTestEcho(svc, nil)

	rec := doJSON(t, e, http.MethodPost, "/api/v1/users/refresh", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	svc.On("Refresh", mock.Anything, "old").Return(nil, kindErr(auth.KindRevokedOrUnknown)).Once()
	rec = doJSON(t, e, http.MethodPost, "/api/v1/users/refresh", "", map[string]string{"Authorization": "Bearer old"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_REVOKED", decodeErr(t, rec))

	svc.On("Refresh", mock.Anything, "expired").Return(nil, kindErr(auth.KindExpired)).Once()
	rec = doJSON(t, e, http.MethodPost, "/api/v1/users/refresh", "", map[string]string{"Authorization": "Bearer expired"})
	assert.Equal(t, "TOKEN_EXPIRED", decodeErr(t, rec))
}

func TestLogout(t *testing.T) {
	p := auth.Principal{Email: "a@x.com", Authorities: []string{"ROLE_USER"}}

	svc := new(MockMemberService)
	svc.On("Logout", mock.Anything, p).Return(nil).Once()

	rec := doJSON(t, newTestEcho(svc, &p), http.MethodGet, "/api/v1/users/logout", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)

	//Principalなし
	rec = doJSON(t, newTestEcho(new(MockMemberService), nil), http.MethodGet, "/api/v1/users/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdate_UsesPrincipalEmail(t *testing.T) {
	p := auth.Principal{Email: "a@x.com", Authorities: []string{"ROLE_USER"}}
	svc := new(MockMemberService)

	svc.On("Update", mock.Anything, mock.MatchedBy(func(in auth.UpdateInput) bool {
		return in.NickName != nil && *in.NickName == "trinity" && in.UserName == nil
	}), "a@x.com").Return(model.User{ID: 1, Email: "a@x.com", NickName: "trinity"}, nil).Once()

	//bodyのemailは無視される
	rec := doJSON(t, newTestEcho(svc, &p), http.MethodPut, "/api/v1/users",
		`{"nickName":"trinity","userEmail":"evil@x.com"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestSearch(t *testing.T) {
	p := auth.Principal{Email: "a@x.com"}
	svc := new(MockMemberService)
	e := newTestEcho(svc, &p)

	svc.On("Search", mock.Anything, int64(3)).Return(model.User{ID: 3, Email: "c@x.com"}, nil).Once()
	svc.On("Search", mock.Anything, int64(4)).Return(nil, kindErr(auth.KindUserNotFound)).Once()

	assert.Equal(t, http.StatusOK, doJSON(t, e, http.MethodGet, "/api/v1/users/3", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, e, http.MethodGet, "/api/v1/users/4", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, e, http.MethodGet, "/api/v1/users/abc", "", nil).Code)
}

func TestWithdraw(t *testing.T) {
	p := auth.Principal{Email: "admin@x.com", Authorities: []string{"ROLE_ADMIN"}}
	svc := new(MockMemberService)
	e := newTestEcho(svc, &p)

	svc.On("Withdraw", mock.Anything, int64(3)).Return(nil).Once()
	svc.On("Withdraw", mock.Anything, int64(4)).Return(kindErr(auth.KindStorage)).Once()

	assert.Equal(t, http.StatusNoContent, doJSON(t, e, http.MethodDelete, "/api/v1/users/3", "", nil).Code)
	assert.Equal(t, http.StatusInternalServerError, doJSON(t, e, http.MethodDelete, "/api/v1/users/4", "", nil).Code)
}

// =====================
// OAuth2
// =====================

func newOAuthEcho(provider ExternalProvider, svc MemberService) *echo.Echo {
	e := echo.New()
	h := NewOAuthHandler(provider, svc, false, zerolog.Nop())
	e.GET("/api/v1/users/oauth2/login", h.Login)
	e.GET("/api/v1/users/oauth2/callback", h.Callback)
	return e
}

func cookiesOf(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func callback(t *testing.T, e *echo.Echo, query url.Values, cookies map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/oauth2/callback?"+query.Encode(), nil)
	for name, v := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: v})
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestOAuthLogin_Redirects(t *testing.T) {
	provider := new(MockProvider)
	provider.On("AuthCodeURL", mock.Anything, mock.Anything, mock.Anything).Return("https://idp.test/authorize?x=1").Once()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/oauth2/login", nil)
	rec := httptest.NewRecorder()
	newOAuthEcho(provider, new(MockMemberService)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://idp.test/authorize?x=1", rec.Header().Get("Location"))

	cookies := cookiesOf(rec)
	require.Contains(t, cookies, stateCookieName)
	require.Contains(t, cookies, nonceCookieName)
	require.Contains(t, cookies, verifierCookieName)
	assert.True(t, cookies[stateCookieName].HttpOnly)

	//cookieと同じ値がプロバイダに渡る
	provider.AssertCalled(t, "AuthCodeURL",
		cookies[stateCookieName].Value, cookies[nonceCookieName].Value, cookies[verifierCookieName].Value)
}

func TestOAuthCallback(t *testing.T) {
	ext := model.ExternalIdentity{Email: "a@x.com", DisplayName: "Neo", Provider: "google", ProviderID: "g-1"}
	cookies := map[string]string{stateCookieName: "s1", nonceCookieName: "n1", verifierCookieName: "v1"}
	q := url.Values{"code": {"c1"}, "state": {"s1"}}

	t.Run("existing member", func(t *testing.T) {
		provider := new(MockProvider)
		svc := new(MockMemberService)
		provider.On("Exchange", mock.Anything, "c1", "n1", "v1").Return(ext, nil).Once()
		svc.On("LoginViaExternalIdentity", mock.Anything, ext).Return(model.TokenRecord{ID: 1, AccessToken: "a"}, nil).Once()

		rec := callback(t, newOAuthEcho(provider, svc), q, cookies)
		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertNotCalled(t, "RegisterExternal", mock.Anything, mock.Anything)
	})

	t.Run("first time provisions", func(t *testing.T) {
		provider := new(MockProvider)
		svc := new(MockMemberService)
		provider.On("Exchange", mock.Anything, "c1", "n1", "v1").Return(ext, nil).Once()
		svc.On("LoginViaExternalIdentity", mock.Anything, ext).Return(nil, kindErr(auth.KindUserNotFound)).Once()
		svc.On("RegisterExternal", mock.Anything, ext).Return(model.User{ID: 2, Email: "a@x.com"}, nil).Once()
		svc.On("LoginViaExternalIdentity", mock.Anything, ext).Return(model.TokenRecord{ID: 1, AccessToken: "a"}, nil).Once()

		rec := callback(t, newOAuthEcho(provider, svc), q, cookies)
		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("unlinked account", func(t *testing.T) {
		provider := new(MockProvider)
		svc := new(MockMemberService)
		provider.On("Exchange", mock.Anything, "c1", "n1", "v1").Return(ext, nil).Once()
		svc.On("LoginViaExternalIdentity", mock.Anything, ext).Return(nil, kindErr(auth.KindUnlinkedAccount)).Once()

		rec := callback(t, newOAuthEcho(provider, svc), q, cookies)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNLINKED_ACCOUNT", decodeErr(t, rec))
	})

	t.Run("state mismatch", func(t *testing.T) {
		provider := new(MockProvider)
		rec := callback(t, newOAuthEcho(provider, new(MockMemberService)),
			url.Values{"code": {"c1"}, "state": {"other"}}, cookies)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		provider.AssertNotCalled(t, "Exchange", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("exchange failure", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("Exchange", mock.Anything, "c1", "n1", "v1").Return(nil, errors.New("bad nonce")).Once()

		rec := callback(t, newOAuthEcho(provider, new(MockMemberService)), q, cookies)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("provider error", func(t *testing.T) {
		rec := callback(t, newOAuthEcho(new(MockProvider), new(MockMemberService)),
			url.Values{"error": {"access_denied"}}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

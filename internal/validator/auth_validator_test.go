package validator

import (
	"context"
	"strings"
	"testing"

	auth "memberauth/internal/usecase/auth_usecase"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestValidateSignUp(t *testing.T) {
	v := NewAuthValidator()
	ctx := context.Background()

	ok := auth.SignUpInput{Email: "a@example.com", Password: "CorrectHorse1", UserName: "tester"}
	assert.NoError(t, v.ValidateSignUp(ctx, ok))

	cases := map[string]auth.SignUpInput{
		"bad email":      {Email: "not-an-email", Password: "CorrectHorse1", UserName: "tester"},
		"short password": {Email: "a@x.com", Password: "short", UserName: "tester"},
		"long password":  {Email: "a@x.com", Password: strings.Repeat("x", 73), UserName: "tester"},
		"weak password":  {Email: "a@x.com", Password: "password123", UserName: "tester"},
		"no user name":   {Email: "a@x.com", Password: "CorrectHorse1"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			err := v.ValidateSignUp(ctx, in)
			assert.Error(t, err)

			var verrs validation.Errors
			assert.ErrorAs(t, err, &verrs)
		})
	}
}

func TestValidateLogin(t *testing.T) {
	v := NewAuthValidator()
	ctx := context.Background()

	assert.NoError(t, v.ValidateLogin(ctx, "a@x.com", "pw1"))
	assert.Error(t, v.ValidateLogin(ctx, "", "pw1"))
	assert.Error(t, v.ValidateLogin(ctx, "a@x.com", ""))
	assert.Error(t, v.ValidateLogin(ctx, "a@", "pw1"))
}

func TestValidateRefresh(t *testing.T) {
	v := NewAuthValidator()

	assert.NoError(t, v.ValidateRefresh(context.Background(), "token"))
	assert.Error(t, v.ValidateRefresh(context.Background(), "   "))
}

func TestValidateUpdate(t *testing.T) {
	v := NewAuthValidator()
	ctx := context.Background()

	// 何も指定しないのはOK
	assert.NoError(t, v.ValidateUpdate(ctx, auth.UpdateInput{}))
	assert.NoError(t, v.ValidateUpdate(ctx, auth.UpdateInput{NickName: strPtr("neo"), Password: strPtr("CorrectHorse1")}))

	assert.Error(t, v.ValidateUpdate(ctx, auth.UpdateInput{UserName: strPtr("")}))
	assert.Error(t, v.ValidateUpdate(ctx, auth.UpdateInput{Password: strPtr("short")}))
	assert.Error(t, v.ValidateUpdate(ctx, auth.UpdateInput{Password: strPtr("password")}))
}

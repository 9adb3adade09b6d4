package auth

import (
	"errors"
	"fmt"

	"memberauth/internal/token"
)

// 失敗の種類。呼び出し側はKindOfでswitchする
type Kind int

const (
	KindInternal Kind = iota
	// 本人特定の失敗（クライアントエラー、リトライしない）
	KindUserNotFound
	KindInvalidCredentials
	KindUnlinkedAccount
	// トークン検証の失敗（再ログインが必要）
	KindMalformed
	KindInvalidSignature
	KindExpired
	KindRevokedOrUnknown
	// 入力・競合
	KindValidation
	KindConflict
	KindUnauthenticated
	// 一時的な保存失敗（リトライは呼び出し側の判断）
	KindStorage
)

var kindNames = map[Kind]string{
	KindInternal:           "internal",
	KindUserNotFound:       "user not found",
	KindInvalidCredentials: "invalid credentials",
	KindUnlinkedAccount:    "unlinked account",
	KindMalformed:          "malformed token",
	KindInvalidSignature:   "invalid signature",
	KindExpired:            "expired",
	KindRevokedOrUnknown:   "revoked or unknown token",
	KindValidation:         "validation error",
	KindConflict:           "conflict",
	KindUnauthenticated:    "unauthenticated",
	KindStorage:            "storage unavailable",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Errorは操作名と種類と原因を持つ
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// 同じKindなら一致（errors.Is(err, auth.ErrExpired)）
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrUserNotFound       = &Error{Kind: KindUserNotFound}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrUnlinkedAccount    = &Error{Kind: KindUnlinkedAccount}
	ErrMalformed          = &Error{Kind: KindMalformed}
	ErrInvalidSignature   = &Error{Kind: KindInvalidSignature}
	ErrExpired            = &Error{Kind: KindExpired}
	ErrRevokedOrUnknown   = &Error{Kind: KindRevokedOrUnknown}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated}
	ErrStorage            = &Error{Kind: KindStorage}
	ErrInternal           = &Error{Kind: KindInternal}
)

func newError(op string, kind Kind, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOfはerrのKindを返す。*Errorを含まなければKindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// tokenパッケージのエラーをKindに寄せる
func tokenError(op string, err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return newError(op, KindExpired, err)
	case errors.Is(err, token.ErrInvalidSignature):
		return newError(op, KindInvalidSignature, err)
	default:
		return newError(op, KindMalformed, err)
	}
}

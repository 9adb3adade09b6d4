package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// JWTとして読めない・クレームの形が違う・種類が違う
	ErrMalformed = errors.New("malformed token")
	// 署名が秘密鍵で検証できない
	ErrInvalidSignature = errors.New("invalid token signature")
	// now >= exp
	ErrExpired = errors.New("token expired")
)

// トークンの種類。access/refreshを取り違えないためのマーカー
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// 署名されたJWTの中身
type Claims struct {
	Subject     string
	Authorities []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	ID          string
	Type        Type
}

// JWTに載せるクレーム
type jwtClaims struct {
	Authorities []string `json:"auth"`
	Type        Type     `json:"typ"`
	jwt.RegisteredClaims
}

// CodecはClaimsのエンコード・デコード（HS256）を行う。
// 1つのCodecは1つの秘密鍵と1つのトークン種類に紐づく。
type Codec struct {
	secret    []byte
	tokenType Type
	now       func() time.Time
}

func NewCodec(secret []byte, tokenType Type) *Codec {
	return &Codec{
		secret:    secret,
		tokenType: tokenType,
		now:       time.Now,
	}
}

// テスト用に現在時刻を差し替える
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

func (c *Codec) Type() Type {
	return c.tokenType
}

// Encodeは subject/authorities/iat/exp(iat+ttl)/jti に署名した文字列を返す。
func (c *Codec) Encode(subject string, authorities []string, issuedAt time.Time, ttl time.Duration, id string) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("encode %s token: empty subject", c.tokenType)
	}

	claims := jwtClaims{
		Authorities: append([]string(nil), authorities...),
		Type:        c.tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			ID:        id,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", c.tokenType, err)
	}
	return signed, nil
}

// Decodeは署名と期限を検証してClaimsを返す。副作用はない。
func (c *Codec) Decode(tokenString string) (Claims, error) {
	var parsed jwtClaims

	// 期限は自前で判定する（now == exp も期限切れ扱い）
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	_, err := parser.ParseWithClaims(tokenString, &parsed, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return Claims{}, classify(err)
	}

	if parsed.Subject == "" || parsed.ExpiresAt == nil {
		return Claims{}, ErrMalformed
	}
	if parsed.Type != c.tokenType {
		return Claims{}, ErrMalformed
	}

	exp := parsed.ExpiresAt.Time
	if !c.now().Before(exp) {
		return Claims{}, ErrExpired
	}

	out := Claims{
		Subject:     parsed.Subject,
		Authorities: parsed.Authorities,
		ExpiresAt:   exp,
		ID:          parsed.ID,
		Type:        parsed.Type,
	}
	if parsed.IssuedAt != nil {
		out.IssuedAt = parsed.IssuedAt.Time
	}
	return out, nil
}

// jwtライブラリのエラーを3種類に寄せる
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

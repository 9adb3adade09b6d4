package model

import "time"

const GrantTypeBearer = "Bearer"

// 1ユーザー(email)につき1件だけ存在する最新のトークン
type TokenRecord struct {
	ID                    int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	GrantType             string    `gorm:"type:varchar(20);not null" json:"grantType"`
	AccessToken           string    `gorm:"type:text;not null" json:"accessToken"`
	AccessTokenExpiresAt  time.Time `gorm:"not null" json:"accessTokenTime"`
	RefreshToken          string    `gorm:"type:text;not null" json:"refreshToken"`
	RefreshTokenExpiresAt time.Time `gorm:"not null" json:"refreshTokenTime"`
	Email                 string    `gorm:"uniqueIndex;not null" json:"userEmail"`
	UserID                int64     `gorm:"not null;index" json:"userId"`
	NickName              string    `json:"nickName"`
	Authorities           []string  `gorm:"serializer:json;type:text;not null" json:"authorities"`
	CreatedAt             time.Time `json:"-"`
	UpdatedAt             time.Time `json:"-"`
}

// access/refreshの両方が期限内か
func (t TokenRecord) ActiveAt(now time.Time) bool {
	return now.Before(t.AccessTokenExpiresAt) && now.Before(t.RefreshTokenExpiresAt)
}

// refreshだけ期限内か
func (t TokenRecord) RefreshableAt(now time.Time) bool {
	return now.Before(t.RefreshTokenExpiresAt)
}

package model

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// 権限タグの接頭辞（ROLE_USER / ROLE_ADMIN）
const AuthorityPrefix = "ROLE_"

// Authorityはロールを権限タグに変換する。
func (r Role) Authority() string {
	return AuthorityPrefix + string(r)
}

// 有効なロールか
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// 会員（認証の主体）
type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"userId"`
	Email        string `gorm:"uniqueIndex;not null" json:"userEmail"`
	PasswordHash string `gorm:"column:password_hash" json:"-"`
	UserName     string `gorm:"not null" json:"userName"`
	NickName     string `json:"nickName"`
	Role         Role   `gorm:"type:varchar(20);not null;default:'USER'" json:"userType"`

	//OAuth2で登録した場合のみ入る
	Provider   string `json:"provider,omitempty"`
	ProviderID string `json:"providerId,omitempty"`

	Address Address `gorm:"embedded" json:"address"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// 発行時の権限セット
func (u User) Authorities() []string {
	role := u.Role
	if !role.Valid() {
		role = RoleUser
	}
	return []string{role.Authority()}
}

// 外部プロバイダと連携済みか
func (u User) Linked() bool {
	return u.ProviderID != ""
}

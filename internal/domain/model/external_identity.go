package model

// 外部プロバイダ（OAuth2/OIDC）で検証済みの本人情報
type ExternalIdentity struct {
	Email       string
	DisplayName string
	Provider    string
	ProviderID  string
}

package auth

import "context"

// Logoutは呼び出し元の認証状態を終わらせるだけで、保存済みのTokenRecordは消さない。
// サーバー側のトークンは期限まで有効のまま残る（既知の弱点）。
func (e *Engine) Logout(ctx context.Context, p Principal) error {
	const op = "logout"

	if p.Email == "" {
		return newError(op, KindUnauthenticated, nil)
	}

	e.log.Info().Str("email", p.Email).Msg("logout")
	return nil
}

package model

// 会員情報の変更内容。nilは「変更しない」。
// emailは登録後に変更できないので含めない。
type ProfileChange struct {
	UserName     *string
	NickName     *string
	PasswordHash *string
	Address      *Address
}

// ApplyProfileChangeは旧レコードに許可されたフィールドだけ上書きした新しいUserを返す。
func ApplyProfileChange(old User, ch ProfileChange) User {
	next := old

	if ch.UserName != nil {
		next.UserName = *ch.UserName
	}
	if ch.NickName != nil {
		next.NickName = *ch.NickName
	}
	if ch.PasswordHash != nil {
		next.PasswordHash = *ch.PasswordHash
	}
	if ch.Address != nil {
		next.Address = *ch.Address
	}

	return next
}

package model

// 会員の住所（usersテーブルに埋め込み）
type Address struct {
	//住所
	Line string `gorm:"column:addr_line" json:"userAddr"`

	//番地など
	Detail string `gorm:"column:addr_detail" json:"userAddrDetail"`

	//その他（建物名など）
	Etc string `gorm:"column:addr_etc" json:"userAddrEtc"`
}

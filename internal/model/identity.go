package model

import "time"

// 識別子の由来を表す定数。
const (
	// IdentitySourceBootstrap は外部サーフェスから持ち込まれたブートストラップ識別子。
	IdentitySourceBootstrap = "bootstrap"
	// IdentitySourceGenerated は初回起動時にローカルで生成した匿名識別子。
	IdentitySourceGenerated = "generated"
)

// BootstrapIdentity はナビゲーションURLのクエリパラメータから抽出した
// 外部由来の識別子ペアを表す。SessionIDは省略可能。
// ページロードごとに高々1回だけ読み取られ、消費後はURLから消去される。
type BootstrapIdentity struct {
	DistinctID string
	SessionID  string
}

// LocalIdentity は訪問をまたいで永続化されるアナリティクス識別子を表す。
// 端末ローカルのSQLiteに保存され、エージェントの再起動後も維持される。
type LocalIdentity struct {
	DistinctID string
	SessionID  string
	Source     string // IdentitySourceBootstrap または IdentitySourceGenerated
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Package database はローカル識別子ストアの接続とマイグレーション管理を提供する。
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Open はローカル識別子ストアのSQLiteデータベースを開く。
// pathはデータベースファイルのパスを指定する（例: "sessync.db"）。
// 端末ローカルの永続化層であり、エージェントと同一ホストにのみ存在する。
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open identity database: %w", err)
	}

	// SQLiteは単一ライターのため接続数を絞る
	db.SetMaxOpenConns(1)

	return db, nil
}

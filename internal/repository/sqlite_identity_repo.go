package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/sessync/internal/model"
)

// SQLiteIdentityRepo はSQLiteを使用したローカル識別子リポジトリ。
// local_identityテーブルは端末あたり1行のみ（id = 1 に固定）。
type SQLiteIdentityRepo struct {
	db *sql.DB
}

// NewSQLiteIdentityRepo はSQLiteIdentityRepoを生成する。
func NewSQLiteIdentityRepo(db *sql.DB) *SQLiteIdentityRepo {
	return &SQLiteIdentityRepo{db: db}
}

// Load は永続化された識別子を取得する。存在しない場合はnilを返す。
func (r *SQLiteIdentityRepo) Load(ctx context.Context) (*model.LocalIdentity, error) {
	identity := &model.LocalIdentity{}
	err := r.db.QueryRowContext(ctx,
		`SELECT distinct_id, session_id, source, created_at, updated_at
		 FROM local_identity WHERE id = 1`,
	).Scan(&identity.DistinctID, &identity.SessionID, &identity.Source, &identity.CreatedAt, &identity.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load local identity: %w", err)
	}

	return identity, nil
}

// Save は識別子を保存する。既存の識別子がある場合は置き換える。
func (r *SQLiteIdentityRepo) Save(ctx context.Context, identity *model.LocalIdentity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO local_identity (id, distinct_id, session_id, source, created_at, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   distinct_id = excluded.distinct_id,
		   session_id = excluded.session_id,
		   source = excluded.source,
		   updated_at = excluded.updated_at`,
		identity.DistinctID, identity.SessionID, identity.Source, identity.CreatedAt, identity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save local identity: %w", err)
	}

	return nil
}

// Reset は永続化された識別子を削除する。
func (r *SQLiteIdentityRepo) Reset(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM local_identity WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("failed to reset local identity: %w", err)
	}
	return nil
}

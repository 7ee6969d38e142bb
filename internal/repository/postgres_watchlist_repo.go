package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/neowatch/internal/model"
)

// PostgresWatchlistRepo はPostgreSQLを使用したウォッチリストリポジトリ。
type PostgresWatchlistRepo struct {
	db *sql.DB
}

// NewPostgresWatchlistRepo はPostgresWatchlistRepoを生成する。
func NewPostgresWatchlistRepo(db *sql.DB) *PostgresWatchlistRepo {
	return &PostgresWatchlistRepo{db: db}
}

// Add はウォッチリストエントリを追加する。(user_id, neo_id)が既に存在する場合はfalseを返す。
func (r *PostgresWatchlistRepo) Add(ctx context.Context, entry *model.WatchlistEntry) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO watchlist (id, user_id, neo_id, name, added_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, neo_id) DO NOTHING`,
		entry.ID, entry.UserID, entry.NeoID, entry.Name, entry.AddedAt,
	)
	if err != nil {
		return false, fmt.Errorf("ウォッチリストへの追加に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("挿入件数の取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// ListByUser はユーザーのウォッチリスト一覧を追加日時降順で返す。
func (r *PostgresWatchlistRepo) ListByUser(ctx context.Context, userID string) ([]model.WatchlistEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, neo_id, name, added_at
		 FROM watchlist
		 WHERE user_id = $1
		 ORDER BY added_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ウォッチリスト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entries []model.WatchlistEntry
	for rows.Next() {
		var entry model.WatchlistEntry
		if err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.NeoID, &entry.Name, &entry.AddedAt,
		); err != nil {
			return nil, fmt.Errorf("ウォッチリスト行の読み取りに失敗しました: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ウォッチリスト一覧の走査に失敗しました: %w", err)
	}

	return entries, nil
}

// Remove はユーザーのウォッチリストから指定NEO IDを削除する。存在しない場合はfalseを返す。
func (r *PostgresWatchlistRepo) Remove(ctx context.Context, userID, neoID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM watchlist WHERE user_id = $1 AND neo_id = $2`,
		userID, neoID,
	)
	if err != nil {
		return false, fmt.Errorf("ウォッチリストからの削除に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// compile-time interface check
var _ WatchlistRepository = (*PostgresWatchlistRepo)(nil)

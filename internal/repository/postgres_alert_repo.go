package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/neowatch/internal/model"
)

// PostgresAlertRepo はPostgreSQLを使用したアラートルールリポジトリ。
type PostgresAlertRepo struct {
	db *sql.DB
}

// NewPostgresAlertRepo はPostgresAlertRepoを生成する。
func NewPostgresAlertRepo(db *sql.DB) *PostgresAlertRepo {
	return &PostgresAlertRepo{db: db}
}

// Create はアラートルールを作成する。
func (r *PostgresAlertRepo) Create(ctx context.Context, alert *model.AlertRule) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO alerts (id, user_id, kind, threshold, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		alert.ID, alert.UserID, string(alert.Kind), alert.Threshold,
		alert.IsActive, alert.CreatedAt, alert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("アラートルールの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDのアラートルールを取得する。見つからない場合はnilを返す。
func (r *PostgresAlertRepo) FindByID(ctx context.Context, id string) (*model.AlertRule, error) {
	alert := &model.AlertRule{}
	var kind string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, kind, threshold, is_active, created_at, updated_at
		 FROM alerts WHERE id = $1`,
		id,
	).Scan(
		&alert.ID, &alert.UserID, &kind, &alert.Threshold,
		&alert.IsActive, &alert.CreatedAt, &alert.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アラートルールの取得に失敗しました: %w", err)
	}

	alert.Kind = model.AlertKind(kind)
	return alert, nil
}

// ListByUser はユーザーのアラートルール一覧を作成日時降順で返す。
func (r *PostgresAlertRepo) ListByUser(ctx context.Context, userID string) ([]model.AlertRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, kind, threshold, is_active, created_at, updated_at
		 FROM alerts
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("アラートルール一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return r.collectAlerts(rows)
}

// ListActive は全ユーザーの有効なアラートルールを返す。
func (r *PostgresAlertRepo) ListActive(ctx context.Context) ([]model.AlertRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, kind, threshold, is_active, created_at, updated_at
		 FROM alerts
		 WHERE is_active = true
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("有効アラートルール一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return r.collectAlerts(rows)
}

// SetActive はアラートルールの有効/無効を切り替える。更新された場合はtrueを返す。
func (r *PostgresAlertRepo) SetActive(ctx context.Context, id string, isActive bool) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET is_active = $2, updated_at = now() WHERE id = $1`,
		id, isActive,
	)
	if err != nil {
		return false, fmt.Errorf("アラートルールの切り替えに失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// Delete は指定IDのアラートルールを削除する。削除された場合はtrueを返す。
func (r *PostgresAlertRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM alerts WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("アラートルールの削除に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// collectAlerts は結果セットの全アラートルール行を読み取る。
func (r *PostgresAlertRepo) collectAlerts(rows *sql.Rows) ([]model.AlertRule, error) {
	var alerts []model.AlertRule
	for rows.Next() {
		var alert model.AlertRule
		var kind string
		if err := rows.Scan(
			&alert.ID, &alert.UserID, &kind, &alert.Threshold,
			&alert.IsActive, &alert.CreatedAt, &alert.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("アラートルール行の読み取りに失敗しました: %w", err)
		}
		alert.Kind = model.AlertKind(kind)
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アラートルール一覧の走査に失敗しました: %w", err)
	}
	return alerts, nil
}

// compile-time interface check
var _ AlertRepository = (*PostgresAlertRepo)(nil)

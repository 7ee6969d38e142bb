package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/neowatch/internal/model"
	"github.com/hitoshi/neowatch/internal/repository"
)

// defaultNotificationLimit は通知一覧のデフォルト取得件数。
const defaultNotificationLimit = 50

// Service はアラートルールと通知のサービス層。
// 所有権チェックに失敗した場合は存在自体を漏らさないようNOT_FOUNDを返す。
type Service struct {
	alertRepo        repository.AlertRepository
	notificationRepo repository.NotificationRepository
	now              func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	alertRepo repository.AlertRepository,
	notificationRepo repository.NotificationRepository,
) *Service {
	return &Service{
		alertRepo:        alertRepo,
		notificationRepo: notificationRepo,
		now:              time.Now,
	}
}

// CreateAlert はアラートルールを作成する。作成直後のルールは有効状態になる。
func (s *Service) CreateAlert(ctx context.Context, userID, kind string, threshold float64) (*model.AlertRule, error) {
	if !model.ValidAlertKind(kind) {
		return nil, model.NewInvalidAlertKindError(kind)
	}

	now := s.now()
	rule := &model.AlertRule{
		ID:        uuid.New().String(),
		UserID:    userID,
		Kind:      model.AlertKind(kind),
		Threshold: threshold,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.alertRepo.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("アラートルールの作成に失敗しました: %w", err)
	}
	return rule, nil
}

// ListAlerts はユーザーのアラートルール一覧を返す。
func (s *Service) ListAlerts(ctx context.Context, userID string) ([]model.AlertRule, error) {
	rules, err := s.alertRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("アラートルール一覧の取得に失敗しました: %w", err)
	}
	if rules == nil {
		rules = []model.AlertRule{}
	}
	return rules, nil
}

// ToggleAlert はアラートルールの有効/無効を切り替える。
// ルールが存在しない、または他ユーザーの所有物の場合はNOT_FOUNDを返す。
func (s *Service) ToggleAlert(ctx context.Context, userID, alertID string, isActive bool) (*model.AlertRule, error) {
	rule, err := s.findOwned(ctx, userID, alertID)
	if err != nil {
		return nil, err
	}

	if _, err := s.alertRepo.SetActive(ctx, alertID, isActive); err != nil {
		return nil, fmt.Errorf("アラートルールの切り替えに失敗しました: %w", err)
	}

	rule.IsActive = isActive
	rule.UpdatedAt = s.now()
	return rule, nil
}

// DeleteAlert はアラートルールを削除する。
func (s *Service) DeleteAlert(ctx context.Context, userID, alertID string) error {
	if _, err := s.findOwned(ctx, userID, alertID); err != nil {
		return err
	}

	if _, err := s.alertRepo.Delete(ctx, alertID); err != nil {
		return fmt.Errorf("アラートルールの削除に失敗しました: %w", err)
	}
	return nil
}

// ListNotifications はユーザーの通知一覧を返す。
func (s *Service) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	notifications, err := s.notificationRepo.ListByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗しました: %w", err)
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}
	return notifications, nil
}

// MarkNotificationRead は通知を既読にする。
// 通知が存在しない、または他ユーザーの所有物の場合はNOT_FOUNDを返す。
func (s *Service) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	updated, err := s.notificationRepo.MarkRead(ctx, userID, notificationID)
	if err != nil {
		return fmt.Errorf("通知の既読化に失敗しました: %w", err)
	}
	if !updated {
		return model.NewNotificationNotFoundError(notificationID)
	}
	return nil
}

// MarkAllNotificationsRead はユーザーの全未読通知を既読にし、更新件数を返す。
func (s *Service) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	count, err := s.notificationRepo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("通知の一括既読化に失敗しました: %w", err)
	}
	return count, nil
}

// findOwned は指定ユーザーが所有するアラートルールを取得する。
// 存在しない場合・他ユーザーの所有物の場合は同一のNOT_FOUNDエラーを返す。
func (s *Service) findOwned(ctx context.Context, userID, alertID string) (*model.AlertRule, error) {
	rule, err := s.alertRepo.FindByID(ctx, alertID)
	if err != nil {
		return nil, fmt.Errorf("アラートルールの取得に失敗しました: %w", err)
	}
	if rule == nil {
		return nil, model.NewAlertNotFoundError(alertID)
	}
	if rule.UserID != userID {
		return nil, model.NewAlertNotFoundError(alertID)
	}
	return rule, nil
}

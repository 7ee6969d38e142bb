package alertcheck

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/neowatch/internal/model"
)

// --- テスト用モック ---

// mockFeed はテスト用のFeedProviderモック。
type mockFeed struct {
	asteroids []model.Asteroid
	err       error
	calls     int
}

func (m *mockFeed) GetFeed(_ context.Context, startDate, endDate string) ([]model.Asteroid, error) {
	m.calls++
	return m.asteroids, m.err
}

// mockAlertRepo はテスト用のAlertRepositoryモック。ListActiveのみ使用する。
type mockAlertRepo struct {
	active []model.AlertRule
	err    error
}

func (m *mockAlertRepo) Create(_ context.Context, _ *model.AlertRule) error { return nil }
func (m *mockAlertRepo) FindByID(_ context.Context, _ string) (*model.AlertRule, error) {
	return nil, nil
}
func (m *mockAlertRepo) ListByUser(_ context.Context, _ string) ([]model.AlertRule, error) {
	return nil, nil
}
func (m *mockAlertRepo) ListActive(_ context.Context) ([]model.AlertRule, error) {
	return m.active, m.err
}
func (m *mockAlertRepo) SetActive(_ context.Context, _ string, _ bool) (bool, error) {
	return false, nil
}
func (m *mockAlertRepo) Delete(_ context.Context, _ string) (bool, error) { return false, nil }

// mockNotificationRepo は一意キーで重複排除するNotificationRepositoryモック。
// DB層のON CONFLICT DO NOTHINGと同じ動作を再現する。
type mockNotificationRepo struct {
	byDedupKey  map[string]*model.Notification
	insertCalls int
	insertErr   error
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{byDedupKey: make(map[string]*model.Notification)}
}

func (m *mockNotificationRepo) Insert(_ context.Context, n *model.Notification) (bool, error) {
	m.insertCalls++
	if m.insertErr != nil {
		return false, m.insertErr
	}
	key := n.UserID + "|" + n.AlertID + "|" + n.NeoID + "|" + n.ApproachDate
	if _, exists := m.byDedupKey[key]; exists {
		return false, nil
	}
	copied := *n
	m.byDedupKey[key] = &copied
	return true, nil
}

func (m *mockNotificationRepo) ListByUser(_ context.Context, _ string, _ bool, _ int) ([]model.Notification, error) {
	return nil, nil
}
func (m *mockNotificationRepo) MarkRead(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}
func (m *mockNotificationRepo) MarkAllRead(_ context.Context, _ string) (int64, error) {
	return 0, nil
}
func (m *mockNotificationRepo) DeleteReadBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func newTestChecker(feed *mockFeed, alertRepo *mockAlertRepo, notificationRepo *mockNotificationRepo) *Checker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewChecker(feed, alertRepo, notificationRepo, logger)
}

func hazardousAsteroid(neoID string) model.Asteroid {
	return model.Asteroid{
		NeoID:        neoID,
		Name:         "(" + neoID + ")",
		IsHazardous:  true,
		DiameterMaxM: 225.96,
		CloseApproaches: []model.CloseApproach{
			{Date: "2026-03-10", MissDistanceKm: 4996385.5, OrbitingBody: "Earth"},
		},
	}
}

// TestRunOnce_CreatesNotificationForMatch はマッチ時に通知が作成されることをテストする。
func TestRunOnce_CreatesNotificationForMatch(t *testing.T) {
	feed := &mockFeed{asteroids: []model.Asteroid{hazardousAsteroid("1001")}}
	alertRepo := &mockAlertRepo{active: []model.AlertRule{
		{ID: "alert-1", UserID: "user-1", Kind: model.AlertKindHazardous, IsActive: true},
	}}
	notificationRepo := newMockNotificationRepo()

	checker := newTestChecker(feed, alertRepo, notificationRepo)

	summary, err := checker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if summary.RulesChecked != 1 {
		t.Errorf("RulesChecked = %d, want 1", summary.RulesChecked)
	}
	if summary.ObjectsChecked != 1 {
		t.Errorf("ObjectsChecked = %d, want 1", summary.ObjectsChecked)
	}
	if summary.NotificationsCreated != 1 {
		t.Errorf("NotificationsCreated = %d, want 1", summary.NotificationsCreated)
	}
	if len(notificationRepo.byDedupKey) != 1 {
		t.Errorf("通知件数 = %d, want 1", len(notificationRepo.byDedupKey))
	}
}

// TestRunOnce_SecondRunIsIdempotent は同一日の再実行で通知が増えないことをテストする。
func TestRunOnce_SecondRunIsIdempotent(t *testing.T) {
	feed := &mockFeed{asteroids: []model.Asteroid{hazardousAsteroid("1001")}}
	alertRepo := &mockAlertRepo{active: []model.AlertRule{
		{ID: "alert-1", UserID: "user-1", Kind: model.AlertKindHazardous, IsActive: true},
	}}
	notificationRepo := newMockNotificationRepo()

	checker := newTestChecker(feed, alertRepo, notificationRepo)
	ctx := context.Background()

	first, err := checker.RunOnce(ctx)
	if err != nil {
		t.Fatalf("1回目のRunOnceが失敗: %v", err)
	}
	second, err := checker.RunOnce(ctx)
	if err != nil {
		t.Fatalf("2回目のRunOnceが失敗: %v", err)
	}

	if first.NotificationsCreated != 1 {
		t.Errorf("1回目のNotificationsCreated = %d, want 1", first.NotificationsCreated)
	}
	if second.NotificationsCreated != 0 {
		t.Errorf("2回目のNotificationsCreated = %d, want 0 (重複排除)", second.NotificationsCreated)
	}
	if len(notificationRepo.byDedupKey) != 1 {
		t.Errorf("通知件数 = %d, want 1", len(notificationRepo.byDedupKey))
	}
}

// TestRunOnce_FeedFailure_AbortsWithoutNotifications は天体取得失敗時に通知を作らず中断することをテストする。
func TestRunOnce_FeedFailure_AbortsWithoutNotifications(t *testing.T) {
	feed := &mockFeed{err: model.NewUpstreamUnavailableError("接続に失敗しました")}
	alertRepo := &mockAlertRepo{active: []model.AlertRule{
		{ID: "alert-1", UserID: "user-1", Kind: model.AlertKindHazardous, IsActive: true},
	}}
	notificationRepo := newMockNotificationRepo()

	checker := newTestChecker(feed, alertRepo, notificationRepo)

	_, err := checker.RunOnce(context.Background())
	if err == nil {
		t.Fatal("天体取得失敗はエラーを返すべき")
	}
	if notificationRepo.insertCalls != 0 {
		t.Errorf("中断時に通知挿入が実行されてはならない。insertCalls = %d", notificationRepo.insertCalls)
	}
}

// TestRunOnce_NoAsteroids_Skips は当日の天体0件時にルール照合をスキップすることをテストする。
func TestRunOnce_NoAsteroids_Skips(t *testing.T) {
	feed := &mockFeed{asteroids: []model.Asteroid{}}
	alertRepo := &mockAlertRepo{err: errors.New("呼ばれてはならない")}
	notificationRepo := newMockNotificationRepo()

	checker := newTestChecker(feed, alertRepo, notificationRepo)

	summary, err := checker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("天体0件はエラーにすべきでない: %v", err)
	}
	if summary.NotificationsCreated != 0 {
		t.Errorf("NotificationsCreated = %d, want 0", summary.NotificationsCreated)
	}
}

// TestRunOnce_InsertFailure_Continues は個別の挿入失敗が他の通知処理を止めないことをテストする。
func TestRunOnce_InsertFailure_Continues(t *testing.T) {
	feed := &mockFeed{asteroids: []model.Asteroid{
		hazardousAsteroid("1001"),
		hazardousAsteroid("1002"),
	}}
	alertRepo := &mockAlertRepo{active: []model.AlertRule{
		{ID: "alert-1", UserID: "user-1", Kind: model.AlertKindHazardous, IsActive: true},
	}}
	notificationRepo := newMockNotificationRepo()
	notificationRepo.insertErr = errors.New("挿入に失敗しました")

	checker := newTestChecker(feed, alertRepo, notificationRepo)

	summary, err := checker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("個別の挿入失敗でジョブ全体が失敗してはならない: %v", err)
	}
	// 2件とも挿入が試みられること（1件目の失敗で中断しない）
	if notificationRepo.insertCalls != 2 {
		t.Errorf("insertCalls = %d, want 2", notificationRepo.insertCalls)
	}
	if summary.NotificationsCreated != 0 {
		t.Errorf("NotificationsCreated = %d, want 0", summary.NotificationsCreated)
	}
}

// TestRunOnce_MultipleRulesAndAsteroids は全組み合わせが照合されることをテストする。
func TestRunOnce_MultipleRulesAndAsteroids(t *testing.T) {
	near := hazardousAsteroid("1001")
	far := hazardousAsteroid("1002")
	far.IsHazardous = false
	far.CloseApproaches[0].MissDistanceKm = 50_000_000

	feed := &mockFeed{asteroids: []model.Asteroid{near, far}}
	alertRepo := &mockAlertRepo{active: []model.AlertRule{
		{ID: "alert-1", UserID: "user-1", Kind: model.AlertKindHazardous, IsActive: true},
		{ID: "alert-2", UserID: "user-2", Kind: model.AlertKindDistance, Threshold: 10_000_000, IsActive: true},
	}}
	notificationRepo := newMockNotificationRepo()

	checker := newTestChecker(feed, alertRepo, notificationRepo)

	summary, err := checker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	// alert-1はnearのみ、alert-2もnearのみマッチ
	if summary.NotificationsCreated != 2 {
		t.Errorf("NotificationsCreated = %d, want 2", summary.NotificationsCreated)
	}
}

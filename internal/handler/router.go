package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/neowatch/internal/metrics"
	"github.com/hitoshi/neowatch/internal/middleware"
)

// HealthChecker はヘルスチェック時にデータベース疎通を確認するインターフェース。
// *sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// ヘルスチェック
	HealthChecker HealthChecker

	// メトリクス（nilの場合は/metricsを公開しない）
	MetricsGatherer prometheus.Gatherer

	// ステータスコード記録（nilの場合は記録しない）
	StatusRecorder middleware.StatusRecorder

	// 天体データ
	AsteroidService AsteroidServiceInterface

	// アラート
	AlertService AlertServiceInterface

	// 通知
	NotificationService NotificationServiceInterface

	// ウォッチリスト
	WatchlistService WatchlistServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → AuthMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// ヘルスチェック（/health）とメトリクス（/metrics）は認証チェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// panicリカバリーを最上位に適用（全ルートに効く）
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// ステータスコードのメトリクス記録
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}

	// リクエストの構造化ログ
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))

	asteroidHandler := NewAsteroidHandler(deps.AsteroidService)
	alertHandler := NewAlertHandler(deps.AlertService)
	notificationHandler := NewNotificationHandler(deps.NotificationService)
	watchlistHandler := NewWatchlistHandler(deps.WatchlistService)

	// --- 認証不要のルート ---

	// ヘルスチェック
	r.Get("/health", newHealthHandler(deps.HealthChecker))

	// Prometheusメトリクス
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware())
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 天体データ
		r.Route("/api/asteroids", func(r chi.Router) {
			r.Get("/feed", asteroidHandler.GetFeed)
			r.Get("/stats", asteroidHandler.GetStats)
			r.Get("/top-risk", asteroidHandler.TopRisk)
			r.Get("/browse", asteroidHandler.Browse)
			r.Get("/{id}", asteroidHandler.GetByNeoID)
		})

		// アラート管理
		r.Route("/api/alerts", func(r chi.Router) {
			// POST /api/alerts - アラート作成（作成専用レート制限を追加）
			r.With(deps.RateLimiter.AlertCreationMiddleware()).Post("/", alertHandler.Create)
			r.Get("/", alertHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/toggle", alertHandler.Toggle)
				r.Delete("/", alertHandler.Delete)
			})
		})

		// 通知管理
		r.Route("/api/notifications", func(r chi.Router) {
			r.Get("/", notificationHandler.List)
			r.Post("/read-all", notificationHandler.MarkAllRead)
			r.Patch("/{id}/read", notificationHandler.MarkRead)
		})

		// ウォッチリスト管理
		r.Route("/api/watchlist", func(r chi.Router) {
			r.Post("/", watchlistHandler.Add)
			r.Get("/", watchlistHandler.List)
			r.Delete("/{neoID}", watchlistHandler.Remove)
		})
	})

	return r
}

// newHealthHandler はデータベース疎通を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
				})
				return
			}
		}
		writeJSONResponse(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	}
}

package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/neowatch/internal/alert"
	"github.com/hitoshi/neowatch/internal/asteroid"
	"github.com/hitoshi/neowatch/internal/config"
	"github.com/hitoshi/neowatch/internal/database"
	"github.com/hitoshi/neowatch/internal/handler"
	"github.com/hitoshi/neowatch/internal/logger"
	"github.com/hitoshi/neowatch/internal/metrics"
	"github.com/hitoshi/neowatch/internal/middleware"
	"github.com/hitoshi/neowatch/internal/neo"
	"github.com/hitoshi/neowatch/internal/repository"
	"github.com/hitoshi/neowatch/internal/watchlist"
	"github.com/hitoshi/neowatch/internal/worker/alertcheck"
	"github.com/hitoshi/neowatch/internal/worker/cleanup"
	"github.com/hitoshi/neowatch/internal/worker/refresh"
)

// Init はアプリケーションの初期化を行う。
// .envファイル（存在する場合）と環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .envファイルの読み込み（存在しない場合は無視する）
	_ = godotenv.Load()

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// PostgreSQLとRedisへの接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. Redis接続（日次キャッシュ層）
	redisClient, err := database.OpenRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to open redis: %w", err)
	}
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis connection established")

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. リポジトリの初期化
	asteroidRepo := repository.NewPostgresAsteroidRepo(db)
	alertRepo := repository.NewPostgresAlertRepo(db)
	notificationRepo := repository.NewPostgresNotificationRepo(db)
	watchlistRepo := repository.NewPostgresWatchlistRepo(db)
	dailyRepo := repository.NewRedisDailyCacheRepo(redisClient, cfg.CacheMaxAge)

	// 5. 上流クライアントとキャッシュ書き込みワーカーの初期化
	neoClient := neo.NewClient(
		&http.Client{Timeout: cfg.FetchTimeout},
		slog.Default(), cfg.NASABaseURL, cfg.NASAAPIKey,
	).WithMetrics(collector)

	writer := asteroid.NewCacheWriter(asteroidRepo, dailyRepo, slog.Default()).
		WithMetrics(collector)
	writer.Start()
	defer writer.Stop()

	// 6. ドメインサービスの初期化
	asteroidService := asteroid.NewService(
		neoClient, asteroidRepo, dailyRepo, writer,
		slog.Default(), cfg.CacheMaxAge,
	).WithMetrics(collector)

	alertService := alert.NewService(alertRepo, notificationRepo)
	watchlistService := watchlist.NewService(
		watchlistRepo, watchlist.NewMemoryFallbackStore(), slog.Default(),
	)

	// 7. ルーターの構築
	deps := &handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(rateLimiterConfig(cfg)),

		HealthChecker:   db,
		MetricsGatherer: registry,
		StatusRecorder:  collector,

		AsteroidService:     asteroidService,
		AlertService:        alertService,
		NotificationService: alertService,
		WatchlistService:    watchlistService,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// アラートチェック・キャッシュ先読み・クリーンアップの各ジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. Redis接続
	redisClient, err := database.OpenRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to open redis: %w", err)
	}
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. リポジトリの初期化
	asteroidRepo := repository.NewPostgresAsteroidRepo(db)
	alertRepo := repository.NewPostgresAlertRepo(db)
	notificationRepo := repository.NewPostgresNotificationRepo(db)
	dailyRepo := repository.NewRedisDailyCacheRepo(redisClient, cfg.CacheMaxAge)

	// 5. フィード取得パスの初期化（チェック・先読みの両方が共有する）
	neoClient := neo.NewClient(
		&http.Client{Timeout: cfg.FetchTimeout},
		slog.Default(), cfg.NASABaseURL, cfg.NASAAPIKey,
	).WithMetrics(collector)

	writer := asteroid.NewCacheWriter(asteroidRepo, dailyRepo, slog.Default()).
		WithMetrics(collector)
	writer.Start()
	defer writer.Stop()

	asteroidService := asteroid.NewService(
		neoClient, asteroidRepo, dailyRepo, writer,
		slog.Default(), cfg.CacheMaxAge,
	).WithMetrics(collector)

	// 6. アラートチェッカーの初期化
	checker := alertcheck.NewChecker(
		asteroidService, alertRepo, notificationRepo, slog.Default(),
	).WithMetrics(collector)
	checkScheduler := alertcheck.NewScheduler(checker, slog.Default())

	// 7. キャッシュ先読みジョブの初期化
	prefetcher := refresh.NewPrefetcher(asteroidService, slog.Default())
	refreshScheduler := refresh.NewScheduler(prefetcher, slog.Default())

	// 8. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(notificationRepo, asteroidRepo, slog.Default())
	cleanupJob.NotificationRetentionDays = cfg.NotificationRetentionDays
	cleanupJob.AsteroidRetentionDays = cfg.AsteroidRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("alert_check_interval", cfg.AlertCheckInterval),
		slog.Duration("refresh_interval", cfg.RefreshInterval),
	)

	// キャッシュ先読みジョブをバックグラウンドで起動
	go refreshScheduler.Start(ctx, cfg.RefreshInterval)

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// アラートチェックスケジューラをメインgoroutineで実行（ブロッキング）
	checkScheduler.Start(ctx, cfg.AlertCheckInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// rateLimiterConfig は設定値（req/min単位）からレート制限設定を組み立てる。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	limiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		limiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		limiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitAlertCreate > 0 {
		limiterCfg.AlertCreateRate = rate.Limit(float64(cfg.RateLimitAlertCreate) / 60.0)
		limiterCfg.AlertCreateBurst = cfg.RateLimitAlertCreate
	}
	return limiterCfg
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}

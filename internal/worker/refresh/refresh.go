// Package refresh は接近天体キャッシュの先読みジョブを提供する。
// 当日から7日先までのフィードを定期取得してキャッシュ層を温め、
// APIリクエスト時の上流アクセスを減らす。
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/neowatch/internal/model"
)

// 上流APIのフィード取得が許容する最大日数に合わせた先読み幅。
const prefetchWindowDays = 7

// FeedProvider は日付範囲のフィード取得インターフェース。
// キャッシュ経由の取得を前提とするため、取得した結果は
// 呼び出しの副作用としてキャッシュに書き込まれる。
type FeedProvider interface {
	GetFeed(ctx context.Context, startDate, endDate string) ([]model.Asteroid, error)
}

// Prefetcher はフィードキャッシュの先読みジョブ。
type Prefetcher struct {
	feed   FeedProvider
	logger *slog.Logger
	now    func() time.Time
}

// NewPrefetcher はPrefetcherの新しいインスタンスを生成する。
func NewPrefetcher(feed FeedProvider, logger *slog.Logger) *Prefetcher {
	return &Prefetcher{
		feed:   feed,
		logger: logger,
		now:    time.Now,
	}
}

// RunOnce は当日からprefetchWindowDays日分のフィードを1回取得する。
// キャッシュ済みの日付はキャッシュから返るため、再実行しても
// 上流APIへの余分なアクセスは発生しない。
func (p *Prefetcher) RunOnce(ctx context.Context) error {
	start := p.now()
	today := start.UTC()
	startDate := today.Format("2006-01-02")
	endDate := today.AddDate(0, 0, prefetchWindowDays-1).Format("2006-01-02")

	p.logger.Info("フィードの先読みを開始します",
		slog.String("start_date", startDate),
		slog.String("end_date", endDate),
	)

	asteroids, err := p.feed.GetFeed(ctx, startDate, endDate)
	if err != nil {
		p.logger.Error("フィードの先読みに失敗しました",
			slog.String("start_date", startDate),
			slog.String("end_date", endDate),
			slog.String("error", err.Error()),
		)
		return err
	}

	duration := p.now().Sub(start)
	p.logger.Info("フィードの先読みが完了しました",
		slog.Int("asteroid_count", len(asteroids)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

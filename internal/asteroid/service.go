package asteroid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/neowatch/internal/model"
	"github.com/hitoshi/neowatch/internal/repository"
)

// dateLayout は日付パラメータのフォーマット。
const dateLayout = "2006-01-02"

// maxFeedRangeDays は1回のfeed取得で扱える最大日数（上流APIの制約に合わせる）。
const maxFeedRangeDays = 7

// UpstreamClient は上流APIクライアントのインターフェース。
type UpstreamClient interface {
	// FetchFeed は指定日付範囲の接近天体一覧を取得する。
	FetchFeed(ctx context.Context, startDate, endDate string) ([]model.Asteroid, error)
	// FetchLookup は単一天体の詳細を取得する。
	FetchLookup(ctx context.Context, neoID string) (*model.Asteroid, error)
	// FetchBrowse は天体カタログの1ページを取得する。
	FetchBrowse(ctx context.Context, page, size int) (*model.BrowseResult, error)
}

// CacheWriteQueue はキャッシュ書き込みのエンキューインターフェース。
type CacheWriteQueue interface {
	// EnqueueObjectUpserts は天体のオブジェクトキャッシュUPSERTをエンキューする。
	EnqueueObjectUpserts(asteroids []model.Asteroid)
	// EnqueueDailyEntry は日次キャッシュエントリの保存をエンキューする。
	EnqueueDailyEntry(entry *model.DailyEntry)
}

// CacheMetrics はキャッシュ階層ごとのヒット・ミスを記録するインターフェース。
type CacheMetrics interface {
	RecordCacheHit(tier string)
	RecordCacheMiss(tier string)
}

// キャッシュ階層のメトリクスラベル値。
const (
	tierDaily  = "daily"
	tierObject = "object"
)

// Service は天体データのサービス層。
// 読み取りは 日次キャッシュ → オブジェクトキャッシュ → 上流API の順にフォールバックし、
// 上流から取得したデータはバックグラウンドで両層に書き戻す。
type Service struct {
	client       UpstreamClient
	asteroidRepo repository.AsteroidRepository
	dailyRepo    repository.DailyCacheRepository
	writer       CacheWriteQueue
	logger       *slog.Logger
	maxAge       time.Duration
	metrics      CacheMetrics // nilの場合は記録しない
	now          func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// maxAgeはオブジェクトキャッシュの鮮度期限（日次キャッシュの鮮度はリポジトリ側で判定する）。
func NewService(
	client UpstreamClient,
	asteroidRepo repository.AsteroidRepository,
	dailyRepo repository.DailyCacheRepository,
	writer CacheWriteQueue,
	logger *slog.Logger,
	maxAge time.Duration,
) *Service {
	return &Service{
		client:       client,
		asteroidRepo: asteroidRepo,
		dailyRepo:    dailyRepo,
		writer:       writer,
		logger:       logger,
		maxAge:       maxAge,
		now:          time.Now,
	}
}

// WithMetrics はキャッシュメトリクスの記録先を設定する。
func (s *Service) WithMetrics(m CacheMetrics) *Service {
	s.metrics = m
	return s
}

// recordCacheHit は指定階層のキャッシュヒットを記録する。
func (s *Service) recordCacheHit(tier string) {
	if s.metrics != nil {
		s.metrics.RecordCacheHit(tier)
	}
}

// recordCacheMiss は指定階層のキャッシュミスを記録する。
func (s *Service) recordCacheMiss(tier string) {
	if s.metrics != nil {
		s.metrics.RecordCacheMiss(tier)
	}
}

// GetFeed は指定日付範囲の接近天体一覧を返す。
// 全日の日次キャッシュが揃っていればそれを返し、揃わない場合はオブジェクトキャッシュ、
// それも空なら上流APIへフォールバックする。「キャッシュミス」と「天体0件の日」は区別され、
// 0件の日も日次キャッシュのヒットとして扱われる。
func (s *Service) GetFeed(ctx context.Context, startDate, endDate string) ([]model.Asteroid, error) {
	dates, err := enumerateDates(startDate, endDate)
	if err != nil {
		return nil, err
	}

	// 第1層: 日次キャッシュ
	fromDaily, allHit := s.readDailyTier(ctx, dates)
	if allHit {
		s.recordCacheHit(tierDaily)
		s.logger.Debug("日次キャッシュヒット",
			slog.String("start_date", startDate),
			slog.String("end_date", endDate),
			slog.Int("count", len(fromDaily)),
		)
		return fromDaily, nil
	}
	s.recordCacheMiss(tierDaily)

	// 第2層: オブジェクトキャッシュ
	freshAfter := s.now().Add(-s.maxAge)
	fromObjects, err := s.asteroidRepo.ListWithApproachInRange(ctx, startDate, endDate, freshAfter)
	if err != nil {
		s.logger.Error("オブジェクトキャッシュの読み取りに失敗しました",
			slog.String("error", err.Error()),
		)
	} else if len(fromObjects) > 0 {
		s.recordCacheHit(tierObject)
		s.logger.Debug("オブジェクトキャッシュヒット",
			slog.String("start_date", startDate),
			slog.String("end_date", endDate),
			slog.Int("count", len(fromObjects)),
		)
		// オブジェクト層は個別lookup由来の行を含み、その日の全量とは限らないため
		// 日次キャッシュへは書き戻さない（日次エントリはfeed取得結果のみから作る）
		return fromObjects, nil
	}
	s.recordCacheMiss(tierObject)

	// 第3層: 上流API
	asteroids, err := s.client.FetchFeed(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}

	s.writer.EnqueueObjectUpserts(asteroids)
	s.enqueueDailyEntries(dates, asteroids)

	return asteroids, nil
}

// GetStats は指定日の集計統計を返す。
// 当日分が取得できない場合は前日の日次キャッシュにフォールバックし、
// 実際に使用した日付を第2戻り値で返す。
func (s *Service) GetStats(ctx context.Context, date string) (*model.DailyStats, string, error) {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, "", model.NewInvalidDateRangeError("日付はYYYY-MM-DD形式で指定してください")
	}

	if entry, err := s.dailyRepo.Get(ctx, date); err == nil {
		return &entry.Stats, date, nil
	}

	asteroids, feedErr := s.GetFeed(ctx, date, date)
	if feedErr == nil {
		stats := computeStats(asteroids)
		return &stats, date, nil
	}

	// 上流が利用できない場合は前日のキャッシュで代用する
	yesterday := day.AddDate(0, 0, -1).Format(dateLayout)
	if entry, err := s.dailyRepo.Get(ctx, yesterday); err == nil {
		s.logger.Warn("当日の統計が取得できないため前日分で代用します",
			slog.String("date", date),
			slog.String("fallback_date", yesterday),
		)
		return &entry.Stats, yesterday, nil
	}

	return nil, "", feedErr
}

// GetByNeoID は指定NEO IDの天体詳細を返す。
// オブジェクトキャッシュに新鮮かつ軌道データ付きの行があればそれを返し、
// なければ上流のlookupを呼び出す。上流が利用できない場合は古いキャッシュ行で代用する。
func (s *Service) GetByNeoID(ctx context.Context, neoID string) (*model.Asteroid, error) {
	cached, err := s.asteroidRepo.FindByNeoID(ctx, neoID)
	if err != nil {
		s.logger.Error("オブジェクトキャッシュの読み取りに失敗しました",
			slog.String("neo_id", neoID),
			slog.String("error", err.Error()),
		)
		cached = nil
	}

	if cached != nil && len(cached.OrbitalData) > 0 && s.now().Sub(cached.LastFetched) <= s.maxAge {
		s.recordCacheHit(tierObject)
		return cached, nil
	}
	s.recordCacheMiss(tierObject)

	fetched, err := s.client.FetchLookup(ctx, neoID)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeAsteroidNotFound {
			return nil, err
		}
		// 上流が利用できない場合、古いキャッシュ行があれば劣化モードで返す
		if cached != nil {
			s.logger.Warn("上流が利用できないため古いキャッシュ行で代用します",
				slog.String("neo_id", neoID),
				slog.Time("last_fetched", cached.LastFetched),
			)
			return cached, nil
		}
		return nil, err
	}

	s.writer.EnqueueObjectUpserts([]model.Asteroid{*fetched})
	return fetched, nil
}

// Browse は天体カタログの1ページを返す。結果はオブジェクトキャッシュに書き戻される。
func (s *Service) Browse(ctx context.Context, page, size int) (*model.BrowseResult, error) {
	result, err := s.client.FetchBrowse(ctx, page, size)
	if err != nil {
		return nil, err
	}
	s.writer.EnqueueObjectUpserts(result.Asteroids)
	return result, nil
}

// TopRisk はリスクスコア降順の天体一覧をオブジェクトキャッシュから返す。
func (s *Service) TopRisk(ctx context.Context, limit int) ([]model.Asteroid, error) {
	asteroids, err := s.asteroidRepo.ListTopRisk(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("高リスク天体の取得に失敗しました: %w", err)
	}
	return asteroids, nil
}

// readDailyTier は日付ごとに日次キャッシュを読み、全日ヒットした場合のみ結果を返す。
// 天体はNEO IDで重複排除される（複数日に接近する天体は1件にまとめる）。
func (s *Service) readDailyTier(ctx context.Context, dates []string) ([]model.Asteroid, bool) {
	seen := make(map[string]bool)
	var merged []model.Asteroid

	for _, date := range dates {
		entry, err := s.dailyRepo.Get(ctx, date)
		if err != nil {
			if !errors.Is(err, model.ErrCacheMiss) {
				s.logger.Error("日次キャッシュの読み取りに失敗しました",
					slog.String("date", date),
					slog.String("error", err.Error()),
				)
			}
			return nil, false
		}
		for _, asteroid := range entry.Asteroids {
			if seen[asteroid.NeoID] {
				continue
			}
			seen[asteroid.NeoID] = true
			merged = append(merged, asteroid)
		}
	}

	if merged == nil {
		merged = []model.Asteroid{}
	}
	return merged, true
}

// enqueueDailyEntries は天体一覧を日付ごとに分配して日次キャッシュの書き戻しをエンキューする。
// 接近のない日も空エントリとして保存する（ミスと0件を区別するため）。
func (s *Service) enqueueDailyEntries(dates []string, asteroids []model.Asteroid) {
	byDate := make(map[string][]model.Asteroid, len(dates))
	for _, date := range dates {
		byDate[date] = []model.Asteroid{}
	}
	for _, asteroid := range asteroids {
		// 複数日に接近する天体は該当する全ての日のエントリに含める
		added := make(map[string]bool, len(dates))
		for _, approach := range asteroid.CloseApproaches {
			if _, ok := byDate[approach.Date]; !ok || added[approach.Date] {
				continue
			}
			added[approach.Date] = true
			byDate[approach.Date] = append(byDate[approach.Date], asteroid)
		}
	}

	now := s.now()
	for _, date := range dates {
		dayAsteroids := byDate[date]
		stats := computeStats(dayAsteroids)
		s.writer.EnqueueDailyEntry(&model.DailyEntry{
			Date:        date,
			Asteroids:   dayAsteroids,
			Count:       len(dayAsteroids),
			Stats:       stats,
			LastUpdated: now,
		})
	}
}

// computeStats は天体一覧から日次統計を算出する。
// 最接近距離・最高速度は各天体の最接近イベントから取る。
func computeStats(asteroids []model.Asteroid) model.DailyStats {
	stats := model.DailyStats{NeoCount: len(asteroids)}

	for i := range asteroids {
		if asteroids[i].IsHazardous {
			stats.HazardousCount++
		}
		switch asteroids[i].RiskLevel {
		case model.RiskLevelCritical:
			stats.RiskDistribution.Critical++
		case model.RiskLevelHigh:
			stats.RiskDistribution.High++
		case model.RiskLevelMedium:
			stats.RiskDistribution.Medium++
		default:
			stats.RiskDistribution.Low++
		}
		approach := asteroids[i].NearestApproach()
		if approach == nil {
			continue
		}
		if stats.ClosestKm == 0 || approach.MissDistanceKm < stats.ClosestKm {
			stats.ClosestKm = approach.MissDistanceKm
		}
		if approach.VelocityKmh > stats.FastestKmh {
			stats.FastestKmh = approach.VelocityKmh
		}
	}

	return stats
}

// enumerateDates は[start, end]（両端含む）の日付一覧を返す。
func enumerateDates(startDate, endDate string) ([]string, error) {
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil, model.NewInvalidDateRangeError("start_dateはYYYY-MM-DD形式で指定してください")
	}
	if endDate == "" {
		endDate = startDate
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return nil, model.NewInvalidDateRangeError("end_dateはYYYY-MM-DD形式で指定してください")
	}
	if end.Before(start) {
		return nil, model.NewInvalidDateRangeError("end_dateはstart_date以降の日付を指定してください")
	}
	if int(end.Sub(start).Hours()/24) > maxFeedRangeDays {
		return nil, model.NewInvalidDateRangeError(
			fmt.Sprintf("日付範囲は最大%d日間です", maxFeedRangeDays))
	}

	var dates []string
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		dates = append(dates, day.Format(dateLayout))
	}
	return dates, nil
}

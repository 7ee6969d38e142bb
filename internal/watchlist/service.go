package watchlist

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/neowatch/internal/model"
	"github.com/hitoshi/neowatch/internal/repository"
)

// Service はウォッチリストのサービス層。
// 永続化層の障害時はフォールバックストアに退避して処理を継続する。
type Service struct {
	repo     repository.WatchlistRepository
	fallback FallbackStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.WatchlistRepository, fallback FallbackStore, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// Add はウォッチリストに天体を追加する。既に追加済みの場合はWATCHLIST_DUPLICATEを返す。
func (s *Service) Add(ctx context.Context, userID, neoID, name string) (*model.WatchlistEntry, error) {
	entry := model.WatchlistEntry{
		ID:      uuid.New().String(),
		UserID:  userID,
		NeoID:   neoID,
		Name:    name,
		AddedAt: s.now(),
	}

	created, err := s.repo.Add(ctx, &entry)
	if err != nil {
		s.logger.Warn("ウォッチリストの永続化に失敗したためフォールバックストアに退避します",
			slog.String("user_id", userID),
			slog.String("neo_id", neoID),
			slog.String("error", err.Error()),
		)
		if !s.fallback.Add(userID, entry) {
			return nil, model.NewWatchlistDuplicateError(neoID)
		}
		return &entry, nil
	}
	if !created {
		return nil, model.NewWatchlistDuplicateError(neoID)
	}
	return &entry, nil
}

// List はユーザーのウォッチリスト一覧を返す。
func (s *Service) List(ctx context.Context, userID string) ([]model.WatchlistEntry, error) {
	entries, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Warn("ウォッチリストの読み取りに失敗したためフォールバックストアから返します",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		entries = s.fallback.List(userID)
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].AddedAt.After(entries[j].AddedAt)
		})
		return entries, nil
	}
	if entries == nil {
		entries = []model.WatchlistEntry{}
	}
	return entries, nil
}

// Remove はウォッチリストから天体を削除する。存在しない場合はNOT_FOUNDを返す。
func (s *Service) Remove(ctx context.Context, userID, neoID string) error {
	removed, err := s.repo.Remove(ctx, userID, neoID)
	if err != nil {
		s.logger.Warn("ウォッチリストの削除に失敗したためフォールバックストアを操作します",
			slog.String("user_id", userID),
			slog.String("neo_id", neoID),
			slog.String("error", err.Error()),
		)
		if !s.fallback.Remove(userID, neoID) {
			return model.NewAsteroidNotFoundError(neoID)
		}
		return nil
	}
	if !removed {
		// フォールバック側に退避されたエントリの可能性がある
		if s.fallback.Remove(userID, neoID) {
			return nil
		}
		return model.NewAsteroidNotFoundError(neoID)
	}
	return nil
}

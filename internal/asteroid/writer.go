// Package asteroid は天体データの取得とキャッシュ制御を提供する。
// 日次キャッシュ(Redis)とオブジェクトキャッシュ(PostgreSQL)の2層構成で、
// 読み取りパスを塞がないよう書き込みはバックグラウンドキュー経由で行う。
package asteroid

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/neowatch/internal/model"
	"github.com/hitoshi/neowatch/internal/repository"
)

const (
	// defaultQueueSize は書き込みキューのバッファ長。
	defaultQueueSize = 256
	// writeTimeout は1タスクあたりの書き込みタイムアウト。
	writeTimeout = 30 * time.Second
)

// writeTask は書き込みキューの1タスク。いずれか一方のフィールドのみ設定される。
type writeTask struct {
	asteroids  []model.Asteroid
	dailyEntry *model.DailyEntry
}

// UpsertMetrics はアップサートされた天体数を記録するインターフェース。
type UpsertMetrics interface {
	RecordAsteroidsUpserted(count int)
}

// CacheWriter はキャッシュ書き込みをバックグラウンドで実行するキュー。
// 読み取りパスはエンキューのみ行い、書き込みの完了を待たない。
// キューが満杯の場合はタスクを破棄してログに記録する（読み取りを優先する）。
type CacheWriter struct {
	asteroidRepo repository.AsteroidRepository
	dailyRepo    repository.DailyCacheRepository
	logger       *slog.Logger
	metrics      UpsertMetrics // nilの場合は記録しない

	tasks chan writeTask
	wg    sync.WaitGroup
}

// NewCacheWriter はCacheWriterを生成する。
func NewCacheWriter(
	asteroidRepo repository.AsteroidRepository,
	dailyRepo repository.DailyCacheRepository,
	logger *slog.Logger,
) *CacheWriter {
	return &CacheWriter{
		asteroidRepo: asteroidRepo,
		dailyRepo:    dailyRepo,
		logger:       logger,
		tasks:        make(chan writeTask, defaultQueueSize),
	}
}

// WithMetrics はアップサートメトリクスの記録先を設定する。Startの前に呼ぶこと。
func (w *CacheWriter) WithMetrics(m UpsertMetrics) *CacheWriter {
	w.metrics = m
	return w
}

// Start はワーカーゴルーチンを起動する。
func (w *CacheWriter) Start() {
	w.wg.Add(1)
	go w.run()
	w.logger.Info("キャッシュ書き込みワーカーを起動しました",
		slog.Int("queue_size", defaultQueueSize),
	)
}

// Stop はキューを閉じ、残タスクの処理完了を待つ。
func (w *CacheWriter) Stop() {
	close(w.tasks)
	w.wg.Wait()
	w.logger.Info("キャッシュ書き込みワーカーを停止しました")
}

// EnqueueObjectUpserts は天体のオブジェクトキャッシュUPSERTをエンキューする。
func (w *CacheWriter) EnqueueObjectUpserts(asteroids []model.Asteroid) {
	if len(asteroids) == 0 {
		return
	}
	w.enqueue(writeTask{asteroids: asteroids})
}

// EnqueueDailyEntry は日次キャッシュエントリの保存をエンキューする。
func (w *CacheWriter) EnqueueDailyEntry(entry *model.DailyEntry) {
	if entry == nil {
		return
	}
	w.enqueue(writeTask{dailyEntry: entry})
}

// enqueue はタスクを非ブロッキングでキューに積む。満杯の場合は破棄する。
func (w *CacheWriter) enqueue(task writeTask) {
	select {
	case w.tasks <- task:
	default:
		w.logger.Warn("書き込みキューが満杯のためタスクを破棄しました",
			slog.Int("asteroid_count", len(task.asteroids)),
			slog.Bool("has_daily_entry", task.dailyEntry != nil),
		)
	}
}

// run はキューからタスクを取り出して順次実行する。
// 書き込み失敗はログに記録するだけで、リトライは次回の読み取りミスに委ねる。
func (w *CacheWriter) run() {
	defer w.wg.Done()

	for task := range w.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)

		if task.dailyEntry != nil {
			if err := w.dailyRepo.Set(ctx, task.dailyEntry); err != nil {
				w.logger.Error("日次キャッシュの書き込みに失敗しました",
					slog.String("date", task.dailyEntry.Date),
					slog.String("error", err.Error()),
				)
			}
		}

		upserted := 0
		for i := range task.asteroids {
			if err := w.asteroidRepo.Upsert(ctx, &task.asteroids[i]); err != nil {
				w.logger.Error("天体キャッシュの書き込みに失敗しました",
					slog.String("neo_id", task.asteroids[i].NeoID),
					slog.String("error", err.Error()),
				)
				continue
			}
			upserted++
		}
		if upserted > 0 && w.metrics != nil {
			w.metrics.RecordAsteroidsUpserted(upserted)
		}

		cancel()
	}
}

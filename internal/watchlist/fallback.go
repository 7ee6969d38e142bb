// Package watchlist はユーザーごとの天体ウォッチリストを提供する。
// 永続化層が利用できない場合はプロセス内のフォールバックストアに退避し、
// 機能を完全には失わないようにする。
package watchlist

import (
	"sync"

	"github.com/hitoshi/neowatch/internal/model"
)

// FallbackStore は永続化層の障害時に使用する一時ストアのインターフェース。
// ユーザーごとに分離されたストレージを提供する（ユーザー間でデータが混ざらない）。
type FallbackStore interface {
	// Add はエントリを追加する。同一(userID, neoID)が既に存在する場合はfalseを返す。
	Add(userID string, entry model.WatchlistEntry) bool
	// List はユーザーのエントリ一覧を返す。
	List(userID string) []model.WatchlistEntry
	// Remove はユーザーのエントリを削除する。存在しない場合はfalseを返す。
	Remove(userID, neoID string) bool
}

// MemoryFallbackStore はプロセス内メモリのフォールバックストア。
// プロセス再起動で消える一時退避用であり、正常時の置き換えではない。
type MemoryFallbackStore struct {
	mu      sync.RWMutex
	byUser  map[string]map[string]model.WatchlistEntry // userID -> neoID -> entry
}

// NewMemoryFallbackStore はMemoryFallbackStoreを生成する。
func NewMemoryFallbackStore() *MemoryFallbackStore {
	return &MemoryFallbackStore{
		byUser: make(map[string]map[string]model.WatchlistEntry),
	}
}

// Add はエントリを追加する。同一(userID, neoID)が既に存在する場合はfalseを返す。
func (s *MemoryFallbackStore) Add(userID string, entry model.WatchlistEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.byUser[userID]
	if !ok {
		entries = make(map[string]model.WatchlistEntry)
		s.byUser[userID] = entries
	}
	if _, exists := entries[entry.NeoID]; exists {
		return false
	}
	entries[entry.NeoID] = entry
	return true
}

// List はユーザーのエントリ一覧を返す。
func (s *MemoryFallbackStore) List(userID string) []model.WatchlistEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.byUser[userID]
	result := make([]model.WatchlistEntry, 0, len(entries))
	for _, entry := range entries {
		result = append(result, entry)
	}
	return result
}

// Remove はユーザーのエントリを削除する。存在しない場合はfalseを返す。
func (s *MemoryFallbackStore) Remove(userID, neoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.byUser[userID]
	if !ok {
		return false
	}
	if _, exists := entries[neoID]; !exists {
		return false
	}
	delete(entries, neoID)
	return true
}

// compile-time interface check
var _ FallbackStore = (*MemoryFallbackStore)(nil)

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/neowatch/internal/model"
)

// WatchlistServiceInterface はウォッチリストハンドラーが必要とするサービスインターフェース。
type WatchlistServiceInterface interface {
	// Add は天体をウォッチリストに追加する。
	Add(ctx context.Context, userID, neoID, name string) (*model.WatchlistEntry, error)
	// List はユーザーのウォッチリスト一覧を返す。
	List(ctx context.Context, userID string) ([]model.WatchlistEntry, error)
	// Remove は天体をウォッチリストから削除する。
	Remove(ctx context.Context, userID, neoID string) error
}

// WatchlistHandler はウォッチリストのHTTPハンドラー。
type WatchlistHandler struct {
	service WatchlistServiceInterface
}

// NewWatchlistHandler はWatchlistHandlerを生成する。
func NewWatchlistHandler(service WatchlistServiceInterface) *WatchlistHandler {
	return &WatchlistHandler{service: service}
}

// addWatchlistRequest はウォッチリスト追加のリクエストボディ。
type addWatchlistRequest struct {
	NeoID string `json:"neo_id"`
	Name  string `json:"name"`
}

// watchlistResponse はウォッチリスト一覧のAPIレスポンス。
type watchlistResponse struct {
	Watchlist []model.WatchlistEntry `json:"watchlist"`
}

// Add は天体をウォッチリストに追加する。
// POST /api/watchlist
func (h *WatchlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req addWatchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("JSONボディを解析できません"))
		return
	}

	if strings.TrimSpace(req.NeoID) == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("neo_idは必須です"))
		return
	}

	entry, err := h.service.Add(r.Context(), userID, req.NeoID, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, entry)
}

// List はユーザーのウォッチリスト一覧を返す。
// GET /api/watchlist
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	entries, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, watchlistResponse{Watchlist: entries})
}

// Remove は天体をウォッチリストから削除する。
// DELETE /api/watchlist/{neoID}
func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	neoID := chi.URLParam(r, "neoID")

	if err := h.service.Remove(r.Context(), userID, neoID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

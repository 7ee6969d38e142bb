// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/neowatch/internal/middleware"
	"github.com/hitoshi/neowatch/internal/model"
)

// デフォルトのページング・リミット値。
const (
	defaultBrowsePage  = 0
	defaultBrowseSize  = 20
	defaultTopRiskSize = 10
)

// AsteroidServiceInterface は天体ハンドラーが必要とするサービスインターフェース。
type AsteroidServiceInterface interface {
	// GetFeed は指定日付範囲の接近天体一覧を返す。
	GetFeed(ctx context.Context, startDate, endDate string) ([]model.Asteroid, error)
	// GetStats は指定日の集計統計と、実際に使用した日付を返す。
	GetStats(ctx context.Context, date string) (*model.DailyStats, string, error)
	// GetByNeoID は単一天体の詳細を返す。
	GetByNeoID(ctx context.Context, neoID string) (*model.Asteroid, error)
	// Browse は天体カタログの1ページを返す。
	Browse(ctx context.Context, page, size int) (*model.BrowseResult, error)
	// TopRisk はリスクスコア降順の天体一覧を返す。
	TopRisk(ctx context.Context, limit int) ([]model.Asteroid, error)
}

// AsteroidHandler は天体データのHTTPハンドラー。
type AsteroidHandler struct {
	service AsteroidServiceInterface
}

// NewAsteroidHandler はAsteroidHandlerを生成する。
func NewAsteroidHandler(service AsteroidServiceInterface) *AsteroidHandler {
	return &AsteroidHandler{service: service}
}

// feedListResponse は接近天体一覧のAPIレスポンス。
type feedListResponse struct {
	Asteroids []model.Asteroid `json:"asteroids"`
	Count     int              `json:"count"`
}

// statsResponse は日次統計のAPIレスポンス。
// Dateはフォールバック時に実際に使用した日付を示す。
type statsResponse struct {
	Date  string           `json:"date"`
	Stats model.DailyStats `json:"stats"`
}

// GetFeed は日付範囲の接近天体一覧を返す。
// GET /api/asteroids/feed?start_date=YYYY-MM-DD&end_date=YYYY-MM-DD
func (h *AsteroidHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	startDate := r.URL.Query().Get("start_date")
	endDate := r.URL.Query().Get("end_date")

	if startDate == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidDateRangeError("start_dateは必須です"))
		return
	}

	asteroids, err := h.service.GetFeed(r.Context(), startDate, endDate)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, feedListResponse{
		Asteroids: asteroids,
		Count:     len(asteroids),
	})
}

// GetStats は指定日の集計統計を返す。日付省略時は当日扱いはせず400を返す。
// GET /api/asteroids/stats?date=YYYY-MM-DD
func (h *AsteroidHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidDateRangeError("dateは必須です"))
		return
	}

	stats, usedDate, err := h.service.GetStats(r.Context(), date)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, statsResponse{
		Date:  usedDate,
		Stats: *stats,
	})
}

// TopRisk はリスクスコア降順の天体一覧を返す。
// GET /api/asteroids/top-risk?limit=N
func (h *AsteroidHandler) TopRisk(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultTopRiskSize)

	asteroids, err := h.service.TopRisk(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, feedListResponse{
		Asteroids: asteroids,
		Count:     len(asteroids),
	})
}

// Browse は天体カタログの1ページを返す。
// GET /api/asteroids/browse?page=N&size=M
func (h *AsteroidHandler) Browse(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", defaultBrowsePage)
	size := queryInt(r, "size", defaultBrowseSize)

	result, err := h.service.Browse(r.Context(), page, size)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, result)
}

// GetByNeoID は単一天体の詳細を返す。
// GET /api/asteroids/{id}
func (h *AsteroidHandler) GetByNeoID(w http.ResponseWriter, r *http.Request) {
	neoID := chi.URLParam(r, "id")

	asteroid, err := h.service.GetByNeoID(r.Context(), neoID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, asteroid)
}

// --- ヘルパー関数 ---

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// queryInt はクエリパラメータを整数として読む。欠落または不正な値はデフォルトを返す。
func queryInt(r *http.Request, key string, defaultValue int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return defaultValue
	}
	return value
}

// writeJSONResponse はJSONレスポンスを書き込む。
func writeJSONResponse(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSONResponse(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidDateRange, model.ErrCodeInvalidAlertKind, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeAlertNotFound, model.ErrCodeNotificationNotFound, model.ErrCodeAsteroidNotFound:
		return http.StatusNotFound
	case model.ErrCodeWatchlistDuplicate:
		return http.StatusConflict
	case model.ErrCodeUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// requireUserID はコンテキストからユーザーIDを取得し、なければ401を書き込む。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}

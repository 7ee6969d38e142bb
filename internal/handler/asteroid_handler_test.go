package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/neowatch/internal/middleware"
	"github.com/hitoshi/neowatch/internal/model"
)

// --- モック定義 ---

// mockAsteroidService はAsteroidServiceInterfaceのモック実装。
type mockAsteroidService struct {
	getFeedFn    func(ctx context.Context, startDate, endDate string) ([]model.Asteroid, error)
	getStatsFn   func(ctx context.Context, date string) (*model.DailyStats, string, error)
	getByNeoIDFn func(ctx context.Context, neoID string) (*model.Asteroid, error)
	browseFn     func(ctx context.Context, page, size int) (*model.BrowseResult, error)
	topRiskFn    func(ctx context.Context, limit int) ([]model.Asteroid, error)
}

func (m *mockAsteroidService) GetFeed(ctx context.Context, startDate, endDate string) ([]model.Asteroid, error) {
	if m.getFeedFn != nil {
		return m.getFeedFn(ctx, startDate, endDate)
	}
	return nil, nil
}

func (m *mockAsteroidService) GetStats(ctx context.Context, date string) (*model.DailyStats, string, error) {
	if m.getStatsFn != nil {
		return m.getStatsFn(ctx, date)
	}
	return nil, "", nil
}

func (m *mockAsteroidService) GetByNeoID(ctx context.Context, neoID string) (*model.Asteroid, error) {
	if m.getByNeoIDFn != nil {
		return m.getByNeoIDFn(ctx, neoID)
	}
	return nil, nil
}

func (m *mockAsteroidService) Browse(ctx context.Context, page, size int) (*model.BrowseResult, error) {
	if m.browseFn != nil {
		return m.browseFn(ctx, page, size)
	}
	return nil, nil
}

func (m *mockAsteroidService) TopRisk(ctx context.Context, limit int) ([]model.Asteroid, error) {
	if m.topRiskFn != nil {
		return m.topRiskFn(ctx, limit)
	}
	return nil, nil
}

// --- テストヘルパー ---

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), userID)
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// --- GET /api/asteroids/feed テスト ---

// 日付範囲指定でフィードを取得し、件数付きのレスポンスが返ることを検証する。
func TestAsteroidHandler_GetFeed_Success(t *testing.T) {
	svc := &mockAsteroidService{
		getFeedFn: func(ctx context.Context, startDate, endDate string) ([]model.Asteroid, error) {
			if startDate != "2026-03-10" {
				t.Errorf("startDate = %q, want %q", startDate, "2026-03-10")
			}
			if endDate != "2026-03-12" {
				t.Errorf("endDate = %q, want %q", endDate, "2026-03-12")
			}
			return []model.Asteroid{
				{NeoID: "3542519", Name: "(2010 PK9)"},
				{NeoID: "2153306", Name: "153306 (2001 JL1)"},
			}, nil
		},
	}

	h := NewAsteroidHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/asteroids/feed?start_date=2026-03-10&end_date=2026-03-12", nil)
	w := httptest.NewRecorder()

	h.GetFeed(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp feedListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("Count = %d, want 2", resp.Count)
	}
	if len(resp.Asteroids) != 2 {
		t.Errorf("len(Asteroids) = %d, want 2", len(resp.Asteroids))
	}
}

// start_dateが欠落している場合に400が返ることを検証する。
func TestAsteroidHandler_GetFeed_MissingStartDate(t *testing.T) {
	h := NewAsteroidHandler(&mockAsteroidService{})

	req := httptest.NewRequest(http.MethodGet, "/api/asteroids/feed", nil)
	w := httptest.NewRecorder()

	h.GetFeed(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	body := parseAPIErrorResponse(t, w)
	if body["code"] != model.ErrCodeInvalidDateRange {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeInvalidDateRange)
	}
}

// サービスが上流エラーを返した場合に502が返ることを検証する。
func TestAsteroidHandler_GetFeed_UpstreamUnavailable(t *testing.T) {
	svc := &mockAsteroidService{
		getFeedFn: func(ctx context.Context, startDate, endDate string) ([]model.Asteroid, error) {
			return nil, model.NewUpstreamUnavailableError("タイムアウト")
		},
	}

	h := NewAsteroidHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/asteroids/feed?start_date=2026-03-10&end_date=2026-03-12", nil)
	w := httptest.NewRecorder()

	h.GetFeed(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}

	body := parseAPIErrorResponse(t, w)
	if body["code"] != model.ErrCodeUpstreamUnavailable {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeUpstreamUnavailable)
	}
	if body["category"] != "upstream" {
		t.Errorf("category = %q, want %q", body["category"], "upstream")
	}
}

// APIError以外のエラーが500に変換されることを検証する。
func TestAsteroidHandler_GetFeed_InternalError(t *testing.T) {
	svc := &mockAsteroidService{
		getFeedFn: func(ctx context.Context, startDate, endDate string) ([]model.Asteroid, error) {
			return nil, errors.New("database connection lost")
		},
	}

	h := NewAsteroidHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/asteroids/feed?start_date=2026-03-10&end_date=2026-03-12", nil)
	w := httptest.NewRecorder()

	h.GetFeed(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	body := parseAPIErrorResponse(t, w)
	if body["code"] != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want %q", body["code"], "INTERNAL_ERROR")
	}
}

// --- GET /api/asteroids/stats テスト ---

// 統計取得でフォールバックした日付がレスポンスに反映されることを検証する。
func TestAsteroidHandler_GetStats_Success(t *testing.T) {
	svc := &mockAsteroidService{
		getStatsFn: func(ctx context.Context, date string) (*model.DailyStats, string, error) {
			if date != "2026-03-10" {
				t.Errorf("date = %q, want %q", date, "2026-03-10")
			}
			return &model.DailyStats{
				NeoCount:       5,
				HazardousCount: 2,
			}, "2026-03-09", nil
		},
	}

	h := NewAsteroidHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/asteroids/stats?date=2026-03-10", nil)
	w := httptest.NewRecorder()

	h.GetStats(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp statsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Date != "2026-03-09" {
		t.Errorf("Date = %q, want %q", resp.Date, "2026-03-09")
	}
	if resp.Stats.NeoCount != 5 {
		t.Errorf("NeoCount = %d, want 5", resp.Stats.NeoCount)
	}
}

// dateパラメータが欠落している場合に400が返ることを検証する。
func TestAsteroidHandler_GetStats_MissingDate(t *testing.T) {
	h := NewAsteroidHandler(&mockAsteroidService{})

	req := httptest.NewRequest(http.MethodGet, "/api/asteroids/stats", nil)
	w := httptest.NewRecorder()

	h.GetStats(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- GET /api/asteroids/top-risk テスト ---

// limitパラメータがサービスに渡ることを検証する。
func TestAsteroidHandler_TopRisk_PassesLimit(t *testing.T) {
	svc := &mockAsteroidService{
		topRiskFn: func(ctx context.Context, limit int) ([]model.Asteroid, error) {
			if limit != 5 {
				t.Errorf("limit = %d, want 5", limit)
			}
			return []model.Asteroid{{NeoID: "3542519", RiskScore: 88}}, nil
		},
	}

	h := NewAsteroidHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/asteroids/top-risk?limit=5", nil)
	w := httptest.NewRecorder()

	h.TopRisk(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// limitが省略または不正な場合にデフォルト値が使われることを検証する。
func TestAsteroidHandler_TopRisk_DefaultLimit(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"パラメータなし", ""},
		{"数値でない", "?limit=abc"},
		{"負の数", "?limit=-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAsteroidService{
				topRiskFn: func(ctx context.Context, limit int) ([]model.Asteroid, error) {
					if limit != defaultTopRiskSize {
						t.Errorf("limit = %d, want %d", limit, defaultTopRiskSize)
					}
					return nil, nil
				},
			}

			h := NewAsteroidHandler(svc)

			req := httptest.NewRequest(http.MethodGet, "/api/asteroids/top-risk"+tt.query, nil)
			w := httptest.NewRecorder()

			h.TopRisk(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}
		})
	}
}

// --- GET /api/asteroids/browse テスト ---

// ページングパラメータがサービスに渡り、結果がそのまま返ることを検証する。
func TestAsteroidHandler_Browse_Success(t *testing.T) {
	svc := &mockAsteroidService{
		browseFn: func(ctx context.Context, page, size int) (*model.BrowseResult, error) {
			if page != 2 {
				t.Errorf("page = %d, want 2", page)
			}
			if size != 10 {
				t.Errorf("size = %d, want 10", size)
			}
			return &model.BrowseResult{
				Asteroids: []model.Asteroid{{NeoID: "3542519"}},
				Pagination: model.Pagination{
					Total:       21,
					TotalPages:  3,
					Size:        10,
					CurrentPage: 2,
				},
			}, nil
		},
	}

	h := NewAsteroidHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/asteroids/browse?page=2&size=10", nil)
	w := httptest.NewRecorder()

	h.Browse(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp model.BrowseResult
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Pagination.Total != 21 {
		t.Errorf("Total = %d, want 21", resp.Pagination.Total)
	}
}

// --- GET /api/asteroids/{id} テスト ---

// URLパラメータのNEO参照IDで単一天体を取得できることを検証する。
func TestAsteroidHandler_GetByNeoID_Success(t *testing.T) {
	svc := &mockAsteroidService{
		getByNeoIDFn: func(ctx context.Context, neoID string) (*model.Asteroid, error) {
			if neoID != "3542519" {
				t.Errorf("neoID = %q, want %q", neoID, "3542519")
			}
			return &model.Asteroid{NeoID: "3542519", Name: "(2010 PK9)"}, nil
		},
	}

	h := NewAsteroidHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/asteroids/3542519", nil)
	req = withChiURLParam(req, "id", "3542519")
	w := httptest.NewRecorder()

	h.GetByNeoID(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp model.Asteroid
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Name != "(2010 PK9)" {
		t.Errorf("Name = %q, want %q", resp.Name, "(2010 PK9)")
	}
}

// 存在しない天体IDで404が返ることを検証する。
func TestAsteroidHandler_GetByNeoID_NotFound(t *testing.T) {
	svc := &mockAsteroidService{
		getByNeoIDFn: func(ctx context.Context, neoID string) (*model.Asteroid, error) {
			return nil, model.NewAsteroidNotFoundError(neoID)
		},
	}

	h := NewAsteroidHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/asteroids/9999999", nil)
	req = withChiURLParam(req, "id", "9999999")
	w := httptest.NewRecorder()

	h.GetByNeoID(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	body := parseAPIErrorResponse(t, w)
	if body["code"] != model.ErrCodeAsteroidNotFound {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeAsteroidNotFound)
	}
}

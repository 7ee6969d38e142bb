package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/neowatch/internal/model"
)

// AlertServiceInterface はアラートハンドラーが必要とするサービスインターフェース。
type AlertServiceInterface interface {
	// CreateAlert は新しいアラートルールを作成する。
	CreateAlert(ctx context.Context, userID, kind string, threshold float64) (*model.AlertRule, error)
	// ListAlerts はユーザーのアラートルール一覧を返す。
	ListAlerts(ctx context.Context, userID string) ([]model.AlertRule, error)
	// ToggleAlert はアラートルールの有効/無効を切り替える。
	ToggleAlert(ctx context.Context, userID, alertID string, isActive bool) (*model.AlertRule, error)
	// DeleteAlert はアラートルールを削除する。
	DeleteAlert(ctx context.Context, userID, alertID string) error
}

// AlertHandler はアラートルールのHTTPハンドラー。
type AlertHandler struct {
	service AlertServiceInterface
}

// NewAlertHandler はAlertHandlerを生成する。
func NewAlertHandler(service AlertServiceInterface) *AlertHandler {
	return &AlertHandler{service: service}
}

// createAlertRequest はアラート作成のリクエストボディ。
type createAlertRequest struct {
	Kind      string  `json:"kind"`
	Threshold float64 `json:"threshold"`
}

// toggleAlertRequest はアラート切り替えのリクエストボディ。
type toggleAlertRequest struct {
	IsActive bool `json:"is_active"`
}

// alertListResponse はアラート一覧のAPIレスポンス。
type alertListResponse struct {
	Alerts []model.AlertRule `json:"alerts"`
}

// Create は新しいアラートルールを作成する。
// POST /api/alerts
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("JSONボディを解析できません"))
		return
	}

	alert, err := h.service.CreateAlert(r.Context(), userID, req.Kind, req.Threshold)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, alert)
}

// List はユーザーのアラートルール一覧を返す。
// GET /api/alerts
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	alerts, err := h.service.ListAlerts(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, alertListResponse{Alerts: alerts})
}

// Toggle はアラートルールの有効/無効を切り替える。
// PATCH /api/alerts/{id}/toggle
func (h *AlertHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	alertID := chi.URLParam(r, "id")

	var req toggleAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("JSONボディを解析できません"))
		return
	}

	alert, err := h.service.ToggleAlert(r.Context(), userID, alertID, req.IsActive)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, alert)
}

// Delete はアラートルールを削除する。
// DELETE /api/alerts/{id}
func (h *AlertHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	alertID := chi.URLParam(r, "id")

	if err := h.service.DeleteAlert(r.Context(), userID, alertID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

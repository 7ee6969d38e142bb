package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/neowatch/internal/model"
)

// 1回のリクエストで返す通知件数の既定値。
const defaultNotificationLimit = 50

// NotificationServiceInterface は通知ハンドラーが必要とするサービスインターフェース。
type NotificationServiceInterface interface {
	// ListNotifications はユーザーの通知一覧を新しい順に返す。
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error)
	// MarkNotificationRead は通知を既読にする。
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error
	// MarkAllNotificationsRead はユーザーの全未読通知を既読にする。
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
}

// NotificationHandler は通知のHTTPハンドラー。
type NotificationHandler struct {
	service NotificationServiceInterface
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(service NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// notificationListResponse は通知一覧のAPIレスポンス。
type notificationListResponse struct {
	Notifications []model.Notification `json:"notifications"`
}

// markAllReadResponse は一括既読のAPIレスポンス。
type markAllReadResponse struct {
	Marked int64 `json:"marked"`
}

// List はユーザーの通知一覧を返す。
// GET /api/notifications?unread_only=true&limit=N
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	unreadOnly := r.URL.Query().Get("unread_only") == "true"
	limit := queryInt(r, "limit", defaultNotificationLimit)

	notifications, err := h.service.ListNotifications(r.Context(), userID, unreadOnly, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, notificationListResponse{Notifications: notifications})
}

// MarkRead は通知を既読にする。
// PATCH /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	notificationID := chi.URLParam(r, "id")

	if err := h.service.MarkNotificationRead(r.Context(), userID, notificationID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead はユーザーの全未読通知を既読にする。
// POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	marked, err := h.service.MarkAllNotificationsRead(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, markAllReadResponse{Marked: marked})
}

package model

import (
	"errors"
	"fmt"
)

// ErrCacheMiss はキャッシュに新鮮なデータが存在しないことを示すセンチネルエラー。
// 「キャッシュされた0件の結果」（空スライス + nilエラー）とは明確に区別される。
// 呼び出し元はerrors.Isで判定し、上流フェッチにフォールバックする。
var ErrCacheMiss = errors.New("キャッシュに新鮮なデータがありません")

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUpstreamUnavailable  = "UPSTREAM_UNAVAILABLE"
	ErrCodeInvalidAlertKind     = "INVALID_ALERT_KIND"
	ErrCodeAlertNotFound        = "ALERT_NOT_FOUND"
	ErrCodeNotificationNotFound = "NOTIFICATION_NOT_FOUND"
	ErrCodeAsteroidNotFound     = "ASTEROID_NOT_FOUND"
	ErrCodeInvalidDateRange     = "INVALID_DATE_RANGE"
	ErrCodeWatchlistDuplicate   = "WATCHLIST_DUPLICATE"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
)

// NewInvalidRequestError は不正なリクエストエラーを生成する。
// JSONボディの構文エラーや必須フィールドの欠落が対象。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("不正なリクエストです: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewUpstreamUnavailableError は上流API呼び出し失敗エラーを生成する。
// ネットワークエラー、タイムアウト、非2xxレスポンスが対象。呼び出し元でリトライ可能。
func NewUpstreamUnavailableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamUnavailable,
		Message:  fmt.Sprintf("NASA APIへのアクセスに失敗しました: %s", reason),
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidAlertKindError は無効なアラート種別エラーを生成する。
func NewInvalidAlertKindError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAlertKind,
		Message:  fmt.Sprintf("無効なアラート種別です: %s", kind),
		Category: "validation",
		Action:   "アラート種別には distance、diameter、hazardous、sentry のいずれかを指定してください。",
	}
}

// NewAlertNotFoundError はアラート未検出エラーを生成する。
// 所有者不一致の場合もこのエラーを返し、他ユーザーのルールの存在を秘匿する。
func NewAlertNotFoundError(alertID string) *APIError {
	return &APIError{
		Code:     ErrCodeAlertNotFound,
		Message:  fmt.Sprintf("指定されたアラートが見つかりません: %s", alertID),
		Category: "validation",
		Action:   "アラートIDを確認してください。",
	}
}

// NewNotificationNotFoundError は通知未検出エラーを生成する。
// 所有者不一致の場合もこのエラーを返す。
func NewNotificationNotFoundError(notificationID string) *APIError {
	return &APIError{
		Code:     ErrCodeNotificationNotFound,
		Message:  fmt.Sprintf("指定された通知が見つかりません: %s", notificationID),
		Category: "validation",
		Action:   "通知IDを確認してください。",
	}
}

// NewAsteroidNotFoundError は天体未検出エラーを生成する。
func NewAsteroidNotFoundError(neoID string) *APIError {
	return &APIError{
		Code:     ErrCodeAsteroidNotFound,
		Message:  fmt.Sprintf("指定された天体が見つかりません: %s", neoID),
		Category: "validation",
		Action:   "NEO参照IDを確認してください。",
	}
}

// NewInvalidDateRangeError は無効な日付範囲エラーを生成する。
func NewInvalidDateRangeError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDateRange,
		Message:  fmt.Sprintf("無効な日付範囲です: %s", reason),
		Category: "validation",
		Action:   "日付はYYYY-MM-DD形式で、開始日が終了日以前になるように指定してください。",
	}
}

// NewWatchlistDuplicateError はウォッチリスト重複登録エラーを生成する。
func NewWatchlistDuplicateError(neoID string) *APIError {
	return &APIError{
		Code:     ErrCodeWatchlistDuplicate,
		Message:  fmt.Sprintf("この天体は既にウォッチリストに登録されています: %s", neoID),
		Category: "validation",
		Action:   "ウォッチリスト一覧から該当天体を確認してください。",
	}
}

// NewUnauthorizedError は認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

package neo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/hitoshi/neowatch/internal/model"
)

const (
	// defaultBaseURL はNASA NeoWs APIのベースURL。
	defaultBaseURL = "https://api.nasa.gov/neo/rest/v1"
	// maxFeedRangeDays はfeedエンドポイントが1回で受け付ける最大日数。
	maxFeedRangeDays = 7
)

// errUpstreamNotFound は上流APIが404を返したことを示す内部センチネル。
var errUpstreamNotFound = errors.New("上流APIがリソースを返しませんでした")

// feedResponse はfeedエンドポイントのレスポンス形。
// near_earth_objectsは日付(YYYY-MM-DD)をキーとするマップ。
type feedResponse struct {
	ElementCount     int                      `json:"element_count"`
	NearEarthObjects map[string][]RawAsteroid `json:"near_earth_objects"`
}

// browseResponse はbrowseエンドポイントのレスポンス形。
type browseResponse struct {
	Page struct {
		Size          int `json:"size"`
		TotalElements int `json:"total_elements"`
		TotalPages    int `json:"total_pages"`
		Number        int `json:"number"`
	} `json:"page"`
	NearEarthObjects []RawAsteroid `json:"near_earth_objects"`
}

// FetchMetrics は上流フェッチの結果を記録するインターフェース。
type FetchMetrics interface {
	RecordUpstreamFetchSuccess()
	RecordUpstreamFetchFailure(reason string)
	RecordUpstreamFetchLatency(duration time.Duration)
}

// Client はNASA NeoWs APIのクライアント。
// feed（日付範囲）・lookup（個別天体）・browse（ページング一覧）の3エンドポイントを呼び出す。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にベースURLを差し替え可能
	apiKey     string
	metrics    FetchMetrics // nilの場合は記録しない
	now        func() time.Time
}

// NewClient はClient の新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		apiKey:     apiKey,
		now:        time.Now,
	}
}

// WithMetrics はフェッチメトリクスの記録先を設定する。
func (c *Client) WithMetrics(m FetchMetrics) *Client {
	c.metrics = m
	return c
}

// FetchFeed は指定日付範囲の接近天体一覧を取得する。
// 日付はYYYY-MM-DD形式、範囲は最大7日間。endDateが空の場合はstartDateのみを指定する。
// レート制限（429）・クォータ超過時は空リストを返す（エラーにしない）。
// その他の失敗時はUPSTREAM_UNAVAILABLEエラーを返す。
func (c *Client) FetchFeed(ctx context.Context, startDate, endDate string) ([]model.Asteroid, error) {
	if err := validateFeedRange(startDate, endDate); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("start_date", startDate)
	if endDate != "" {
		params.Set("end_date", endDate)
	}

	body, rateLimited, err := c.get(ctx, "/feed", params)
	if err != nil {
		return nil, err
	}
	if rateLimited {
		return []model.Asteroid{}, nil
	}

	var feed feedResponse
	if err := json.Unmarshal(body, &feed); err != nil {
		c.logger.Error("feedレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamUnavailableError("レスポンスJSONのパースに失敗しました")
	}

	// 日付キー順に整列してからフラット化する（マップ順序の非決定性を排除）
	dates := make([]string, 0, len(feed.NearEarthObjects))
	for date := range feed.NearEarthObjects {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	fetchedAt := c.now()
	asteroids := make([]model.Asteroid, 0, feed.ElementCount)
	for _, date := range dates {
		for _, raw := range feed.NearEarthObjects[date] {
			asteroids = append(asteroids, ParseAsteroid(raw, fetchedAt))
		}
	}

	c.logger.Info("接近天体feedを取得しました",
		slog.String("start_date", startDate),
		slog.String("end_date", endDate),
		slog.Int("count", len(asteroids)),
	)

	return asteroids, nil
}

// FetchLookup は天体IDを指定して単一天体の詳細（軌道データ含む）を取得する。
// 404の場合はASTEROID_NOT_FOUNDエラー、レート制限時はUPSTREAM_UNAVAILABLEエラーを返す。
func (c *Client) FetchLookup(ctx context.Context, neoID string) (*model.Asteroid, error) {
	body, rateLimited, err := c.get(ctx, "/neo/"+url.PathEscape(neoID), url.Values{})
	if err != nil {
		if errors.Is(err, errUpstreamNotFound) {
			return nil, model.NewAsteroidNotFoundError(neoID)
		}
		return nil, err
	}
	if rateLimited {
		// 単一取得ではフォールバック先がないためエラーとして扱う
		return nil, model.NewUpstreamUnavailableError("上流APIのレート制限中です")
	}

	var raw RawAsteroid
	if err := json.Unmarshal(body, &raw); err != nil {
		c.logger.Error("lookupレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
			slog.String("neo_id", neoID),
		)
		return nil, model.NewUpstreamUnavailableError("レスポンスJSONのパースに失敗しました")
	}

	parsed := ParseAsteroid(raw, c.now())
	return &parsed, nil
}

// FetchBrowse はページ番号を指定して天体カタログの1ページを取得する。
func (c *Client) FetchBrowse(ctx context.Context, page, size int) (*model.BrowseResult, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	if size > 0 {
		params.Set("size", strconv.Itoa(size))
	}

	body, rateLimited, err := c.get(ctx, "/neo/browse", params)
	if err != nil {
		return nil, err
	}
	if rateLimited {
		return &model.BrowseResult{Asteroids: []model.Asteroid{}}, nil
	}

	var browse browseResponse
	if err := json.Unmarshal(body, &browse); err != nil {
		c.logger.Error("browseレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamUnavailableError("レスポンスJSONのパースに失敗しました")
	}

	fetchedAt := c.now()
	asteroids := make([]model.Asteroid, 0, len(browse.NearEarthObjects))
	for _, raw := range browse.NearEarthObjects {
		asteroids = append(asteroids, ParseAsteroid(raw, fetchedAt))
	}

	return &model.BrowseResult{
		Asteroids: asteroids,
		Pagination: model.Pagination{
			Total:       browse.Page.TotalElements,
			TotalPages:  browse.Page.TotalPages,
			Size:        browse.Page.Size,
			CurrentPage: browse.Page.Number,
		},
	}, nil
}

// validateFeedRange はfeedの日付範囲が上流APIの制約を満たすか検証する。
func validateFeedRange(startDate, endDate string) error {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return model.NewInvalidDateRangeError("start_dateはYYYY-MM-DD形式で指定してください")
	}
	if endDate == "" {
		return nil
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return model.NewInvalidDateRangeError("end_dateはYYYY-MM-DD形式で指定してください")
	}
	if end.Before(start) {
		return model.NewInvalidDateRangeError("end_dateはstart_date以降の日付を指定してください")
	}
	if int(end.Sub(start).Hours()/24) > maxFeedRangeDays {
		return model.NewInvalidDateRangeError(
			fmt.Sprintf("日付範囲は最大%d日間です", maxFeedRangeDays))
	}
	return nil
}

// get は共通のHTTP GET処理。APIキーの付与・ステータス判定・ボディ読み取りを行う。
// 戻り値のrateLimitedはレート制限・クォータ超過を検出した場合にtrue。
func (c *Client) get(ctx context.Context, path string, params url.Values) (body []byte, rateLimited bool, err error) {
	reqURL, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, false, fmt.Errorf("リクエストURLのパースに失敗しました: %w", err)
	}
	params.Set("api_key", c.apiKey)
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "NeoWatch/1.0 NEO Monitor")

	started := c.now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.RecordUpstreamFetchLatency(c.now().Sub(started))
	}
	if err != nil {
		c.recordFailure("connection")
		c.logger.Error("上流APIの呼び出しに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, false, model.NewUpstreamUnavailableError("上流APIへの接続に失敗しました")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.recordFailure("rate_limited")
		c.logger.Warn("上流APIのレート制限に達しました",
			slog.String("path", path),
			slog.String("retry_after", resp.Header.Get("Retry-After")),
		)
		return nil, true, nil
	}
	if resp.StatusCode == http.StatusForbidden {
		// APIキーのクォータ超過も403で返ることがある
		c.recordFailure("quota_exceeded")
		c.logger.Warn("上流APIがアクセスを拒否しました（クォータ超過の可能性）",
			slog.String("path", path),
		)
		return nil, true, nil
	}
	if resp.StatusCode == http.StatusNotFound {
		c.recordFailure("not_found")
		return nil, false, errUpstreamNotFound
	}
	if resp.StatusCode != http.StatusOK {
		c.recordFailure("http_error")
		c.logger.Error("上流APIがエラーステータスを返しました",
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, false, model.NewUpstreamUnavailableError(
			fmt.Sprintf("上流APIがステータス %d を返しました", resp.StatusCode))
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		c.recordFailure("read_body")
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, false, model.NewUpstreamUnavailableError("レスポンスボディの読み取りに失敗しました")
	}

	if c.metrics != nil {
		c.metrics.RecordUpstreamFetchSuccess()
	}
	return body, false, nil
}

// recordFailure は理由付きのフェッチ失敗をメトリクスに記録する。
func (c *Client) recordFailure(reason string) {
	if c.metrics != nil {
		c.metrics.RecordUpstreamFetchFailure(reason)
	}
}

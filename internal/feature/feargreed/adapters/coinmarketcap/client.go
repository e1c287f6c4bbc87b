package coinmarketcap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"crypto_backend/internal/feature/feargreed/adapters/coinmarketcap/dto"
	"crypto_backend/internal/feature/feargreed/usecase"
)

// Client はCoinMarketCap APIからFear & Greed指数を取得する
// SentimentProvider実装です。
type Client struct {
	cfg    Config
	client *http.Client
}

// ClientがSentimentProviderを実装していることをコンパイル時に検証します。
var _ usecase.SentimentProvider = (*Client)(nil)

// NewClient は指定された設定とHTTPクライアントでClientの新しいインスタンスを生成します。
func NewClient(cfg Config, client *http.Client) *Client {
	return &Client{cfg: cfg, client: client}
}

// getJSON はGETリクエストを実行してoutへデコードします。
// 数値はjson.Numberのまま保持し、正規化はusecase側に委ねます。
func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("X-CMC_PRO_API_KEY", c.cfg.APIKey)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode >= 400 {
		return fmt.Errorf("coinmarketcap http %d", res.StatusCode)
	}

	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	return dec.Decode(out)
}

// GetLatest は現在の指数を取得します。
func (c *Client) GetLatest(ctx context.Context) (*usecase.SentimentRecord, error) {
	u := fmt.Sprintf("%s/v3/fear-and-greed/latest", c.cfg.BaseURL)

	var body dto.LatestResponse
	if err := c.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}

	rec := toRecord(body.Data)
	return &rec, nil
}

// GetHistorical は日単位の履歴を取得します。limitが0以下なら省略されます。
func (c *Client) GetHistorical(ctx context.Context, limit int, start, end time.Time) ([]usecase.SentimentRecord, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if !start.IsZero() {
		q.Set("time_start", strconv.FormatInt(start.Unix(), 10))
	}
	if !end.IsZero() {
		q.Set("time_end", strconv.FormatInt(end.Unix(), 10))
	}

	u := fmt.Sprintf("%s/v3/fear-and-greed/historical", c.cfg.BaseURL)
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}

	var body dto.HistoricalResponse
	if err := c.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}

	out := make([]usecase.SentimentRecord, 0, len(body.Data))
	for _, d := range body.Data {
		out = append(out, toRecord(d))
	}
	return out, nil
}

// toRecord はDTOを生レコードに写します。latestエンドポイントはタイムスタンプを
// update_timeに、historicalはtimestampに載せてくる。
func toRecord(d dto.FearGreedRecord) usecase.SentimentRecord {
	ts := d.Timestamp
	if ts == nil && d.UpdateTime != "" {
		ts = d.UpdateTime
	}
	return usecase.SentimentRecord{
		Timestamp:      ts,
		Value:          d.Value,
		Classification: d.ValueClassification,
	}
}

package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"crypto_backend/internal/feature/markets/adapters/coingecko/dto"
	"crypto_backend/internal/feature/markets/domain/entity"
	"crypto_backend/internal/feature/markets/usecase"
)

// Client はCoinGecko APIから市場データを取得するMarketDataProvider実装です。
type Client struct {
	cfg    Config
	client *http.Client
}

// ClientがMarketDataProviderを実装していることをコンパイル時に検証します。
var _ usecase.MarketDataProvider = (*Client)(nil)

// NewClient は指定された設定とHTTPクライアントでClientの新しいインスタンスを生成します。
func NewClient(cfg Config, client *http.Client) *Client {
	return &Client{cfg: cfg, client: client}
}

// getJSON はGETリクエストを実行してoutへデコードします。
// HTTP 429（レートリミット）の場合のみ、短い待機の後にちょうど1回リトライします。
func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	retried := false
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		if c.cfg.APIKey != "" {
			req.Header.Set("x-cg-demo-api-key", c.cfg.APIKey)
		}

		res, err := c.client.Do(req)
		if err != nil {
			return err
		}

		if res.StatusCode == http.StatusTooManyRequests && !retried {
			if err := res.Body.Close(); err != nil {
				slog.Warn("failed to close response body", "error", err)
			}
			retried = true
			slog.Warn("coingecko rate limited, retrying once", "backoff", c.cfg.RetryBackoff)
			select {
			case <-time.After(c.cfg.RetryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		defer func() {
			if err := res.Body.Close(); err != nil {
				slog.Warn("failed to close response body", "error", err)
			}
		}()

		if res.StatusCode >= 400 {
			return fmt.Errorf("coingecko http %d", res.StatusCode)
		}
		return json.NewDecoder(res.Body).Decode(out)
	}
}

// GetMarkets は /coins/markets の1ページを取得し、正規化したレコードを返します。
// 必須フィールドを欠くレコードはスキップし、件数をログに残します。
func (c *Client) GetMarkets(ctx context.Context, vs string, perPage, page int) ([]entity.MarketRecord, error) {
	q := url.Values{}
	q.Set("vs_currency", vs)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))
	q.Set("price_change_percentage", "24h,7d,30d")

	u := fmt.Sprintf("%s/coins/markets?%s", c.cfg.BaseURL, q.Encode())

	var body []dto.MarketRecord
	if err := c.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}

	records := make([]entity.MarketRecord, 0, len(body))
	skipped := 0
	for _, v := range body {
		rec, ok := normalize(v, vs)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if skipped > 0 {
		slog.Warn("skipped malformed market records", "count", skipped)
	}
	return records, nil
}

// normalize はプロバイダのレコードをドメインレコードへ変換します。
// ID・価格を欠くレコードは不正として (zero, false) を返します。
func normalize(v dto.MarketRecord, vs string) (entity.MarketRecord, bool) {
	if v.ID == "" || v.CurrentPrice == nil {
		return entity.MarketRecord{}, false
	}

	// スナップショット時刻はプロバイダのlast_updatedを優先し、欠けていれば現在時刻
	snapshotAt := time.Now().UTC().Truncate(time.Minute)
	if v.LastUpdated != "" {
		if t, err := time.Parse(time.RFC3339, v.LastUpdated); err == nil {
			snapshotAt = t.UTC().Truncate(time.Minute)
		}
	}

	s := entity.MarketSnapshot{
		CoinID:     v.ID,
		VsCurrency: vs,
		Price:      *v.CurrentPrice,
		SnapshotAt: snapshotAt,
	}
	if v.MarketCap != nil {
		s.MarketCap = *v.MarketCap
	}
	if v.FullyDilutedValuation != nil {
		s.FullyDilutedValuation = *v.FullyDilutedValuation
	}
	if v.TotalVolume != nil {
		s.Volume24h = *v.TotalVolume
	}
	if v.MarketCapRank != nil {
		s.Rank = *v.MarketCapRank
	}
	if v.PriceChangePct24h != nil {
		s.PctChange24h = *v.PriceChangePct24h
	}
	if v.PriceChangePct7d != nil {
		s.PctChange7d = *v.PriceChangePct7d
	}
	if v.PriceChangePct30d != nil {
		s.PctChange30d = *v.PriceChangePct30d
	}

	return entity.MarketRecord{
		Snapshot: s,
		Symbol:   v.Symbol,
		Name:     v.Name,
		Image:    v.Image,
	}, true
}

// GetCategoriesList は /coins/categories/list を取得します。
func (c *Client) GetCategoriesList(ctx context.Context) ([]entity.CategoryListing, error) {
	u := fmt.Sprintf("%s/coins/categories/list", c.cfg.BaseURL)

	var body []dto.CategoryListItem
	if err := c.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}

	out := make([]entity.CategoryListing, 0, len(body))
	for _, v := range body {
		if v.CategoryID == "" {
			continue
		}
		out = append(out, entity.CategoryListing{ID: v.CategoryID, Name: v.Name})
	}
	return out, nil
}

// GetCoinCategories は /coins/{id} からカテゴリ表示名の一覧を取得します。
func (c *Client) GetCoinCategories(ctx context.Context, coinID string) ([]string, error) {
	q := url.Values{}
	q.Set("localization", "false")
	q.Set("tickers", "false")
	q.Set("market_data", "false")
	q.Set("community_data", "false")
	q.Set("developer_data", "false")

	u := fmt.Sprintf("%s/coins/%s?%s", c.cfg.BaseURL, url.PathEscape(coinID), q.Encode())

	var body dto.CoinDetail
	if err := c.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}

	// nullや空文字カテゴリを取り除く
	out := make([]string, 0, len(body.Categories))
	for _, name := range body.Categories {
		if name != "" {
			out = append(out, name)
		}
	}
	return out, nil
}

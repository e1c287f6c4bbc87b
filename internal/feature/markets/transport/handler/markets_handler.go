// Package handler はmarketsフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"crypto_backend/internal/api"
	"crypto_backend/internal/feature/markets/domain/entity"
	"crypto_backend/internal/feature/markets/usecase"
)

// MarketsUsecase は市場データ読み取りのユースケースインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type MarketsUsecase interface {
	GetTop(ctx context.Context, vs string, limit int) (usecase.TopView, error)
	GetPrice(ctx context.Context, vs, coinID string) (*entity.MarketSnapshot, error)
	GetCoin(ctx context.Context, coinID string) (*entity.Coin, error)
}

// ETLRunner は管理者トリガーの即時更新を実行します。
type ETLRunner interface {
	Run(ctx context.Context) (int, error)
}

// MarketsHandler は市場データのHTTPリクエストを処理します。
type MarketsHandler struct {
	uc  MarketsUsecase
	etl ETLRunner
}

// NewMarketsHandler は指定されたusecaseでMarketsHandlerの新しいインスタンスを生成します。
func NewMarketsHandler(uc MarketsUsecase, etl ETLRunner) *MarketsHandler {
	return &MarketsHandler{uc: uc, etl: etl}
}

// GetMarkets はトップN市場ビューをJSONで返します。
//
// エンドポイント例:
// GET /api/markets?vs=usd&limit=100
func (h *MarketsHandler) GetMarkets(c *gin.Context) {
	vs := c.DefaultQuery("vs", "usd")
	limitStr := c.DefaultQuery("limit", "100")
	// 文字列を整数に変換
	limit, _ := strconv.Atoi(limitStr)

	view, err := h.uc.GetTop(c.Request.Context(), vs, limit)
	if err != nil {
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: err.Error()})
		return
	}

	// データをフォーマット
	items := make([]api.MarketItemResponse, 0, len(view.Items))
	for _, x := range view.Items {
		items = append(items, api.MarketItemResponse{
			CoinID:                x.CoinID,
			VsCurrency:            x.VsCurrency,
			Price:                 x.Price,
			MarketCap:             x.MarketCap,
			FullyDilutedValuation: x.FullyDilutedValuation,
			Volume24h:             x.Volume24h,
			Rank:                  x.Rank,
			PctChange24h:          x.PctChange24h,
			PctChange7d:           x.PctChange7d,
			PctChange30d:          x.PctChange30d,
			SnapshotAt:            x.SnapshotAt.UTC().Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, api.MarketsResponse{
		Items:         items,
		LastRefreshAt: view.LastRefreshAt,
		DataSource:    view.DataSource,
		Stale:         view.Stale,
	})
}

// GetPrice は1銘柄の最新スナップショットをJSONで返します。
//
// エンドポイント例:
// GET /api/price/bitcoin?vs=usd
func (h *MarketsHandler) GetPrice(c *gin.Context) {
	coinID := c.Param("coin_id")
	vs := c.DefaultQuery("vs", "usd")

	s, err := h.uc.GetPrice(c.Request.Context(), vs, coinID)
	if err != nil {
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: err.Error()})
		return
	}
	if s == nil {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "coin not found"})
		return
	}

	c.JSON(http.StatusOK, api.PriceResponse{
		CoinID:       s.CoinID,
		VsCurrency:   s.VsCurrency,
		Price:        s.Price,
		MarketCap:    s.MarketCap,
		Rank:         s.Rank,
		PctChange24h: s.PctChange24h,
		SnapshotAt:   s.SnapshotAt.UTC().Format(time.RFC3339),
	})
}

// GetCoin は1銘柄のメタデータ（カテゴリ、リンク等）をJSONで返します。
//
// エンドポイント例:
// GET /api/coins/bitcoin
func (h *MarketsHandler) GetCoin(c *gin.Context) {
	coinID := c.Param("coin_id")

	coin, err := h.uc.GetCoin(c.Request.Context(), coinID)
	if err != nil {
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: err.Error()})
		return
	}
	if coin == nil {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "coin not found"})
		return
	}

	c.JSON(http.StatusOK, api.CoinResponse{
		ID:          coin.ID,
		Symbol:      coin.Symbol,
		Name:        coin.Name,
		Image:       coin.Image,
		Categories:  coin.Categories,
		CategoryIDs: coin.CategoryIDs,
		Links:       coin.Links,
		UpdatedAt:   coin.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

// Refresh は即時ETLパスをトリガーします。バジェット不足は429で返します。
//
// エンドポイント例:
// POST /admin/refresh
func (h *MarketsHandler) Refresh(c *gin.Context) {
	items, err := h.etl.Run(c.Request.Context())
	if err != nil {
		if errors.Is(err, usecase.ErrQuotaExceeded) {
			c.JSON(http.StatusTooManyRequests, api.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, api.RefreshResponse{Items: items})
}

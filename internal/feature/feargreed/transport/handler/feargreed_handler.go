// Package handler はfeargreedフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"crypto_backend/internal/api"
	"crypto_backend/internal/feature/feargreed/domain/entity"
)

// FearGreedUsecase はセンチメント指数読み取りのユースケースインターフェースを
// 定義します。Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type FearGreedUsecase interface {
	GetLatest(ctx context.Context) (*entity.FearGreed, error)
	GetHistory(ctx context.Context, days int) ([]entity.FearGreed, error)
}

// SyncRunner は管理者トリガーの即時同期を実行します。
type SyncRunner interface {
	Sync(ctx context.Context) (int, error)
}

// FearGreedHandler はFear & Greed指数のHTTPリクエストを処理します。
type FearGreedHandler struct {
	uc   FearGreedUsecase
	sync SyncRunner
}

// NewFearGreedHandler は指定されたusecaseでFearGreedHandlerの新しいインスタンスを生成します。
func NewFearGreedHandler(uc FearGreedUsecase, sync SyncRunner) *FearGreedHandler {
	return &FearGreedHandler{uc: uc, sync: sync}
}

// GetLatest は最新の指数をJSONで返します。
//
// エンドポイント例:
// GET /api/fear-greed/latest
func (h *FearGreedHandler) GetLatest(c *gin.Context) {
	fg, err := h.uc.GetLatest(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: err.Error()})
		return
	}
	if fg == nil {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "no data"})
		return
	}

	c.JSON(http.StatusOK, toResponse(*fg))
}

// GetHistory は直近days日分の履歴を新しい順のJSONで返します。
//
// エンドポイント例:
// GET /api/fear-greed/history?days=30
func (h *FearGreedHandler) GetHistory(c *gin.Context) {
	daysStr := c.DefaultQuery("days", "30")
	// 文字列を整数に変換
	days, _ := strconv.Atoi(daysStr)

	rows, err := h.uc.GetHistory(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: err.Error()})
		return
	}

	// データをフォーマット
	out := make([]api.FearGreedResponse, 0, len(rows))
	for _, x := range rows {
		out = append(out, toResponse(x))
	}

	c.JSON(http.StatusOK, out)
}

// Sync は即時同期をトリガーします。
//
// エンドポイント例:
// POST /admin/fear-greed/sync
func (h *FearGreedHandler) Sync(c *gin.Context) {
	rows, err := h.sync.Sync(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

// toResponse はエンティティをAPIレスポンスに写します。
func toResponse(fg entity.FearGreed) api.FearGreedResponse {
	return api.FearGreedResponse{
		Timestamp:      fg.Timestamp.UTC().Format(time.RFC3339),
		Value:          fg.Value,
		Classification: fg.Classification,
	}
}

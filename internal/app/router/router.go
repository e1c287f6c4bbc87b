package router

import (
	feargreedhandler "crypto_backend/internal/feature/feargreed/transport/handler"
	marketshandler "crypto_backend/internal/feature/markets/transport/handler"
	"crypto_backend/internal/platform/http/handler"
	jwtmw "crypto_backend/internal/platform/jwt"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(markets *marketshandler.MarketsHandler, feargreed *feargreedhandler.FearGreedHandler,
	budget *handler.BudgetHandler) *gin.Engine {
	r := gin.Default()

	// ブラウザのダッシュボードから叩くためCORSを許可
	r.Use(cors.Default())

	// 認証不要
	// 導通確認用
	r.GET("/healthz", handler.Health)
	r.HEAD("/healthz", handler.Health)

	// 公開API
	api := r.Group("/api")
	{
		api.GET("/markets", markets.GetMarkets)
		api.GET("/price/:coin_id", markets.GetPrice)
		api.GET("/coins/:coin_id", markets.GetCoin)
		api.GET("/fear-greed/latest", feargreed.GetLatest)
		api.GET("/fear-greed/history", feargreed.GetHistory)
	}

	// 認証必須のルート
	// jwtmw.AuthRequired() ミドルウェアを適用
	// → リクエストヘッダーに JWT が必要になる
	admin := r.Group("/admin")
	admin.Use(jwtmw.AuthRequired())
	{
		admin.POST("/refresh", markets.Refresh)
		admin.POST("/fear-greed/sync", feargreed.Sync)
		admin.GET("/budget", budget.Get)
	}

	return r
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	redisv9 "github.com/redis/go-redis/v9"

	"crypto_backend/internal/app/di"
	"crypto_backend/internal/app/router"
	feargreedadapters "crypto_backend/internal/feature/feargreed/adapters"
	feargreedhandler "crypto_backend/internal/feature/feargreed/transport/handler"
	feargreedusecase "crypto_backend/internal/feature/feargreed/usecase"
	marketsadapters "crypto_backend/internal/feature/markets/adapters"
	"crypto_backend/internal/feature/markets/adapters/coingecko"
	marketshandler "crypto_backend/internal/feature/markets/transport/handler"
	marketsusecase "crypto_backend/internal/feature/markets/usecase"
	"crypto_backend/internal/platform/budget"
	"crypto_backend/internal/platform/cache"
	infradb "crypto_backend/internal/platform/db"
	"crypto_backend/internal/platform/http/handler"
	"crypto_backend/internal/platform/meta"
	infraredis "crypto_backend/internal/platform/redis"
	"crypto_backend/internal/platform/scheduler"
	"crypto_backend/internal/shared/ratelimiter"
)

func main() {
	// .envファイルがあれば読み込む（本番では環境変数を直接使う）
	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] No .env file found. Using environment variables.")
	}

	// db
	db := infradb.OpenDB()
	if os.Getenv("RUN_MIGRATIONS") == "true" {
		if err := db.AutoMigrate(
			&marketsadapters.LatestPriceModel{},
			&marketsadapters.PriceModel{},
			&marketsadapters.CoinModel{},
			&feargreedadapters.FearGreedModel{},
			&meta.Model{},
		); err != nil {
			log.Fatal("migration failed:", err)
		}
	}

	// Redis
	var rdb *redisv9.Client
	if tmp, err := infraredis.NewRedisClient(); err != nil {
		log.Println("[WARN] Redis unavailable. Running without cache.")
		rdb = nil
	} else {
		rdb = tmp
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Println("[ERROR] Failed to close Redis client:", err)
			}
		}()
	}

	// 月次コールバジェット（プロバイダ別に永続化）
	budgetDir := os.Getenv("BUDGET_DIR")
	if budgetDir == "" {
		budgetDir = "./data"
	}
	cgBudget := budget.NewCallBudget(filepath.Join(budgetDir, "coingecko_budget.json"),
		di.EnvInt("COINGECKO_MONTHLY_QUOTA", 10000))
	cmcBudget := budget.NewCallBudget(filepath.Join(budgetDir, "cmc_budget.json"),
		di.EnvInt("CMC_MONTHLY_QUOTA", 10000))

	// Repository
	priceRepo := marketsadapters.NewPriceRepository(db)
	coinRepo := marketsadapters.NewCoinRepository(db)
	metaRepo := meta.NewRepository(db)
	fgRepo := di.NewFearGreedRepository(rdb, db)

	// Provider
	cgClient := di.NewCoinGecko()
	cmcClient := di.NewCoinMarketCap()

	// CoinGecko無料枠はおよそ30req/min
	rl := ratelimiter.NewRateLimiter(25, time.Minute)

	// フォールバック用シード（設定されていなければnil）
	var seed marketsusecase.SeedLoader
	if path := os.Getenv("SEED_MARKETS_FILE"); path != "" {
		seed = coingecko.NewSeedLoader(path, os.Getenv("VS_CURRENCY"))
	}

	// Usecase
	etlUC := marketsusecase.NewETLUsecase(cgClient, priceRepo, coinRepo, metaRepo, cgBudget, rl, seed,
		marketsusecase.ETLConfig{
			VsCurrency:        os.Getenv("VS_CURRENCY"),
			CategoryStaleness: di.EnvDuration("COIN_CATEGORY_STALENESS", 24*time.Hour),
		})
	syncUC := feargreedusecase.NewSyncUsecase(cmcClient, fgRepo, metaRepo, cmcBudget, di.RefreshGranularity())

	marketsCache := cache.NewMarketsCache(priceRepo, metaRepo,
		di.EnvDuration("MARKETS_CACHE_TTL", cache.DefaultMarketsTTL))
	marketsUC := marketsusecase.NewMarketsUsecase(marketsCache, coinRepo)
	fgUC := feargreedusecase.NewFearGreedUsecase(fgRepo)

	// Handler
	marketsH := marketshandler.NewMarketsHandler(marketsUC, etlUC)
	fgH := feargreedhandler.NewFearGreedHandler(fgUC, syncUC)
	budgetH := handler.NewBudgetHandler(map[string]*budget.CallBudget{
		"coingecko":     cgBudget,
		"coinmarketcap": cmcBudget,
	})

	// スケジューラ（SIGINT/SIGTERMで停止）
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	sched := scheduler.NewScheduler(etlUC, syncUC, di.RefreshGranularity())
	go sched.Start(ctx)

	// ルータ生成
	r := router.NewRouter(marketsH, fgH, budgetH)

	// JWT_SECRETチェック（開発中の注意喚起）
	if os.Getenv("JWT_SECRET") == "" {
		log.Println("[WARN] JWT_SECRET is not set. Set a strong secret in production.")
	}

	if err := r.Run(":8080"); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"crypto_backend/internal/app/di"
	feargreedadapters "crypto_backend/internal/feature/feargreed/adapters"
	feargreedusecase "crypto_backend/internal/feature/feargreed/usecase"
	marketsadapters "crypto_backend/internal/feature/markets/adapters"
	"crypto_backend/internal/feature/markets/adapters/coingecko"
	marketsusecase "crypto_backend/internal/feature/markets/usecase"
	"crypto_backend/internal/platform/budget"
	infradb "crypto_backend/internal/platform/db"
	"crypto_backend/internal/platform/meta"
	"crypto_backend/internal/shared/ratelimiter"
)

// 1回分の取り込みをcronや手動で実行するためのワンショットコマンドです。
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] No .env file found. Using environment variables.")
	}

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

	budgetDir := os.Getenv("BUDGET_DIR")
	if budgetDir == "" {
		budgetDir = "./data"
	}
	cgBudget := budget.NewCallBudget(filepath.Join(budgetDir, "coingecko_budget.json"),
		di.EnvInt("COINGECKO_MONTHLY_QUOTA", 10000))
	cmcBudget := budget.NewCallBudget(filepath.Join(budgetDir, "cmc_budget.json"),
		di.EnvInt("CMC_MONTHLY_QUOTA", 10000))

	priceRepo := marketsadapters.NewPriceRepository(db)
	coinRepo := marketsadapters.NewCoinRepository(db)
	metaRepo := meta.NewRepository(db)
	fgRepo := feargreedadapters.NewFearGreedRepository(db)

	rl := ratelimiter.NewRateLimiter(25, time.Minute)

	var seed marketsusecase.SeedLoader
	if path := os.Getenv("SEED_MARKETS_FILE"); path != "" {
		seed = coingecko.NewSeedLoader(path, os.Getenv("VS_CURRENCY"))
	}

	etlUC := marketsusecase.NewETLUsecase(di.NewCoinGecko(), priceRepo, coinRepo, metaRepo, cgBudget, rl, seed,
		marketsusecase.ETLConfig{
			VsCurrency:        os.Getenv("VS_CURRENCY"),
			CategoryStaleness: di.EnvDuration("COIN_CATEGORY_STALENESS", 24*time.Hour),
		})
	syncUC := feargreedusecase.NewSyncUsecase(di.NewCoinMarketCap(), fgRepo, metaRepo, cmcBudget,
		di.RefreshGranularity())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	items, err := etlUC.Run(ctx)
	if err != nil {
		log.Fatal("etl pass failed:", err)
	}
	log.Println("etl ok, items:", items)

	rows, err := syncUC.Sync(ctx)
	if err != nil {
		log.Fatal("fear & greed sync failed:", err)
	}
	log.Println("fear & greed sync ok, rows:", rows)
}

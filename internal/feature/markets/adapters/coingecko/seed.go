package coingecko

import (
	"encoding/json"
	"fmt"
	"os"

	"crypto_backend/internal/feature/markets/adapters/coingecko/dto"
	"crypto_backend/internal/feature/markets/domain/entity"
	"crypto_backend/internal/feature/markets/usecase"
)

// NewSeedLoader はCoinGecko marketsレスポンス形式のJSONファイルを読み込む
// フォールバックローダーを返します。path が空なら nil（フォールバックなし）。
// 初回起動時やプロバイダ障害時に、ライブデータの代わりとして使われます。
func NewSeedLoader(path, vs string) usecase.SeedLoader {
	if path == "" {
		return nil
	}
	return func() ([]entity.MarketRecord, error) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read seed file: %w", err)
		}

		var body []dto.MarketRecord
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("parse seed file: %w", err)
		}

		records := make([]entity.MarketRecord, 0, len(body))
		for _, v := range body {
			if rec, ok := normalize(v, vs); ok {
				records = append(records, rec)
			}
		}
		return records, nil
	}
}

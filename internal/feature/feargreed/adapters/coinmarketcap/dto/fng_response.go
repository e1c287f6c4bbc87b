// Package dto defines the JSON payload shapes of the CoinMarketCap API.
package dto

// FearGreedRecord は指数の1レコードです。timestampはエンドポイントにより
// ISO文字列またはepoch秒文字列で返るため any で受けます。
type FearGreedRecord struct {
	Timestamp           any    `json:"timestamp"`
	UpdateTime          string `json:"update_time"`
	Value               any    `json:"value"`
	ValueClassification string `json:"value_classification"`
}

// LatestResponse は /v3/fear-and-greed/latest のレスポンスです。
type LatestResponse struct {
	Data FearGreedRecord `json:"data"`
}

// HistoricalResponse は /v3/fear-and-greed/historical のレスポンスです。
type HistoricalResponse struct {
	Data []FearGreedRecord `json:"data"`
}

package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto_backend/internal/feature/feargreed/domain/entity"
	"crypto_backend/internal/platform/meta"
)

// mockSentimentProvider はテスト用のSentimentProviderモック実装です。
type mockSentimentProvider struct {
	latestCalls  int
	historyCalls int
	latestFn     func(ctx context.Context) (*SentimentRecord, error)
	historyFn    func(ctx context.Context, limit int, start, end time.Time) ([]SentimentRecord, error)
}

func (m *mockSentimentProvider) GetLatest(ctx context.Context) (*SentimentRecord, error) {
	m.latestCalls++
	if m.latestFn != nil {
		return m.latestFn(ctx)
	}
	return nil, nil
}

func (m *mockSentimentProvider) GetHistorical(ctx context.Context, limit int, start, end time.Time) ([]SentimentRecord, error) {
	m.historyCalls++
	if m.historyFn != nil {
		return m.historyFn(ctx, limit, start, end)
	}
	return nil, nil
}

// mockRepo はテスト用のFearGreedRepositoryモック実装です。
type mockRepo struct {
	upserted  [][]entity.FearGreed
	hasToday  bool
	oldest    time.Time
	newest    time.Time
	count     int64
	upsertErr error
}

func (m *mockRepo) Upsert(ctx context.Context, rows []entity.FearGreed) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, rows)
	return nil
}

func (m *mockRepo) Latest(ctx context.Context) (*entity.FearGreed, error) {
	return nil, nil
}

func (m *mockRepo) History(ctx context.Context, since time.Time) ([]entity.FearGreed, error) {
	return nil, nil
}

func (m *mockRepo) HasDate(ctx context.Context, day time.Time) (bool, error) {
	return m.hasToday, nil
}

func (m *mockRepo) Span(ctx context.Context) (time.Time, time.Time, int64, error) {
	return m.oldest, m.newest, m.count, nil
}

// mockMeta はテスト用のインメモリMetaRepositoryです。
type mockMeta struct {
	values map[string]string
}

func newMockMeta() *mockMeta {
	return &mockMeta{values: map[string]string{}}
}

func (m *mockMeta) Get(ctx context.Context, key string) (string, error) {
	return m.values[key], nil
}

func (m *mockMeta) Set(ctx context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

// mockBudget はテスト用のBudget実装です。
type mockBudget struct {
	quota int
	spent int
	byCat map[string]int
}

func newMockBudget(quota int) *mockBudget {
	return &mockBudget{quota: quota, byCat: map[string]int{}}
}

func (m *mockBudget) CanSpend(n int) bool {
	return m.spent+n <= m.quota
}

func (m *mockBudget) Spend(n int, category string) error {
	m.spent += n
	m.byCat[category] += n
	return nil
}

func fixedGranularity(d time.Duration) func() time.Duration {
	return func() time.Duration { return d }
}

var testNow = time.Date(2026, 8, 24, 15, 0, 0, 0, time.UTC)

func newSync(p SentimentProvider, r FearGreedRepository, m MetaRepository, b Budget) *SyncUsecase {
	uc := NewSyncUsecase(p, r, m, b, fixedGranularity(12*time.Hour))
	uc.now = func() time.Time { return testNow }
	return uc
}

// TestSyncUsecase_Sync_SkipsWhenDataSufficient は当日行あり＋履歴カバー済みの場合に
// プロバイダコールが一切行われないことを検証します。
func TestSyncUsecase_Sync_SkipsWhenDataSufficient(t *testing.T) {
	t.Parallel()

	provider := &mockSentimentProvider{}
	repo := &mockRepo{
		hasToday: true,
		oldest:   testNow.AddDate(0, 0, -1200),
		newest:   testNow.Truncate(24 * time.Hour),
		count:    1200,
	}
	b := newMockBudget(100)

	uc := newSync(provider, repo, newMockMeta(), b)

	processed, err := uc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
	assert.Equal(t, 0, provider.latestCalls, "sufficient data must cost zero calls")
	assert.Equal(t, 0, provider.historyCalls)
	assert.Equal(t, 0, b.spent)
}

// TestSyncUsecase_Sync_SkipsWhenRecentlyRefreshed は前回同期が粒度より新しい場合に
// 全体がスキップされることを検証します。
func TestSyncUsecase_Sync_SkipsWhenRecentlyRefreshed(t *testing.T) {
	t.Parallel()

	provider := &mockSentimentProvider{}
	metaRepo := newMockMeta()
	metaRepo.values[meta.KeyFearGreedLastRefresh] = testNow.Add(-time.Hour).Format(time.RFC3339)

	uc := newSync(provider, &mockRepo{}, metaRepo, newMockBudget(100))

	processed, err := uc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
	assert.Equal(t, 0, provider.latestCalls)
}

// TestSyncUsecase_Sync_FetchesLatestAndHistory は初回同期でlatestと履歴の両方を
// 取得し、記帳とメタ更新が行われることを検証します。
func TestSyncUsecase_Sync_FetchesLatestAndHistory(t *testing.T) {
	t.Parallel()

	provider := &mockSentimentProvider{
		latestFn: func(ctx context.Context) (*SentimentRecord, error) {
			return &SentimentRecord{
				Timestamp:      "2026-08-24T09:00:00.000Z",
				Value:          json.Number("54"),
				Classification: "Neutral",
			}, nil
		},
		historyFn: func(ctx context.Context, limit int, start, end time.Time) ([]SentimentRecord, error) {
			assert.Equal(t, DefaultHistoryCoverageDays, limit)
			return []SentimentRecord{
				{Timestamp: "1755907200", Value: json.Number("40"), Classification: "Fear"},
				{Timestamp: "1755820800", Value: json.Number("45"), Classification: "Fear"},
			}, nil
		},
	}
	repo := &mockRepo{}
	metaRepo := newMockMeta()
	b := newMockBudget(100)

	uc := newSync(provider, repo, metaRepo, b)

	processed, err := uc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, processed)

	// latest 1 + history 1 = 計2コール、カテゴリ別に記帳
	assert.Equal(t, 2, b.spent)
	assert.Equal(t, 1, b.byCat["cmc_latest"])
	assert.Equal(t, 1, b.byCat["cmc_history"])

	assert.NotEmpty(t, metaRepo.values[meta.KeyFearGreedLastRefresh])
	require.Len(t, repo.upserted, 2)
}

// TestSyncUsecase_Sync_LatestOnlyWhenCovered は履歴カバー済み・当日行なしの場合に
// latestだけが取得されることを検証します。
func TestSyncUsecase_Sync_LatestOnlyWhenCovered(t *testing.T) {
	t.Parallel()

	provider := &mockSentimentProvider{
		latestFn: func(ctx context.Context) (*SentimentRecord, error) {
			return &SentimentRecord{Timestamp: testNow, Value: 60, Classification: "Greed"}, nil
		},
	}
	repo := &mockRepo{
		hasToday: false,
		oldest:   testNow.AddDate(0, 0, -1200),
		newest:   testNow.AddDate(0, 0, -1),
		count:    1199,
	}
	b := newMockBudget(100)

	uc := newSync(provider, repo, newMockMeta(), b)

	processed, err := uc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 1, provider.latestCalls)
	assert.Equal(t, 0, provider.historyCalls)
	assert.Equal(t, 1, b.spent)
}

// TestSyncUsecase_Sync_ChargesFailedCallOnce はプロバイダ障害時もちょうど1回分が
// 記帳され、同期自体はエラーにならないことを検証します。
func TestSyncUsecase_Sync_ChargesFailedCallOnce(t *testing.T) {
	t.Parallel()

	provider := &mockSentimentProvider{
		latestFn: func(ctx context.Context) (*SentimentRecord, error) {
			return nil, errors.New("upstream down")
		},
		historyFn: func(ctx context.Context, limit int, start, end time.Time) ([]SentimentRecord, error) {
			return nil, errors.New("upstream down")
		},
	}
	b := newMockBudget(100)

	uc := newSync(provider, &mockRepo{}, newMockMeta(), b)

	processed, err := uc.Sync(context.Background())
	require.NoError(t, err, "provider failure is a partial result, not a fault")
	assert.Equal(t, 0, processed)
	assert.Equal(t, 1, b.byCat["cmc_latest"])
	assert.Equal(t, 1, b.byCat["cmc_history"])
}

// TestSyncUsecase_Sync_PartialSuccess はlatestが失敗しても履歴の成功分が
// 反映されることを検証します。
func TestSyncUsecase_Sync_PartialSuccess(t *testing.T) {
	t.Parallel()

	provider := &mockSentimentProvider{
		latestFn: func(ctx context.Context) (*SentimentRecord, error) {
			return nil, errors.New("upstream down")
		},
		historyFn: func(ctx context.Context, limit int, start, end time.Time) ([]SentimentRecord, error) {
			return []SentimentRecord{
				{Timestamp: "2026-08-20", Value: 35, Classification: "Fear"},
			}, nil
		},
	}
	repo := &mockRepo{}
	metaRepo := newMockMeta()

	uc := newSync(provider, repo, metaRepo, newMockBudget(100))

	processed, err := uc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.NotEmpty(t, metaRepo.values[meta.KeyFearGreedLastRefresh])
}

// TestSyncUsecase_Sync_QuotaExhausted は予算切れの場合にプロバイダコールが
// 行われないことを検証します。
func TestSyncUsecase_Sync_QuotaExhausted(t *testing.T) {
	t.Parallel()

	provider := &mockSentimentProvider{}
	b := newMockBudget(0)

	uc := newSync(provider, &mockRepo{}, newMockMeta(), b)

	processed, err := uc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
	assert.Equal(t, 0, provider.latestCalls)
	assert.Equal(t, 0, provider.historyCalls)
	assert.Equal(t, 0, b.spent)
}

// TestNormalize は形式が揺れるタイムスタンプと値の正規化をテーブルで検証します。
func TestNormalize(t *testing.T) {
	t.Parallel()

	ingested := time.Date(2026, 8, 24, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		rec        SentimentRecord
		expectOK   bool
		expectTime time.Time
		expectVal  int
		expectCls  string
	}{
		{
			name:       "ISO timestamp with millis and Z",
			rec:        SentimentRecord{Timestamp: "2026-08-24T09:30:15.123Z", Value: 54.4, Classification: "Neutral"},
			expectOK:   true,
			expectTime: time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
			expectVal:  54,
			expectCls:  "Neutral",
		},
		{
			name:       "ISO timestamp without zone",
			rec:        SentimentRecord{Timestamp: "2026-08-24T09:30:15", Value: 54.5, Classification: "Neutral"},
			expectOK:   true,
			expectTime: time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
			expectVal:  55, // 四捨五入
			expectCls:  "Neutral",
		},
		{
			name:       "date only",
			rec:        SentimentRecord{Timestamp: "2026-08-24", Value: 30, Classification: "Fear"},
			expectOK:   true,
			expectTime: time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
			expectVal:  30,
			expectCls:  "Fear",
		},
		{
			name:       "epoch seconds as string",
			rec:        SentimentRecord{Timestamp: "1787529600", Value: "72", Classification: "Greed"},
			expectOK:   true,
			expectTime: time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
			expectVal:  72,
			expectCls:  "Greed",
		},
		{
			name:       "epoch seconds as json.Number",
			rec:        SentimentRecord{Timestamp: json.Number("1787529600"), Value: json.Number("72"), Classification: "Greed"},
			expectOK:   true,
			expectTime: time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
			expectVal:  72,
			expectCls:  "Greed",
		},
		{
			name:       "value above range clamps to 100",
			rec:        SentimentRecord{Timestamp: "2026-08-24", Value: 250, Classification: "Extreme Greed"},
			expectOK:   true,
			expectTime: time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
			expectVal:  100,
			expectCls:  "Extreme Greed",
		},
		{
			name:       "missing classification defaults to Unknown",
			rec:        SentimentRecord{Timestamp: "2026-08-24", Value: 50, Classification: "  "},
			expectOK:   true,
			expectTime: time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
			expectVal:  50,
			expectCls:  entity.ClassificationUnknown,
		},
		{
			name:     "unparseable timestamp rejected",
			rec:      SentimentRecord{Timestamp: "not-a-time", Value: 50, Classification: "Neutral"},
			expectOK: false,
		},
		{
			name:     "nil timestamp rejected",
			rec:      SentimentRecord{Timestamp: nil, Value: 50, Classification: "Neutral"},
			expectOK: false,
		},
		{
			name:     "unparseable value rejected",
			rec:      SentimentRecord{Timestamp: "2026-08-24", Value: "lots", Classification: "Neutral"},
			expectOK: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			row, ok := Normalize(tt.rec, ingested)
			require.Equal(t, tt.expectOK, ok)
			if !tt.expectOK {
				return
			}
			assert.True(t, row.Timestamp.Equal(tt.expectTime), "got %v", row.Timestamp)
			assert.Equal(t, tt.expectVal, row.Value)
			assert.Equal(t, tt.expectCls, row.Classification)
			assert.True(t, row.IngestedAt.Equal(ingested))
		})
	}
}

package handler_test

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"crypto_backend/internal/platform/budget"
	"crypto_backend/internal/platform/http/handler"
)

// TestBudgetHandler_Get は全プロバイダ分の使用量と残量が返ることをテストします。
func TestBudgetHandler_Get(t *testing.T) {
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()

	cg := budget.NewCallBudget(filepath.Join(dir, "coingecko.json"), 100)
	cmc := budget.NewCallBudget(filepath.Join(dir, "cmc.json"), 30)

	assert.NoError(t, cg.Spend(3, "markets"))
	assert.NoError(t, cg.Spend(2, "categories"))
	assert.NoError(t, cmc.Spend(1, "cmc_latest"))

	h := handler.NewBudgetHandler(map[string]*budget.CallBudget{
		"coingecko":     cg,
		"coinmarketcap": cmc,
	})

	router := gin.New()
	router.GET("/admin/budget", h.Get)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/admin/budget", nil)

	router.ServeHTTP(w, req)

	month := time.Now().UTC().Format("2006-01") + "-01"
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"coingecko": {
			"month": "`+month+`",
			"monthly_call_count": 5,
			"monthly_quota": 100,
			"remaining": 95,
			"categories": {"markets": 3, "categories": 2}
		},
		"coinmarketcap": {
			"month": "`+month+`",
			"monthly_call_count": 1,
			"monthly_quota": 30,
			"remaining": 29,
			"categories": {"cmc_latest": 1}
		}
	}`, w.Body.String())
}

// TestBudgetHandler_Get_Empty はバジェット未登録でも空オブジェクトを返すことをテストします。
func TestBudgetHandler_Get_Empty(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := handler.NewBudgetHandler(map[string]*budget.CallBudget{})

	router := gin.New()
	router.GET("/admin/budget", h.Get)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/admin/budget", nil)

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())
}

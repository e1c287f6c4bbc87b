package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crypto_backend/internal/api"
	"crypto_backend/internal/platform/budget"
)

// BudgetHandler は外部プロバイダの月次コールバジェットを公開します。
type BudgetHandler struct {
	budgets map[string]*budget.CallBudget // プロバイダ名 → バジェット
}

// NewBudgetHandler は指定されたバジェット群でBudgetHandlerの新しいインスタンスを生成します。
func NewBudgetHandler(budgets map[string]*budget.CallBudget) *BudgetHandler {
	return &BudgetHandler{budgets: budgets}
}

// Get は全プロバイダの当月使用量と残量をJSONで返します。
//
// エンドポイント例:
// GET /admin/budget
func (h *BudgetHandler) Get(c *gin.Context) {
	out := make(map[string]api.BudgetResponse, len(h.budgets))
	for name, b := range h.budgets {
		used := b.MonthlyCallCount()
		out[name] = api.BudgetResponse{
			Month:            b.Month(),
			MonthlyCallCount: used,
			MonthlyQuota:     b.Quota(),
			Remaining:        b.Quota() - used,
			Categories:       b.CategoryCounts(),
		}
	}

	c.JSON(http.StatusOK, out)
}

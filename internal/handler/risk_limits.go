package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tradeanalytics/internal/models"
	"tradeanalytics/internal/repository"
)

type RiskLimitHandler struct {
	Repo repository.RiskLimitStore
}

func (h *RiskLimitHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/risk-limits")
	g.GET("/:superadmin_id", h.get)
	g.PUT("/:superadmin_id", h.put)
}

// @Summary Risk limit overrides of a superadmin
// @Tags risk
// @Produce json
// @Param superadmin_id path string true "superadmin id"
// @Success 200 {object} models.RiskLimit
// @Failure 404 {object} map[string]any
// @Router /api/v1/risk-limits/{superadmin_id} [get]
func (h *RiskLimitHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("superadmin_id"))
	item, err := h.Repo.GetRiskLimit(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "risk limit not found", nil)
		return
	}
	Ok(c, item, nil)
}

type putRiskLimitRequest struct {
	MaxTrades            int              `json:"max_trades"`
	AverageTradingVolume decimal.Decimal  `json:"average_trading_volume"`
	WinRatePercentage    float64          `json:"win_rate_percentage"`
	NegativeBalance      *decimal.Decimal `json:"negative_balance"`
}

func (r putRiskLimitRequest) validate() string {
	switch {
	case r.MaxTrades < 0:
		return "max_trades must be >= 0"
	case r.AverageTradingVolume.IsNegative():
		return "average_trading_volume must be >= 0"
	case r.WinRatePercentage < 0 || r.WinRatePercentage > 100:
		return "win_rate_percentage must be within [0,100]"
	case r.NegativeBalance != nil && !r.NegativeBalance.IsPositive():
		return "negative_balance must be > 0"
	}
	return ""
}

// @Summary Set risk limit overrides for a superadmin
// @Description Zero values keep the service defaults.
// @Tags risk
// @Accept json
// @Produce json
// @Param superadmin_id path string true "superadmin id"
// @Param body body putRiskLimitRequest true "limits"
// @Success 200 {object} models.RiskLimit
// @Failure 400 {object} map[string]any
// @Router /api/v1/risk-limits/{superadmin_id} [put]
func (h *RiskLimitHandler) put(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("superadmin_id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid superadmin id", nil)
		return
	}
	var req putRiskLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if msg := req.validate(); msg != "" {
		Error(c, http.StatusBadRequest, msg, nil)
		return
	}
	item := &models.RiskLimit{
		SuperadminID:         id,
		MaxTrades:            req.MaxTrades,
		AverageTradingVolume: req.AverageTradingVolume,
		WinRatePercentage:    req.WinRatePercentage,
		NegativeBalance:      req.NegativeBalance,
	}
	if err := h.Repo.UpsertRiskLimit(c.Request.Context(), item); err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	next, err := h.Repo.GetRiskLimit(c.Request.Context(), id)
	if err != nil || next == nil {
		next = item
	}
	Ok(c, next, nil)
}

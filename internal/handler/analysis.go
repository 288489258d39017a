package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradeanalytics/internal/models"
	"tradeanalytics/internal/service"
)

// AnalysisReader is satisfied by *service.QueryService.
type AnalysisReader interface {
	GetOwnerAnalysis(ctx context.Context, scope, ownerID string) (*models.AnalysisDocument, error)
	GetTopRiskUsers(ctx context.Context, filter service.TopRiskFilter, limit int) ([]models.UserAnalysisRecord, error)
}

// AnchorWriter is satisfied by *service.Materializer.
type AnchorWriter interface {
	SetOwnerAnchor(ctx context.Context, scope, ownerID string, start time.Time) error
}

type AnalysisHandler struct {
	Query   AnalysisReader
	Anchors AnchorWriter
	Logger  *zap.Logger
	// Location reads bare dates; defaults to UTC.
	Location *time.Location
}

func (h *AnalysisHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/analysis")
	g.GET("/users/top-risk", h.topRisk)
	g.GET("/:scope/:owner_id", h.get)
	g.PUT("/:scope/:owner_id/anchor", h.putAnchor)
}

// @Summary Owner analysis document
// @Tags analysis
// @Produce json
// @Param scope path string true "superadmin | admin | master"
// @Param owner_id path string true "owner id"
// @Success 200 {object} models.AnalysisDocument
// @Failure 400 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/v1/analysis/{scope}/{owner_id} [get]
func (h *AnalysisHandler) get(c *gin.Context) {
	if h.Query == nil {
		Error(c, http.StatusInternalServerError, "analysis unavailable", nil)
		return
	}
	doc, err := h.Query.GetOwnerAnalysis(c.Request.Context(), c.Param("scope"), c.Param("owner_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Ok(c, doc, nil)
}

type putAnchorRequest struct {
	StartDate string `json:"start_date" binding:"required"`
}

// @Summary Move the window anchor of an owner
// @Tags analysis
// @Accept json
// @Produce json
// @Param scope path string true "superadmin | admin | master"
// @Param owner_id path string true "owner id"
// @Param body body putAnchorRequest true "RFC3339 or YYYY-MM-DD"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/v1/analysis/{scope}/{owner_id}/anchor [put]
func (h *AnalysisHandler) putAnchor(c *gin.Context) {
	if h.Anchors == nil {
		Error(c, http.StatusInternalServerError, "materializer unavailable", nil)
		return
	}
	var req putAnchorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	start, err := parseInstant(req.StartDate, h.Location)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid start_date", nil)
		return
	}
	scope := strings.TrimSpace(c.Param("scope"))
	ownerID := strings.TrimSpace(c.Param("owner_id"))
	if err := h.Anchors.SetOwnerAnchor(c.Request.Context(), scope, ownerID, start); err != nil {
		respondError(c, err)
		return
	}
	Ok(c, map[string]any{
		"scope":             scope,
		"owner_id":          ownerID,
		"start_date_anchor": start.UTC(),
	}, nil)
}

// @Summary Users ranked by risk score
// @Tags analysis
// @Produce json
// @Param superadmin_id query string false "superadmin id"
// @Param start query string false "generated at or after, RFC3339 or YYYY-MM-DD"
// @Param end query string false "generated before, RFC3339 or YYYY-MM-DD"
// @Param min_score query number false "0-10"
// @Param limit query int false "default 10, max 500"
// @Success 200 {array} models.UserAnalysisRecord
// @Failure 400 {object} map[string]any
// @Router /api/v1/analysis/users/top-risk [get]
func (h *AnalysisHandler) topRisk(c *gin.Context) {
	if h.Query == nil {
		Error(c, http.StatusInternalServerError, "analysis unavailable", nil)
		return
	}
	start, err := timeQueryPtr(c, "start", h.Location)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid start", nil)
		return
	}
	end, err := timeQueryPtr(c, "end", h.Location)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid end", nil)
		return
	}
	minScore := 0.0
	if raw := strings.TrimSpace(c.Query("min_score")); raw != "" {
		if minScore, err = strconv.ParseFloat(raw, 64); err != nil {
			Error(c, http.StatusBadRequest, "invalid min_score", nil)
			return
		}
	}
	limit := intQuery(c, "limit", 10)
	filter := service.TopRiskFilter{
		SuperadminID: strings.TrimSpace(c.Query("superadmin_id")),
		Start:        start,
		End:          end,
		MinScore:     minScore,
	}
	items, err := h.Query.GetTopRiskUsers(c.Request.Context(), filter, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	Ok(c, items, map[string]any{"limit": limit, "count": len(items)})
}

package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tradeanalytics/internal/repository"
	"tradeanalytics/internal/service"
)

const switchPrefix = "feature."

type SettingsHandler struct {
	Repo     repository.SettingsStore
	Settings *service.SystemSettingsService
}

func (h *SettingsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/settings")
	g.GET("/switches", h.listSwitches)
	g.GET("/switches/:name", h.getSwitch)
	g.PUT("/switches/:name", h.putSwitch)
}

// @Summary Feature switches
// @Tags settings
// @Produce json
// @Success 200 {array} map[string]any
// @Router /api/v1/settings/switches [get]
func (h *SettingsHandler) listSwitches(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	prefix := switchPrefix
	params := repository.ListSystemSettingsParams{
		Limit:   intQuery(c, "limit", 200),
		Offset:  intQuery(c, "offset", 0),
		Prefix:  &prefix,
		OrderBy: "key",
		Asc:     boolPtr(true),
	}
	items, err := h.Repo.ListSystemSettings(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		enabled := false
		_ = json.Unmarshal(it.Value, &enabled)
		out = append(out, map[string]any{
			"name":        strings.TrimPrefix(it.Key, switchPrefix),
			"key":         it.Key,
			"enabled":     enabled,
			"description": it.Description,
			"updated_at":  it.UpdatedAt,
		})
	}
	Ok(c, out, nil)
}

// @Summary Read a feature switch
// @Tags settings
// @Produce json
// @Param name path string true "analysis_cron | wash_trade | user_snapshots | daily_block"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/v1/settings/switches/{name} [get]
func (h *SettingsHandler) getSwitch(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	key, ok := switchKey(c)
	if !ok {
		return
	}
	enabled := h.Settings.IsEnabled(c.Request.Context(), key, service.DefaultFeatureSwitches()[key])
	Ok(c, map[string]any{
		"name":    strings.TrimPrefix(key, switchPrefix),
		"key":     key,
		"enabled": enabled,
	}, nil)
}

type putSwitchRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// @Summary Turn a feature switch on or off
// @Tags settings
// @Accept json
// @Produce json
// @Param name path string true "analysis_cron | wash_trade | user_snapshots | daily_block"
// @Param body body putSwitchRequest true "new state"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/v1/settings/switches/{name} [put]
func (h *SettingsHandler) putSwitch(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	key, ok := switchKey(c)
	if !ok {
		return
	}
	var req putSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if err := h.Settings.SetEnabled(c.Request.Context(), key, *req.Enabled); err != nil {
		respondError(c, err)
		return
	}
	Ok(c, map[string]any{
		"name":    strings.TrimPrefix(key, switchPrefix),
		"key":     key,
		"enabled": *req.Enabled,
	}, nil)
}

func switchKey(c *gin.Context) (string, bool) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		Error(c, http.StatusBadRequest, "invalid switch name", nil)
		return "", false
	}
	key := switchPrefix + strings.TrimPrefix(name, switchPrefix)
	if !service.IsKnownSwitch(key) {
		Error(c, http.StatusNotFound, "unknown switch", nil)
		return "", false
	}
	return key, true
}

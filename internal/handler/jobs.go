package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"tradeanalytics/internal/jobs"
)

// JobRunner is satisfied by *jobs.Orchestrator.
type JobRunner interface {
	RunJob(ctx context.Context, name, trigger string, async bool) (jobs.RunResponse, error)
	Status() jobs.Status
}

type JobsHandler struct {
	Jobs   JobRunner
	Logger *zap.Logger
	// StreamInterval is how often the stream polls for status changes.
	StreamInterval time.Duration
}

func (h *JobsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/jobs")
	g.GET("/status", h.status)
	g.GET("/stream", h.stream)
	g.POST("/:name/run", h.run)
}

// @Summary Job status
// @Tags jobs
// @Produce json
// @Success 200 {object} jobs.Status
// @Router /api/v1/jobs/status [get]
func (h *JobsHandler) status(c *gin.Context) {
	if h.Jobs == nil {
		Error(c, http.StatusInternalServerError, "jobs unavailable", nil)
		return
	}
	Ok(c, h.Jobs.Status(), nil)
}

// @Summary Run a job
// @Description Runs a job synchronously, or starts it in the background when async is set.
// @Tags jobs
// @Produce json
// @Param name path string true "superadmin-analysis | admin-analysis | master-analysis | user-snapshots | combined"
// @Param async query bool false "return immediately"
// @Success 200 {object} jobs.RunResponse
// @Success 202 {object} jobs.RunResponse
// @Failure 400 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Failure 500 {object} jobs.RunResponse
// @Router /api/v1/jobs/{name}/run [post]
func (h *JobsHandler) run(c *gin.Context) {
	if h.Jobs == nil {
		Error(c, http.StatusInternalServerError, "jobs unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	async := boolQueryDefault(c, "async", false)
	resp, err := h.Jobs.RunJob(c.Request.Context(), name, jobs.TriggerAPI, async)
	if err != nil {
		respondError(c, err)
		return
	}
	if resp.Started {
		c.JSON(http.StatusAccepted, apiResponse{Code: 0, Message: "started", Data: resp})
		return
	}
	if resp.Result != nil && !resp.Result.OK {
		c.JSON(http.StatusInternalServerError, apiResponse{Code: http.StatusInternalServerError, Message: resp.Result.Error, Data: resp})
		return
	}
	Ok(c, resp, nil)
}

// @Summary Job status stream
// @Description Websocket that pushes the job status whenever it changes.
// @Tags jobs
// @Router /api/v1/jobs/stream [get]
func (h *JobsHandler) stream(c *gin.Context) {
	if h.Jobs == nil {
		Error(c, http.StatusInternalServerError, "jobs unavailable", nil)
		return
	}
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		h.logger().Warn("job stream accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	// the client only listens; CloseRead cancels ctx once it goes away
	ctx := conn.CloseRead(c.Request.Context())
	interval := h.StreamInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last []byte
	for {
		payload, err := json.Marshal(h.Jobs.Status())
		if err != nil {
			h.logger().Warn("job stream encode failed", zap.Error(err))
			return
		}
		if !bytes.Equal(payload, last) {
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = conn.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
			last = payload
		}
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
		}
	}
}

func (h *JobsHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

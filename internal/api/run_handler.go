package api

import (
	"errors"
	"net/http"
	"time"

	"SalesPulse/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RunHandler 手工触发指标管道（回填或重跑）
type RunHandler struct {
	pipeline *service.Pipeline
	logger   *logrus.Logger
}

func NewRunHandler(pipeline *service.Pipeline, logger *logrus.Logger) *RunHandler {
	return &RunHandler{pipeline: pipeline, logger: logger}
}

// TriggerRun 触发指定日期的运行（缺省为今天）
// POST /sync/run?date=2025-07-01
func (h *RunHandler) TriggerRun(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	result, err := h.pipeline.RunForDate(c.Request.Context(), date)
	if err != nil {
		h.logger.WithError(err).Errorf("手工触发%s运行失败", date)
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrAllSourcesFailed) {
			status = http.StatusBadGateway
		}
		body := gin.H{"error": err.Error(), "date": date}
		if result != nil {
			body["status"] = result.Status
			body["warnings"] = result.Warnings
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":         date,
		"status":       result.Status,
		"skipped":      result.Skipped,
		"dropped_rows": result.DroppedRows,
		"warnings":     result.Warnings,
	})
}

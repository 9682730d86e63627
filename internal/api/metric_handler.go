package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"SalesPulse/internal/interfaces"
	"SalesPulse/internal/repository"
	"SalesPulse/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MetricHandler 提供给面板的指标查询接口
type MetricHandler struct {
	metricRepo interfaces.MetricRepository
	runRepo    interfaces.RunRepository
	logger     *logrus.Logger
}

// NewMetricHandler 创建 MetricHandler
func NewMetricHandler(db *gorm.DB, logger *logrus.Logger) *MetricHandler {
	return &MetricHandler{
		metricRepo: repository.NewMetricRepository(db),
		runRepo:    repository.NewRunRepository(db),
		logger:     logger,
	}
}

// ListMetrics 单日指标行列表
// GET /api/metrics?date=2025-07-01
func (h *MetricHandler) ListMetrics(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required (YYYY-MM-DD)"})
		return
	}

	records, err := h.metricRepo.ListByDate(c.Request.Context(), date)
	if err != nil {
		h.logger.WithError(err).Error("ListMetrics failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":    date,
		"count":   len(records),
		"metrics": records,
	})
}

// GetReport 单日格式化报告（取最近一次运行落库的快照，含降级与告警披露）
// GET /api/report/:date
func (h *MetricHandler) GetReport(c *gin.Context) {
	date := c.Param("date")

	run, err := h.runRepo.LatestRunForDate(c.Request.Context(), date)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no report for " + date})
			return
		}
		h.logger.WithError(err).Error("GetReport failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var report service.Report
	if len(run.Report) > 0 {
		if err := json.Unmarshal(run.Report, &report); err != nil {
			h.logger.WithError(err).Error("解析报告快照失败")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "corrupt report snapshot"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"run_uuid":     run.RunUUID,
		"status":       run.Status,
		"dropped_rows": run.DroppedRows,
		"duration_ms":  run.DurationMS,
		"report":       report,
	})
}

package interfaces

import (
	"context"

	"SalesPulse/internal/model"
)

// MetricRepository 指标仓储接口
type MetricRepository interface {
	// UpsertBucketMetrics 同一 (date, representative) 的全部指标行在单事务内覆盖写入（全有或全无）
	UpsertBucketMetrics(ctx context.Context, date string, representative string, rows []*model.MetricRecord) error
	// ListByDate 面板读路径：按日期过滤查询
	ListByDate(ctx context.Context, date string) ([]*model.MetricRecord, error)
}

// RunRepository 运行审计仓储接口
type RunRepository interface {
	SaveRun(ctx context.Context, run *model.ReportRun) error
	LatestRunForDate(ctx context.Context, date string) (*model.ReportRun, error)
}

package repository

import (
	"context"
	"fmt"
	"time"

	"SalesPulse/internal/interfaces"
	"SalesPulse/internal/model"

	"gorm.io/gorm"
)

type runRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) interfaces.RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) SaveRun(ctx context.Context, run *model.ReportRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// LatestRunForDate 某日期最近一次运行（面板取报告快照与告警披露）
func (r *runRepository) LatestRunForDate(ctx context.Context, date string) (*model.ReportRun, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("非法日期%q: %w", date, err)
	}
	var run model.ReportRun
	if err := r.db.WithContext(ctx).
		Where("report_date = ?", day.Format("2006-01-02")).
		Order("created_at DESC").
		First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SalesPulse/internal/interfaces"
	"SalesPulse/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type metricRepository struct {
	db *gorm.DB

	// 桶级写锁：同日期重叠调用（定时任务撞上手工回填）时串行化，避免交错的半更新
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMetricRepository(db *gorm.DB) interfaces.MetricRepository {
	return &metricRepository{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

// bucketLock 取 (date, representative) 对应的互斥锁（惰性创建）
func (r *metricRepository) bucketLock(date, rep string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := date + "|" + rep
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}

// UpsertBucketMetrics 桶的全部指标行在单事务内replace-on-conflict写入：
// 要么十二行全部落库，要么一行不落（面板绝不会看到半更新的桶）。
// 绝不delete-then-insert，并发读不会出现数据缺口
func (r *metricRepository) UpsertBucketMetrics(ctx context.Context, date string, representative string, rows []*model.MetricRecord) error {
	lock := r.bucketLock(date, representative)
	lock.Lock()
	defer lock.Unlock()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "metric_date"},
					{Name: "representative"},
					{Name: "metric_name"},
				},
				DoUpdates: clause.AssignmentColumns([]string{"metric_value", "metric_type", "source", "updated_at"}),
			}).Create(row).Error; err != nil {
				return fmt.Errorf("upsert指标%s失败: %w", row.MetricName, err)
			}
		}
		return nil
	})
}

// ListByDate 面板读路径：按日期过滤，代表+指标名排序保证稳定输出
func (r *metricRepository) ListByDate(ctx context.Context, date string) ([]*model.MetricRecord, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("非法日期%q: %w", date, err)
	}
	var records []*model.MetricRecord
	if err := r.db.WithContext(ctx).
		Where("metric_date = ?", day.Format("2006-01-02")).
		Order("representative ASC, metric_name ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

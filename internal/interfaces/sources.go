package interfaces

import (
	"context"

	"SalesPulse/internal/config"
	"SalesPulse/internal/model"
)

// AppointmentSource 预约类数据源必须实现的核心接口
type AppointmentSource interface {
	Name() string                  // 数据源名称
	Kind() model.ProviderKind      // 数据源角色（scheduler/conferencing）
	FetchAppointments(ctx context.Context, rng model.DateRange, reps []config.Representative) ([]*model.AppointmentEvent, error) // 拉取预约事件
}

// DealSource 成交数据源接口（表格）
type DealSource interface {
	Name() string
	FetchDeals(ctx context.Context, rng model.DateRange) ([]*model.DealEvent, int, error) // 返回事件、被丢弃的坏行数
}

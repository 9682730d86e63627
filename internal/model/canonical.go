package model

import "time"

// ProviderKind 数据源角色枚举
type ProviderKind string

const (
	ProviderScheduler    ProviderKind = "scheduler"    // 预约平台（booked/canceled权威）
	ProviderConferencing ProviderKind = "conferencing" // 会议平台（conducted权威）
)

// AppointmentStatus 预约状态枚举
type AppointmentStatus string

const (
	AppointmentBooked    AppointmentStatus = "booked"
	AppointmentCanceled  AppointmentStatus = "canceled"
	AppointmentConducted AppointmentStatus = "conducted"
	AppointmentNoShow    AppointmentStatus = "no_show"
)

// DealKind 成交类型枚举
type DealKind string

const (
	DealNewClient DealKind = "new_client"
	DealRebuy     DealKind = "rebuy"
)

// AppointmentEvent 统一的预约事件模型（抹平各数据源差异，仅存活于单次运行，不落库）
// Date 由 Normalizer 按组织时区填充，StartTime 保留原始时间戳
type AppointmentEvent struct {
	Representative string            // 代表规范标识
	Date           string            // 组织时区下的日期（YYYY-MM-DD）
	Status         AppointmentStatus // 预约状态
	SourceID       string            // 数据源原生唯一ID（去重用）
	Provider       ProviderKind      // 来源角色
	StartTime      time.Time         // 原始开始时间
}

// DealEvent 统一的成交事件模型（来源单一表格，不存在跨源冲突）
// Organic 仅对 new_client 有意义（自然成交与非自然成交分开计数）
type DealEvent struct {
	Representative string
	Date           string   // 成交日期（组织时区，YYYY-MM-DD）
	Amount         float64  // 金额（非负）
	Kind           DealKind // new_client/rebuy
	Organic        bool     // 是否自然成交
	SourceID       string   // 表格行标识（同批次去重，后写覆盖）
	ClosedAt       time.Time
}

// DateRange 取数区间（闭区间，组织时区日界）
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains 判断时间戳换算到组织时区后是否落在区间内
func (r DateRange) Contains(t time.Time, loc *time.Location) bool {
	local := t.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return !day.Before(r.Start) && !day.After(r.End)
}

// DayKey 时间戳在组织时区下的日期键
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

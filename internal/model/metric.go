package model

import (
	"time"

	"gorm.io/datatypes"
)

// MetricType 指标类型枚举
type MetricType string

const (
	MetricCount      MetricType = "count"
	MetricPercentage MetricType = "percentage"
	MetricCurrency   MetricType = "currency"
)

// 十二项固定指标名（新增指标只需在 service 的指标表中加一行）
const (
	MetricAppointmentsBooked    = "appointments_booked"
	MetricAppointmentsCanceled  = "appointments_canceled"
	MetricAppointmentsConducted = "appointments_conducted"
	MetricCloseRate             = "close_rate"
	MetricShowRate              = "show_rate"
	MetricAverageDealSize       = "average_deal_size"
	MetricNewClientsClosed      = "new_clients_closed"
	MetricOrganicClientsClosed  = "organic_clients_closed"
	MetricTotalNewClientsClosed = "total_new_clients_closed"
	MetricNewClientRevenue      = "new_client_revenue"
	MetricRebuyRevenue          = "rebuy_revenue"
	MetricTotalRevenue          = "total_revenue"
)

// MetricRecord 每日指标行（(metric_date, representative, metric_name) 唯一，重跑覆盖不累加）
type MetricRecord struct {
	ID             uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	MetricDate     time.Time `gorm:"column:metric_date;type:date;not null;uniqueIndex:uk_date_rep_metric;comment:指标日期"`
	Representative string    `gorm:"column:representative;type:varchar(64);not null;uniqueIndex:uk_date_rep_metric;comment:销售代表标识"`
	MetricName     string    `gorm:"column:metric_name;type:varchar(64);not null;uniqueIndex:uk_date_rep_metric;comment:指标名称"`
	MetricValue    float64   `gorm:"column:metric_value;type:numeric(18,6);not null;comment:指标值"`
	MetricType     string    `gorm:"column:metric_type;type:varchar(16);not null;comment:指标类型：count/percentage/currency"`
	Source         string    `gorm:"column:source;type:varchar(128);comment:数据来源标记"`
	UpdatedAt      time.Time `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

func (MetricRecord) TableName() string { return "metric_records" }

// 运行状态枚举
const (
	RunStatusOK      = "ok"      // 全部数据源正常
	RunStatusPartial = "partial" // 部分数据源降级，指标基于不完整数据
	RunStatusFailed  = "failed"  // 全部数据源失败或落库失败
)

// ReportRun 每次管道运行的审计行（告警与报告快照落库，供面板展示"数据不完整"提示）
type ReportRun struct {
	ID          uint64         `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	RunUUID     string         `gorm:"column:run_uuid;type:varchar(64);uniqueIndex;not null;comment:运行全局唯一ID"`
	ReportDate  time.Time      `gorm:"column:report_date;type:date;index;not null;comment:报告日期"`
	Status      string         `gorm:"column:status;type:varchar(16);not null;comment:运行状态：ok/partial/failed"`
	Warnings    datatypes.JSON `gorm:"column:warnings;type:jsonb;comment:运行期间收集的告警"`
	Report      datatypes.JSON `gorm:"column:report;type:jsonb;comment:格式化报告快照"`
	DroppedRows int            `gorm:"column:dropped_rows;type:int;default:0;comment:校验失败被丢弃的行数"`
	DurationMS  int64          `gorm:"column:duration_ms;type:bigint;default:0;comment:运行耗时（毫秒）"`
	CreatedAt   time.Time      `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
}

func (ReportRun) TableName() string { return "report_runs" }

package service

import (
	"time"

	"SalesPulse/internal/model"

	"github.com/shopspring/decimal"
)

// MetricDef 指标声明：名称→桶字段的纯函数。新增指标只需在表中加一行
type MetricDef struct {
	Name    string
	Type    model.MetricType
	Compute func(b *ReconciledBucket) float64
}

// metricTable 十二项固定指标（顺序即报告展示顺序）
var metricTable = []MetricDef{
	{model.MetricAppointmentsBooked, model.MetricCount, func(b *ReconciledBucket) float64 {
		return float64(b.Booked)
	}},
	{model.MetricAppointmentsCanceled, model.MetricCount, func(b *ReconciledBucket) float64 {
		return float64(b.Canceled)
	}},
	{model.MetricAppointmentsConducted, model.MetricCount, func(b *ReconciledBucket) float64 {
		return float64(b.Conducted)
	}},
	{model.MetricCloseRate, model.MetricPercentage, func(b *ReconciledBucket) float64 {
		return ratePercent(b.NewClientsClosed+b.OrganicClientsClosed, b.Conducted)
	}},
	{model.MetricShowRate, model.MetricPercentage, func(b *ReconciledBucket) float64 {
		return ratePercent(b.Conducted, b.Booked)
	}},
	{model.MetricAverageDealSize, model.MetricCurrency, func(b *ReconciledBucket) float64 {
		// 真比率：总金额/总笔数，绝不是求和（团队汇总同一公式）
		if b.TotalDeals() == 0 {
			return 0
		}
		return roundCurrency(b.TotalRevenue() / float64(b.TotalDeals()))
	}},
	{model.MetricNewClientsClosed, model.MetricCount, func(b *ReconciledBucket) float64 {
		return float64(b.NewClientsClosed)
	}},
	{model.MetricOrganicClientsClosed, model.MetricCount, func(b *ReconciledBucket) float64 {
		return float64(b.OrganicClientsClosed)
	}},
	{model.MetricTotalNewClientsClosed, model.MetricCount, func(b *ReconciledBucket) float64 {
		return float64(b.NewClientsClosed + b.OrganicClientsClosed)
	}},
	{model.MetricNewClientRevenue, model.MetricCurrency, func(b *ReconciledBucket) float64 {
		return roundCurrency(b.NewClientRevenue)
	}},
	{model.MetricRebuyRevenue, model.MetricCurrency, func(b *ReconciledBucket) float64 {
		return roundCurrency(b.RebuyRevenue)
	}},
	{model.MetricTotalRevenue, model.MetricCurrency, func(b *ReconciledBucket) float64 {
		return roundCurrency(b.TotalRevenue())
	}},
}

// MetricNames 指标名列表（表顺序）
func MetricNames() []string {
	names := make([]string, 0, len(metricTable))
	for _, def := range metricTable {
		names = append(names, def.Name)
	}
	return names
}

// Calculator 指标计算器：一个桶→十二条指标行
type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Compute source 为数据来源标记（降级的源不出现在标记中）
func (c *Calculator) Compute(b *ReconciledBucket, source string) []*model.MetricRecord {
	metricDate, _ := time.Parse("2006-01-02", b.Date)
	now := time.Now()

	rows := make([]*model.MetricRecord, 0, len(metricTable))
	for _, def := range metricTable {
		rows = append(rows, &model.MetricRecord{
			MetricDate:     metricDate,
			Representative: b.Representative,
			MetricName:     def.Name,
			MetricValue:    def.Compute(b),
			MetricType:     string(def.Type),
			Source:         source,
			UpdatedAt:      now,
		})
	}
	return rows
}

// ratePercent 百分比：分母为零返回0而非报错；全精度存储，只在展示层取1位小数
func ratePercent(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	rate := float64(numerator) / float64(denominator) * 100
	if rate < 0 {
		return 0
	}
	if rate > 100 {
		return 100
	}
	return rate
}

// roundCurrency 货币四舍五入到2位小数（half-up）
func roundCurrency(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

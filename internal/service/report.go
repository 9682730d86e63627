package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"SalesPulse/internal/model"
)

// ReportLine 单个代表（或团队汇总）的一组指标
type ReportLine struct {
	Representative string             `json:"representative"`
	Metrics        map[string]float64 `json:"metrics"`
}

// Report 对外消费的稳定结构（Slack适配器与面板共用）
type Report struct {
	Date            string       `json:"date"`
	Team            ReportLine   `json:"team"`
	Representatives []ReportLine `json:"representatives"`
	DegradedSources []string     `json:"degraded_sources,omitempty"`
	Warnings        []Warning    `json:"warnings,omitempty"`
	GeneratedAt     time.Time    `json:"generated_at"`
}

// Reporter 报告构建器
type Reporter struct{}

func NewReporter() *Reporter {
	return &Reporter{}
}

// Build 团队汇总从底层总量重算：count/currency求和，比率类用团队总分子/总分母，
// 绝不对各代表的百分比取平均（加权语义）
func (r *Reporter) Build(date string, buckets []*ReconciledBucket, recordsByRep map[string][]*model.MetricRecord, degraded []string, warnings []Warning) *Report {
	report := &Report{
		Date:            date,
		DegradedSources: degraded,
		Warnings:        warnings,
		GeneratedAt:     time.Now(),
	}

	// 按代表名稳定排序输出
	sorted := make([]*ReconciledBucket, len(buckets))
	copy(sorted, buckets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Representative < sorted[j].Representative })

	team := &ReconciledBucket{Date: date, Representative: "team"}
	for _, b := range sorted {
		line := ReportLine{Representative: b.Representative, Metrics: make(map[string]float64, len(metricTable))}
		if records, ok := recordsByRep[b.Representative]; ok {
			for _, rec := range records {
				line.Metrics[rec.MetricName] = rec.MetricValue
			}
		} else {
			// 面板重读路径之外（新鲜运行）records必有；此分支兜底直接现算
			for _, def := range metricTable {
				line.Metrics[def.Name] = def.Compute(b)
			}
		}
		report.Representatives = append(report.Representatives, line)

		team.Booked += b.Booked
		team.Canceled += b.Canceled
		team.Conducted += b.Conducted
		team.NoShows += b.NoShows
		team.NewClientsClosed += b.NewClientsClosed
		team.OrganicClientsClosed += b.OrganicClientsClosed
		team.RebuysClosed += b.RebuysClosed
		team.NewClientRevenue += b.NewClientRevenue
		team.RebuyRevenue += b.RebuyRevenue
	}

	// 团队行直接套用同一指标表：比率自然基于团队总量重算
	teamMetrics := make(map[string]float64, len(metricTable))
	for _, def := range metricTable {
		teamMetrics[def.Name] = def.Compute(team)
	}
	report.Team = ReportLine{Representative: "team", Metrics: teamMetrics}

	return report
}

// SlackText 渲染为Slack mrkdwn消息（展示层：百分比1位小数，货币千分位）
func (r *Reporter) SlackText(report *Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("✅ *DAILY SALES REPORT — %s*\n", report.Date))
	if len(report.DegradedSources) > 0 {
		sb.WriteString(fmt.Sprintf("⚠️ 数据不完整：%s 不可用，相关指标基于部分数据\n", strings.Join(report.DegradedSources, ", ")))
	}
	sb.WriteString("\n*TEAM PERFORMANCE:*\n")

	for _, line := range report.Representatives {
		m := line.Metrics
		sb.WriteString(fmt.Sprintf("• %s: booked %d | conducted %d | show %.1f%% | close %.1f%% | revenue %s\n",
			titleCase(line.Representative),
			int(m[model.MetricAppointmentsBooked]),
			int(m[model.MetricAppointmentsConducted]),
			m[model.MetricShowRate],
			m[model.MetricCloseRate],
			formatMoney(m[model.MetricTotalRevenue]),
		))
	}

	t := report.Team.Metrics
	sb.WriteString("\n*TEAM TOTALS:*\n")
	sb.WriteString(fmt.Sprintf("Appointments Booked: %d\n", int(t[model.MetricAppointmentsBooked])))
	sb.WriteString(fmt.Sprintf("Appointments Conducted: %d\n", int(t[model.MetricAppointmentsConducted])))
	sb.WriteString(fmt.Sprintf("Show Rate: %.1f%%\n", t[model.MetricShowRate]))
	sb.WriteString(fmt.Sprintf("Close Rate: %.1f%%\n", t[model.MetricCloseRate]))
	sb.WriteString(fmt.Sprintf("Total New Clients Closed: %d\n", int(t[model.MetricTotalNewClientsClosed])))
	sb.WriteString(fmt.Sprintf("New Client Revenue: %s\n", formatMoney(t[model.MetricNewClientRevenue])))
	sb.WriteString(fmt.Sprintf("Rebuy Revenue: %s\n", formatMoney(t[model.MetricRebuyRevenue])))
	sb.WriteString(fmt.Sprintf("*TOTAL REVENUE: %s*\n", formatMoney(t[model.MetricTotalRevenue])))
	sb.WriteString(fmt.Sprintf("Average Deal Size: %s\n", formatMoney(t[model.MetricAverageDealSize])))

	return sb.String()
}

// titleCase 首字母大写（代表标识统一小写存储，展示时还原）
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// formatMoney $千分位，保留2位
func formatMoney(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	parts := strings.SplitN(s, ".", 2)
	intPart := parts[0]

	var out []byte
	for i, c := range []byte(intPart) {
		if i > 0 && (len(intPart)-i)%3 == 0 && c != '-' {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return "$" + string(out) + "." + parts[1]
}

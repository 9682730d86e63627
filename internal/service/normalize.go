package service

import (
	"fmt"
	"time"

	"SalesPulse/internal/model"

	"github.com/sirupsen/logrus"
)

// Normalizer 数据源归一化：时区对齐到组织日界、区间过滤、名册校验、同源去重
type Normalizer struct {
	roster map[string]bool
	loc    *time.Location
	logger *logrus.Logger
}

func NewNormalizer(rosterNames []string, loc *time.Location, logger *logrus.Logger) *Normalizer {
	roster := make(map[string]bool, len(rosterNames))
	for _, name := range rosterNames {
		roster[name] = true
	}
	return &Normalizer{roster: roster, loc: loc, logger: logger}
}

// NormalizeAppointments 预约事件归一化
// 日界按组织时区：23:59本地与00:01 UTC必须落入各自正确的单日桶
func (n *Normalizer) NormalizeAppointments(events []*model.AppointmentEvent, rng model.DateRange) ([]*model.AppointmentEvent, []Warning) {
	var warnings []Warning

	// 去重键=来源+原生ID，后写覆盖
	deduped := make(map[string]*model.AppointmentEvent)
	order := make([]string, 0, len(events))

	for _, ev := range events {
		if !n.roster[ev.Representative] {
			warnings = append(warnings, Warning{
				Kind:           WarnValidationDropped,
				Representative: ev.Representative,
				Message:        fmt.Sprintf("预约事件代表标识%q不在名册，已丢弃", ev.Representative),
			})
			continue
		}
		if !rng.Contains(ev.StartTime, n.loc) {
			continue
		}
		ev.Date = model.DayKey(ev.StartTime, n.loc)

		key := string(ev.Provider) + "|" + ev.SourceID
		if _, seen := deduped[key]; !seen {
			order = append(order, key)
		}
		deduped[key] = ev
	}

	out := make([]*model.AppointmentEvent, 0, len(deduped))
	for _, key := range order {
		out = append(out, deduped[key])
	}
	if dropped := len(events) - len(out); dropped > 0 {
		n.logger.Infof("预约归一化：输入%d条，保留%d条", len(events), len(out))
	}
	return out, warnings
}

// NormalizeDeals 成交事件归一化（同批次source_id重复时后写覆盖，按行序）
func (n *Normalizer) NormalizeDeals(deals []*model.DealEvent, rng model.DateRange) ([]*model.DealEvent, []Warning) {
	var warnings []Warning

	deduped := make(map[string]*model.DealEvent)
	order := make([]string, 0, len(deals))

	for _, d := range deals {
		if !n.roster[d.Representative] {
			warnings = append(warnings, Warning{
				Kind:           WarnValidationDropped,
				Representative: d.Representative,
				Message:        fmt.Sprintf("成交事件代表标识%q不在名册，已丢弃", d.Representative),
			})
			continue
		}
		if !rng.Contains(d.ClosedAt, n.loc) {
			continue
		}
		d.Date = model.DayKey(d.ClosedAt, n.loc)

		if _, seen := deduped[d.SourceID]; !seen {
			order = append(order, d.SourceID)
		}
		deduped[d.SourceID] = d
	}

	out := make([]*model.DealEvent, 0, len(deduped))
	for _, key := range order {
		out = append(out, deduped[key])
	}
	return out, warnings
}

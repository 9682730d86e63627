package service

import (
	"fmt"
	"sort"

	"SalesPulse/internal/model"

	"github.com/sirupsen/logrus"
)

// ReconciledBucket 一个 (date, representative) 桶对账后的权威计数
type ReconciledBucket struct {
	Date           string
	Representative string

	Booked    int
	Canceled  int
	Conducted int
	NoShows   int

	NewClientsClosed     int // 非自然新客成交数
	OrganicClientsClosed int // 自然新客成交数
	RebuysClosed         int // 复购成交数
	NewClientRevenue     float64
	RebuyRevenue         float64
}

// TotalDeals 当日全部成交笔数（average_deal_size 的分母）
func (b *ReconciledBucket) TotalDeals() int {
	return b.NewClientsClosed + b.OrganicClientsClosed + b.RebuysClosed
}

// TotalRevenue 当日全部成交金额
func (b *ReconciledBucket) TotalRevenue() float64 {
	return b.NewClientRevenue + b.RebuyRevenue
}

// Reconciler 跨数据源对账：预约平台提供booked/canceled，会议平台是conducted的权威来源
type Reconciler struct {
	logger *logrus.Logger
}

func NewReconciler(logger *logrus.Logger) *Reconciler {
	return &Reconciler{logger: logger}
}

// Reconcile 对单日做桶级对账，名册内每个代表必有一个桶（无数据则全零）
//
// conducted 取数规则：
//  1. 会议平台对该桶有记录 → 以会议平台计数为准；与预约平台的completed计数冲突时记告警，不阻断
//  2. 会议平台对该桶无记录 → 退回预约平台的completed计数
//  3. 最终 conducted 被钳制到 min(conducted, booked)，维持 conducted ≤ booked 不变量
func (r *Reconciler) Reconcile(date string, appointments []*model.AppointmentEvent, deals []*model.DealEvent, roster []string) ([]*ReconciledBucket, []Warning) {
	var warnings []Warning

	type rawCounts struct {
		booked             int
		canceled           int
		schedulerConducted int
		noShows            int
		confConducted      int
	}
	counts := make(map[string]*rawCounts)
	get := func(rep string) *rawCounts {
		c, ok := counts[rep]
		if !ok {
			c = &rawCounts{}
			counts[rep] = c
		}
		return c
	}

	for _, ev := range appointments {
		if ev.Date != date {
			continue
		}
		c := get(ev.Representative)
		switch ev.Provider {
		case model.ProviderScheduler:
			switch ev.Status {
			case model.AppointmentBooked:
				c.booked++
			case model.AppointmentCanceled:
				c.canceled++
			case model.AppointmentConducted:
				// 预约平台侧的completed也是一次booked，conducted仅作兜底
				c.booked++
				c.schedulerConducted++
			case model.AppointmentNoShow:
				c.booked++
				c.noShows++
			}
		case model.ProviderConferencing:
			if ev.Status == model.AppointmentConducted {
				c.confConducted++
			}
		}
	}

	buckets := make(map[string]*ReconciledBucket)
	for _, rep := range roster {
		buckets[rep] = &ReconciledBucket{Date: date, Representative: rep}
	}

	for rep, c := range counts {
		b, ok := buckets[rep]
		if !ok {
			// Normalizer已做名册过滤，此处只是兜底
			continue
		}
		b.Booked = c.booked
		b.Canceled = c.canceled
		b.NoShows = c.noShows

		conducted := c.confConducted
		if conducted == 0 {
			conducted = c.schedulerConducted
		} else if c.schedulerConducted > 0 && c.schedulerConducted != c.confConducted {
			// 两源冲突：会议平台胜出，差异记告警
			warnings = append(warnings, Warning{
				Kind:           WarnReconciliationConflict,
				Representative: rep,
				Date:           date,
				Message:        fmt.Sprintf("conducted计数冲突：会议平台%d vs 预约平台%d，采用会议平台", c.confConducted, c.schedulerConducted),
			})
		}

		if conducted > b.Booked {
			warnings = append(warnings, Warning{
				Kind:           WarnReconciliationConflict,
				Representative: rep,
				Date:           date,
				Message:        fmt.Sprintf("conducted（%d）超过booked（%d），已钳制到booked", conducted, b.Booked),
			})
			conducted = b.Booked
		}
		b.Conducted = conducted
	}

	for _, d := range deals {
		if d.Date != date {
			continue
		}
		b, ok := buckets[d.Representative]
		if !ok {
			continue
		}
		switch d.Kind {
		case model.DealRebuy:
			b.RebuysClosed++
			b.RebuyRevenue += d.Amount
		case model.DealNewClient:
			if d.Organic {
				b.OrganicClientsClosed++
			} else {
				b.NewClientsClosed++
			}
			b.NewClientRevenue += d.Amount
		}
	}

	out := make([]*ReconciledBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Representative < out[j].Representative })

	r.logger.Infof("对账完成：%s共%d个代表桶，%d条告警", date, len(out), len(warnings))
	return out, warnings
}

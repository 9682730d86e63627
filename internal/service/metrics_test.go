package service

import (
	"testing"

	"SalesPulse/internal/model"

	. "github.com/smartystreets/goconvey/convey"
)

func metricMap(rows []*model.MetricRecord) map[string]float64 {
	m := make(map[string]float64, len(rows))
	for _, r := range rows {
		m[r.MetricName] = r.MetricValue
	}
	return m
}

func TestCalculatorCompute(t *testing.T) {
	calc := NewCalculator()

	Convey("单代表单日完整场景", t, func() {
		// 13 booked（2取消后剩余场景见对账测试），9 conducted，
		// 3笔新客$9,000 + 1笔复购$2,000
		b := &ReconciledBucket{
			Date:                 "2025-07-01",
			Representative:       "mikaela",
			Booked:               13,
			Canceled:             2,
			Conducted:            9,
			NewClientsClosed:     2,
			OrganicClientsClosed: 1,
			RebuysClosed:         1,
			NewClientRevenue:     9000,
			RebuyRevenue:         2000,
		}
		rows := calc.Compute(b, "calendly+zoom+sheetdeals")
		m := metricMap(rows)

		Convey("应产出全部十二项指标", func() {
			So(len(rows), ShouldEqual, 12)
			So(len(MetricNames()), ShouldEqual, 12)
		})

		Convey("计数类指标直接取桶字段", func() {
			So(m[model.MetricAppointmentsBooked], ShouldEqual, 13)
			So(m[model.MetricAppointmentsCanceled], ShouldEqual, 2)
			So(m[model.MetricAppointmentsConducted], ShouldEqual, 9)
			So(m[model.MetricNewClientsClosed], ShouldEqual, 2)
			So(m[model.MetricOrganicClientsClosed], ShouldEqual, 1)
			So(m[model.MetricTotalNewClientsClosed], ShouldEqual, 3)
		})

		Convey("close_rate = 新客成交/conducted，全精度存储", func() {
			So(m[model.MetricCloseRate], ShouldAlmostEqual, 100.0*3/9, 0.0001)
		})

		Convey("show_rate = conducted/booked", func() {
			So(m[model.MetricShowRate], ShouldAlmostEqual, 100.0*9/13, 0.0001)
		})

		Convey("average_deal_size 分母含复购：11000/4", func() {
			So(m[model.MetricAverageDealSize], ShouldEqual, 2750.00)
		})

		Convey("营收拆分与总额", func() {
			So(m[model.MetricNewClientRevenue], ShouldEqual, 9000.00)
			So(m[model.MetricRebuyRevenue], ShouldEqual, 2000.00)
			So(m[model.MetricTotalRevenue], ShouldEqual, 11000.00)
		})

		Convey("来源标记与日期透传到每一行", func() {
			for _, r := range rows {
				So(r.Source, ShouldEqual, "calendly+zoom+sheetdeals")
				So(r.Representative, ShouldEqual, "mikaela")
				So(r.MetricDate.Format("2006-01-02"), ShouldEqual, "2025-07-01")
			}
		})
	})

	Convey("零分母不报错，比率为0", t, func() {
		b := &ReconciledBucket{Date: "2025-07-01", Representative: "sierra"}
		m := metricMap(calc.Compute(b, "calendly"))

		So(m[model.MetricCloseRate], ShouldEqual, 0)
		So(m[model.MetricShowRate], ShouldEqual, 0)
		So(m[model.MetricAverageDealSize], ShouldEqual, 0)
		So(m[model.MetricTotalRevenue], ShouldEqual, 0)
	})

	Convey("成交但零conducted时close_rate仍为0", t, func() {
		b := &ReconciledBucket{
			Date:             "2025-07-01",
			Representative:   "mike",
			NewClientsClosed: 2,
			NewClientRevenue: 4000,
		}
		m := metricMap(calc.Compute(b, "sheetdeals"))

		So(m[model.MetricCloseRate], ShouldEqual, 0)
		So(m[model.MetricTotalRevenue], ShouldEqual, 4000.00)
	})
}

func TestRatePercent(t *testing.T) {
	Convey("百分比计算", t, func() {
		Convey("常规比率", func() {
			So(ratePercent(1, 4), ShouldEqual, 25.0)
		})
		Convey("分母为零返回0", func() {
			So(ratePercent(5, 0), ShouldEqual, 0)
		})
		Convey("超过100钳制到100", func() {
			So(ratePercent(7, 5), ShouldEqual, 100.0)
		})
		Convey("全精度：1/3不被预先取整", func() {
			So(ratePercent(1, 3), ShouldAlmostEqual, 33.333333, 0.0001)
		})
	})
}

func TestRoundCurrency(t *testing.T) {
	Convey("货币四舍五入到2位（half-up）", t, func() {
		So(roundCurrency(2750.0), ShouldEqual, 2750.00)
		So(roundCurrency(1.005), ShouldEqual, 1.01)
		So(roundCurrency(2.344), ShouldEqual, 2.34)
		So(roundCurrency(10.999), ShouldEqual, 11.00)
	})
}

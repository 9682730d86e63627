package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"SalesPulse/internal/config"
	"SalesPulse/internal/interfaces"
	"SalesPulse/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RunResult 单次运行的产出
type RunResult struct {
	Status      string    // ok/partial/failed
	Report      *Report   // 格式化报告（Skipped时为nil）
	Warnings    []Warning // 运行期间收集的全部告警
	DroppedRows int       // 校验失败被丢弃的行数
	Skipped     bool      // 非工作日跳过
}

// Pipeline 每日指标管道：拉取→归一化→对账→计算→落库→推送，单次有界批处理
type Pipeline struct {
	cfg          *config.Config
	loc          *time.Location
	scheduler    interfaces.AppointmentSource
	conferencing interfaces.AppointmentSource
	deals        interfaces.DealSource
	metricRepo   interfaces.MetricRepository
	runRepo      interfaces.RunRepository
	notifier     interfaces.Notifier
	logger       *logrus.Logger

	normalizer *Normalizer
	reconciler *Reconciler
	calculator *Calculator
	reporter   *Reporter
}

func NewPipeline(
	cfg *config.Config,
	loc *time.Location,
	scheduler interfaces.AppointmentSource,
	conferencing interfaces.AppointmentSource,
	deals interfaces.DealSource,
	metricRepo interfaces.MetricRepository,
	runRepo interfaces.RunRepository,
	notifier interfaces.Notifier,
	logger *logrus.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:          cfg,
		loc:          loc,
		scheduler:    scheduler,
		conferencing: conferencing,
		deals:        deals,
		metricRepo:   metricRepo,
		runRepo:      runRepo,
		notifier:     notifier,
		logger:       logger,
		normalizer:   NewNormalizer(cfg.Team.RosterNames(), loc, logger),
		reconciler:   NewReconciler(logger),
		calculator:   NewCalculator(),
		reporter:     NewReporter(),
	}
}

// RunForDate 计算并发布指定日期（组织时区，YYYY-MM-DD）的全部指标
// 返回非nil错误表示当日整体失败（全部数据源失败或落库失败）
func (p *Pipeline) RunForDate(ctx context.Context, day string) (*RunResult, error) {
	started := time.Now()

	dayStart, err := time.ParseInLocation("2006-01-02", day, p.loc)
	if err != nil {
		return nil, fmt.Errorf("非法日期%q: %w", day, err)
	}
	if p.skipWeekday(dayStart) {
		p.logger.Infof("%s为配置的非工作日，跳过本次运行", day)
		return &RunResult{Status: model.RunStatusOK, Skipped: true}, nil
	}
	rng := model.DateRange{Start: dayStart, End: dayStart}

	// 1. 三数据源并发拉取（相互独立，无共享可变状态，结果在全部完成后汇合）
	fetched := p.fetchAll(ctx, rng)

	var warnings []Warning
	var degraded []string
	var okSources []string
	for _, f := range []sourceResult{fetched.scheduler, fetched.conferencing, fetched.deals} {
		if f.err != nil {
			degraded = append(degraded, f.name)
			warnings = append(warnings, Warning{
				Kind:    WarnSourceUnavailable,
				Date:    day,
				Message: fmt.Sprintf("数据源%s不可用，已降级为空数据: %v", f.name, f.err),
			})
			p.logger.WithError(f.err).Warnf("数据源%s降级", f.name)
		} else {
			okSources = append(okSources, f.name)
		}
	}
	if len(okSources) == 0 {
		p.saveRun(ctx, day, model.RunStatusFailed, warnings, nil, 0, started)
		return &RunResult{Status: model.RunStatusFailed, Warnings: warnings}, ErrAllSourcesFailed
	}

	// 2. 归一化（时区日界、名册校验、去重）
	appointments, w := p.normalizer.NormalizeAppointments(append(fetched.scheduler.appointments, fetched.conferencing.appointments...), rng)
	warnings = append(warnings, w...)
	deals, w := p.normalizer.NormalizeDeals(fetched.deals.deals, rng)
	warnings = append(warnings, w...)

	droppedRows := fetched.deals.dropped + countDropped(warnings)
	if droppedRows > 0 {
		warnings = append(warnings, Warning{
			Kind:    WarnValidationDropped,
			Date:    day,
			Message: fmt.Sprintf("共%d条坏行被丢弃", droppedRows),
		})
	}

	// 3. 对账
	buckets, w := p.reconciler.Reconcile(day, appointments, deals, p.cfg.Team.RosterNames())
	warnings = append(warnings, w...)

	// 4. 计算+落库（桶级全有或全无；落库失败有界重试后当日非零退出，但不阻断其余桶）
	source := strings.Join(okSources, "+")
	recordsByRep := make(map[string][]*model.MetricRecord, len(buckets))
	var persistErr error
	for _, b := range buckets {
		rows := p.calculator.Compute(b, source)
		if err := p.upsertWithRetry(ctx, b, rows); err != nil {
			persistErr = err
			p.logger.WithError(err).Errorf("桶%s/%s落库失败（已重试%d次）", b.Date, b.Representative, p.cfg.Pipeline.StoreRetryAttempts)
			continue
		}
		recordsByRep[b.Representative] = rows
	}

	// 5. 报告构建与运行审计
	report := p.reporter.Build(day, buckets, recordsByRep, degraded, warnings)
	status := model.RunStatusOK
	switch {
	case persistErr != nil:
		status = model.RunStatusFailed
	case len(degraded) > 0 || droppedRows > 0:
		status = model.RunStatusPartial
	}
	p.saveRun(ctx, day, status, warnings, report, droppedRows, started)

	// 6. 推送（失败只重试一次，然后记告警，不影响退出码）
	if p.cfg.Slack.Enabled && p.notifier != nil && persistErr == nil {
		text := p.reporter.SlackText(report)
		if err := p.sendWithSingleRetry(ctx, text); err != nil {
			warnings = append(warnings, Warning{
				Kind:    WarnDeliveryFailed,
				Date:    day,
				Message: fmt.Sprintf("报告推送失败: %v", err),
			})
			p.logger.WithError(err).Warn("报告推送失败")
		}
	}

	result := &RunResult{Status: status, Report: report, Warnings: warnings, DroppedRows: droppedRows}
	if persistErr != nil {
		return result, persistErr
	}
	return result, nil
}

// sourceResult 单数据源拉取结果
type sourceResult struct {
	name         string
	appointments []*model.AppointmentEvent
	deals        []*model.DealEvent
	dropped      int
	err          error
}

type fetchResults struct {
	scheduler    sourceResult
	conferencing sourceResult
	deals        sourceResult
}

// fetchAll 三数据源并发拉取，每个源各自带超时，单源失败不中断其他源
func (p *Pipeline) fetchAll(ctx context.Context, rng model.DateRange) fetchResults {
	var results fetchResults
	var wg sync.WaitGroup

	fetchAppointments := func(src interfaces.AppointmentSource, out *sourceResult) {
		defer wg.Done()
		fctx, cancel := context.WithTimeout(ctx, p.cfg.Pipeline.SourceTimeout)
		defer cancel()
		out.name = src.Name()
		out.appointments, out.err = src.FetchAppointments(fctx, rng, p.cfg.Team.Representatives)
	}

	wg.Add(3)
	go fetchAppointments(p.scheduler, &results.scheduler)
	go fetchAppointments(p.conferencing, &results.conferencing)
	go func() {
		defer wg.Done()
		fctx, cancel := context.WithTimeout(ctx, p.cfg.Pipeline.SourceTimeout)
		defer cancel()
		results.deals.name = p.deals.Name()
		results.deals.deals, results.deals.dropped, results.deals.err = p.deals.FetchDeals(fctx, rng)
	}()
	wg.Wait()

	return results
}

// upsertWithRetry 指标落库的有界重试（重试在调用方，不在仓储内部）
func (p *Pipeline) upsertWithRetry(ctx context.Context, b *ReconciledBucket, rows []*model.MetricRecord) error {
	attempts := p.cfg.Pipeline.StoreRetryAttempts
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := p.metricRepo.UpsertBucketMetrics(ctx, b.Date, b.Representative, rows); err != nil {
			lastErr = err
			if attempt < attempts {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(p.cfg.Pipeline.StoreRetryBackoff):
				}
			}
			continue
		}
		return nil
	}
	return &PersistenceError{Date: b.Date, Representative: b.Representative, Err: lastErr}
}

// sendWithSingleRetry 推送失败至多重试一次
func (p *Pipeline) sendWithSingleRetry(ctx context.Context, text string) error {
	if err := p.notifier.Send(ctx, text); err != nil {
		p.logger.WithError(err).Warn("首次推送失败，重试一次")
		return p.notifier.Send(ctx, text)
	}
	return nil
}

// saveRun 写运行审计行（审计失败只告警，不影响主流程）
func (p *Pipeline) saveRun(ctx context.Context, day, status string, warnings []Warning, report *Report, dropped int, started time.Time) {
	reportDate, _ := time.Parse("2006-01-02", day)
	run := &model.ReportRun{
		RunUUID:     uuid.NewString(),
		ReportDate:  reportDate,
		Status:      status,
		DroppedRows: dropped,
		DurationMS:  time.Since(started).Milliseconds(),
	}
	if b, err := json.Marshal(warnings); err == nil {
		run.Warnings = b
	}
	if report != nil {
		if b, err := json.Marshal(report); err == nil {
			run.Report = b
		}
	}
	if err := p.runRepo.SaveRun(ctx, run); err != nil {
		p.logger.WithError(err).Warn("保存运行审计行失败")
	}
}

// skipWeekday 目标日期是否命中配置的非工作日
func (p *Pipeline) skipWeekday(day time.Time) bool {
	weekday := day.Weekday().String()
	for _, w := range p.cfg.Team.SkipWeekdays {
		if strings.EqualFold(w, weekday) {
			return true
		}
	}
	return false
}

// countDropped 归一化阶段丢弃的行数（validation_dropped类告警逐条对应一行）
func countDropped(warnings []Warning) int {
	n := 0
	for _, w := range warnings {
		if w.Kind == WarnValidationDropped {
			n++
		}
	}
	return n
}

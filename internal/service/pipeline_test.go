package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"SalesPulse/internal/config"
	"SalesPulse/internal/model"
)

type fakeAppointmentSource struct {
	name   string
	kind   model.ProviderKind
	events []*model.AppointmentEvent
	err    error
	calls  int
}

func (f *fakeAppointmentSource) Name() string             { return f.name }
func (f *fakeAppointmentSource) Kind() model.ProviderKind { return f.kind }
func (f *fakeAppointmentSource) FetchAppointments(ctx context.Context, rng model.DateRange, reps []config.Representative) ([]*model.AppointmentEvent, error) {
	f.calls++
	return f.events, f.err
}

type fakeDealSource struct {
	name    string
	deals   []*model.DealEvent
	dropped int
	err     error
	calls   int
}

func (f *fakeDealSource) Name() string { return f.name }
func (f *fakeDealSource) FetchDeals(ctx context.Context, rng model.DateRange) ([]*model.DealEvent, int, error) {
	f.calls++
	return f.deals, f.dropped, f.err
}

// fakeMetricRepo 前failTimes次写入失败，之后成功；按桶键覆盖存储
type fakeMetricRepo struct {
	failTimes int
	attempts  int
	stored    map[string][]*model.MetricRecord
}

func newFakeMetricRepo(failTimes int) *fakeMetricRepo {
	return &fakeMetricRepo{failTimes: failTimes, stored: make(map[string][]*model.MetricRecord)}
}

func (f *fakeMetricRepo) UpsertBucketMetrics(ctx context.Context, date, rep string, rows []*model.MetricRecord) error {
	f.attempts++
	if f.attempts <= f.failTimes {
		return errors.New("数据库临时不可用")
	}
	f.stored[date+"|"+rep] = rows
	return nil
}

func (f *fakeMetricRepo) ListByDate(ctx context.Context, date string) ([]*model.MetricRecord, error) {
	var out []*model.MetricRecord
	for _, rows := range f.stored {
		out = append(out, rows...)
	}
	return out, nil
}

type fakeRunRepo struct {
	runs []*model.ReportRun
}

func (f *fakeRunRepo) SaveRun(ctx context.Context, run *model.ReportRun) error {
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeRunRepo) LatestRunForDate(ctx context.Context, date string) (*model.ReportRun, error) {
	if len(f.runs) == 0 {
		return nil, errors.New("not found")
	}
	return f.runs[len(f.runs)-1], nil
}

func pipelineTestConfig() *config.Config {
	return &config.Config{
		Team: config.TeamConfig{
			Timezone: "America/New_York",
			Representatives: []config.Representative{
				{Name: "mikaela"}, {Name: "mike"}, {Name: "sierra"},
			},
		},
		Pipeline: config.PipelineConfig{
			StoreRetryAttempts: 2,
			StoreRetryBackoff:  time.Millisecond,
			SourceTimeout:      time.Second,
		},
		Slack: config.SlackConfig{Enabled: false},
	}
}

func newTestPipeline(cfg *config.Config, scheduler, conferencing *fakeAppointmentSource, deals *fakeDealSource, metricRepo *fakeMetricRepo, runRepo *fakeRunRepo) (*Pipeline, *time.Location) {
	loc, _ := cfg.Team.Location()
	p := NewPipeline(cfg, loc, scheduler, conferencing, deals, metricRepo, runRepo, nil, testLogger())
	return p, loc
}

func schedulerEvents(loc *time.Location) []*model.AppointmentEvent {
	start := time.Date(2025, 7, 1, 10, 0, 0, 0, loc)
	return []*model.AppointmentEvent{
		{Representative: "mikaela", Status: model.AppointmentBooked, Provider: model.ProviderScheduler, SourceID: "s1", StartTime: start},
		{Representative: "mikaela", Status: model.AppointmentConducted, Provider: model.ProviderScheduler, SourceID: "s2", StartTime: start},
	}
}

func TestPipelineHappyPath(t *testing.T) {
	cfg := pipelineTestConfig()
	loc, _ := cfg.Team.Location()

	scheduler := &fakeAppointmentSource{name: "calendly", kind: model.ProviderScheduler, events: schedulerEvents(loc)}
	conferencing := &fakeAppointmentSource{name: "zoom", kind: model.ProviderConferencing}
	deals := &fakeDealSource{name: "sheetdeals", deals: []*model.DealEvent{
		{Representative: "mikaela", Amount: 3000, Kind: model.DealNewClient, SourceID: "d1", ClosedAt: time.Date(2025, 7, 1, 12, 0, 0, 0, loc)},
	}}
	metricRepo := newFakeMetricRepo(0)
	runRepo := &fakeRunRepo{}

	p, _ := newTestPipeline(cfg, scheduler, conferencing, deals, metricRepo, runRepo)
	result, err := p.RunForDate(context.Background(), "2025-07-01")
	if err != nil {
		t.Fatalf("期望运行成功，实际错误: %v", err)
	}
	if result.Status != model.RunStatusOK {
		t.Fatalf("期望状态ok，实际%s", result.Status)
	}

	// 名册3个代表 × 12项指标全部落库
	if len(metricRepo.stored) != 3 {
		t.Fatalf("期望3个代表桶落库，实际%d", len(metricRepo.stored))
	}
	rows := metricRepo.stored["2025-07-01|mikaela"]
	if len(rows) != 12 {
		t.Fatalf("期望12项指标，实际%d", len(rows))
	}
	for _, r := range rows {
		if r.Source != "calendly+zoom+sheetdeals" {
			t.Fatalf("来源标记错误：%s", r.Source)
		}
	}

	if len(runRepo.runs) != 1 {
		t.Fatalf("期望1条运行审计行，实际%d", len(runRepo.runs))
	}
	if runRepo.runs[0].Status != model.RunStatusOK {
		t.Fatalf("审计行状态错误：%s", runRepo.runs[0].Status)
	}
	if result.Report == nil || result.Report.Date != "2025-07-01" {
		t.Fatalf("报告缺失或日期错误")
	}
}

func TestPipelineSourceDegradation(t *testing.T) {
	cfg := pipelineTestConfig()
	loc, _ := cfg.Team.Location()

	scheduler := &fakeAppointmentSource{name: "calendly", kind: model.ProviderScheduler, events: schedulerEvents(loc)}
	conferencing := &fakeAppointmentSource{name: "zoom", kind: model.ProviderConferencing, err: errors.New("API超时")}
	deals := &fakeDealSource{name: "sheetdeals"}
	metricRepo := newFakeMetricRepo(0)
	runRepo := &fakeRunRepo{}

	p, _ := newTestPipeline(cfg, scheduler, conferencing, deals, metricRepo, runRepo)
	result, err := p.RunForDate(context.Background(), "2025-07-01")
	if err != nil {
		t.Fatalf("单源降级不应导致整体失败: %v", err)
	}
	if result.Status != model.RunStatusPartial {
		t.Fatalf("期望状态partial，实际%s", result.Status)
	}

	found := false
	for _, w := range result.Warnings {
		if w.Kind == WarnSourceUnavailable {
			found = true
		}
	}
	if !found {
		t.Fatalf("应有source_unavailable告警")
	}

	// 降级的源不出现在来源标记中
	rows := metricRepo.stored["2025-07-01|mikaela"]
	if len(rows) == 0 || rows[0].Source != "calendly+sheetdeals" {
		t.Fatalf("来源标记应排除降级的源，实际%v", rows)
	}
	// 其余代表仍有全零桶
	if len(metricRepo.stored) != 3 {
		t.Fatalf("降级时其余代表桶也应落库")
	}
}

func TestPipelineAllSourcesFailed(t *testing.T) {
	cfg := pipelineTestConfig()
	scheduler := &fakeAppointmentSource{name: "calendly", kind: model.ProviderScheduler, err: errors.New("401")}
	conferencing := &fakeAppointmentSource{name: "zoom", kind: model.ProviderConferencing, err: errors.New("超时")}
	deals := &fakeDealSource{name: "sheetdeals", err: errors.New("表格不可用")}
	metricRepo := newFakeMetricRepo(0)
	runRepo := &fakeRunRepo{}

	p, _ := newTestPipeline(cfg, scheduler, conferencing, deals, metricRepo, runRepo)
	result, err := p.RunForDate(context.Background(), "2025-07-01")
	if !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("期望ErrAllSourcesFailed，实际%v", err)
	}
	if result.Status != model.RunStatusFailed {
		t.Fatalf("期望状态failed，实际%s", result.Status)
	}
	if len(metricRepo.stored) != 0 {
		t.Fatalf("全源失败不应落任何指标")
	}
	if len(runRepo.runs) != 1 || runRepo.runs[0].Status != model.RunStatusFailed {
		t.Fatalf("应落一条failed审计行")
	}
}

func TestPipelinePersistenceRetry(t *testing.T) {
	cfg := pipelineTestConfig()
	loc, _ := cfg.Team.Location()
	scheduler := &fakeAppointmentSource{name: "calendly", kind: model.ProviderScheduler, events: schedulerEvents(loc)}
	conferencing := &fakeAppointmentSource{name: "zoom", kind: model.ProviderConferencing}
	deals := &fakeDealSource{name: "sheetdeals"}
	runRepo := &fakeRunRepo{}

	// 首次写入失败，重试一次成功（attempts=2）
	metricRepo := newFakeMetricRepo(1)
	p, _ := newTestPipeline(cfg, scheduler, conferencing, deals, metricRepo, runRepo)
	result, err := p.RunForDate(context.Background(), "2025-07-01")
	if err != nil {
		t.Fatalf("重试范围内的落库失败应自动恢复: %v", err)
	}
	if result.Status != model.RunStatusOK {
		t.Fatalf("期望状态ok，实际%s", result.Status)
	}
	if len(metricRepo.stored) != 3 {
		t.Fatalf("重试成功后3个桶均应落库")
	}
}

func TestPipelinePersistenceExhausted(t *testing.T) {
	cfg := pipelineTestConfig()
	loc, _ := cfg.Team.Location()
	scheduler := &fakeAppointmentSource{name: "calendly", kind: model.ProviderScheduler, events: schedulerEvents(loc)}
	conferencing := &fakeAppointmentSource{name: "zoom", kind: model.ProviderConferencing}
	deals := &fakeDealSource{name: "sheetdeals"}
	runRepo := &fakeRunRepo{}

	// 持续失败：每桶2次尝试全部耗尽
	metricRepo := newFakeMetricRepo(1000)
	p, _ := newTestPipeline(cfg, scheduler, conferencing, deals, metricRepo, runRepo)
	result, err := p.RunForDate(context.Background(), "2025-07-01")

	var pErr *PersistenceError
	if !errors.As(err, &pErr) {
		t.Fatalf("期望PersistenceError，实际%v", err)
	}
	if result.Status != model.RunStatusFailed {
		t.Fatalf("期望状态failed，实际%s", result.Status)
	}
}

func TestPipelineIdempotentRerun(t *testing.T) {
	cfg := pipelineTestConfig()
	loc, _ := cfg.Team.Location()
	scheduler := &fakeAppointmentSource{name: "calendly", kind: model.ProviderScheduler, events: schedulerEvents(loc)}
	conferencing := &fakeAppointmentSource{name: "zoom", kind: model.ProviderConferencing}
	deals := &fakeDealSource{name: "sheetdeals", deals: []*model.DealEvent{
		{Representative: "mikaela", Amount: 3000, Kind: model.DealNewClient, SourceID: "d1", ClosedAt: time.Date(2025, 7, 1, 12, 0, 0, 0, loc)},
	}}
	metricRepo := newFakeMetricRepo(0)
	runRepo := &fakeRunRepo{}

	p, _ := newTestPipeline(cfg, scheduler, conferencing, deals, metricRepo, runRepo)

	if _, err := p.RunForDate(context.Background(), "2025-07-01"); err != nil {
		t.Fatalf("首次运行失败: %v", err)
	}
	first := metricRepo.stored["2025-07-01|mikaela"]

	if _, err := p.RunForDate(context.Background(), "2025-07-01"); err != nil {
		t.Fatalf("重跑失败: %v", err)
	}
	second := metricRepo.stored["2025-07-01|mikaela"]

	// 重跑是覆盖，不是累加
	if len(metricRepo.stored) != 3 {
		t.Fatalf("重跑不应产生新桶")
	}
	for i := range first {
		if first[i].MetricName != second[i].MetricName || first[i].MetricValue != second[i].MetricValue {
			t.Fatalf("重跑后指标值应与首次一致：%s %v vs %v",
				first[i].MetricName, first[i].MetricValue, second[i].MetricValue)
		}
	}
}

func TestPipelineSkipsConfiguredWeekday(t *testing.T) {
	cfg := pipelineTestConfig()
	cfg.Team.SkipWeekdays = []string{"Tuesday"} // 2025-07-01是周二

	scheduler := &fakeAppointmentSource{name: "calendly", kind: model.ProviderScheduler}
	conferencing := &fakeAppointmentSource{name: "zoom", kind: model.ProviderConferencing}
	deals := &fakeDealSource{name: "sheetdeals"}
	metricRepo := newFakeMetricRepo(0)
	runRepo := &fakeRunRepo{}

	p, _ := newTestPipeline(cfg, scheduler, conferencing, deals, metricRepo, runRepo)
	result, err := p.RunForDate(context.Background(), "2025-07-01")
	if err != nil {
		t.Fatalf("跳过日不应报错: %v", err)
	}
	if !result.Skipped {
		t.Fatalf("应标记为已跳过")
	}
	if scheduler.calls != 0 || conferencing.calls != 0 || deals.calls != 0 {
		t.Fatalf("跳过日不应触发任何数据源拉取")
	}
	if len(metricRepo.stored) != 0 {
		t.Fatalf("跳过日不应落库")
	}
}

func TestPipelineRejectsBadDate(t *testing.T) {
	cfg := pipelineTestConfig()
	p, _ := newTestPipeline(cfg,
		&fakeAppointmentSource{name: "calendly", kind: model.ProviderScheduler},
		&fakeAppointmentSource{name: "zoom", kind: model.ProviderConferencing},
		&fakeDealSource{name: "sheetdeals"},
		newFakeMetricRepo(0), &fakeRunRepo{})

	if _, err := p.RunForDate(context.Background(), "07/01/2025"); err == nil {
		t.Fatalf("非法日期格式应报错")
	}
}

package calendly

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"SalesPulse/internal/config"
	"SalesPulse/internal/interfaces"
	"SalesPulse/internal/model"
	"SalesPulse/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
)

// Adapter 预约平台适配器（booked/canceled 的权威来源）
type Adapter struct {
	cfg        *config.ProviderConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewSchedulerAdapter(cfg *config.ProviderConfig, logger *logrus.Logger) interfaces.AppointmentSource {
	return &Adapter{
		cfg:        cfg,
		httpClient: httpclient.NewHTTPClient(cfg, logger),
		logger:     logger,
	}
}

func (a *Adapter) Name() string             { return "calendly" }
func (a *Adapter) Kind() model.ProviderKind { return model.ProviderScheduler }

// FetchAppointments 按代表逐个拉取区间内的预约事件（游标分页，全状态）
// 认证失败对整个数据源致命；单个代表的网络错误只告警并继续
func (a *Adapter) FetchAppointments(ctx context.Context, rng model.DateRange, reps []config.Representative) ([]*model.AppointmentEvent, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + a.cfg.AuthToken,
		"Content-Type":  "application/json",
	}
	orgURI := fmt.Sprintf("%s/organizations/%s", a.cfg.BaseURL, a.cfg.OrgID)

	// API按UTC取数，区间为组织时区的整日窗口
	minStart := rng.Start.UTC().Format(time.RFC3339)
	maxStart := rng.End.Add(24*time.Hour - time.Second).UTC().Format(time.RFC3339)

	var events []*model.AppointmentEvent
	var fetched int

	for _, rep := range reps {
		if rep.SchedulerID == "" {
			a.logger.Warnf("代表%s缺少scheduler_id，跳过预约拉取", rep.Name)
			continue
		}

		q := url.Values{}
		q.Set("user", fmt.Sprintf("%s/users/%s", a.cfg.BaseURL, rep.SchedulerID))
		q.Set("organization", orgURI)
		q.Set("sort", "start_time:asc")
		q.Set("min_start_time", minStart)
		q.Set("max_start_time", maxStart)
		pageURL := fmt.Sprintf("%s/scheduled_events?%s", a.cfg.BaseURL, q.Encode())

		// 游标分页：next_page为空即结束
		for pageURL != "" {
			var page model.CalendlyEventList
			if err := httpclient.GetJSON(ctx, a.httpClient, pageURL, headers, a.cfg.RetryCount, a.logger, &page); err != nil {
				var authErr *httpclient.AuthError
				if errors.As(err, &authErr) {
					return nil, fmt.Errorf("预约平台认证失败: %w", err)
				}
				a.logger.WithError(err).Warnf("拉取%s预约事件失败，该代表数据不完整", rep.Name)
				pageURL = ""
				continue
			}

			for _, raw := range page.Collection {
				ev := a.convert(rep.Name, raw)
				if ev == nil {
					continue
				}
				events = append(events, ev)
			}
			fetched += len(page.Collection)
			pageURL = page.Pagination.NextPage
		}
	}

	a.logger.Infof("预约平台拉取完成，共%d条原始事件", fetched)
	return events, nil
}

// convert 单条原生事件转统一模型（Date留空由Normalizer按组织时区填充）
func (a *Adapter) convert(repName string, raw model.CalendlyEvent) *model.AppointmentEvent {
	startTime, err := time.Parse(time.RFC3339, raw.StartTime)
	if err != nil {
		a.logger.Warnf("解析预约开始时间失败（值：%s）: %v，丢弃该条", raw.StartTime, err)
		return nil
	}

	var status model.AppointmentStatus
	switch raw.Status {
	case "active":
		status = model.AppointmentBooked
	case "canceled":
		status = model.AppointmentCanceled
	case "completed":
		// 历史数据中的completed作为conducted兜底（仅当会议平台无数据时生效）
		status = model.AppointmentConducted
	default:
		a.logger.Warnf("未知预约状态%s，丢弃该条", raw.Status)
		return nil
	}

	return &model.AppointmentEvent{
		Representative: repName,
		Status:         status,
		SourceID:       raw.URI,
		Provider:       model.ProviderScheduler,
		StartTime:      startTime,
	}
}

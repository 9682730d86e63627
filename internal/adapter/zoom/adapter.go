package zoom

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

// Adapter 会议平台适配器（conducted 的权威来源：有录制即视为实际进行）
type Adapter struct {
	cfg        *config.ProviderConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewConferencingAdapter(cfg *config.ProviderConfig, logger *logrus.Logger) interfaces.AppointmentSource {
	return &Adapter{
		cfg:        cfg,
		httpClient: httpclient.NewHTTPClient(cfg, logger),
		logger:     logger,
	}
}

func (a *Adapter) Name() string             { return "zoom" }
func (a *Adapter) Kind() model.ProviderKind { return model.ProviderConferencing }

// FetchAppointments 先换取OAuth token，再按代表邮箱逐个拉取区间内的录制会议
func (a *Adapter) FetchAppointments(ctx context.Context, rng model.DateRange, reps []config.Representative) ([]*model.AppointmentEvent, error) {
	token, err := a.fetchAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("会议平台获取token失败: %w", err)
	}
	headers := map[string]string{"Authorization": "Bearer " + token}

	// API按UTC日期取数，前后各放宽一天覆盖时区偏移，精确过滤交给Normalizer
	from := rng.Start.UTC().AddDate(0, 0, -1).Format("2006-01-02")
	to := rng.End.UTC().AddDate(0, 0, 1).Format("2006-01-02")

	var events []*model.AppointmentEvent

	for _, rep := range reps {
		if rep.ConferencingEmail == "" {
			a.logger.Warnf("代表%s缺少conferencing_email，跳过会议拉取", rep.Name)
			continue
		}

		userID, err := a.fetchUserID(ctx, rep.ConferencingEmail, headers)
		if err != nil {
			var authErr *httpclient.AuthError
			if errors.As(err, &authErr) {
				return nil, fmt.Errorf("会议平台认证失败: %w", err)
			}
			a.logger.WithError(err).Warnf("查询%s的会议账号失败，该代表数据不完整", rep.Name)
			continue
		}

		recURL := fmt.Sprintf("%s/users/%s/recordings?from=%s&to=%s", a.cfg.BaseURL, userID, from, to)
		var list model.ZoomRecordingList
		if err := httpclient.GetJSON(ctx, a.httpClient, recURL, headers, a.cfg.RetryCount, a.logger, &list); err != nil {
			var authErr *httpclient.AuthError
			if errors.As(err, &authErr) {
				return nil, fmt.Errorf("会议平台认证失败: %w", err)
			}
			a.logger.WithError(err).Warnf("拉取%s录制列表失败，该代表数据不完整", rep.Name)
			continue
		}

		for _, m := range list.Meetings {
			ev := a.convert(rep.Name, m)
			if ev == nil {
				continue
			}
			events = append(events, ev)
		}
		a.logger.Infof("会议平台：%s共%d条录制会议", rep.Name, len(list.Meetings))
	}

	return events, nil
}

// convert 单条录制会议转统一模型（无录制文件的会议不计为conducted）
func (a *Adapter) convert(repName string, m model.ZoomMeeting) *model.AppointmentEvent {
	if len(m.RecordingFiles) == 0 {
		return nil
	}
	startTime, err := time.Parse(time.RFC3339, m.StartTime)
	if err != nil {
		a.logger.Warnf("解析会议开始时间失败（值：%s）: %v，丢弃该条", m.StartTime, err)
		return nil
	}
	sourceID := m.UUID
	if sourceID == "" {
		sourceID = fmt.Sprintf("%d", m.ID)
	}
	return &model.AppointmentEvent{
		Representative: repName,
		Status:         model.AppointmentConducted,
		SourceID:       sourceID,
		Provider:       model.ProviderConferencing,
		StartTime:      startTime,
	}
}

// fetchUserID 按邮箱查询会议平台用户ID
func (a *Adapter) fetchUserID(ctx context.Context, email string, headers map[string]string) (string, error) {
	var user model.ZoomUser
	userURL := fmt.Sprintf("%s/users/%s", a.cfg.BaseURL, url.PathEscape(email))
	if err := httpclient.GetJSON(ctx, a.httpClient, userURL, headers, a.cfg.RetryCount, a.logger, &user); err != nil {
		return "", err
	}
	if user.ID == "" {
		return "", fmt.Errorf("邮箱%s未找到会议账号", email)
	}
	return user.ID, nil
}

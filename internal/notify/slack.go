package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"SalesPulse/internal/config"
	"SalesPulse/internal/interfaces"

	"github.com/sirupsen/logrus"
)

// slackNotifier 通过 chat.postMessage 向配置的channel列表推送报告
type slackNotifier struct {
	cfg    config.SlackConfig
	client *http.Client
	logger *logrus.Logger
}

func NewSlackNotifier(cfg config.SlackConfig, logger *logrus.Logger) interfaces.Notifier {
	return &slackNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

func (s *slackNotifier) Name() string {
	return "slack"
}

type postMessageRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type postMessageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Send 逐channel推送；任一channel失败返回错误（由调用方决定是否重试）
func (s *slackNotifier) Send(ctx context.Context, text string) error {
	if len(s.cfg.Channels) == 0 {
		return fmt.Errorf("未配置任何Slack channel")
	}
	for _, channel := range s.cfg.Channels {
		if err := s.postMessage(ctx, channel, text); err != nil {
			return fmt.Errorf("推送到channel %s失败: %w", channel, err)
		}
		s.logger.Infof("报告已推送到channel %s", channel)
	}
	return nil
}

func (s *slackNotifier) postMessage(ctx context.Context, channel, text string) error {
	body, err := json.Marshal(postMessageRequest{Channel: channel, Text: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.BotToken)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Slack API返回HTTP %d: %s", resp.StatusCode, string(raw))
	}

	// Slack 的失败也可能是 HTTP 200 + ok=false
	var pr postMessageResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return fmt.Errorf("解析Slack响应失败: %w", err)
	}
	if !pr.OK {
		return fmt.Errorf("Slack API错误: %s", pr.Error)
	}
	return nil
}

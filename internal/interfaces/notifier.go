package interfaces

import "context"

// Notifier 报告推送接口（Slack等）
type Notifier interface {
	Name() string
	Send(ctx context.Context, text string) error
}

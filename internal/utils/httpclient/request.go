package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// AuthError 认证失败（401/403），对该数据源而言是致命错误，不重试
type AuthError struct {
	StatusCode int
	URL        string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("认证失败（HTTP %d）: %s", e.StatusCode, e.URL)
}

// GetJSON 带重试的GET+JSON解码。429/5xx按退避重试，401/403立即返回AuthError
func GetJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, retries int, logger *logrus.Logger, out interface{}) error {
	if retries < 0 {
		retries = 0
	}
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			logger.WithField("url", url).Warnf("第%d次重试，退避%s", attempt, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("构建请求失败: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			_ = resp.Body.Close()
			return &AuthError{StatusCode: resp.StatusCode, URL: url}
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, url)
			continue
		case resp.StatusCode != http.StatusOK:
			_ = resp.Body.Close()
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, url)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		if cerr := resp.Body.Close(); cerr != nil {
			logger.WithError(cerr).Warn("关闭响应体失败")
		}
		if err != nil {
			return fmt.Errorf("解析响应失败: %w", err)
		}
		return nil
	}
	return fmt.Errorf("请求%s失败（已重试%d次）: %w", url, retries, lastErr)
}

package zoom

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"SalesPulse/internal/model"
	"SalesPulse/internal/utils/httpclient"
)

// fetchAccessToken account_credentials授权模式换取访问token（server-to-server，无用户交互）
func (a *Adapter) fetchAccessToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "account_credentials")
	form.Set("account_id", a.cfg.AccountID)
	form.Set("client_id", a.cfg.ClientID)
	form.Set("client_secret", a.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("构建token请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求token失败: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			a.logger.Errorf("关闭token响应体失败: %v", err)
		}
	}()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", &httpclient.AuthError{StatusCode: resp.StatusCode, URL: a.cfg.TokenURL}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token接口返回HTTP %d", resp.StatusCode)
	}

	var tok model.ZoomTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("解析token响应失败: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token响应为空")
	}
	return tok.AccessToken, nil
}

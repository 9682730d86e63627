package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"SalesPulse/internal/config"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestGetJSONRetriesOnServerError(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":42}`))
	}))
	defer ts.Close()

	client := NewHTTPClient(&config.ProviderConfig{}, quietLogger())
	var out struct {
		Value int `json:"value"`
	}
	if err := GetJSON(context.Background(), client, ts.URL, nil, 2, quietLogger(), &out); err != nil {
		t.Fatalf("5xx后重试应成功: %v", err)
	}
	if out.Value != 42 {
		t.Fatalf("响应解析错误: %d", out.Value)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("期望2次请求，实际%d", calls)
	}
}

func TestGetJSONAuthErrorNoRetry(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	client := NewHTTPClient(&config.ProviderConfig{}, quietLogger())
	err := GetJSON(context.Background(), client, ts.URL, nil, 3, quietLogger(), &struct{}{})

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("期望AuthError，实际%v", err)
	}
	if authErr.StatusCode != http.StatusForbidden {
		t.Fatalf("状态码错误: %d", authErr.StatusCode)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("认证失败不应重试，实际请求%d次", calls)
	}
}

func TestGetJSONSendsHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client := NewHTTPClient(&config.ProviderConfig{}, quietLogger())
	headers := map[string]string{"Authorization": "Bearer secret"}
	if err := GetJSON(context.Background(), client, ts.URL, headers, 0, quietLogger(), &struct{}{}); err != nil {
		t.Fatalf("请求头未透传: %v", err)
	}
}

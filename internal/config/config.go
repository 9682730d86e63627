package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server    ServerConfig              `mapstructure:"server"`    // 服务器配置
	Postgres  PostgresConfig            `mapstructure:"postgres"`  // PostgreSQL配置
	Team      TeamConfig                `mapstructure:"team"`      // 销售团队配置
	Providers map[string]ProviderConfig `mapstructure:"providers"` // 多数据源独立配置
	Slack     SlackConfig               `mapstructure:"slack"`     // Slack推送配置
	Pipeline  PipelineConfig            `mapstructure:"pipeline"`  // 计算管道配置
}

// ServerConfig 服务器配置（仅 -serve 模式使用）
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// PostgresConfig PostgreSQL数据库配置
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
}

// Representative 单个销售代表配置（名册驱动，新增代表只改配置不改代码）
type Representative struct {
	Name              string   `mapstructure:"name"`               // 规范标识（小写）
	SchedulerID       string   `mapstructure:"scheduler_id"`       // 预约平台用户UUID
	ConferencingEmail string   `mapstructure:"conferencing_email"` // 会议平台账号邮箱
	Aliases           []string `mapstructure:"aliases"`            // 表格中可能出现的别名
}

// TeamConfig 销售团队配置
type TeamConfig struct {
	Timezone        string           `mapstructure:"timezone"`        // 组织统一时区（日期边界以此为准）
	Representatives []Representative `mapstructure:"representatives"` // 代表名册
	ExcludedNames   []string         `mapstructure:"excluded_names"`  // 表格中需要排除的名字（如管理者）
	SkipWeekdays    []string         `mapstructure:"skip_weekdays"`   // 非工作日（如 Sunday），命中则跳过当日计算
}

// ProviderConfig 单个数据源的独立配置
type ProviderConfig struct {
	BaseURL      string `mapstructure:"base_url"`      // API基础地址
	Timeout      int    `mapstructure:"timeout"`       // 请求超时（秒）
	RetryCount   int    `mapstructure:"retry_count"`   // 重试次数
	AuthToken    string `mapstructure:"auth_token"`    // 通用认证Token（Calendly PAT / Sheets Token）
	AccountID    string `mapstructure:"account_id"`    // Zoom专属Account ID
	ClientID     string `mapstructure:"client_id"`     // Zoom专属Client ID
	ClientSecret string `mapstructure:"client_secret"` // Zoom专属Client Secret
	TokenURL     string `mapstructure:"token_url"`     // Zoom OAuth token地址
	OrgID        string `mapstructure:"org_id"`        // Calendly组织UUID
	SheetID      string `mapstructure:"sheet_id"`      // 成交表格ID
	ValueRange   string `mapstructure:"value_range"`   // 表格取数范围（如 A1:Z）
	Proxy        string `mapstructure:"proxy"`         // 代理地址
}

// SlackConfig Slack推送配置
type SlackConfig struct {
	Enabled  bool     `mapstructure:"enabled"`   // 是否启用推送
	BotToken string   `mapstructure:"bot_token"` // Bot Token
	Channels []string `mapstructure:"channels"`  // 接收报告的channel/user ID列表
	APIURL   string   `mapstructure:"api_url"`   // chat.postMessage地址（测试时可替换）
}

// PipelineConfig 计算管道配置
type PipelineConfig struct {
	StoreRetryAttempts int           `mapstructure:"store_retry_attempts"` // 指标落库重试次数（上限）
	StoreRetryBackoff  time.Duration `mapstructure:"store_retry_backoff"`  // 重试间隔
	SourceTimeout      time.Duration `mapstructure:"source_timeout"`       // 单数据源整体超时兜底
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	// 2. 读取 config.yaml
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	viper.SetTypeByDefaultValue(true)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)

	// 4. 兜底默认值
	applyDefaults(&cfg)
	return &cfg, nil
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if s, ok := cfg.Providers["scheduler"]; ok {
		if v := os.Getenv("CALENDLY_PAT"); v != "" {
			s.AuthToken = v
		}
		if v := os.Getenv("CALENDLY_ORG_UUID"); v != "" {
			s.OrgID = v
		}
		cfg.Providers["scheduler"] = s
	}
	if z, ok := cfg.Providers["conferencing"]; ok {
		if v := os.Getenv("ZOOM_ACCOUNT_ID"); v != "" {
			z.AccountID = v
		}
		if v := os.Getenv("ZOOM_CLIENT_ID"); v != "" {
			z.ClientID = v
		}
		if v := os.Getenv("ZOOM_CLIENT_SECRET"); v != "" {
			z.ClientSecret = v
		}
		cfg.Providers["conferencing"] = z
	}
	if d, ok := cfg.Providers["deals"]; ok {
		if v := os.Getenv("SHEETS_AUTH_TOKEN"); v != "" {
			d.AuthToken = v
		}
		if v := os.Getenv("DEALS_SHEET_ID"); v != "" {
			d.SheetID = v
		}
		cfg.Providers["deals"] = d
	}
	if v := os.Getenv("SLACK_BOT_TOKEN"); v != "" {
		cfg.Slack.BotToken = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
}

// applyDefaults 关键参数缺省兜底
func applyDefaults(cfg *Config) {
	if cfg.Team.Timezone == "" {
		cfg.Team.Timezone = "America/New_York"
	}
	if cfg.Pipeline.StoreRetryAttempts <= 0 {
		cfg.Pipeline.StoreRetryAttempts = 3
	}
	if cfg.Pipeline.StoreRetryBackoff <= 0 {
		cfg.Pipeline.StoreRetryBackoff = 2 * time.Second
	}
	if cfg.Pipeline.SourceTimeout <= 0 {
		cfg.Pipeline.SourceTimeout = 30 * time.Second
	}
	if cfg.Slack.APIURL == "" {
		cfg.Slack.APIURL = "https://slack.com/api/chat.postMessage"
	}
}

// Location 解析组织时区（失败时退回UTC，由调用方记录告警）
func (t *TeamConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC, fmt.Errorf("解析时区%s失败: %w", t.Timezone, err)
	}
	return loc, nil
}

// RosterNames 名册中全部代表的规范标识
func (t *TeamConfig) RosterNames() []string {
	names := make([]string, 0, len(t.Representatives))
	for _, r := range t.Representatives {
		names = append(names, r.Name)
	}
	return names
}

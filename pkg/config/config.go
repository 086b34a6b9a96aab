package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Request  RequestConfig  `json:"request"`
	Search   SearchConfig   `json:"search"`
	Session  SessionConfig  `json:"session"`
	Report   ReportConfig   `json:"report"`
	Render   RenderConfig   `json:"render"`
	Channels ChannelsConfig `json:"channels"`
	Logging  LoggingConfig  `json:"logging"`

	// DataDir holds the blob cache and the credential store.
	DataDir string `json:"data_dir" env:"GALBOX_DATA_DIR"`
}

type RequestConfig struct {
	TimeoutSeconds int    `json:"timeout_seconds" env:"GALBOX_REQUEST_TIMEOUT_SECONDS"`
	RetryCount     int    `json:"retry_count" env:"GALBOX_REQUEST_RETRY_COUNT"`
	RetryBackoffMS int    `json:"retry_backoff_ms" env:"GALBOX_REQUEST_RETRY_BACKOFF_MS"`
	UserAgent      string `json:"user_agent" env:"GALBOX_REQUEST_USER_AGENT"`
}

type SearchConfig struct {
	// ProducerVNs bounds the per-producer top-rated title fan-out.
	ProducerVNs int `json:"producer_vns" env:"GALBOX_SEARCH_PRODUCER_VNS"`
	// FindMaxLookups bounds cross-reference lookups per detected region.
	FindMaxLookups int `json:"find_max_lookups" env:"GALBOX_SEARCH_FIND_MAX_LOOKUPS"`
	// RecommendPageSize is the candidate page size of the recommend session.
	RecommendPageSize int  `json:"recommend_page_size" env:"GALBOX_SEARCH_RECOMMEND_PAGE_SIZE"`
	EnableNSFW        bool `json:"enable_nsfw" env:"GALBOX_SEARCH_ENABLE_NSFW"`
	// CharacterOptions gates optional character fields (a-f, original plugin
	// convention: a=blood type, b=height/weight, c=gender, d=real gender,
	// e=measurements, f=cup).
	CharacterOptions []string `json:"character_options" env:"GALBOX_SEARCH_CHARACTER_OPTIONS"`
}

type SessionConfig struct {
	WaitSeconds int `json:"wait_seconds" env:"GALBOX_SESSION_WAIT_SECONDS"`
}

type ReportConfig struct {
	FreshMinutes int    `json:"fresh_minutes" env:"GALBOX_REPORT_FRESH_MINUTES"`
	WarmHours    int    `json:"warm_hours" env:"GALBOX_REPORT_WARM_HOURS"`
	CronExpr     string `json:"cron_expr" env:"GALBOX_REPORT_CRON_EXPR"`
}

type RenderConfig struct {
	// Endpoint of the html-to-image render service.
	Endpoint string `json:"endpoint" env:"GALBOX_RENDER_ENDPOINT"`
	Type     string `json:"type" env:"GALBOX_RENDER_TYPE"`
	Quality  int    `json:"quality" env:"GALBOX_RENDER_QUALITY"`
}

type ChannelsConfig struct {
	OneBot   OneBotConfig   `json:"onebot"`
	Telegram TelegramConfig `json:"telegram"`
}

type OneBotConfig struct {
	Enabled bool   `json:"enabled" env:"GALBOX_CHANNELS_ONEBOT_ENABLED"`
	WSUrl   string `json:"ws_url" env:"GALBOX_CHANNELS_ONEBOT_WS_URL"`
	Token   string `json:"token" env:"GALBOX_CHANNELS_ONEBOT_TOKEN"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled" env:"GALBOX_CHANNELS_TELEGRAM_ENABLED"`
	Token   string `json:"token" env:"GALBOX_CHANNELS_TELEGRAM_TOKEN"`
}

type LoggingConfig struct {
	Level string `json:"level" env:"GALBOX_LOGGING_LEVEL"`
	File  string `json:"file" env:"GALBOX_LOGGING_FILE"`
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Request: RequestConfig{
			TimeoutSeconds: 30,
			RetryCount:     3,
			RetryBackoffMS: 500,
		},
		Search: SearchConfig{
			ProducerVNs:       10,
			FindMaxLookups:    3,
			RecommendPageSize: 10,
			CharacterOptions:  []string{"a", "b", "c"},
		},
		Session: SessionConfig{WaitSeconds: 30},
		Report: ReportConfig{
			FreshMinutes: 30,
			WarmHours:    24 * 14,
			CronExpr:     "0 9 * * *",
		},
		Render: RenderConfig{
			Type:    "jpeg",
			Quality: 100,
		},
		Logging: LoggingConfig{Level: "info"},
		DataDir: filepath.Join(home, ".galbox"),
	}
}

// LoadConfig reads the JSON config file, then applies environment overrides.
// A missing file is not an error: defaults plus env apply.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env overrides: %w", err)
	}

	return cfg, nil
}

func (c *Config) CachePath() string {
	return filepath.Join(c.DataDir, "cache")
}

func (c *Config) CredsPath() string {
	return filepath.Join(c.DataDir, "data")
}

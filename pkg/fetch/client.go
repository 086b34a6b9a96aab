// Package fetch owns the shared outbound HTTP stack: one resty client with
// the configured timeout and bounded fixed-backoff retry, plus the image
// downloader that degrades to a placeholder instead of failing a payload.
package fetch

import (
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/PyuraMazo/galgame-box/pkg/config"
)

// NewClient builds the process-wide HTTP client. Constructed once at startup
// and handed to every API adapter; transient failures retry up to the
// configured count with a short fixed backoff.
func NewClient(cfg config.RequestConfig) *resty.Client {
	client := resty.New().
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(time.Duration(cfg.RetryBackoffMS) * time.Millisecond).
		SetRetryMaxWaitTime(time.Duration(cfg.RetryBackoffMS) * time.Millisecond).
		SetHeader("Content-Type", "application/json")

	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	return client
}

// Package render is the boundary to the html-to-image collaborator: template
// selection per command kind plus the HTTP client that turns a template and a
// JSON payload into an image reference.
package render

import (
	"context"
	"embed"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/PyuraMazo/galgame-box/pkg/apierr"
	"github.com/PyuraMazo/galgame-box/pkg/command"
	"github.com/PyuraMazo/galgame-box/pkg/config"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateNames = map[command.Kind]string{
	command.KindVN:        "list.html",
	command.KindCharacter: "list.html",
	command.KindProducer:  "producer.html",
	command.KindRandom:    "detail.html",
	command.KindRecommend: "detail.html",
	command.KindFind:      "list.html",
	command.KindReport:    "report.html",
}

// TemplateFor returns the template text for the effective command kind.
func TemplateFor(kind command.Kind) (string, error) {
	name, ok := templateNames[kind]
	if !ok {
		return "", fmt.Errorf("no template for command kind %q", kind)
	}
	data, err := templateFS.ReadFile("templates/" + name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Renderer turns a template and a JSON-serializable payload into an image
// reference the channel adapters can deliver.
type Renderer interface {
	Render(ctx context.Context, templateText string, payload any) (string, error)
}

// HTTPRenderer posts to a render service and expects {"url": "..."} back.
type HTTPRenderer struct {
	http     *resty.Client
	endpoint string
	options  map[string]any
}

func NewHTTPRenderer(http *resty.Client, cfg config.RenderConfig) *HTTPRenderer {
	return &HTTPRenderer{
		http:     http,
		endpoint: cfg.Endpoint,
		options: map[string]any{
			"type":    cfg.Type,
			"quality": cfg.Quality,
		},
	}
}

func (r *HTTPRenderer) Render(ctx context.Context, templateText string, payload any) (string, error) {
	if r.endpoint == "" {
		return "", fmt.Errorf("render endpoint not configured")
	}

	resp, err := r.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"tmpl":    templateText,
			"data":    payload,
			"options": r.options,
		}).
		Post(r.endpoint)
	if err != nil {
		return "", apierr.Wrap(apierr.Network, err)
	}
	if resp.IsError() {
		return "", apierr.Newf(apierr.Network, "渲染服务请求失败（HTTP %d）", resp.StatusCode())
	}

	url := gjson.GetBytes(resp.Body(), "url").String()
	if url == "" {
		return "", apierr.New(apierr.EmptyResponse)
	}
	return url, nil
}

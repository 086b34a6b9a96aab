// Package animetrace wraps the AnimeTrace character-recognition API.
package animetrace

import (
	"context"
	"encoding/json"

	"github.com/go-resty/resty/v2"

	"github.com/PyuraMazo/galgame-box/pkg/apierr"
)

const defaultAPIURL = "https://api.animetrace.com/v1/search"

// Detection models. The galgame model is tried first; the generic anime
// model is the fallback when the service reports StatusOverloaded.
type Model string

const (
	ModelGame  Model = "full_game_model_kira"
	ModelAnime Model = "anime_model_lovelive"
)

// StatusOverloaded is the application code the service returns when the
// requested model is overloaded or could not recognize the image.
const StatusOverloaded = 17799

// Detection is one recognized region of the submitted image.
type Detection struct {
	Box          []float64   `json:"box"`
	NotConfident bool        `json:"not_confident"`
	Characters   []Candidate `json:"character"`
}

// Candidate pairs a character name with the work it belongs to.
type Candidate struct {
	Work      string `json:"work"`
	Character string `json:"character"`
}

type Response struct {
	Code int         `json:"code"`
	Data []Detection `json:"data"`
	AI   bool        `json:"ai"`
}

type Client struct {
	http   *resty.Client
	apiURL string
}

func NewClient(http *resty.Client) *Client {
	return &Client{http: http, apiURL: defaultAPIURL}
}

func (c *Client) SetAPIURL(u string) { c.apiURL = u }

// Detect submits an image URL for recognition with the given model.
// A documented non-success application code surfaces as a RemoteCode tip
// the caller inspects with an ordinary conditional; no other control flow.
func (c *Client) Detect(ctx context.Context, imageURL string, model Model) (*Response, error) {
	payload := map[string]any{
		"model":     string(model),
		"ai_detect": 1,
		"url":       imageURL,
	}

	resp, err := c.http.R().SetContext(ctx).SetBody(payload).Post(c.apiURL)
	if err != nil {
		return nil, apierr.Wrap(apierr.Network, err)
	}
	if resp.IsError() {
		return nil, apierr.Newf(apierr.Network, "AnimeTrace 请求失败（HTTP %d）", resp.StatusCode())
	}

	var out Response
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, apierr.Wrap(apierr.EmptyResponse, err)
	}
	if out.Code != 200 && out.Code != 0 {
		return nil, apierr.Remote(out.Code)
	}
	return &out, nil
}

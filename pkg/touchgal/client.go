// Package touchgal wraps the TouchGal resource site: keyword/tag search, the
// random pick, downloadable resource listings and the game-page scraper.
package touchgal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/PyuraMazo/galgame-box/pkg/apierr"
)

const defaultBaseURL = "https://www.touchgal.top"

// nsfwCookie is the site's client-side preference store key.
const nsfwCookie = "kun-patch-setting-store|state|data|kunNsfwEnable"

type Client struct {
	http    *resty.Client
	baseURL string
	nsfw    string
}

func NewClient(http *resty.Client, enableNSFW bool) *Client {
	nsfw := "sfw"
	if enableNSFW {
		nsfw = "all"
	}
	return &Client{http: http, baseURL: defaultBaseURL, nsfw: nsfw}
}

func (c *Client) SetBaseURL(u string) { c.baseURL = u }

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx).SetCookie(&http.Cookie{Name: nsfwCookie, Value: c.nsfw})
}

type searchQueryItem struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

func (c *Client) search(ctx context.Context, items []searchQueryItem, page, limit int) ([]Game, int, error) {
	queryString, _ := json.Marshal(items)
	payload := map[string]any{
		"queryString": string(queryString),
		"limit":       limit,
		"searchOption": map[string]any{
			"searchInIntroduction": false,
			"searchInAlias":        true,
			"searchInTag":          false,
		},
		"page":             page,
		"selectedType":     "all",
		"selectedLanguage": "all",
		"selectedPlatform": "all",
		"sortField":        "resource_update_time",
		"sortOrder":        "desc",
		"selectedYears":    []string{"all"},
		"selectedMonths":   []string{"all"},
	}

	resp, err := c.request(ctx).SetBody(payload).Post(c.baseURL + "/api/search/")
	if err != nil {
		return nil, 0, apierr.Wrap(apierr.Network, err)
	}
	if resp.IsError() {
		return nil, 0, apierr.Newf(apierr.Network, "TouchGal 请求失败（HTTP %d）", resp.StatusCode())
	}

	body := resp.Body()
	games := gjson.GetBytes(body, "galgames")
	total := gjson.GetBytes(body, "total")
	if !games.Exists() || !total.Exists() {
		return nil, 0, apierr.New(apierr.EmptyResponse)
	}

	var out []Game
	if err := json.Unmarshal([]byte(games.Raw), &out); err != nil {
		return nil, 0, apierr.Wrap(apierr.EmptyResponse, err)
	}
	return out, int(total.Int()), nil
}

// Search resolves a keyword to games plus the site-wide match total.
func (c *Client) Search(ctx context.Context, keyword string) ([]Game, int, error) {
	return c.search(ctx, []searchQueryItem{{Type: "keyword", Name: keyword}}, 1, 10)
}

// SearchByTags fetches one page of tag-matched candidates for the
// recommendation session.
func (c *Client) SearchByTags(ctx context.Context, tags []string, page, limit int) ([]Game, int, error) {
	items := make([]searchQueryItem, 0, len(tags))
	for _, t := range tags {
		items = append(items, searchQueryItem{Type: "tag", Name: t})
	}
	return c.search(ctx, items, page, limit)
}

// Random returns the unique id of a random game.
func (c *Client) Random(ctx context.Context) (string, error) {
	resp, err := c.request(ctx).Get(c.baseURL + "/api/home/random")
	if err != nil {
		return "", apierr.Wrap(apierr.Network, err)
	}
	if resp.IsError() {
		return "", apierr.Newf(apierr.Network, "TouchGal 请求失败（HTTP %d）", resp.StatusCode())
	}

	uniqueID := gjson.GetBytes(resp.Body(), "uniqueId").String()
	if uniqueID == "" {
		return "", apierr.New(apierr.EmptyResponse)
	}
	return uniqueID, nil
}

// Page fetches a game page's HTML for the details scraper.
func (c *Client) Page(ctx context.Context, uniqueID string) (string, error) {
	resp, err := c.request(ctx).Get(c.baseURL + "/" + uniqueID)
	if err != nil {
		return "", apierr.Wrap(apierr.Network, err)
	}
	if resp.IsError() {
		return "", apierr.Newf(apierr.Network, "TouchGal 请求失败（HTTP %d）", resp.StatusCode())
	}
	return string(resp.Body()), nil
}

// Resources lists the downloadable entries of a game.
func (c *Client) Resources(ctx context.Context, gameID int) ([]Resource, error) {
	resp, err := c.request(ctx).Get(fmt.Sprintf("%s/api/patch/resource?patchId=%d", c.baseURL, gameID))
	if err != nil {
		return nil, apierr.Wrap(apierr.Network, err)
	}
	if resp.IsError() {
		return nil, apierr.Newf(apierr.Network, "TouchGal 请求失败（HTTP %d）", resp.StatusCode())
	}

	var out []Resource
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, apierr.Wrap(apierr.EmptyResponse, err)
	}
	return out, nil
}

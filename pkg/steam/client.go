// Package steam wraps the Steam Web API calls behind the account binding and
// the periodic library report.
package steam

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/PyuraMazo/galgame-box/pkg/apierr"
)

const defaultBaseURL = "http://api.steampowered.com"

// NoAchievements is rendered for games without an achievement system.
const NoAchievements = "-无成就系统-"

type Game struct {
	AppID           int    `json:"appid"`
	Name            string `json:"name"`
	PlaytimeForever int    `json:"playtime_forever"`
	LastPlayed      int64  `json:"rtime_last_played"`
}

type OwnedGames struct {
	GameCount int    `json:"game_count"`
	Games     []Game `json:"games"`
}

type Profile struct {
	SteamID     string `json:"steamid"`
	PersonaName string `json:"personaname"`
	AvatarFull  string `json:"avatarfull"`
	LastLogoff  int64  `json:"lastlogoff"`
	TimeCreated int64  `json:"timecreated"`
}

type Client struct {
	http    *resty.Client
	baseURL string
}

func NewClient(http *resty.Client) *Client {
	return &Client{http: http, baseURL: defaultBaseURL}
}

func (c *Client) SetBaseURL(u string) { c.baseURL = u }

func (c *Client) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).SetQueryParams(params).Get(c.baseURL + path)
	if err != nil {
		return nil, apierr.Wrap(apierr.Network, err)
	}
	if resp.IsError() {
		return nil, apierr.Newf(apierr.Network, "Steam 请求失败（HTTP %d）", resp.StatusCode())
	}
	return resp.Body(), nil
}

// Owned lists every game the account owns, free titles included.
func (c *Client) Owned(ctx context.Context, key, steamID string) (*OwnedGames, error) {
	body, err := c.get(ctx, "/IPlayerService/GetOwnedGames/v0001/", map[string]string{
		"key":                       key,
		"steamid":                   steamID,
		"include_appinfo":           "1",
		"include_played_free_games": "1",
	})
	if err != nil {
		return nil, err
	}

	env := gjson.GetBytes(body, "response")
	if !env.Exists() {
		return nil, apierr.New(apierr.EmptyResponse)
	}
	var out OwnedGames
	if err := json.Unmarshal([]byte(env.Raw), &out); err != nil {
		return nil, apierr.Wrap(apierr.EmptyResponse, err)
	}
	return &out, nil
}

// GetProfile validates a (key, steamID) pair and returns the public profile.
// The bind flow treats any failure here as invalid input.
func (c *Client) GetProfile(ctx context.Context, key, steamID string) (*Profile, error) {
	body, err := c.get(ctx, "/ISteamUser/GetPlayerSummaries/v0002/", map[string]string{
		"key":      key,
		"steamids": steamID,
	})
	if err != nil {
		return nil, err
	}

	player := gjson.GetBytes(body, "response.players.0")
	if !player.Exists() {
		return nil, apierr.New(apierr.EmptyResponse)
	}
	var out Profile
	if err := json.Unmarshal([]byte(player.Raw), &out); err != nil {
		return nil, apierr.Wrap(apierr.EmptyResponse, err)
	}
	return &out, nil
}

// Achievements reports the completion ratio for one game as "0.43", or the
// NoAchievements placeholder when the game has no achievement system.
func (c *Client) Achievements(ctx context.Context, key, steamID string, appID int) (string, error) {
	body, err := c.get(ctx, "/ISteamUserStats/GetPlayerAchievements/v0001/", map[string]string{
		"key":     key,
		"steamid": steamID,
		"appid":   fmt.Sprintf("%d", appID),
	})
	if err != nil {
		return "", err
	}

	stats := gjson.GetBytes(body, "playerstats")
	if !stats.Get("success").Bool() {
		return NoAchievements, nil
	}

	achievements := stats.Get("achievements").Array()
	if len(achievements) == 0 {
		return NoAchievements, nil
	}
	done := 0
	for _, a := range achievements {
		if a.Get("achieved").Int() == 1 {
			done++
		}
	}
	return fmt.Sprintf("%.2f", float64(done)/float64(len(achievements))), nil
}

// Recent lists games played in the last two weeks.
func (c *Client) Recent(ctx context.Context, key, steamID string) ([]Game, error) {
	body, err := c.get(ctx, "/IPlayerService/GetRecentlyPlayedGames/v0001/", map[string]string{
		"key":     key,
		"steamid": steamID,
	})
	if err != nil {
		return nil, err
	}

	games := gjson.GetBytes(body, "response.games")
	if !games.Exists() {
		return nil, nil
	}
	var out []Game
	if err := json.Unmarshal([]byte(games.Raw), &out); err != nil {
		return nil, apierr.Wrap(apierr.EmptyResponse, err)
	}
	return out, nil
}

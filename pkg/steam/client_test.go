package steam

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PyuraMazo/galgame-box/pkg/apierr"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(resty.New())
	c.SetBaseURL(srv.URL)
	return c
}

func TestOwned(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/IPlayerService/GetOwnedGames/v0001/", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "KEY", q.Get("key"))
		assert.Equal(t, "765", q.Get("steamid"))
		assert.Equal(t, "1", q.Get("include_appinfo"))
		assert.Equal(t, "1", q.Get("include_played_free_games"))

		fmt.Fprint(w, `{"response": {"game_count": 2, "games": [
			{"appid": 10, "name": "CLANNAD", "playtime_forever": 1200, "rtime_last_played": 1700000000},
			{"appid": 20, "name": "planetarian", "playtime_forever": 0}
		]}}`)
	})

	owned, err := c.Owned(context.Background(), "KEY", "765")
	require.NoError(t, err)
	assert.Equal(t, 2, owned.GameCount)
	require.Len(t, owned.Games, 2)
	assert.Equal(t, "CLANNAD", owned.Games[0].Name)
	assert.Equal(t, 1200, owned.Games[0].PlaytimeForever)
}

func TestOwnedEmptyEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})
	_, err := c.Owned(context.Background(), "KEY", "765")
	assert.True(t, apierr.IsKind(err, apierr.EmptyResponse))
}

func TestGetProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ISteamUser/GetPlayerSummaries/v0002/", r.URL.Path)
		assert.Equal(t, "765", r.URL.Query().Get("steamids"))
		fmt.Fprint(w, `{"response": {"players": [
			{"steamid": "765", "personaname": "nagisa", "avatarfull": "https://img/a.jpg"}
		]}}`)
	})

	p, err := c.GetProfile(context.Background(), "KEY", "765")
	require.NoError(t, err)
	assert.Equal(t, "nagisa", p.PersonaName)
}

func TestGetProfileUnknownAccount(t *testing.T) {
	// Steam answers an unknown id with an empty player list, not an error
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response": {"players": []}}`)
	})
	_, err := c.GetProfile(context.Background(), "KEY", "765")
	assert.True(t, apierr.IsKind(err, apierr.EmptyResponse))
}

func TestAchievementsRatio(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("appid"))
		fmt.Fprint(w, `{"playerstats": {"success": true, "achievements": [
			{"achieved": 1}, {"achieved": 1}, {"achieved": 0}, {"achieved": 1}
		]}}`)
	})

	ratio, err := c.Achievements(context.Background(), "KEY", "765", 10)
	require.NoError(t, err)
	assert.Equal(t, "0.75", ratio)
}

func TestAchievementsWithoutSystem(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"playerstats": {"success": false, "error": "Requested app has no stats"}}`)
	})
	ratio, err := c.Achievements(context.Background(), "KEY", "765", 10)
	require.NoError(t, err)
	assert.Equal(t, NoAchievements, ratio)

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"playerstats": {"success": true, "achievements": []}}`)
	})
	ratio, err = c.Achievements(context.Background(), "KEY", "765", 10)
	require.NoError(t, err)
	assert.Equal(t, NoAchievements, ratio)
}

func TestRecent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/IPlayerService/GetRecentlyPlayedGames/v0001/", r.URL.Path)
		fmt.Fprint(w, `{"response": {"total_count": 1, "games": [
			{"appid": 10, "name": "CLANNAD", "playtime_forever": 1260}
		]}}`)
	})

	games, err := c.Recent(context.Background(), "KEY", "765")
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, 10, games[0].AppID)
}

func TestRecentNothingPlayed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response": {"total_count": 0}}`)
	})
	games, err := c.Recent(context.Background(), "KEY", "765")
	require.NoError(t, err)
	assert.Empty(t, games)
}

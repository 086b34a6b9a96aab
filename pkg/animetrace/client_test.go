package animetrace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/PyuraMazo/galgame-box/pkg/apierr"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(resty.New())
	c.SetAPIURL(srv.URL)
	return c
}

func TestDetect(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		assert.Equal(t, string(ModelGame), gjson.GetBytes(raw, "model").String())
		assert.Equal(t, "https://img/scene.jpg", gjson.GetBytes(raw, "url").String())
		assert.EqualValues(t, 1, gjson.GetBytes(raw, "ai_detect").Int())

		fmt.Fprint(w, `{"code": 200, "ai": false, "data": [
			{"box": [0.1, 0.2, 0.5, 0.9], "character": [
				{"work": "CLANNAD", "character": "古河渚"},
				{"work": "CLANNAD", "character": "藤林杏"}
			]}
		]}`)
	})

	resp, err := c.Detect(context.Background(), "https://img/scene.jpg", ModelGame)
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	require.Len(t, resp.Data[0].Characters, 2)
	assert.Equal(t, "古河渚", resp.Data[0].Characters[0].Character)
	assert.Equal(t, "CLANNAD", resp.Data[0].Characters[0].Work)
}

func TestDetectOverloadedCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code": 17799}`)
	})

	_, err := c.Detect(context.Background(), "https://img/x.jpg", ModelGame)
	require.Error(t, err)

	// callers branch the model fallback on the exact code
	var tip *apierr.Tip
	require.True(t, errors.As(err, &tip))
	assert.Equal(t, apierr.RemoteCode, tip.Kind)
	assert.Equal(t, StatusOverloaded, tip.Code)
}

func TestDetectDocumentedCodeMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code": 17722}`)
	})
	_, err := c.Detect(context.Background(), "https://img/x.jpg", ModelAnime)
	assert.Equal(t, "未检测到角色", apierr.UserMessage(err))
}

func TestDetectTransportErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.Detect(context.Background(), "https://img/x.jpg", ModelGame)
	assert.True(t, apierr.IsKind(err, apierr.Network))

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json")
	})
	_, err = c.Detect(context.Background(), "https://img/x.jpg", ModelGame)
	assert.True(t, apierr.IsKind(err, apierr.EmptyResponse))
}

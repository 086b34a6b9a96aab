package fetch

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PyuraMazo/galgame-box/pkg/apierr"
	"github.com/PyuraMazo/galgame-box/pkg/imaging"
)

func serveImage(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cover.png":
			_ = png.Encode(w, image.NewRGBA(image.Rect(0, 0, 600, 400)))
		case "/artifact.jpg":
			_ = jpeg.Encode(w, image.NewRGBA(image.Rect(0, 0, 4, 4)), nil)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchConvertsToJPEG(t *testing.T) {
	srv := serveImage(t)
	f := NewImageFetcher(resty.New())

	data := f.Fetch(context.Background(), srv.URL+"/cover.png")
	_, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestFetchDegradesToPlaceholder(t *testing.T) {
	srv := serveImage(t)
	f := NewImageFetcher(resty.New())

	assert.Equal(t, imaging.Placeholder(), f.Fetch(context.Background(), srv.URL+"/missing.png"))
	assert.Equal(t, imaging.Placeholder(), f.Fetch(context.Background(), "not-a-url"))
}

func TestFetchStrict(t *testing.T) {
	srv := serveImage(t)
	f := NewImageFetcher(resty.New())

	data, err := f.FetchStrict(context.Background(), srv.URL+"/artifact.jpg")
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	// a failed artifact download is an error, never the placeholder
	_, err = f.FetchStrict(context.Background(), srv.URL+"/missing.jpg")
	assert.True(t, apierr.IsKind(err, apierr.Network))
}

func TestFetchThumbB64(t *testing.T) {
	srv := serveImage(t)
	f := NewImageFetcher(resty.New())

	uri := f.FetchThumbB64(context.Background(), srv.URL+"/cover.png", 320)
	require.True(t, strings.HasPrefix(uri, "data:image/jpeg;base64,"))

	img := decodeDataURI(t, uri)
	assert.Equal(t, 320, img.Bounds().Dx())
}

func TestB64(t *testing.T) {
	assert.Equal(t, "data:image/jpeg;base64,QUJD", B64([]byte("ABC")))
}

func decodeDataURI(t *testing.T, uri string) image.Image {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	img, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

package fetch

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/PyuraMazo/galgame-box/pkg/apierr"
	"github.com/PyuraMazo/galgame-box/pkg/imaging"
	"github.com/PyuraMazo/galgame-box/pkg/logger"
)

// ImageFetcher downloads cover/preview images. A failed download degrades to
// the placeholder image so one broken cover never aborts a whole payload.
type ImageFetcher struct {
	client *resty.Client
}

func NewImageFetcher(client *resty.Client) *ImageFetcher {
	return &ImageFetcher{client: client}
}

// Fetch returns JPEG bytes for url, or the placeholder on any failure.
func (f *ImageFetcher) Fetch(ctx context.Context, url string) []byte {
	if !strings.HasPrefix(url, "http") {
		return imaging.Placeholder()
	}

	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil || resp.IsError() {
		logger.WarnC("fetch", "image download failed: "+url)
		return imaging.Placeholder()
	}

	jpg, err := imaging.ToJPEG(resp.Body())
	if err != nil {
		logger.WarnC("fetch", "image convert failed: "+url)
		return imaging.Placeholder()
	}
	return jpg
}

// FetchStrict returns the bytes at url or an error. The render pipeline uses
// it for its own artifacts, where substituting the placeholder would cache a
// broken reply.
func (f *ImageFetcher) FetchStrict(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, apierr.Wrap(apierr.Network, err)
	}
	if resp.IsError() {
		return nil, apierr.Newf(apierr.Network, "图片下载失败（HTTP %d）", resp.StatusCode())
	}
	return resp.Body(), nil
}

// FetchB64 returns the image as a data URI for inline template use.
func (f *ImageFetcher) FetchB64(ctx context.Context, url string) string {
	return B64(f.Fetch(ctx, url))
}

// FetchThumbB64 returns a downscaled preview as a data URI.
func (f *ImageFetcher) FetchThumbB64(ctx context.Context, url string, maxSide int) string {
	data := f.Fetch(ctx, url)
	if thumb, err := imaging.Thumbnail(data, maxSide); err == nil {
		data = thumb
	}
	return B64(data)
}

func B64(jpg []byte) string {
	return fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(jpg))
}

// Package vndb wraps the VNDB kana API: keyword/id lookups for visual
// novels, characters and producers, plus the per-producer top-rated title
// fan-out.
package vndb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"

	"github.com/PyuraMazo/galgame-box/pkg/apierr"
)

const defaultBaseURL = "https://api.vndb.org/kana"

// Field selections per endpoint, matching what the shaping routines read.
const (
	vnFields        = "id,average,rating,released,length_minutes,platforms,aliases,developers{id,original,name},titles{lang,title,official},image{url},alttitle,title"
	characterFields = "id,name,aliases,sex,birthday,waist,hips,bust,blood_type,weight,height,cup,original,image{url},vns{id,alttitle,title}"
	producerFields  = "id,name,original,aliases,lang,type"
	producerVNField = "id,alttitle,title,released,rating,image{url}"
	findFields      = "id,name,original,image{url},vns{id,alttitle,title}"
)

type Client struct {
	http        *resty.Client
	baseURL     string
	producerVNs int
}

func NewClient(http *resty.Client, producerVNs int) *Client {
	return &Client{http: http, baseURL: defaultBaseURL, producerVNs: producerVNs}
}

// SetBaseURL points the client at a different endpoint. Tests use it.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

type envelope struct {
	Results json.RawMessage `json:"results"`
	More    bool            `json:"more"`
}

// query posts one kana query and decodes the results array into out.
func (c *Client) query(ctx context.Context, endpoint string, payload map[string]any, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(c.baseURL + "/" + endpoint)
	if err != nil {
		return apierr.Wrap(apierr.Network, err)
	}
	if resp.IsError() {
		return apierr.Newf(apierr.Network, "VNDB 请求失败（HTTP %d）", resp.StatusCode())
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil || env.Results == nil {
		return apierr.New(apierr.EmptyResponse)
	}
	if err := json.Unmarshal(env.Results, out); err != nil {
		return apierr.Wrap(apierr.EmptyResponse, err)
	}
	return nil
}

func searchPayload(keyword, fields string) map[string]any {
	return map[string]any{
		"filters": []any{"search", "=", keyword},
		"fields":  fields,
	}
}

func idPayload(id, fields string) map[string]any {
	return map[string]any{
		"filters": []any{"id", "=", id},
		"fields":  fields,
	}
}

func (c *Client) searchVN(ctx context.Context, payload map[string]any) ([]VN, error) {
	var vns []VN
	if err := c.query(ctx, "vn", payload, &vns); err != nil {
		return nil, err
	}
	if len(vns) == 0 {
		return nil, apierr.New(apierr.NoResult)
	}
	return vns, nil
}

// SearchVN resolves a keyword to visual novels.
func (c *Client) SearchVN(ctx context.Context, keyword string) ([]VN, error) {
	return c.searchVN(ctx, searchPayload(keyword, vnFields))
}

// VNByID resolves a single "v<digits>" id.
func (c *Client) VNByID(ctx context.Context, id string) ([]VN, error) {
	return c.searchVN(ctx, idPayload(id, vnFields))
}

func (c *Client) searchCharacter(ctx context.Context, payload map[string]any) ([]Character, error) {
	var chars []Character
	if err := c.query(ctx, "character", payload, &chars); err != nil {
		return nil, err
	}
	if len(chars) == 0 {
		return nil, apierr.New(apierr.NoResult)
	}
	return chars, nil
}

func (c *Client) SearchCharacter(ctx context.Context, keyword string) ([]Character, error) {
	return c.searchCharacter(ctx, searchPayload(keyword, characterFields))
}

func (c *Client) CharacterByID(ctx context.Context, id string) ([]Character, error) {
	return c.searchCharacter(ctx, idPayload(id, characterFields))
}

// CharacterInWork cross-references one recognized character name against the
// work it was detected in. At most one result; an empty slice means no
// record, which the caller renders as a placeholder rather than dropping.
func (c *Client) CharacterInWork(ctx context.Context, character, work string) ([]Character, error) {
	payload := map[string]any{
		"filters": []any{"and",
			[]any{"search", "=", character},
			[]any{"vn", "=", []any{"search", "=", work}},
		},
		"fields":  findFields,
		"results": 1,
	}
	var chars []Character
	if err := c.query(ctx, "character", payload, &chars); err != nil {
		return nil, err
	}
	return chars, nil
}

func (c *Client) searchProducer(ctx context.Context, payload map[string]any) ([]Producer, [][]VN, error) {
	var pros []Producer
	if err := c.query(ctx, "producer", payload, &pros); err != nil {
		return nil, nil, err
	}
	if len(pros) == 0 {
		return nil, nil, apierr.New(apierr.NoResult)
	}

	// One sub-request per producer for its top-rated titles. Results are
	// zipped back positionally: vns[i] always belongs to pros[i] no matter
	// which request finishes first.
	vns := make([][]VN, len(pros))
	g, gctx := errgroup.WithContext(ctx)
	for i, pro := range pros {
		g.Go(func() error {
			payload := map[string]any{
				"filters": []any{"developer", "=", []any{"id", "=", pro.ID}},
				"fields":  producerVNField,
				"sort":    "rating",
				"reverse": true,
				"results": c.producerVNs,
			}
			var top []VN
			if err := c.query(gctx, "vn", payload, &top); err != nil {
				return fmt.Errorf("titles of %s: %w", pro.ID, err)
			}
			vns[i] = top
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return pros, vns, nil
}

// SearchProducer resolves a keyword to producers, each paired with its
// top-rated titles.
func (c *Client) SearchProducer(ctx context.Context, keyword string) ([]Producer, [][]VN, error) {
	return c.searchProducer(ctx, searchPayload(keyword, producerFields))
}

func (c *Client) ProducerByID(ctx context.Context, id string) ([]Producer, [][]VN, error) {
	return c.searchProducer(ctx, idPayload(id, producerFields))
}

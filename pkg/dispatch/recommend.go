package dispatch

import (
	"context"
	"strings"

	"github.com/PyuraMazo/galgame-box/pkg/apierr"
	"github.com/PyuraMazo/galgame-box/pkg/command"
	"github.com/PyuraMazo/galgame-box/pkg/render"
	"github.com/PyuraMazo/galgame-box/pkg/touchgal"
)

const recommendPrompt = "回复 next 查看下一部，回复 end 结束推荐"

type prepared struct {
	data []byte
	err  error
}

// handleRecommend walks tag-matched candidates one detail card at a time.
// While the session waits for the user's verdict the next card renders in the
// background, so "next" answers near-instantly. Unrelated replies are ignored
// and each ignored turn re-arms the wait.
func (d *Dispatcher) handleRecommend(ctx context.Context, cmd *command.Command) error {
	tags := cmd.Values
	if len(tags) == 0 {
		return apierr.New(apierr.InvalidArgument)
	}

	size := d.cfg.Search.RecommendPageSize
	page := 1
	games, total, err := d.touchgal.SearchByTags(ctx, tags, page, size)
	if err != nil {
		return err
	}
	if len(games) == 0 {
		return apierr.New(apierr.NoResult)
	}

	sess := d.sessions.Open(d.sessionKey(cmd))
	defer sess.Close()

	prerender := func(game touchgal.Game) chan prepared {
		ch := make(chan prepared, 1)
		go func() {
			data, err := d.prepareDetail(ctx, cmd, game)
			ch <- prepared{data: data, err: err}
		}()
		return ch
	}

	idx := 0
	var next chan prepared
	present := func() error {
		var p prepared
		if next != nil {
			p = <-next
			next = nil
		} else {
			p.data, p.err = d.prepareDetail(ctx, cmd, games[idx])
		}
		if p.err != nil {
			return p.err
		}
		d.sendImage(cmd, p.data)
		d.sendText(cmd, recommendPrompt)
		if idx+1 < len(games) {
			next = prerender(games[idx+1])
		}
		return nil
	}

	if err := present(); err != nil {
		return err
	}

	for {
		msg, err := sess.Next(ctx, d.wait())
		if err != nil {
			return err
		}

		switch strings.TrimSpace(msg.Content) {
		case "next", "下一部", "换一个":
			idx++
			if idx >= len(games) {
				if page*size >= total {
					d.sendText(cmd, "没有更多推荐了")
					return nil
				}
				page++
				more, _, err := d.touchgal.SearchByTags(ctx, tags, page, size)
				if err != nil {
					return err
				}
				if len(more) == 0 {
					d.sendText(cmd, "没有更多推荐了")
					return nil
				}
				games, idx, next = more, 0, nil
			}
			if err := present(); err != nil {
				return err
			}
		case "end", "结束":
			return nil
		default:
			// not addressed to this session
		}
	}
}

// prepareDetail renders one candidate's detail card. The game page enriches
// the card when reachable; a scrape failure falls back to the search result
// alone rather than losing the recommendation.
func (d *Dispatcher) prepareDetail(ctx context.Context, cmd *command.Command, game touchgal.Game) ([]byte, error) {
	var details *touchgal.Details
	if page, err := d.touchgal.Page(ctx, game.UniqueID); err == nil {
		if parsed, perr := touchgal.ParseDetails(page); perr == nil {
			details = parsed
		}
	}

	payload := d.build.BuildDetails(cmd, game, details)
	tmpl, err := render.TemplateFor(command.KindRecommend)
	if err != nil {
		return nil, err
	}
	ref, err := d.renderer.Render(ctx, tmpl, payload)
	if err != nil {
		return nil, err
	}
	return d.images.FetchStrict(ctx, ref)
}

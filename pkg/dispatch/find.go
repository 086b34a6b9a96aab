package dispatch

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/PyuraMazo/galgame-box/pkg/animetrace"
	"github.com/PyuraMazo/galgame-box/pkg/apierr"
	"github.com/PyuraMazo/galgame-box/pkg/command"
	"github.com/PyuraMazo/galgame-box/pkg/logger"
	"github.com/PyuraMazo/galgame-box/pkg/vndb"
)

// handleFind recognizes characters in an image and cross-references each
// candidate against VNDB. A message without an attachment opens a capture
// session that waits for one.
func (d *Dispatcher) handleFind(ctx context.Context, cmd *command.Command) error {
	imageURL, err := d.captureImage(ctx, cmd)
	if err != nil {
		return err
	}

	resp, model, err := d.detect(ctx, imageURL)
	if err != nil {
		return err
	}
	if len(resp.Data) == 0 {
		return apierr.New(apierr.NoResult)
	}

	refs := d.crossReference(ctx, resp)
	payload := d.build.BuildTrace(cmd, resp, refs, model)
	return d.renderReply(ctx, cmd, "", payload)
}

// captureImage returns the image to recognize: the command's own attachment,
// or the first attachment of a follow-up reply.
func (d *Dispatcher) captureImage(ctx context.Context, cmd *command.Command) (string, error) {
	if len(cmd.Images) > 0 {
		return cmd.Images[0], nil
	}

	sess := d.sessions.Open(d.sessionKey(cmd))
	defer sess.Close()

	d.sendText(cmd, "请发送需要识别的图片")
	for {
		msg, err := sess.Next(ctx, d.wait())
		if err != nil {
			return "", err
		}
		if len(msg.Images) > 0 {
			return msg.Images[0], nil
		}
		d.sendText(cmd, "回复中未检测到图片，请重新发送")
	}
}

// detect tries the galgame model first. When the service reports it
// overloaded the generic anime model is tried exactly once; any other
// failure, the fallback's included, surfaces as-is.
func (d *Dispatcher) detect(ctx context.Context, imageURL string) (*animetrace.Response, animetrace.Model, error) {
	resp, err := d.trace.Detect(ctx, imageURL, animetrace.ModelGame)
	if err == nil {
		return resp, animetrace.ModelGame, nil
	}

	var tip *apierr.Tip
	if errors.As(err, &tip) && tip.Kind == apierr.RemoteCode && tip.Code == animetrace.StatusOverloaded {
		logger.InfoC("dispatch", "galgame model overloaded, falling back to anime model")
		resp, err = d.trace.Detect(ctx, imageURL, animetrace.ModelAnime)
		return resp, animetrace.ModelAnime, err
	}
	return nil, animetrace.ModelGame, err
}

// crossReference looks each candidate up on VNDB, bounded per region by
// configuration. Lookups run concurrently and land positionally: refs[i][j]
// belongs to detection i's candidate j. A failed lookup degrades to the
// "no record" placeholder instead of failing the whole recognition.
func (d *Dispatcher) crossReference(ctx context.Context, resp *animetrace.Response) [][][]vndb.Character {
	refs := make([][][]vndb.Character, len(resp.Data))
	g, gctx := errgroup.WithContext(ctx)

	for i, det := range resp.Data {
		n := len(det.Characters)
		if limit := d.cfg.Search.FindMaxLookups; limit > 0 && n > limit {
			n = limit
		}
		refs[i] = make([][]vndb.Character, n)

		for j := 0; j < n; j++ {
			cand := det.Characters[j]
			g.Go(func() error {
				matches, err := d.vndb.CharacterInWork(gctx, cand.Character, cand.Work)
				if err != nil {
					logger.WarnC("dispatch", "cross-reference failed for "+cand.Character+": "+err.Error())
					return nil
				}
				refs[i][j] = matches
				return nil
			})
		}
	}

	_ = g.Wait()
	return refs
}

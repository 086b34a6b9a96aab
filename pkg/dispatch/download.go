package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PyuraMazo/galgame-box/pkg/apierr"
	"github.com/PyuraMazo/galgame-box/pkg/command"
	"github.com/PyuraMazo/galgame-box/pkg/touchgal"
)

// handleDownload searches the resource site and lists the downloadable
// entries. More than one match opens a disambiguation session: numbered
// previews go out as grouped nodes, and the command stays in the select state
// until the user picks a valid index or the wait expires.
func (d *Dispatcher) handleDownload(ctx context.Context, cmd *command.Command) error {
	if cmd.Value == "" {
		return apierr.New(apierr.InvalidArgument)
	}

	// a bare number is a site id, no search needed
	if id, err := strconv.Atoi(cmd.Value); err == nil {
		return d.replyResources(ctx, cmd, touchgal.Game{ID: id, Name: cmd.Value})
	}

	games, _, err := d.touchgal.Search(ctx, cmd.Value)
	if err != nil {
		return err
	}
	if len(games) == 0 {
		return apierr.New(apierr.NoResult)
	}

	chosen := games[0]
	if len(games) > 1 {
		picked, err := d.selectGame(ctx, cmd, games)
		if err != nil {
			return err
		}
		chosen = picked
	}

	return d.replyResources(ctx, cmd, chosen)
}

// selectGame runs the disambiguation session. Invalid replies get a
// correction prompt and a fresh wait; only a number inside [1, len(games)]
// resolves the session.
func (d *Dispatcher) selectGame(ctx context.Context, cmd *command.Command, games []touchgal.Game) (touchgal.Game, error) {
	cmd.Kind = command.KindSelect
	defer func() { cmd.Kind = command.KindDownload }()

	sess := d.sessions.Open(d.sessionKey(cmd))
	defer sess.Close()

	d.sendNodes(cmd, d.build.BuildSelectNodes(ctx, games))
	d.sendText(cmd, fmt.Sprintf("搜索到%d条结果，请回复序号（1-%d）选择", len(games), len(games)))

	for {
		msg, err := sess.Next(ctx, d.wait())
		if err != nil {
			return touchgal.Game{}, err
		}

		n, err := strconv.Atoi(strings.TrimSpace(msg.Content))
		if err != nil || n < 1 || n > len(games) {
			d.sendText(cmd, fmt.Sprintf("无效的序号，请回复 1-%d 之间的数字", len(games)))
			continue
		}
		return games[n-1], nil
	}
}

func (d *Dispatcher) replyResources(ctx context.Context, cmd *command.Command, game touchgal.Game) error {
	resources, err := d.touchgal.Resources(ctx, game.ID)
	if err != nil {
		return err
	}
	if len(resources) == 0 {
		return apierr.Newf(apierr.NoResult, "「%s」暂无可下载资源", game.Name)
	}

	d.sendNodes(cmd, d.build.BuildResourceNodes(resources))
	return nil
}

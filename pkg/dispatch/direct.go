package dispatch

import (
	"context"

	"github.com/PyuraMazo/galgame-box/pkg/apierr"
	"github.com/PyuraMazo/galgame-box/pkg/builder"
	"github.com/PyuraMazo/galgame-box/pkg/command"
	"github.com/PyuraMazo/galgame-box/pkg/touchgal"
	"github.com/PyuraMazo/galgame-box/pkg/vndb"
)

// handleLookup serves the stateless lookups: keyword or id, cache first.
// Identical commands always produce the same artifact, so a hit skips every
// upstream call.
func (d *Dispatcher) handleLookup(ctx context.Context, cmd *command.Command) error {
	if cmd.Value == "" {
		return apierr.New(apierr.InvalidArgument)
	}
	if cmd.Kind == command.KindID && command.IDKind(cmd.Value) == "" {
		return apierr.Newf(apierr.InvalidArgument, "无效的 VNDB ID「%s」", cmd.Value)
	}
	if d.replyFromCache(cmd) {
		return nil
	}

	byID := cmd.Kind == command.KindID
	var payload *builder.Payload
	switch cmd.EffectiveKind() {
	case command.KindVN:
		vns, err := d.lookupVNs(ctx, cmd.Value, byID)
		if err != nil {
			return err
		}
		payload = d.build.BuildVNs(cmd, vns)
	case command.KindCharacter:
		chars, err := d.lookupCharacters(ctx, cmd.Value, byID)
		if err != nil {
			return err
		}
		payload = d.build.BuildCharacters(cmd, chars)
	case command.KindProducer:
		pros, vns, err := d.lookupProducers(ctx, cmd.Value, byID)
		if err != nil {
			return err
		}
		payload = d.build.BuildProducers(cmd, pros, vns)
	}

	return d.renderReply(ctx, cmd, cmd.CacheKey(), payload)
}

func (d *Dispatcher) lookupVNs(ctx context.Context, value string, byID bool) ([]vndb.VN, error) {
	if byID {
		return d.vndb.VNByID(ctx, value)
	}
	return d.vndb.SearchVN(ctx, value)
}

func (d *Dispatcher) lookupCharacters(ctx context.Context, value string, byID bool) ([]vndb.Character, error) {
	if byID {
		return d.vndb.CharacterByID(ctx, value)
	}
	return d.vndb.SearchCharacter(ctx, value)
}

func (d *Dispatcher) lookupProducers(ctx context.Context, value string, byID bool) ([]vndb.Producer, [][]vndb.VN, error) {
	if byID {
		return d.vndb.ProducerByID(ctx, value)
	}
	return d.vndb.SearchProducer(ctx, value)
}

// handleRandom picks a random game page and renders its detail view. The
// result is never cached: the same command is expected to differ every time.
func (d *Dispatcher) handleRandom(ctx context.Context, cmd *command.Command) error {
	uniqueID, err := d.touchgal.Random(ctx)
	if err != nil {
		return err
	}
	page, err := d.touchgal.Page(ctx, uniqueID)
	if err != nil {
		return err
	}
	details, err := touchgal.ParseDetails(page)
	if err != nil {
		return err
	}

	title := details.Title
	if title == "" && details.VNDBID != "" {
		// the page links VNDB instead of carrying a heading; resolve the name
		if vns, err := d.vndb.VNByID(ctx, details.VNDBID); err == nil && len(vns) > 0 {
			title = vns[0].Title
			if vns[0].AltTitle != "" {
				title = vns[0].AltTitle
			}
		}
	}

	game := touchgal.Game{UniqueID: uniqueID, Name: title}
	if games, _, err := d.touchgal.Search(ctx, title); err == nil {
		for _, g := range games {
			if g.UniqueID == uniqueID {
				game = g
				break
			}
		}
	}
	if details.Title == "" {
		details.Title = title
	}

	payload := d.build.BuildDetails(cmd, game, details)
	return d.renderReply(ctx, cmd, "", payload)
}

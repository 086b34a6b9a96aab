// Package dispatch routes parsed commands to their handlers: the stateless
// lookup commands behind the artifact cache, and the multi-turn session flows
// (disambiguation, image capture, paged recommendation, credential binding).
//
// Handlers return errors instead of replying with them; the gateway owns the
// translation to user-facing text.
package dispatch

import (
	"context"
	"time"

	"github.com/PyuraMazo/galgame-box/pkg/animetrace"
	"github.com/PyuraMazo/galgame-box/pkg/apierr"
	"github.com/PyuraMazo/galgame-box/pkg/builder"
	"github.com/PyuraMazo/galgame-box/pkg/bus"
	"github.com/PyuraMazo/galgame-box/pkg/cache"
	"github.com/PyuraMazo/galgame-box/pkg/command"
	"github.com/PyuraMazo/galgame-box/pkg/config"
	"github.com/PyuraMazo/galgame-box/pkg/creds"
	"github.com/PyuraMazo/galgame-box/pkg/fetch"
	"github.com/PyuraMazo/galgame-box/pkg/logger"
	"github.com/PyuraMazo/galgame-box/pkg/render"
	"github.com/PyuraMazo/galgame-box/pkg/session"
	"github.com/PyuraMazo/galgame-box/pkg/steam"
	"github.com/PyuraMazo/galgame-box/pkg/touchgal"
	"github.com/PyuraMazo/galgame-box/pkg/vndb"
)

// Upstream client surfaces, satisfied by the real API wrappers. Tests install
// fakes behind the same interfaces.
type VNDB interface {
	SearchVN(ctx context.Context, keyword string) ([]vndb.VN, error)
	VNByID(ctx context.Context, id string) ([]vndb.VN, error)
	SearchCharacter(ctx context.Context, keyword string) ([]vndb.Character, error)
	CharacterByID(ctx context.Context, id string) ([]vndb.Character, error)
	CharacterInWork(ctx context.Context, character, work string) ([]vndb.Character, error)
	SearchProducer(ctx context.Context, keyword string) ([]vndb.Producer, [][]vndb.VN, error)
	ProducerByID(ctx context.Context, id string) ([]vndb.Producer, [][]vndb.VN, error)
}

type TouchGal interface {
	Search(ctx context.Context, keyword string) ([]touchgal.Game, int, error)
	SearchByTags(ctx context.Context, tags []string, page, limit int) ([]touchgal.Game, int, error)
	Random(ctx context.Context) (string, error)
	Page(ctx context.Context, uniqueID string) (string, error)
	Resources(ctx context.Context, gameID int) ([]touchgal.Resource, error)
}

type Trace interface {
	Detect(ctx context.Context, imageURL string, model animetrace.Model) (*animetrace.Response, error)
}

type Steam interface {
	Owned(ctx context.Context, key, steamID string) (*steam.OwnedGames, error)
	GetProfile(ctx context.Context, key, steamID string) (*steam.Profile, error)
	Achievements(ctx context.Context, key, steamID string, appID int) (string, error)
	Recent(ctx context.Context, key, steamID string) ([]steam.Game, error)
}

type Deps struct {
	Config   *config.Config
	VNDB     VNDB
	TouchGal TouchGal
	Trace    Trace
	Steam    Steam
	Builder  *builder.Builder
	Renderer render.Renderer
	Images   *fetch.ImageFetcher
	Cache    *cache.Cache
	Creds    *creds.Store
	Sessions *session.Manager
	Out      bus.Publisher
}

type Dispatcher struct {
	cfg      *config.Config
	vndb     VNDB
	touchgal TouchGal
	trace    Trace
	steam    Steam
	build    *builder.Builder
	renderer render.Renderer
	images   *fetch.ImageFetcher
	cache    *cache.Cache
	creds    *creds.Store
	sessions *session.Manager
	out      bus.Publisher
}

func New(deps Deps) *Dispatcher {
	return &Dispatcher{
		cfg:      deps.Config,
		vndb:     deps.VNDB,
		touchgal: deps.TouchGal,
		trace:    deps.Trace,
		steam:    deps.Steam,
		build:    deps.Builder,
		renderer: deps.Renderer,
		images:   deps.Images,
		cache:    deps.Cache,
		creds:    deps.Creds,
		sessions: deps.Sessions,
		out:      deps.Out,
	}
}

// Handle runs one command to completion, session turns included.
func (d *Dispatcher) Handle(ctx context.Context, cmd *command.Command) error {
	switch cmd.Kind {
	case command.KindVN, command.KindCharacter, command.KindProducer, command.KindID:
		return d.handleLookup(ctx, cmd)
	case command.KindRandom:
		return d.handleRandom(ctx, cmd)
	case command.KindDownload:
		return d.handleDownload(ctx, cmd)
	case command.KindFind:
		return d.handleFind(ctx, cmd)
	case command.KindRecommend:
		return d.handleRecommend(ctx, cmd)
	case command.KindBind:
		return d.handleBind(ctx, cmd)
	case command.KindReport:
		return d.handleReport(ctx, cmd)
	}
	// KindSelect only exists inside the download flow's re-tag
	return apierr.New(apierr.InvalidArgument)
}

func (d *Dispatcher) wait() time.Duration {
	return time.Duration(d.cfg.Session.WaitSeconds) * time.Second
}

func (d *Dispatcher) sessionKey(cmd *command.Command) session.Key {
	return session.Key{Channel: cmd.Channel, ChatID: cmd.ChatID, SenderID: cmd.SenderID}
}

func (d *Dispatcher) sendText(cmd *command.Command, text string) {
	d.out.PublishOutbound(bus.Text(cmd.Channel, cmd.ChatID, text))
}

func (d *Dispatcher) sendImage(cmd *command.Command, data []byte) {
	d.out.PublishOutbound(bus.ImageBytes(cmd.Channel, cmd.ChatID, data))
}

func (d *Dispatcher) sendNodes(cmd *command.Command, nodes []bus.Node) {
	d.out.PublishOutbound(bus.Nodes(cmd.Channel, cmd.ChatID, nodes))
}

// replyFromCache serves a previously rendered artifact, if any.
func (d *Dispatcher) replyFromCache(cmd *command.Command) bool {
	data, ok := d.cache.Lookup(cmd.CacheKey())
	if ok {
		logger.DebugC("dispatch", "cache hit: "+cmd.CacheKey())
		d.sendImage(cmd, data)
	}
	return ok
}

// renderReply renders payload with the command's template, fetches the
// artifact and replies with it. A non-empty cacheKey stores the artifact;
// the store is write-once, so concurrent identical commands cannot clobber
// each other.
func (d *Dispatcher) renderReply(ctx context.Context, cmd *command.Command, cacheKey string, payload any) error {
	data, err := d.renderArtifact(ctx, cmd.EffectiveKind(), payload)
	if err != nil {
		return err
	}
	if cacheKey != "" {
		if err := d.cache.Store(cacheKey, data); err != nil {
			logger.WarnC("dispatch", "cache store failed: "+err.Error())
		}
	}
	d.sendImage(cmd, data)
	return nil
}

func (d *Dispatcher) renderArtifact(ctx context.Context, kind command.Kind, payload any) ([]byte, error) {
	tmpl, err := render.TemplateFor(kind)
	if err != nil {
		return nil, err
	}
	ref, err := d.renderer.Render(ctx, tmpl, payload)
	if err != nil {
		return nil, err
	}
	return d.images.FetchStrict(ctx, ref)
}

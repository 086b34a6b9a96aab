package dispatch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PyuraMazo/galgame-box/pkg/command"
	"github.com/PyuraMazo/galgame-box/pkg/creds"
	"github.com/PyuraMazo/galgame-box/pkg/logger"
)

// achievementWorkers bounds the concurrent per-game achievement calls of a
// full resync.
const achievementWorkers = 5

func reportCacheKey(ownerID string) string {
	return "report-" + ownerID
}

// handleReport serves the owner's library report. A report younger than the
// fresh window comes straight from the cache; inside the warm window only the
// recently played games are re-queried; beyond it the whole library is
// rebuilt. The synchronized record is persisted before rendering, so a render
// failure never loses a completed sync.
func (d *Dispatcher) handleReport(ctx context.Context, cmd *command.Command) error {
	rec, err := d.creds.Read(cmd.SenderID)
	if err != nil {
		return err
	}

	key := reportCacheKey(cmd.SenderID)
	fresh := time.Duration(d.cfg.Report.FreshMinutes) * time.Minute
	if age, ok := d.cache.Age(key); ok && age < fresh {
		if data, ok := d.cache.Lookup(key); ok {
			d.sendImage(cmd, data)
			return nil
		}
	}

	if err := d.syncLibrary(ctx, rec); err != nil {
		return err
	}
	if err := d.creds.Write(rec, true); err != nil {
		return err
	}

	profile, err := d.steam.GetProfile(ctx, rec.APIKey, rec.SteamID)
	if err != nil {
		return err
	}

	data, err := d.renderArtifact(ctx, command.KindReport, d.build.BuildReport(rec, profile))
	if err != nil {
		return err
	}

	// the store is write-once; evicting the stale artifact first is the only
	// sanctioned refresh path
	d.cache.Evict(key)
	if err := d.cache.Store(key, data); err != nil {
		logger.WarnC("dispatch", "report cache store failed: "+err.Error())
	}
	d.sendImage(cmd, data)
	return nil
}

func (d *Dispatcher) syncLibrary(ctx context.Context, rec *creds.Record) error {
	warm := time.Duration(d.cfg.Report.WarmHours) * time.Hour
	if len(rec.Games) > 0 && !rec.LastSync.IsZero() && time.Since(rec.LastSync) < warm {
		return d.syncRecent(ctx, rec)
	}
	return d.syncFull(ctx, rec)
}

// syncFull rebuilds the whole library. Achievement lookups fan out with a
// bounded worker count; a single failed lookup drops that game's ratio, not
// the sync.
func (d *Dispatcher) syncFull(ctx context.Context, rec *creds.Record) error {
	owned, err := d.steam.Owned(ctx, rec.APIKey, rec.SteamID)
	if err != nil {
		return err
	}

	games := make(map[int]creds.GameRecord, len(owned.Games))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(achievementWorkers)

	for _, game := range owned.Games {
		g.Go(func() error {
			achievement, err := d.steam.Achievements(gctx, rec.APIKey, rec.SteamID, game.AppID)
			if err != nil {
				logger.WarnC("dispatch", "achievement lookup failed: "+err.Error())
				achievement = ""
			}
			mu.Lock()
			games[game.AppID] = creds.GameRecord{
				Name:            game.Name,
				PlaytimeMinutes: game.PlaytimeForever,
				Achievement:     achievement,
				LastPlayed:      game.LastPlayed,
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	rec.Games = games
	rec.LastSync = time.Now()
	return nil
}

// syncRecent is the incremental path: one owned-list call diffs the library
// against the stored record. Newly acquired games get an achievement lookup;
// known games keep their stored ratio and only merge play time, unless they
// were played in the last two weeks, which also refreshes the ratio.
func (d *Dispatcher) syncRecent(ctx context.Context, rec *creds.Record) error {
	owned, err := d.steam.Owned(ctx, rec.APIKey, rec.SteamID)
	if err != nil {
		return err
	}

	recentIDs := make(map[int]struct{})
	if recent, err := d.steam.Recent(ctx, rec.APIKey, rec.SteamID); err == nil {
		for _, game := range recent {
			recentIDs[game.AppID] = struct{}{}
		}
	}

	games := make(map[int]creds.GameRecord, len(owned.Games))
	for _, game := range owned.Games {
		prev, known := rec.Games[game.AppID]
		_, played := recentIDs[game.AppID]

		achievement := prev.Achievement
		if !known || played {
			if a, err := d.steam.Achievements(ctx, rec.APIKey, rec.SteamID, game.AppID); err == nil {
				achievement = a
			} else {
				logger.WarnC("dispatch", "achievement lookup failed: "+err.Error())
			}
		}
		games[game.AppID] = creds.GameRecord{
			Name:            game.Name,
			PlaytimeMinutes: game.PlaytimeForever,
			Achievement:     achievement,
			ImageRef:        prev.ImageRef,
			LastPlayed:      game.LastPlayed,
		}
	}

	rec.Games = games
	rec.LastSync = time.Now()
	return nil
}

package dispatch

import (
	"context"
	"strings"

	"github.com/PyuraMazo/galgame-box/pkg/apierr"
	"github.com/PyuraMazo/galgame-box/pkg/command"
	"github.com/PyuraMazo/galgame-box/pkg/creds"
	"github.com/PyuraMazo/galgame-box/pkg/logger"
	"github.com/PyuraMazo/galgame-box/pkg/session"
)

// handleBind runs the two-phase credential conversation: Steam id first,
// API key second, then a profile lookup validates the pair before anything
// touches disk. Partial state lives only in this function; a timeout or a
// failed validation persists nothing.
func (d *Dispatcher) handleBind(ctx context.Context, cmd *command.Command) error {
	if d.creds.Exists(cmd.SenderID) {
		return apierr.New(apierr.AlreadyBound)
	}

	sess := d.sessions.Open(d.sessionKey(cmd))
	defer sess.Close()

	d.sendText(cmd, "请发送要绑定的 Steam ID")
	steamID, err := d.nextReply(ctx, sess)
	if err != nil {
		return err
	}

	d.sendText(cmd, "请发送 Steam Web API Key")
	apiKey, err := d.nextReply(ctx, sess)
	if err != nil {
		return err
	}

	profile, err := d.steam.GetProfile(ctx, apiKey, steamID)
	if err != nil {
		// one generic message: the reply must not reveal which half is wrong
		logger.WarnC("dispatch", "bind validation failed: "+err.Error())
		return apierr.Newf(apierr.InvalidArgument, "绑定失败，请检查 Steam ID 与 API Key 是否有效")
	}

	rec := &creds.Record{
		OwnerID: cmd.SenderID,
		SteamID: steamID,
		APIKey:  apiKey,
		Bound:   true,
		Channel: cmd.Channel,
		ChatID:  cmd.ChatID,
	}
	// the store re-checks existence; a concurrent bind loses here, not above
	if err := d.creds.Write(rec, false); err != nil {
		return err
	}

	d.sendText(cmd, "绑定成功："+profile.PersonaName)
	return nil
}

func (d *Dispatcher) nextReply(ctx context.Context, sess *session.Session) (string, error) {
	msg, err := sess.Next(ctx, d.wait())
	if err != nil {
		return "", err
	}
	value := strings.TrimSpace(msg.Content)
	if value == "" {
		return "", apierr.New(apierr.InvalidArgument)
	}
	return value, nil
}

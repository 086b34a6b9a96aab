// Package gateway is the inbound pump: it drains the message bus, gives
// active sessions first claim on every message, parses the rest into commands
// and runs each command on its own goroutine.
//
// It also owns the outermost error boundary. Handlers return errors; the
// gateway logs them in full and replies with the user-facing translation
// only, so internals never leak into chat.
package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/PyuraMazo/galgame-box/pkg/apierr"
	"github.com/PyuraMazo/galgame-box/pkg/bus"
	"github.com/PyuraMazo/galgame-box/pkg/command"
	"github.com/PyuraMazo/galgame-box/pkg/logger"
	"github.com/PyuraMazo/galgame-box/pkg/session"
)

// Handler runs one parsed command to completion.
type Handler interface {
	Handle(ctx context.Context, cmd *command.Command) error
}

type Gateway struct {
	bus      bus.Broker
	sessions *session.Manager
	handler  Handler
	wg       sync.WaitGroup
}

func New(b bus.Broker, sessions *session.Manager, handler Handler) *Gateway {
	return &Gateway{bus: b, sessions: sessions, handler: handler}
}

// Run pumps inbound messages until the bus closes or ctx is cancelled, then
// waits for in-flight commands to finish.
func (g *Gateway) Run(ctx context.Context) error {
	for {
		msg, ok := g.bus.ConsumeInbound(ctx)
		if !ok {
			g.wg.Wait()
			return nil
		}

		// an active session owns every message from its key, command-shaped
		// or not
		if g.sessions.Deliver(msg) {
			continue
		}

		cmd, ok := command.Parse(msg)
		if !ok {
			continue
		}

		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			g.handle(ctx, cmd)
		}()
	}
}

func (g *Gateway) handle(ctx context.Context, cmd *command.Command) {
	logger.InfoCF("gateway", "command received", map[string]interface{}{
		"kind":    string(cmd.Kind),
		"value":   cmd.Value,
		"channel": cmd.Channel,
		"sender":  cmd.SenderID,
	})

	err := g.handler.Handle(ctx, cmd)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}

	logger.ErrorCF("gateway", "command failed", map[string]interface{}{
		"kind":  string(cmd.Kind),
		"value": cmd.Value,
		"error": err.Error(),
	})
	g.bus.PublishOutbound(bus.Text(cmd.Channel, cmd.ChatID, apierr.UserMessage(err)))
}

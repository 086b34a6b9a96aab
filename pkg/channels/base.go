// Package channels hosts the chat platform adapters. Every adapter publishes
// inbound user messages onto the bus and delivers outbound replies addressed
// to its platform.
package channels

import (
	"context"
	"sync/atomic"

	"github.com/PyuraMazo/galgame-box/pkg/bus"
	"github.com/PyuraMazo/galgame-box/pkg/logger"
)

type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
}

// BaseChannel carries the shared adapter state: name, bus handle and the
// running flag.
type BaseChannel struct {
	name    string
	bus     bus.Publisher
	running atomic.Bool
}

func NewBaseChannel(name string, b bus.Publisher) *BaseChannel {
	return &BaseChannel{name: name, bus: b}
}

func (c *BaseChannel) Name() string { return c.name }

func (c *BaseChannel) setRunning(v bool) { c.running.Store(v) }

func (c *BaseChannel) IsRunning() bool { return c.running.Load() }

// HandleMessage publishes one inbound user message on the bus.
func (c *BaseChannel) HandleMessage(senderID, chatID, content string, images []string, metadata map[string]string) {
	logger.DebugCF(c.name, "inbound message", map[string]interface{}{
		"sender":  senderID,
		"chat_id": chatID,
		"images":  len(images),
	})

	c.bus.PublishInbound(bus.InboundMessage{
		Channel:  c.name,
		SenderID: senderID,
		ChatID:   chatID,
		Content:  content,
		Images:   images,
		Metadata: metadata,
	})
}

package channels

import (
	"context"
	"fmt"
	"sync"

	"github.com/PyuraMazo/galgame-box/pkg/bus"
	"github.com/PyuraMazo/galgame-box/pkg/logger"
)

// Manager owns the registered adapters and pumps outbound replies to the
// adapter each one is addressed to.
type Manager struct {
	bus      bus.Broker
	mu       sync.RWMutex
	channels map[string]Channel
}

func NewManager(b bus.Broker) *Manager {
	return &Manager{bus: b, channels: make(map[string]Channel)}
}

func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
}

func (m *Manager) Get(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

func (m *Manager) Enabled() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

// StartAll starts every registered adapter. A single adapter failing to start
// is logged and skipped; no adapter starting at all is an error.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	started := 0
	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			logger.ErrorC("channels", "start "+name+" failed: "+err.Error())
			continue
		}
		started++
	}
	if started == 0 && len(m.channels) > 0 {
		return fmt.Errorf("no channel started")
	}
	return nil
}

func (m *Manager) StopAll(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, ch := range m.channels {
		if err := ch.Stop(ctx); err != nil {
			logger.WarnC("channels", "stop "+name+" failed: "+err.Error())
		}
	}
}

// Run pumps outbound replies until the bus closes or ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			return
		}

		ch, ok := m.Get(msg.Channel)
		if !ok {
			logger.WarnC("channels", "outbound for unknown channel "+msg.Channel)
			continue
		}
		if err := ch.Send(ctx, msg); err != nil {
			logger.ErrorCF("channels", "send failed", map[string]interface{}{
				"channel": msg.Channel,
				"chat_id": msg.ChatID,
				"error":   err.Error(),
			})
		}
	}
}

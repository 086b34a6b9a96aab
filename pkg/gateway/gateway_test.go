package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PyuraMazo/galgame-box/pkg/apierr"
	"github.com/PyuraMazo/galgame-box/pkg/bus"
	"github.com/PyuraMazo/galgame-box/pkg/command"
	"github.com/PyuraMazo/galgame-box/pkg/session"
)

type recordingHandler struct {
	mu   sync.Mutex
	cmds []*command.Command
	err  error
}

func (h *recordingHandler) Handle(ctx context.Context, cmd *command.Command) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cmds = append(h.cmds, cmd)
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.cmds)
}

func runGateway(t *testing.T, handler Handler) (*bus.MessageBus, *session.Manager, func()) {
	t.Helper()
	b := bus.NewMessageBus()
	sessions := session.NewManager()
	g := New(b, sessions, handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = g.Run(ctx)
		close(done)
	}()

	return b, sessions, func() {
		cancel()
		b.Close()
		<-done
	}
}

func TestGatewayDispatchesParsedCommands(t *testing.T) {
	handler := &recordingHandler{}
	b, _, stop := runGateway(t, handler)
	defer stop()

	b.PublishInbound(bus.InboundMessage{Channel: "test", ChatID: "c", SenderID: "s", Content: "gb vn clannad"})
	b.PublishInbound(bus.InboundMessage{Channel: "test", ChatID: "c", SenderID: "s", Content: "just chatting"})
	b.PublishInbound(bus.InboundMessage{Channel: "test", ChatID: "c", SenderID: "s", Content: "gb nonsense x"})

	require.Eventually(t, func() bool { return handler.count() == 1 }, time.Second, 5*time.Millisecond)
	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Equal(t, command.KindVN, handler.cmds[0].Kind)
	assert.Equal(t, "clannad", handler.cmds[0].Value)
}

func TestGatewayTranslatesHandlerErrors(t *testing.T) {
	handler := &recordingHandler{err: apierr.New(apierr.NoResult)}
	b, _, stop := runGateway(t, handler)
	defer stop()

	b.PublishInbound(bus.InboundMessage{Channel: "test", ChatID: "c", SenderID: "s", Content: "gb vn nothing"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	out, ok := b.SubscribeOutbound(ctx)
	require.True(t, ok)
	assert.Equal(t, bus.OutText, out.Kind)
	assert.Equal(t, "未搜索到内容", out.Content)
}

func TestGatewayHidesInternalErrors(t *testing.T) {
	handler := &recordingHandler{err: errors.New("dial tcp: connection refused")}
	b, _, stop := runGateway(t, handler)
	defer stop()

	b.PublishInbound(bus.InboundMessage{Channel: "test", ChatID: "c", SenderID: "s", Content: "gb vn x"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	out, ok := b.SubscribeOutbound(ctx)
	require.True(t, ok)
	assert.NotContains(t, out.Content, "dial tcp")
	assert.Equal(t, "发生未知错误，请联系管理员查看日志", out.Content)
}

func TestGatewayGivesSessionsFirstClaim(t *testing.T) {
	handler := &recordingHandler{}
	b, sessions, stop := runGateway(t, handler)
	defer stop()

	key := session.Key{Channel: "test", ChatID: "c", SenderID: "s"}
	sess := sessions.Open(key)
	defer sess.Close()

	// even a command-shaped message belongs to the waiting session
	b.PublishInbound(bus.InboundMessage{Channel: "test", ChatID: "c", SenderID: "s", Content: "gb vn clannad"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := sess.Next(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "gb vn clannad", msg.Content)
	assert.Zero(t, handler.count())
}

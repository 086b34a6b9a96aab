package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishConsumeRoundTrip(t *testing.T) {
	b := NewMessageBus()
	defer b.Close()

	b.PublishInbound(InboundMessage{Channel: "onebot", Content: "gb vn clannad"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := b.ConsumeInbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "gb vn clannad", msg.Content)

	b.PublishOutbound(Text("onebot", "group:1", "ok"))
	out, ok := b.SubscribeOutbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "ok", out.Content)
}

func TestConsumeHonorsContext(t *testing.T) {
	b := NewMessageBus()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := b.ConsumeInbound(ctx)
	assert.False(t, ok)
	_, ok = b.SubscribeOutbound(ctx)
	assert.False(t, ok)
}

func TestCloseIsIdempotentAndSilencesPublish(t *testing.T) {
	b := NewMessageBus()
	b.Close()
	b.Close()

	// publishing after close must not panic on the closed channel
	b.PublishInbound(InboundMessage{Content: "late"})
	b.PublishOutbound(Text("c", "chat", "late"))

	_, ok := b.ConsumeInbound(context.Background())
	assert.False(t, ok)
}

func TestConstructors(t *testing.T) {
	msg := Text("onebot", "group:1", "hi")
	assert.Equal(t, OutText, msg.Kind)

	msg = Image("onebot", "group:1", "https://img/x.jpg")
	assert.Equal(t, OutImage, msg.Kind)
	assert.Equal(t, "https://img/x.jpg", msg.ImageRef)

	msg = ImageBytes("onebot", "group:1", []byte{0xff})
	assert.Equal(t, OutImage, msg.Kind)
	assert.NotEmpty(t, msg.ImageBytes)

	msg = Nodes("onebot", "group:1", []Node{{Text: "a"}, {Text: "b"}})
	assert.Equal(t, OutNodes, msg.Kind)
	assert.Len(t, msg.Nodes, 2)
}

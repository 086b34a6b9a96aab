package bus

// InboundMessage is one user message delivered by a channel adapter.
type InboundMessage struct {
	Channel  string `json:"channel"`
	SenderID string `json:"sender_id"`
	ChatID   string `json:"chat_id"`
	Content  string `json:"content"`
	// Images are attachment URLs carried by the message itself or by the
	// message it replies to, in that order.
	Images   []string          `json:"images,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type OutboundKind string

const (
	OutText  OutboundKind = "text"
	OutImage OutboundKind = "image"
	OutNodes OutboundKind = "nodes"
)

// Node is one entry of a grouped/forwarded composite message.
type Node struct {
	Text string `json:"text"`
	// ImageB64 is an inline base64 preview, empty for text-only nodes.
	ImageB64 string `json:"image_b64,omitempty"`
}

type OutboundMessage struct {
	Channel string       `json:"channel"`
	ChatID  string       `json:"chat_id"`
	Kind    OutboundKind `json:"kind"`
	Content string       `json:"content,omitempty"`
	// ImageRef is a URL or local path the channel adapter resolves.
	ImageRef string `json:"image_ref,omitempty"`
	// ImageBytes carries an already-rendered artifact (cache hits).
	ImageBytes []byte `json:"image_bytes,omitempty"`
	// ReplyTo quotes the triggering message where the platform supports it.
	ReplyTo string `json:"reply_to,omitempty"`
	Nodes   []Node `json:"nodes,omitempty"`
}

func Text(channel, chatID, content string) OutboundMessage {
	return OutboundMessage{Channel: channel, ChatID: chatID, Kind: OutText, Content: content}
}

func Image(channel, chatID, ref string) OutboundMessage {
	return OutboundMessage{Channel: channel, ChatID: chatID, Kind: OutImage, ImageRef: ref}
}

func ImageBytes(channel, chatID string, data []byte) OutboundMessage {
	return OutboundMessage{Channel: channel, ChatID: chatID, Kind: OutImage, ImageBytes: data}
}

func Nodes(channel, chatID string, nodes []Node) OutboundMessage {
	return OutboundMessage{Channel: channel, ChatID: chatID, Kind: OutNodes, Nodes: nodes}
}

package session

import "github.com/PyuraMazo/galgame-box/pkg/bus"

// Key identifies one conversational session. Comparing structured fields
// avoids the collisions a naive string concatenation of variable-length ids
// would allow.
type Key struct {
	Channel  string
	ChatID   string
	SenderID string
}

func KeyOf(msg bus.InboundMessage) Key {
	return Key{Channel: msg.Channel, ChatID: msg.ChatID, SenderID: msg.SenderID}
}

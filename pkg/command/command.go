// Package command defines the bot's command model: the enumerated command
// kinds, the parsed Command carried through the dispatcher, and the chat-text
// parser that produces it.
package command

import (
	"strings"

	"github.com/PyuraMazo/galgame-box/pkg/bus"
)

type Kind string

const (
	KindVN        Kind = "vn"
	KindCharacter Kind = "character"
	KindProducer  Kind = "producer"
	KindID        Kind = "id"
	KindRandom    Kind = "random"
	KindDownload  Kind = "download"
	KindSelect    Kind = "select"
	KindFind      Kind = "find"
	KindRecommend Kind = "recommend"
	KindBind      Kind = "bind"
	KindReport    Kind = "report"
)

// Command is immutable once dispatched except for the documented re-tag of
// Kind inside a handler sub-flow (download -> select -> download).
type Command struct {
	Kind Kind
	// Value is the raw argument: search keyword, entity id, image URL,
	// or empty. Tag-recommend keeps the full tag list in Values.
	Value  string
	Values []string
	// Origin identifies where the command came from.
	Channel  string
	ChatID   string
	SenderID string
	// Images are attachment URLs from the triggering message.
	Images []string
}

// IDKind resolves the entity kind encoded in a VNDB id's leading character.
// Returns "" for ids outside the known namespaces.
func IDKind(id string) Kind {
	if id == "" {
		return ""
	}
	switch id[0] {
	case 'v':
		return KindVN
	case 'c':
		return KindCharacter
	case 'p':
		return KindProducer
	}
	return ""
}

// EffectiveKind is the kind used to pick shaping routines and templates:
// an id command maps to the concrete entity kind of its argument.
func (c *Command) EffectiveKind() Kind {
	if c.Kind == KindID {
		if k := IDKind(c.Value); k != "" {
			return k
		}
	}
	return c.Kind
}

// CacheKey derives the deterministic artifact key of this command.
func (c *Command) CacheKey() string {
	return string(c.Kind) + "-" + c.Value
}

var groupAliases = map[string]struct{}{
	"gb": {}, "gal": {}, "GAL": {}, "旮旯": {},
}

var subcommands = map[string]Kind{
	"vn": KindVN, "作品": KindVN,
	"cha": KindCharacter, "角色": KindCharacter,
	"pro": KindProducer, "厂商": KindProducer,
	"id": KindID, "ID": KindID,
	"random": KindRandom, "随机": KindRandom,
	"download": KindDownload, "下载": KindDownload,
	"find": KindFind, "识别": KindFind,
	"recommend": KindRecommend, "推荐": KindRecommend,
	"bind": KindBind, "绑定": KindBind,
	"report": KindReport, "报告": KindReport,
}

// Parse turns an inbound chat message into a Command. The second return is
// false when the message is not addressed to the bot at all.
func Parse(msg bus.InboundMessage) (*Command, bool) {
	fields := strings.Fields(strings.TrimSpace(msg.Content))
	if len(fields) < 2 {
		return nil, false
	}
	if _, ok := groupAliases[fields[0]]; !ok {
		return nil, false
	}
	kind, ok := subcommands[fields[1]]
	if !ok {
		return nil, false
	}

	cmd := &Command{
		Kind:     kind,
		Channel:  msg.Channel,
		ChatID:   msg.ChatID,
		SenderID: msg.SenderID,
		Images:   msg.Images,
	}
	if len(fields) > 2 {
		cmd.Value = strings.Join(fields[2:], " ")
		cmd.Values = fields[2:]
	}
	return cmd, true
}

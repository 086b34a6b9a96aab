package channels

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/PyuraMazo/galgame-box/pkg/bus"
	"github.com/PyuraMazo/galgame-box/pkg/config"
	"github.com/PyuraMazo/galgame-box/pkg/logger"
)

// TelegramChannel runs the bot in long-polling mode. Photos are passed
// downstream as Bot API file URLs; nothing is written to disk.
type TelegramChannel struct {
	*BaseChannel
	bot *telego.Bot
}

func NewTelegramChannel(cfg config.TelegramConfig, b bus.Broker) (*TelegramChannel, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramChannel{
		BaseChannel: NewBaseChannel("telegram", b),
		bot:         bot,
	}, nil
}

func (c *TelegramChannel) Start(ctx context.Context) error {
	updates, err := c.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{Timeout: 30})
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	bh, err := telegohandler.NewBotHandler(c.bot, updates)
	if err != nil {
		return fmt.Errorf("create bot handler: %w", err)
	}

	bh.HandleMessage(func(hctx *telegohandler.Context, message telego.Message) error {
		c.handleMessage(hctx, &message)
		return nil
	}, telegohandler.Or(telegohandler.AnyMessageWithText(), telegohandler.AnyMessageWithMedia()))

	c.setRunning(true)
	logger.InfoCF("telegram", "bot connected", map[string]interface{}{
		"username": c.bot.Username(),
	})

	go bh.Start()
	go func() {
		<-ctx.Done()
		bh.Stop()
	}()
	return nil
}

func (c *TelegramChannel) Stop(ctx context.Context) error {
	c.setRunning(false)
	return nil
}

func (c *TelegramChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("telegram bot not running")
	}

	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q", msg.ChatID)
	}

	switch msg.Kind {
	case bus.OutImage:
		return c.sendPhoto(ctx, chatID, msg)
	case bus.OutNodes:
		// no forward-bundle concept on Telegram: nodes become sequential
		// messages
		for _, n := range msg.Nodes {
			if n.Text == "" {
				continue
			}
			if _, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), n.Text)); err != nil {
				return err
			}
		}
		return nil
	default:
		_, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), msg.Content))
		return err
	}
}

func (c *TelegramChannel) sendPhoto(ctx context.Context, chatID int64, msg bus.OutboundMessage) error {
	var file telego.InputFile
	if len(msg.ImageBytes) > 0 {
		file = tu.File(tu.NameReader(bytes.NewReader(msg.ImageBytes), "reply.jpg"))
	} else {
		file = tu.FileFromURL(msg.ImageRef)
	}
	_, err := c.bot.SendPhoto(ctx, tu.Photo(tu.ID(chatID), file))
	return err
}

func (c *TelegramChannel) handleMessage(ctx context.Context, message *telego.Message) {
	if message == nil || message.From == nil {
		return
	}

	senderID := strconv.FormatInt(message.From.ID, 10)
	chatID := strconv.FormatInt(message.Chat.ID, 10)

	content := message.Text
	if content == "" {
		content = message.Caption
	}

	images := c.photoURLs(ctx, message.Photo)
	if message.ReplyToMessage != nil {
		images = append(images, c.photoURLs(ctx, message.ReplyToMessage.Photo)...)
	}

	if content == "" && len(images) == 0 {
		return
	}

	metadata := map[string]string{
		"message_id": strconv.Itoa(message.MessageID),
		"username":   message.From.Username,
	}
	c.HandleMessage(senderID, chatID, content, images, metadata)
}

// photoURLs resolves the largest size of each photo to a download URL.
func (c *TelegramChannel) photoURLs(ctx context.Context, photos []telego.PhotoSize) []string {
	if len(photos) == 0 {
		return nil
	}

	largest := photos[len(photos)-1]
	file, err := c.bot.GetFile(ctx, &telego.GetFileParams{FileID: largest.FileID})
	if err != nil || file.FilePath == "" {
		logger.WarnC("telegram", "resolve photo failed")
		return nil
	}
	return []string{c.bot.FileDownloadURL(file.FilePath)}
}

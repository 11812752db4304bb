package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/pagebot-ai/pagebot/internal/bus"
	"github.com/pagebot-ai/pagebot/internal/config"
	"github.com/pagebot-ai/pagebot/internal/relay"
)

// ErrNotConnected is returned when a send is attempted before Start.
var ErrNotConnected = errors.New("telegram bot not connected")

// Channel mirrors the relay pipeline onto Telegram via Bot API long
// polling. Every incoming text message runs through the same knowledge
// match and fallback flow as the primary webhook channel.
type Channel struct {
	bot    *telego.Bot
	config config.TelegramConfig
	engine *relay.Engine

	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// New creates the channel. The bot token is validated lazily; a bad token
// surfaces on Start.
func New(cfg config.TelegramConfig, engine *relay.Engine) (*Channel, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Channel{bot: bot, config: cfg, engine: engine}, nil
}

func (c *Channel) Name() string { return "telegram" }

// Ready reports whether the bot can deliver messages.
func (c *Channel) Ready() error {
	if c.bot == nil {
		return ErrNotConnected
	}
	return nil
}

// Start begins long polling for updates and feeds text messages into the
// relay engine as detached flows.
func (c *Channel) Start(ctx context.Context) error {
	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	slog.Info("telegram.connected", "username", c.bot.Username())

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					slog.Info("telegram.updates_closed")
					return
				}
				c.handleUpdate(pollCtx, update)
			}
		}
	}()

	return nil
}

func (c *Channel) handleUpdate(ctx context.Context, update telego.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		slog.Debug("telegram.update_skipped", "update_id", update.UpdateID)
		return
	}

	c.engine.ProcessDetached(ctx, bus.InboundEvent{
		Channel:   "telegram",
		SenderID:  strconv.FormatInt(msg.Chat.ID, 10),
		Text:      msg.Text,
		RequestID: uuid.NewString(),
	}, c)
}

// SendText delivers one text part to the chat identified by recipientID.
func (c *Channel) SendText(ctx context.Context, recipientID, text string) error {
	if err := c.Ready(); err != nil {
		return err
	}
	chatID, err := parseChatID(recipientID)
	if err != nil {
		return err
	}
	_, err = c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	if err != nil {
		return fmt.Errorf("telegram send message: %w", err)
	}
	return nil
}

// SendImage delivers one image part by URL; Telegram fetches the file.
func (c *Channel) SendImage(ctx context.Context, recipientID, url string) error {
	if err := c.Ready(); err != nil {
		return err
	}
	chatID, err := parseChatID(recipientID)
	if err != nil {
		return err
	}
	_, err = c.bot.SendPhoto(ctx, tu.Photo(tu.ID(chatID), tu.FileFromURL(url)))
	if err != nil {
		return fmt.Errorf("telegram send photo: %w", err)
	}
	return nil
}

// Stop cancels long polling and waits for the update loop to drain, so a
// restarted instance does not race the getUpdates lock.
func (c *Channel) Stop(_ context.Context) error {
	if c.pollCancel != nil {
		c.pollCancel()
	}
	if c.pollDone != nil {
		select {
		case <-c.pollDone:
			slog.Info("telegram.stopped")
		case <-time.After(10 * time.Second):
			slog.Warn("telegram.stop_timeout")
		}
	}
	return nil
}

func parseChatID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", s, err)
	}
	return id, nil
}

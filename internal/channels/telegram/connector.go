// Package telegram provides the Telegram chat channel using the Telego
// library. Inbound messages are long-polled and fed to the gateway; replies
// come back through the ChannelAdapter implementation.
//
// Features:
//   - Long polling for receiving updates
//   - Whitelist-based user authorization
//   - Graceful shutdown handling
package telegram

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/mymmrac/telego"

	"github.com/floguru/gurucore/internal/config"
	"github.com/floguru/gurucore/internal/gateway"
	"github.com/floguru/gurucore/internal/logger"
)

// ChannelName is the channel identifier used in inbound messages.
const ChannelName = "telegram"

// BotAPI is the subset of the Telego bot the connector uses. The seam keeps
// tests off the network.
type BotAPI interface {
	GetMe(ctx context.Context) (*telego.User, error)
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	UpdatesViaLongPolling(ctx context.Context, params *telego.GetUpdatesParams, opts ...telego.LongPollingOption) (<-chan telego.Update, error)
}

// MessageHandler runs an inbound message end to end. The gateway implements
// this.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg gateway.InboundMessage) (string, error)
}

// Connector is the Telegram channel.
type Connector struct {
	cfg     config.TelegramConfig
	log     *logger.Logger
	handler MessageHandler
	bot     BotAPI
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a Telegram connector.
func New(cfg config.TelegramConfig, log *logger.Logger, handler MessageHandler) *Connector {
	return &Connector{cfg: cfg, log: log, handler: handler}
}

// SetBot injects a bot implementation. Tests use this; Start creates the
// real Telego bot when none has been set.
func (c *Connector) SetBot(bot BotAPI) {
	c.bot = bot
}

// Start initializes the bot and begins long polling. A disabled connector
// starts as a no-op.
func (c *Connector) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		c.log.Info("telegram connector disabled in config")
		return nil
	}

	if c.bot == nil {
		bot, err := telego.NewBot(c.cfg.Token)
		if err != nil {
			return fmt.Errorf("failed to initialize telegram bot: %w", err)
		}
		c.bot = bot
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	botUser, err := c.bot.GetMe(c.ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	c.log.Info("telegram bot initialized",
		logger.Field{Key: "bot_id", Value: botUser.ID},
		logger.Field{Key: "username", Value: botUser.Username})

	updates, err := c.bot.UpdatesViaLongPolling(c.ctx, &telego.GetUpdatesParams{Timeout: 30})
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}
	go c.poll(updates)

	return nil
}

// Stop stops long polling.
func (c *Connector) Stop() {
	c.log.Info("stopping telegram connector")
	if c.cancel != nil {
		c.cancel()
	}
}

// Send delivers a reply to a Telegram chat. It implements
// gateway.ChannelAdapter; to is the chat id.
func (c *Connector) Send(ctx context.Context, channel, to, text string) error {
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", to, err)
	}

	timeout := time.Duration(c.cfg.SendTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err = c.bot.SendMessage(sendCtx, &telego.SendMessageParams{
		ChatID:    telego.ChatID{ID: chatID},
		Text:      text,
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

func (c *Connector) poll(updates <-chan telego.Update) {
	c.log.Info("telegram long polling started")

	for {
		select {
		case <-c.ctx.Done():
			c.log.Info("telegram long polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				c.log.Info("telegram updates channel closed")
				return
			}
			c.handleUpdate(update)
		}
	}
}

func (c *Connector) handleUpdate(update telego.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" || msg.From == nil {
		return
	}

	userID := strconv.FormatInt(msg.From.ID, 10)
	if !c.isAllowedUser(userID, msg.From.Username) {
		c.log.Warn("message from unauthorized user dropped",
			logger.Field{Key: "user_id", Value: userID})
		return
	}

	inbound := gateway.InboundMessage{
		Channel: ChannelName,
		From:    strconv.FormatInt(msg.Chat.ID, 10),
		Text:    msg.Text,
	}

	// Handled off the poll loop so a slow task never stalls polling. The
	// gateway sends the reply back through Send.
	go func() {
		if _, err := c.handler.HandleMessage(c.ctx, inbound); err != nil {
			c.log.Error("failed to handle telegram message", err,
				logger.Field{Key: "chat_id", Value: inbound.From})
		}
	}()
}

// isAllowedUser checks the whitelist; an empty whitelist allows everyone.
func (c *Connector) isAllowedUser(userID, username string) bool {
	if len(c.cfg.AllowedUsers) == 0 {
		return true
	}
	return slices.Contains(c.cfg.AllowedUsers, userID) ||
		(username != "" && slices.Contains(c.cfg.AllowedUsers, username))
}

// Package telegram posts approval notices to a Telegram chat and collects
// replies to them.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/MEKXH/shipgate/internal/config"
	"github.com/MEKXH/shipgate/internal/notify"
)

// botAPI is the slice of tgbotapi.BotAPI the channel uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// Channel implements notify.Channel over a Telegram bot. A posted notice is
// one message in the configured chat; its replies form the approval thread.
// Replies are filed by the message id they respond to, so a channel created
// after a restart can still collect replies for threads posted by a previous
// process.
type Channel struct {
	cfg       *config.TelegramConfig
	bot       botAPI
	allowList map[string]bool

	mu      sync.Mutex
	offset  int
	threads map[string][]notify.Response
}

// New connects the bot and returns a ready channel.
func New(cfg *config.TelegramConfig) (*Channel, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram init failed: %w", err)
	}
	return newWithBot(cfg, bot), nil
}

func newWithBot(cfg *config.TelegramConfig, bot botAPI) *Channel {
	allowList := make(map[string]bool)
	for _, id := range cfg.AllowFrom {
		allowList[id] = true
	}
	return &Channel{
		cfg:       cfg,
		bot:       bot,
		allowList: allowList,
		threads:   make(map[string][]notify.Response),
	}
}

func (c *Channel) Name() string { return "telegram" }

// Post sends the notice to the configured chat. The sent message id becomes
// the thread id replies are matched against.
func (c *Channel) Post(ctx context.Context, candidateID, text string) (string, error) {
	chatID, err := strconv.ParseInt(strings.TrimSpace(c.cfg.ChatID), 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid chat id %q: %w", c.cfg.ChatID, err)
	}

	sent, err := c.bot.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return "", fmt.Errorf("telegram send failed: %w", err)
	}
	return strconv.Itoa(sent.MessageID), nil
}

// Responses drains pending updates and returns the accumulated reply history
// for the thread. A thread with no replies yet yields an empty history, not
// an error. Replies from senders outside allow_from are dropped before they
// reach the approval scan.
func (c *Channel) Responses(ctx context.Context, threadID string) ([]notify.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.drainLocked(); err != nil {
		return nil, err
	}

	replies := c.threads[threadID]
	out := make([]notify.Response, len(replies))
	copy(out, replies)
	return out, nil
}

// drainLocked pulls pending updates and files chat replies under their
// thread. The offset only advances past updates we have seen, so nothing is
// lost between polls.
func (c *Channel) drainLocked() error {
	u := tgbotapi.NewUpdate(c.offset)
	u.Timeout = 0

	updates, err := c.bot.GetUpdates(u)
	if err != nil {
		return fmt.Errorf("telegram poll failed: %w", err)
	}

	for _, update := range updates {
		if update.UpdateID >= c.offset {
			c.offset = update.UpdateID + 1
		}
		msg := update.Message
		if msg == nil || msg.ReplyToMessage == nil || msg.From == nil {
			continue
		}
		senderID := strconv.FormatInt(msg.From.ID, 10)
		if len(c.allowList) > 0 && !c.allowList[senderID] {
			continue
		}
		body := msg.Text
		if body == "" {
			continue
		}
		threadID := strconv.Itoa(msg.ReplyToMessage.MessageID)
		author := msg.From.UserName
		if author == "" {
			author = senderID
		}
		c.threads[threadID] = append(c.threads[threadID], notify.Response{
			Author:   author,
			Body:     body,
			PostedAt: time.Unix(int64(msg.Date), 0).UTC(),
		})
	}
	return nil
}

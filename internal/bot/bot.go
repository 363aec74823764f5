package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bonus-drops/internal/config"
	"bonus-drops/internal/models"
	"bonus-drops/internal/queue"
	"bonus-drops/pkg/logger"

	"gopkg.in/telebot.v4"
)

var ErrRateLimited = errors.New("telegram rate limited")

const maxListedCodes = 10

type Repository interface {
	List(ctx context.Context, f models.BonusCodeFilters) ([]models.BonusCode, error)
	Stats(ctx context.Context) (models.Stats, error)
}

type Queue interface {
	PublishTelegramMessage(ctx context.Context, msg *queue.TelegramMessage) error
	ConsumeTelegramMessages(ctx context.Context, handler func(*queue.TelegramMessage) error) error
}

type sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Bot answers admin commands that arrive through the webhook and delivers
// queued notifications. It never polls; updates are fed in by ProcessUpdate.
type Bot struct {
	settings   telebot.Settings
	repo       Repository
	q          Queue
	tbot       *telebot.Bot
	send       sender
	cfg        config.TelegramConfig
	retryDelay time.Duration
}

func New(cfg config.TelegramConfig, repo Repository, q Queue) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	return &Bot{
		cfg:        cfg,
		repo:       repo,
		q:          q,
		retryDelay: time.Second,
		settings: telebot.Settings{
			Token:       cfg.BotToken,
			Synchronous: true,
			OnError: func(err error, c telebot.Context) {
				logger.Error("Telegram handler error", logger.Err(err))
			},
		},
	}, nil
}

func (b *Bot) Start() error {
	tbot, err := telebot.NewBot(b.settings)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	b.tbot = tbot
	b.send = tbot
	b.setupHandlers(tbot)

	return nil
}

// ProcessUpdate dispatches a webhook update to the command handlers.
func (b *Bot) ProcessUpdate(u telebot.Update) {
	if b.tbot == nil {
		return
	}
	b.tbot.ProcessUpdate(u)
}

func (b *Bot) setupHandlers(bot *telebot.Bot) {
	admin := bot.Group()
	admin.Use(b.adminOnly)

	admin.Handle("/codes", b.handleCodes)
	admin.Handle("/stats", b.handleStats)
	admin.Handle("/help", b.handleHelp)
	admin.Handle("/start", b.handleHelp)
}

// adminOnly drops commands from any chat other than the admin chat.
func (b *Bot) adminOnly(next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		chat := c.Chat()
		if chat == nil || b.cfg.AdminChatID == 0 || chat.ID != b.cfg.AdminChatID {
			var chatID int64
			if chat != nil {
				chatID = chat.ID
			}
			logger.Debug("Command from non-admin chat ignored",
				logger.Int64("chat_id", chatID),
				logger.String("text", c.Text()),
			)
			return nil
		}
		return next(c)
	}
}

// ConsumeNotifications delivers queued messages until ctx is cancelled.
func (b *Bot) ConsumeNotifications(ctx context.Context) error {
	if b.q == nil {
		return nil
	}

	err := b.q.ConsumeTelegramMessages(ctx, func(msg *queue.TelegramMessage) error {
		return b.sendMessageWithRetry(ctx, msg.ChatID, msg.Text)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("telegram consumer: %w", err)
	}
	return nil
}

// PublishTelegramMessage sends msg right away. It stands in for the queue
// when NATS is not configured.
func (b *Bot) PublishTelegramMessage(ctx context.Context, msg *queue.TelegramMessage) error {
	if b.send == nil {
		return fmt.Errorf("bot not started")
	}
	return b.sendMessageWithRetry(ctx, msg.ChatID, msg.Text)
}

func (b *Bot) sendMessageWithRetry(ctx context.Context, chatID int64, text string) error {
	maxRetries := 3
	retryDelay := b.retryDelay

	for i := 0; i < maxRetries; i++ {
		_, err := b.send.Send(&telebot.Chat{ID: chatID}, text, &telebot.SendOptions{
			ParseMode: telebot.ModeMarkdown,
		})

		if err != nil {
			errStr := err.Error()
			if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "retry after") {
				logger.Warn("Rate limited, retrying...",
					logger.Int("retry", i+1),
					logger.Int("max_retries", maxRetries),
				)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(retryDelay):
				}
				retryDelay *= 2
				continue
			}
			if permanent(err) {
				return fmt.Errorf("failed to send message: %w: %w", queue.ErrPermanent, err)
			}
			return fmt.Errorf("failed to send message: %w", err)
		}
		return nil
	}

	return ErrRateLimited
}

// permanent reports API refusals that resending cannot fix, such as an
// unknown chat or a bot blocked by the user.
func permanent(err error) bool {
	var apiErr *telebot.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests
}

func (b *Bot) queueOrSend(chatID int64, text string) error {
	if b.q != nil {
		msg := &queue.TelegramMessage{
			ChatID: chatID,
			Text:   text,
		}
		if err := b.q.PublishTelegramMessage(context.Background(), msg); err != nil {
			logger.Error("Failed to queue telegram message", logger.Err(err))
		}
		return nil
	}

	_, err := b.send.Send(&telebot.Chat{ID: chatID}, text, &telebot.SendOptions{
		ParseMode: telebot.ModeMarkdown,
	})
	return err
}

func (b *Bot) handleCodes(c telebot.Context) error {
	active, expired := true, false
	codes, err := b.repo.List(context.Background(), models.BonusCodeFilters{
		IsActive: &active,
		Expired:  &expired,
		Limit:    maxListedCodes,
	})
	if err != nil {
		logger.Error("Failed to list bonus codes", logger.Err(err))
		return b.queueOrSend(c.Chat().ID, "Failed to load bonus codes")
	}

	return b.queueOrSend(c.Chat().ID, FormatCodes(codes))
}

func (b *Bot) handleStats(c telebot.Context) error {
	stats, err := b.repo.Stats(context.Background())
	if err != nil {
		logger.Error("Failed to get statistics", logger.Err(err))
		return b.queueOrSend(c.Chat().ID, "Failed to get statistics")
	}

	return b.queueOrSend(c.Chat().ID, FormatStats(stats))
}

func (b *Bot) handleHelp(c telebot.Context) error {
	help := "*Help*\n\n" +
		"Commands:\n" +
		"- /codes - Active bonus codes\n" +
		"- /stats - Bonus code statistics\n" +
		"- /help - Show this help message"

	return b.queueOrSend(c.Chat().ID, help)
}

func FormatCodes(codes []models.BonusCode) string {
	if len(codes) == 0 {
		return "No active bonus codes right now."
	}

	var sb strings.Builder
	sb.WriteString("*Active bonus codes*\n")
	for _, code := range codes {
		fmt.Fprintf(&sb, "\n`%s` %s, %s claims, %s", code.Code, code.RewardAmount, code.ClaimsCount, code.ExpiryDuration)
		if code.MessageType == models.MessageTypeVIP {
			sb.WriteString(" (VIP)")
		}
	}
	return sb.String()
}

func FormatStats(s models.Stats) string {
	return fmt.Sprintf(
		"*Bonus Code Statistics*\n\n"+
			"Total codes: %d\n"+
			"Active codes: %d\n"+
			"VIP codes: %d\n"+
			"From Telegram: %d\n"+
			"Manual: %d",
		s.Total, s.Active, s.VIP, s.Telegram, s.Manual,
	)
}

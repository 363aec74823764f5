// Package ingest decides what happens to an inbound Telegram message: it
// filters by allowlist, drops redeliveries, parses bonus drops and hands
// them to storage, either directly or through the queue.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"bonus-drops/internal/database"
	"bonus-drops/internal/models"
	"bonus-drops/internal/parser"
	"bonus-drops/internal/queue"
	"bonus-drops/pkg/logger"
)

type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeNotBonus  Outcome = "not_bonus"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeUnparsed  Outcome = "unparsed"
	OutcomeQueued    Outcome = "queued"
	OutcomeStored    Outcome = "stored"
	OutcomeFailed    Outcome = "failed"
)

type Repository interface {
	GetByTelegramMessageID(ctx context.Context, chatID int64, messageID int) (*models.BonusCode, error)
	CodeExists(ctx context.Context, code string, chatID int64) (bool, error)
	Create(ctx context.Context, b *models.BonusCode) error
}

type Publisher interface {
	PublishBonusCode(ctx context.Context, code *models.BonusCode) error
}

type Notifier interface {
	PublishTelegramMessage(ctx context.Context, msg *queue.TelegramMessage) error
}

type DeliveryGuard interface {
	Claim(ctx context.Context, chatID int64, messageID int) (bool, error)
	Release(ctx context.Context, chatID int64, messageID int) error
}

type Allowlist interface {
	Allowed(chatID, senderID int64) bool
}

type Service struct {
	repo        Repository
	parser      *parser.Parser
	publisher   Publisher
	notifier    Notifier
	guard       DeliveryGuard
	allowlist   Allowlist
	adminChatID int64
}

type Option func(*Service)

// WithPublisher routes parsed codes through the queue instead of storing
// them inline.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithNotifier announces stored codes to adminChatID.
func WithNotifier(n Notifier, adminChatID int64) Option {
	return func(s *Service) {
		s.notifier = n
		s.adminChatID = adminChatID
	}
}

func WithDeliveryGuard(g DeliveryGuard) Option {
	return func(s *Service) { s.guard = g }
}

func WithAllowlist(a Allowlist) Option {
	return func(s *Service) { s.allowlist = a }
}

func WithParser(p *parser.Parser) Option {
	return func(s *Service) { s.parser = p }
}

func New(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		parser: parser.New(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// HandleMessage runs one inbound message through the pipeline. The error is
// only set for infrastructure failures; a message that is simply not a
// bonus drop is reported through the outcome.
func (s *Service) HandleMessage(ctx context.Context, msg models.RawMessage) (outcome Outcome, err error) {
	defer func() {
		if err != nil {
			outcome = OutcomeFailed
		}
		ingestTotal.WithLabelValues(string(outcome)).Inc()
	}()

	if s.allowlist != nil && !s.allowlist.Allowed(msg.ChatID, msg.SenderID) {
		logger.Debug("Message from chat not in allowlist ignored",
			logger.Int64("chat_id", msg.ChatID),
			logger.Int64("sender_id", msg.SenderID),
		)
		return OutcomeIgnored, nil
	}

	if !parser.IsValidBonusCodeMessage(msg.Text) {
		return OutcomeNotBonus, nil
	}

	if s.guard != nil {
		claimed, err := s.guard.Claim(ctx, msg.ChatID, msg.MessageID)
		if err != nil {
			// The repository check below still protects against duplicates.
			logger.Warn("Delivery guard unavailable", logger.Err(err))
		} else if !claimed {
			return OutcomeDuplicate, nil
		}
	}

	outcome, err = s.process(ctx, msg)
	if err != nil && s.guard != nil {
		if rerr := s.guard.Release(ctx, msg.ChatID, msg.MessageID); rerr != nil {
			logger.Warn("Failed to release delivery claim", logger.Err(rerr))
		}
	}
	return outcome, err
}

func (s *Service) process(ctx context.Context, msg models.RawMessage) (Outcome, error) {
	existing, err := s.repo.GetByTelegramMessageID(ctx, msg.ChatID, msg.MessageID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to look up message: %w", err)
	}
	if existing != nil {
		logger.Info("Bonus code already exists for this message",
			logger.Int64("chat_id", msg.ChatID),
			logger.Int("message_id", msg.MessageID),
		)
		return OutcomeDuplicate, nil
	}

	code, err := s.parser.Parse(msg)
	if err != nil {
		logger.Debug("Failed to parse bonus code from message",
			logger.Err(err),
			logger.Int64("chat_id", msg.ChatID),
			logger.Int("message_id", msg.MessageID),
		)
		return OutcomeUnparsed, nil
	}

	if s.publisher != nil {
		if err := s.publisher.PublishBonusCode(ctx, code); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeQueued, nil
	}

	return s.store(ctx, code)
}

// Store persists a parsed code unless the same code was already recorded
// for its chat. It is the queue consumer's handler.
func (s *Service) Store(ctx context.Context, code *models.BonusCode) error {
	outcome, err := s.store(ctx, code)
	if err != nil {
		outcome = OutcomeFailed
	}
	storeTotal.WithLabelValues(string(outcome)).Inc()
	return err
}

func (s *Service) store(ctx context.Context, code *models.BonusCode) (Outcome, error) {
	exists, err := s.repo.CodeExists(ctx, code.Code, code.ChatID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to check code: %w", err)
	}
	if exists {
		logger.Info("Bonus code already exists", logger.String("code", code.Code))
		return OutcomeDuplicate, nil
	}

	if err := s.repo.Create(ctx, code); err != nil {
		if errors.Is(err, database.ErrBonusCodeExists) {
			return OutcomeDuplicate, nil
		}
		return OutcomeFailed, err
	}

	logger.Info("Bonus code saved",
		logger.String("id", code.ID),
		logger.String("code", code.Code),
		logger.String("message_type", string(code.MessageType)),
	)

	s.notify(ctx, code)
	return OutcomeStored, nil
}

func (s *Service) notify(ctx context.Context, code *models.BonusCode) {
	if s.notifier == nil || s.adminChatID == 0 {
		return
	}

	msg := &queue.TelegramMessage{
		ChatID: s.adminChatID,
		Text:   FormatAnnouncement(code),
	}
	if err := s.notifier.PublishTelegramMessage(ctx, msg); err != nil {
		logger.Error("Failed to queue admin notification", logger.Err(err))
	}
}

// FormatAnnouncement renders a stored code as a Markdown chat message.
func FormatAnnouncement(code *models.BonusCode) string {
	return fmt.Sprintf(
		"*New %s*\n\nCode: `%s`\nReward: %s\nWagered: %s\nClaims: %s\nExpires: %s",
		code.MessageType, code.Code, code.RewardAmount, code.WageredRequirement,
		code.ClaimsCount, code.ExpiryDuration,
	)
}

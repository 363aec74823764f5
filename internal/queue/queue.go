package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bonus-drops/internal/config"
	"bonus-drops/internal/models"
	"bonus-drops/pkg/logger"

	"github.com/nats-io/nats.go"
)

const (
	BonusSubject    = "bonus.parsed"
	TelegramSubject = "telegram.send"

	bonusConsumer    = "bonus-store"
	telegramConsumer = "telegram-notify"

	// maxDeliver bounds redelivery of messages whose handler keeps failing.
	maxDeliver = 5
)

type NATS struct {
	conn      *nats.Conn
	jetstream nats.JetStreamContext
	cfg       config.NATSConfig
}

func New(cfg config.NATSConfig) (*NATS, error) {
	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to get JetStream: %w", err)
	}

	n := &NATS{
		conn:      conn,
		jetstream: js,
		cfg:       cfg,
	}

	if err := n.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}

	return n, nil
}

func (n *NATS) ensureStream() error {
	_, err := n.jetstream.StreamInfo(n.cfg.StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", n.cfg.StreamName, err)
	}

	_, err = n.jetstream.AddStream(&nats.StreamConfig{
		Name:     n.cfg.StreamName,
		Subjects: []string{BonusSubject, TelegramSubject},
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", n.cfg.StreamName, err)
	}
	logger.Info("Created JetStream stream", logger.String("stream", n.cfg.StreamName))
	return nil
}

func (n *NATS) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

// BonusMessage is a parsed bonus code waiting to be stored.
type BonusMessage struct {
	Code *models.BonusCode `json:"code"`
}

// PublishBonusCode uses chat and message id as the JetStream message id so
// the server drops duplicates inside its dedup window.
func (n *NATS) PublishBonusCode(ctx context.Context, code *models.BonusCode) error {
	data, err := json.Marshal(BonusMessage{Code: code})
	if err != nil {
		return fmt.Errorf("failed to marshal bonus code: %w", err)
	}

	_, err = n.jetstream.Publish(BonusSubject, data,
		nats.Context(ctx),
		nats.MsgId(DedupID(code.ChatID, code.TelegramMessageID)),
	)
	if err != nil {
		return fmt.Errorf("failed to publish bonus code: %w", err)
	}

	logger.Debug("Bonus code published to queue",
		logger.String("code", code.Code),
		logger.Int64("chat_id", code.ChatID),
		logger.Int("message_id", code.TelegramMessageID),
	)

	return nil
}

func DedupID(chatID int64, messageID int) string {
	return fmt.Sprintf("%d:%d", chatID, messageID)
}

type TelegramMessage struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

func (n *NATS) PublishTelegramMessage(ctx context.Context, msg *TelegramMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram message: %w", err)
	}

	_, err = n.jetstream.Publish(TelegramSubject, data, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to publish telegram message: %w", err)
	}

	logger.Debug("Telegram message published to queue",
		logger.Int64("chat_id", msg.ChatID),
	)

	return nil
}

func (n *NATS) ConsumeBonusCodes(ctx context.Context, handler func(context.Context, *models.BonusCode) error) error {
	return n.consume(ctx, BonusSubject, bonusConsumer, func(data []byte) error {
		var msg BonusMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}
		if msg.Code == nil {
			return fmt.Errorf("%w: empty bonus message", ErrPermanent)
		}
		return handler(ctx, msg.Code)
	})
}

func (n *NATS) ConsumeTelegramMessages(ctx context.Context, handler func(*TelegramMessage) error) error {
	return n.consume(ctx, TelegramSubject, telegramConsumer, func(data []byte) error {
		var msg TelegramMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}
		return handler(&msg)
	})
}

// ErrPermanent marks messages that can never be handled. Handlers wrap it
// so the message is terminated instead of redelivered.
var ErrPermanent = errors.New("message cannot be delivered")

type acker interface {
	Ack(opts ...nats.AckOpt) error
	Nak(opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
}

func settle(msg acker, err error) error {
	switch {
	case err == nil:
		return msg.Ack()
	case errors.Is(err, ErrPermanent):
		return msg.Term()
	default:
		return msg.Nak()
	}
}

func (n *NATS) consume(ctx context.Context, subject, durable string, handle func([]byte) error) error {
	sub, err := n.jetstream.PullSubscribe(
		subject,
		durable,
		nats.BindStream(n.cfg.StreamName),
		nats.MaxDeliver(maxDeliver),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgs, err := sub.Fetch(10, nats.MaxWait(500*time.Millisecond))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			return fmt.Errorf("failed to fetch messages: %w", err)
		}

		for _, msg := range msgs {
			err := handle(msg.Data)
			if err != nil {
				logger.Error("Failed to process queued message",
					logger.Err(err),
					logger.String("subject", subject),
					logger.Bool("permanent", errors.Is(err, ErrPermanent)),
				)
			}
			if err := settle(msg, err); err != nil {
				logger.Warn("Failed to settle queued message",
					logger.Err(err),
					logger.String("subject", subject),
				)
			}
		}
	}
}

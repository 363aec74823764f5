// Package parser turns Rainbet bonus drop announcements into bonus code
// records. A drop is a fixed template of one field per line:
//
//	Rainbet Bonus
//	Bonus Drop!
//	Reward: $2-$30
//	Wagered: $5,000-$72,000 past 30 days
//	Claims: 200-300
//	Claimable for 24 Hours
//	Code: RAIN9HLC
//
// The expiry line is optional. Parsing is pure; a Parser is safe for
// concurrent use.
package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"bonus-drops/internal/models"
)

// minLines is title, banner, reward, wagered, claims and code.
const minLines = 6

type Parser struct {
	now func() time.Time
}

type Option func(*Parser)

// WithClock replaces the clock used for the generated record id.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		p.now = now
	}
}

func New(opts ...Option) *Parser {
	p := &Parser{now: time.Now}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ParseMessage returns the bonus code announced by msg, or nil when msg is
// not a complete bonus drop.
func (p *Parser) ParseMessage(msg models.RawMessage) *models.BonusCode {
	code, err := p.Parse(msg)
	if err != nil {
		return nil
	}
	return code
}

// Parse is ParseMessage with the rejection reason. The error is one of
// ErrEmptyMessage, ErrTooFewLines, *MissingFieldError, *MalformedFieldError
// or a recovered internal failure.
func (p *Parser) Parse(msg models.RawMessage) (code *models.BonusCode, err error) {
	if msg.Text == "" {
		return nil, ErrEmptyMessage
	}

	lines := splitLines(msg.Text)
	if len(lines) < minLines {
		return nil, ErrTooFewLines
	}

	defer func() {
		if r := recover(); r != nil {
			code, err = nil, fmt.Errorf("parse bonus message: %v", r)
		}
	}()

	return p.build(scan(lines), msg)
}

func (p *Parser) build(set *matchSet, msg models.RawMessage) (*models.BonusCode, error) {
	for _, f := range []Field{FieldTitle, FieldReward, FieldWagered, FieldClaims, FieldCode} {
		if !set.has(f) {
			return nil, &MissingFieldError{Field: f}
		}
	}

	codes := splitCodes(set[FieldCode][1])
	if len(codes) == 0 {
		return nil, &MalformedFieldError{Field: FieldCode, Value: set[FieldCode][0], Err: ErrEmptyCode}
	}

	reward, err := formatReward(set[FieldReward][1], set[FieldReward][2])
	if err != nil {
		return nil, err
	}

	wagered, err := formatWagered(set[FieldWagered][1], set[FieldWagered][2], set[FieldWagered][3])
	if err != nil {
		return nil, err
	}

	claims, err := formatClaims(set[FieldClaims][1], set[FieldClaims][2])
	if err != nil {
		return nil, err
	}

	receivedAt := msg.ReceivedAt()

	expiryDuration := models.NeverExpires
	var expiresAt *time.Time
	if set.has(FieldExpiry) {
		hours, err := strconv.Atoi(set[FieldExpiry][1])
		if err != nil {
			return nil, &MalformedFieldError{Field: FieldExpiry, Value: set[FieldExpiry][1], Err: err}
		}
		// time.Duration is int64 nanoseconds.
		if int64(hours) > math.MaxInt64/int64(time.Hour) {
			return nil, &MalformedFieldError{Field: FieldExpiry, Value: set[FieldExpiry][1], Err: ErrExpiryOutOfRange}
		}
		expiryDuration = formatExpiry(hours)
		t := receivedAt.Add(time.Duration(hours) * time.Hour)
		expiresAt = &t
	}

	messageType := models.MessageTypeStandard
	if strings.Contains(strings.ToLower(set[FieldTitle][1]), "vip") {
		messageType = models.MessageTypeVIP
	}

	return &models.BonusCode{
		ID:                 GenerateID(msg.ChatID, msg.MessageID, p.now()),
		Code:               codes[0],
		RewardAmount:       reward,
		WageredRequirement: wagered,
		ClaimsCount:        claims,
		ExpiryDuration:     expiryDuration,
		MessageType:        messageType,
		OriginalMessage:    msg.Text,
		TelegramMessageID:  msg.MessageID,
		ChatID:             msg.ChatID,
		CreatedAt:          receivedAt,
		ExpiresAt:          expiresAt,
		IsActive:           true,
		Source:             models.SourceTelegram,
	}, nil
}

// GenerateID builds a display id for a parsed record. It is unique per call
// in practice but is not a dedup key; use ChatID and TelegramMessageID.
func GenerateID(chatID int64, messageID int, at time.Time) string {
	return fmt.Sprintf("bonus_%d_%d_%d", chatID, messageID, at.UnixMilli())
}

// IsValidBonusCodeMessage is a cheap pre-filter: text must contain a title,
// a reward and a code line.
func IsValidBonusCodeMessage(text string) bool {
	if text == "" {
		return false
	}

	lines := splitLines(text)

	return anyLineMatches(lines, FieldTitle) &&
		anyLineMatches(lines, FieldReward) &&
		anyLineMatches(lines, FieldCode)
}

// ExtractAllCodes returns every alternative on a code line, in order.
func ExtractAllCodes(codeLine string) []string {
	groups, ok := matchers[FieldCode].tryMatch(strings.TrimSpace(codeLine))
	if !ok {
		return []string{}
	}
	return splitCodes(groups[1])
}

package models

import (
	"encoding/json"
	"time"
)

// ISOMillis is the timestamp layout used for createdAt/expiresAt on the wire.
const ISOMillis = "2006-01-02T15:04:05.000Z07:00"

// NeverExpires is the expiry duration recorded when a drop carries no
// "Claimable for" line. ExpiresAt is nil exactly when this value is set.
const NeverExpires = "Never expires"

type MessageType string

const (
	MessageTypeStandard MessageType = "Rainbet Bonus"
	MessageTypeVIP      MessageType = "Rainbet Vip Bonus"
)

func (t MessageType) Valid() bool {
	return t == MessageTypeStandard || t == MessageTypeVIP
}

type Source string

const (
	SourceTelegram Source = "telegram"
	SourceManual   Source = "manual"
)

func (s Source) Valid() bool {
	return s == SourceTelegram || s == SourceManual
}

// RawMessage is one inbound chat message as handed to the parser.
// An empty Text means the message carried no text. SenderID is 0 when the
// message has no sender, e.g. channel posts.
type RawMessage struct {
	Text      string
	ChatID    int64
	MessageID int
	SenderID  int64
	Date      int64
}

func (m RawMessage) ReceivedAt() time.Time {
	return time.Unix(m.Date, 0).UTC()
}

type BonusCode struct {
	ID                 string      `json:"id"`
	Code               string      `json:"code"`
	RewardAmount       string      `json:"rewardAmount"`
	WageredRequirement string      `json:"wageredRequirement"`
	ClaimsCount        string      `json:"claimsCount"`
	ExpiryDuration     string      `json:"expiryDuration"`
	MessageType        MessageType `json:"messageType"`
	OriginalMessage    string      `json:"originalMessage"`
	TelegramMessageID  int         `json:"telegramMessageId"`
	ChatID             int64       `json:"chatId"`
	CreatedAt          time.Time   `json:"createdAt"`
	ExpiresAt          *time.Time  `json:"expiresAt"`
	IsActive           bool        `json:"isActive"`
	Source             Source      `json:"source"`
}

// IsExpired reports whether the code has an expiry that lies before now.
func (b *BonusCode) IsExpired(now time.Time) bool {
	return b.ExpiresAt != nil && b.ExpiresAt.Before(now)
}

func (b BonusCode) MarshalJSON() ([]byte, error) {
	type alias BonusCode
	var expiresAt *string
	if b.ExpiresAt != nil {
		s := b.ExpiresAt.UTC().Format(ISOMillis)
		expiresAt = &s
	}
	return json.Marshal(struct {
		alias
		CreatedAt string  `json:"createdAt"`
		ExpiresAt *string `json:"expiresAt"`
	}{
		alias:     alias(b),
		CreatedAt: b.CreatedAt.UTC().Format(ISOMillis),
		ExpiresAt: expiresAt,
	})
}

// BonusCodeFilters narrows a listing. Nil fields do not filter.
type BonusCodeFilters struct {
	IsActive    *bool
	MessageType MessageType
	Source      Source
	Expired     *bool
	Limit       int
}

// BonusCodeUpdate carries a partial update. Nil fields are left untouched.
type BonusCodeUpdate struct {
	IsActive           *bool      `json:"isActive"`
	ExpiresAt          *time.Time `json:"expiresAt"`
	RewardAmount       *string    `json:"rewardAmount"`
	WageredRequirement *string    `json:"wageredRequirement"`
	ClaimsCount        *string    `json:"claimsCount"`
}

func (u BonusCodeUpdate) Empty() bool {
	return u.IsActive == nil && u.ExpiresAt == nil && u.RewardAmount == nil &&
		u.WageredRequirement == nil && u.ClaimsCount == nil
}

type Stats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	VIP      int `json:"vip"`
	Telegram int `json:"telegram"`
	Manual   int `json:"manual"`
}

package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"bonus-drops/internal/models"

	"github.com/nats-io/nats.go"
)

func TestBonusMessageCarriesIdentity(t *testing.T) {
	created := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	msg := BonusMessage{Code: &models.BonusCode{
		ID:                "bonus_-100_7_1",
		Code:              "RAIN9HLC",
		ChatID:            -100,
		TelegramMessageID: 7,
		CreatedAt:         created,
		ExpiryDuration:    models.NeverExpires,
		Source:            models.SourceTelegram,
	}}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to marshal BonusMessage: %v", err)
	}

	var parsed BonusMessage
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Failed to unmarshal BonusMessage: %v", err)
	}

	if parsed.Code == nil {
		t.Fatal("Code = nil after round trip")
	}
	if parsed.Code.ChatID != -100 || parsed.Code.TelegramMessageID != 7 {
		t.Errorf("identity = (%d, %d), want (-100, 7)", parsed.Code.ChatID, parsed.Code.TelegramMessageID)
	}
	if !parsed.Code.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", parsed.Code.CreatedAt, created)
	}
	if parsed.Code.ExpiresAt != nil {
		t.Errorf("ExpiresAt = %v, want nil", parsed.Code.ExpiresAt)
	}
}

func TestDedupID(t *testing.T) {
	tests := []struct {
		chatID    int64
		messageID int
		want      string
	}{
		{-1001234567890, 42, "-1001234567890:42"},
		{0, 0, "0:0"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := DedupID(tt.chatID, tt.messageID); got != tt.want {
				t.Errorf("DedupID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubjectsCoveredByStream(t *testing.T) {
	for _, s := range []string{BonusSubject, TelegramSubject} {
		if strings.ContainsAny(s, " *>") {
			t.Errorf("subject %q must be a literal subject", s)
		}
	}
	if bonusConsumer == telegramConsumer {
		t.Error("consumers must use distinct durable names")
	}
}

type fakeAcker struct {
	calls []string
}

func (a *fakeAcker) Ack(...nats.AckOpt) error  { a.calls = append(a.calls, "ack"); return nil }
func (a *fakeAcker) Nak(...nats.AckOpt) error  { a.calls = append(a.calls, "nak"); return nil }
func (a *fakeAcker) Term(...nats.AckOpt) error { a.calls = append(a.calls, "term"); return nil }

func TestSettle(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"handled", nil, "ack"},
		{"transient failure", errors.New("connection reset"), "nak"},
		{"permanent failure", fmt.Errorf("send: %w: chat not found", ErrPermanent), "term"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &fakeAcker{}
			if err := settle(a, tt.err); err != nil {
				t.Fatalf("settle() error = %v", err)
			}
			if len(a.calls) != 1 || a.calls[0] != tt.want {
				t.Errorf("calls = %v, want [%s]", a.calls, tt.want)
			}
		})
	}
}

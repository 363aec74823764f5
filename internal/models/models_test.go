package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBonusCodeJSONTimestamps(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := created.Add(24 * time.Hour)

	tests := []struct {
		name        string
		expiresAt   *time.Time
		wantExpires any
	}{
		{"with expiry", &expires, "2025-03-02T12:00:00.000Z"},
		{"never expires", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := BonusCode{
				ID:        "bonus_1_2_3",
				Code:      "RAIN9HLC",
				CreatedAt: created,
				ExpiresAt: tt.expiresAt,
				IsActive:  true,
				Source:    SourceTelegram,
			}

			data, err := json.Marshal(code)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}

			var out map[string]any
			if err := json.Unmarshal(data, &out); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}

			if out["createdAt"] != "2025-03-01T12:00:00.000Z" {
				t.Errorf("createdAt = %v", out["createdAt"])
			}
			if out["expiresAt"] != tt.wantExpires {
				t.Errorf("expiresAt = %v, want %v", out["expiresAt"], tt.wantExpires)
			}
			if out["code"] != "RAIN9HLC" {
				t.Errorf("code = %v", out["code"])
			}
			if out["source"] != "telegram" {
				t.Errorf("source = %v", out["source"])
			}
		})
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{"no expiry", nil, false},
		{"past", &past, true},
		{"future", &future, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &BonusCode{ExpiresAt: tt.expiresAt}
			if got := b.IsExpired(now); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnumValidity(t *testing.T) {
	if !MessageTypeStandard.Valid() || !MessageTypeVIP.Valid() {
		t.Error("known message types should be valid")
	}
	if MessageType("Stake Bonus").Valid() {
		t.Error("unknown message type should be invalid")
	}
	if !SourceTelegram.Valid() || !SourceManual.Valid() {
		t.Error("known sources should be valid")
	}
	if Source("discord").Valid() {
		t.Error("unknown source should be invalid")
	}
}

func TestBonusCodeUpdateEmpty(t *testing.T) {
	if !(BonusCodeUpdate{}).Empty() {
		t.Error("zero update should be empty")
	}
	active := false
	if (BonusCodeUpdate{IsActive: &active}).Empty() {
		t.Error("update with IsActive should not be empty")
	}
}

func TestRawMessageReceivedAt(t *testing.T) {
	m := RawMessage{Date: 1700000000}
	want := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	if got := m.ReceivedAt(); !got.Equal(want) {
		t.Errorf("ReceivedAt() = %v, want %v", got, want)
	}
}

package parser

import (
	"errors"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"bonus-drops/internal/models"
)

const canonicalDrop = `Rainbet Bonus
Bonus Drop!
Reward: $2-$30
Wagered: $5,000-$72,000 past 30 days
Claims: 200-300
Claimable for 24 Hours
Code: RAIN9HLC`

const receivedUnix = 1735732800 // 2025-01-01T12:00:00Z

var fixedNow = time.Date(2025, 1, 1, 12, 0, 5, 0, time.UTC)

func newTestParser() *Parser {
	return New(WithClock(func() time.Time { return fixedNow }))
}

func rawMessage(text string) models.RawMessage {
	return models.RawMessage{
		Text:      text,
		ChatID:    -1001234567890,
		MessageID: 42,
		Date:      receivedUnix,
	}
}

func TestParseCanonicalMessage(t *testing.T) {
	got := newTestParser().ParseMessage(rawMessage(canonicalDrop))
	if got == nil {
		t.Fatal("ParseMessage() = nil, want bonus code")
	}

	received := time.Unix(receivedUnix, 0).UTC()

	if got.Code != "RAIN9HLC" {
		t.Errorf("Code = %q, want RAIN9HLC", got.Code)
	}
	if got.RewardAmount != "$2-$30" {
		t.Errorf("RewardAmount = %q, want $2-$30", got.RewardAmount)
	}
	if got.WageredRequirement != "$5,000-$72,000 past 30 days" {
		t.Errorf("WageredRequirement = %q", got.WageredRequirement)
	}
	if got.ClaimsCount != "200-300" {
		t.Errorf("ClaimsCount = %q, want 200-300", got.ClaimsCount)
	}
	if got.ExpiryDuration != "24 Hours" {
		t.Errorf("ExpiryDuration = %q, want 24 Hours", got.ExpiryDuration)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(received.Add(24*time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, received.Add(24*time.Hour))
	}
	if got.MessageType != models.MessageTypeStandard {
		t.Errorf("MessageType = %q, want %q", got.MessageType, models.MessageTypeStandard)
	}
	if !got.CreatedAt.Equal(received) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, received)
	}
	if got.OriginalMessage != canonicalDrop {
		t.Errorf("OriginalMessage not kept verbatim: %q", got.OriginalMessage)
	}
	if got.ChatID != -1001234567890 || got.TelegramMessageID != 42 {
		t.Errorf("identity = (%d, %d), want (-1001234567890, 42)", got.ChatID, got.TelegramMessageID)
	}
	if !got.IsActive {
		t.Error("IsActive = false, want true")
	}
	if got.Source != models.SourceTelegram {
		t.Errorf("Source = %q, want telegram", got.Source)
	}
	if want := "bonus_-1001234567890_42_1735732805000"; got.ID != want {
		t.Errorf("ID = %q, want %q", got.ID, want)
	}
}

func TestParseVIPTitle(t *testing.T) {
	p := newTestParser()
	standard := p.ParseMessage(rawMessage(canonicalDrop))
	vip := p.ParseMessage(rawMessage(strings.Replace(canonicalDrop, "Rainbet Bonus", "Rainbet Vip Bonus", 1)))

	if vip == nil || standard == nil {
		t.Fatal("ParseMessage() = nil")
	}
	if vip.MessageType != models.MessageTypeVIP {
		t.Errorf("MessageType = %q, want %q", vip.MessageType, models.MessageTypeVIP)
	}

	vip.MessageType, vip.OriginalMessage = standard.MessageType, standard.OriginalMessage
	if !reflect.DeepEqual(vip, standard) {
		t.Errorf("VIP title changed other fields:\n got %+v\nwant %+v", vip, standard)
	}
}

func TestParseWithoutExpiry(t *testing.T) {
	text := strings.Replace(canonicalDrop, "Claimable for 24 Hours\n", "", 1)

	got := newTestParser().ParseMessage(rawMessage(text))
	if got == nil {
		t.Fatal("ParseMessage() = nil, want bonus code")
	}
	if got.ExpiryDuration != models.NeverExpires {
		t.Errorf("ExpiryDuration = %q, want %q", got.ExpiryDuration, models.NeverExpires)
	}
	if got.ExpiresAt != nil {
		t.Errorf("ExpiresAt = %v, want nil", got.ExpiresAt)
	}
	if got.Code != "RAIN9HLC" || got.RewardAmount != "$2-$30" || got.ClaimsCount != "200-300" {
		t.Errorf("other fields not extracted: %+v", got)
	}
}

func TestParseFieldFormatting(t *testing.T) {
	tests := []struct {
		name  string
		from  string
		to    string
		field func(*models.BonusCode) string
		want  string
	}{
		{"single reward", "Reward: $2-$30", "Reward: $10", rewardOf, "$10"},
		{"equal reward range", "Reward: $2-$30", "Reward: $10-$10", rewardOf, "$10"},
		{"fractional reward", "Reward: $2-$30", "Reward: $2.50-$30.75", rewardOf, "$2.5-$30.75"},
		{"reward without dollar signs", "Reward: $2-$30", "Reward: 5-15", rewardOf, "$5-$15"},
		{"single claims", "Claims: 200-300", "Claims: 250", claimsOf, "250"},
		{"equal claims range", "Claims: 200-300", "Claims: 250-250", claimsOf, "250"},
		{"wagered regrouped", "Wagered: $5,000-$72,000 past 30 days", "Wagered: $5000-$1234567 past 7 days", wageredOf, "$5,000-$1,234,567 past 7 days"},
		{"wagered single", "Wagered: $5,000-$72,000 past 30 days", "Wagered: $750 past 14 days", wageredOf, "$750 past 14 days"},
		{"wagered equal after stripping", "Wagered: $5,000-$72,000 past 30 days", "Wagered: $5,000-$5000 past 30 days", wageredOf, "$5,000 past 30 days"},
		{"one hour", "Claimable for 24 Hours", "Claimable for 1 Hour", expiryOf, "1 Hour"},
		{"plural hours", "Claimable for 24 Hours", "Claimable for 2 Hour", expiryOf, "2 Hours"},
		{"multi code line", "Code: RAIN9HLC", "Code: RAIN9HLC / RainM5LK / RainQ2HF", codeOf, "RAIN9HLC"},
		{"lowercase keys", "Code: RAIN9HLC", "code: abc123", codeOf, "abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Replace(canonicalDrop, tt.from, tt.to, 1)
			got := newTestParser().ParseMessage(rawMessage(text))
			if got == nil {
				t.Fatalf("ParseMessage() = nil for %q", tt.to)
			}
			if v := tt.field(got); v != tt.want {
				t.Errorf("got %q, want %q", v, tt.want)
			}
		})
	}
}

func rewardOf(b *models.BonusCode) string  { return b.RewardAmount }
func claimsOf(b *models.BonusCode) string  { return b.ClaimsCount }
func wageredOf(b *models.BonusCode) string { return b.WageredRequirement }
func expiryOf(b *models.BonusCode) string  { return b.ExpiryDuration }
func codeOf(b *models.BonusCode) string    { return b.Code }

func TestParseExpiryHours(t *testing.T) {
	text := strings.Replace(canonicalDrop, "Claimable for 24 Hours", "Claimable for 1 Hour", 1)
	got := newTestParser().ParseMessage(rawMessage(text))
	if got == nil {
		t.Fatal("ParseMessage() = nil")
	}

	want := time.Unix(receivedUnix, 0).UTC().Add(time.Hour)
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, want)
	}
}

func TestParseRejections(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
		field   Field
	}{
		{"empty", "", ErrEmptyMessage, 0},
		{"whitespace only", "  \n\n \t", ErrTooFewLines, 0},
		{"banner and expiry dropped", strings.NewReplacer("Bonus Drop!\n", "", "Claimable for 24 Hours\n", "").Replace(canonicalDrop), ErrTooFewLines, 0},
		{"missing title", strings.Replace(canonicalDrop, "Rainbet Bonus", "Stake Bonus", 1), nil, FieldTitle},
		{"missing reward", strings.Replace(canonicalDrop, "Reward: $2-$30", "Reward: lots", 1), nil, FieldReward},
		{"missing wagered", strings.Replace(canonicalDrop, "Wagered: $5,000-$72,000 past 30 days", "Wagered: $5,000", 1), nil, FieldWagered},
		{"missing claims", strings.Replace(canonicalDrop, "Claims: 200-300", "Claims: many", 1), nil, FieldClaims},
		{"missing code", strings.Replace(canonicalDrop, "Code: RAIN9HLC", "Code: RAIN-9HLC", 1), nil, FieldCode},
		{"title with trailing text", strings.Replace(canonicalDrop, "Rainbet Bonus", "Rainbet Bonus today", 1), nil, FieldTitle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestParser()
			msg := rawMessage(tt.text)

			if got := p.ParseMessage(msg); got != nil {
				t.Fatalf("ParseMessage() = %+v, want nil", got)
			}

			_, err := p.Parse(msg)
			if err == nil {
				t.Fatal("Parse() error = nil")
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
				}
				return
			}

			var missing *MissingFieldError
			if !errors.As(err, &missing) {
				t.Fatalf("Parse() error = %v, want *MissingFieldError", err)
			}
			if missing.Field != tt.field {
				t.Errorf("missing field = %v, want %v", missing.Field, tt.field)
			}
		})
	}
}

func TestParseMalformedNumbers(t *testing.T) {
	tests := []struct {
		name  string
		from  string
		to    string
		field Field
	}{
		{"separator-only wager", "Wagered: $5,000-$72,000 past 30 days", "Wagered: $,,,-$5 past 30 days", FieldWagered},
		{"claims overflow", "Claims: 200-300", "Claims: 99999999999999999999999", FieldClaims},
		{"expiry overflow", "Claimable for 24 Hours", "Claimable for 99999999999999999999999 Hours", FieldExpiry},
		{"expiry past duration range", "Claimable for 24 Hours", "Claimable for 3000000 Hours", FieldExpiry},
		{"expiry far past duration range", "Claimable for 24 Hours", "Claimable for 9000000000 Hours", FieldExpiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := rawMessage(strings.Replace(canonicalDrop, tt.from, tt.to, 1))

			_, err := newTestParser().Parse(msg)

			var malformed *MalformedFieldError
			if !errors.As(err, &malformed) {
				t.Fatalf("Parse() error = %v, want *MalformedFieldError", err)
			}
			if malformed.Field != tt.field {
				t.Errorf("field = %v, want %v", malformed.Field, tt.field)
			}
			if errors.Unwrap(malformed) == nil {
				t.Error("MalformedFieldError should wrap the conversion error")
			}
		})
	}
}

func TestParseExpiryDurationBound(t *testing.T) {
	maxHours := math.MaxInt64 / int64(time.Hour)

	at := strings.Replace(canonicalDrop, "24 Hours", strconv.FormatInt(maxHours, 10)+" Hours", 1)
	got, err := newTestParser().Parse(rawMessage(at))
	if err != nil {
		t.Fatalf("Parse() at bound error = %v", err)
	}
	if !got.ExpiresAt.After(got.CreatedAt) {
		t.Errorf("ExpiresAt = %v, want after CreatedAt %v", got.ExpiresAt, got.CreatedAt)
	}

	past := strings.Replace(canonicalDrop, "24 Hours", strconv.FormatInt(maxHours+1, 10)+" Hours", 1)
	if _, err := newTestParser().Parse(rawMessage(past)); !errors.Is(err, ErrExpiryOutOfRange) {
		t.Errorf("Parse() past bound error = %v, want ErrExpiryOutOfRange", err)
	}
}

func TestParseFirstMatchWins(t *testing.T) {
	text := canonicalDrop + "\nReward: $999\nCode: SECOND1\nRainbet Vip Bonus"

	got := newTestParser().ParseMessage(rawMessage(text))
	if got == nil {
		t.Fatal("ParseMessage() = nil")
	}
	if got.RewardAmount != "$2-$30" {
		t.Errorf("RewardAmount = %q, want first match $2-$30", got.RewardAmount)
	}
	if got.Code != "RAIN9HLC" {
		t.Errorf("Code = %q, want first match RAIN9HLC", got.Code)
	}
	if got.MessageType != models.MessageTypeStandard {
		t.Errorf("MessageType = %q, want first title", got.MessageType)
	}
}

func TestParseWhitespaceAndCase(t *testing.T) {
	text := "\n  RAINBET BONUS \n\n   Bonus Drop!\r\n Reward: $2-$30\t\nWAGERED: $5,000 PAST 30 DAYS\nclaims: 5\n  CODE: AbC123  \n"

	got := newTestParser().ParseMessage(rawMessage(text))
	if got == nil {
		t.Fatal("ParseMessage() = nil")
	}
	if got.Code != "AbC123" {
		t.Errorf("Code = %q, want AbC123", got.Code)
	}
	if got.WageredRequirement != "$5,000 past 30 days" {
		t.Errorf("WageredRequirement = %q", got.WageredRequirement)
	}
}

func TestParseIdentityStableAcrossRetries(t *testing.T) {
	clock := fixedNow
	p := New(WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))

	first := p.ParseMessage(rawMessage(canonicalDrop))
	second := p.ParseMessage(rawMessage(canonicalDrop))
	if first == nil || second == nil {
		t.Fatal("ParseMessage() = nil")
	}

	if first.ID == second.ID {
		t.Errorf("generated ids should differ, both %q", first.ID)
	}
	if first.ChatID != second.ChatID || first.TelegramMessageID != second.TelegramMessageID {
		t.Errorf("identity differs: (%d,%d) vs (%d,%d)",
			first.ChatID, first.TelegramMessageID, second.ChatID, second.TelegramMessageID)
	}
}

func TestParseConcurrent(t *testing.T) {
	p := New()
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := p.ParseMessage(rawMessage(canonicalDrop)); got == nil || got.Code != "RAIN9HLC" {
				t.Errorf("concurrent ParseMessage() = %+v", got)
			}
		}()
	}

	wg.Wait()
}

func TestIsValidBonusCodeMessage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"canonical", canonicalDrop, true},
		{"empty", "", false},
		{"title reward code only", "Rainbet Bonus\nReward: $5\nCode: ABC", true},
		{"trailing space title", "RAINBET BONUS \nReward: $5\nCode: ABC", true},
		{"missing title", strings.Replace(canonicalDrop, "Rainbet Bonus", "Hello", 1), false},
		{"missing reward", strings.Replace(canonicalDrop, "Reward: $2-$30", "", 1), false},
		{"missing code", strings.Replace(canonicalDrop, "Code: RAIN9HLC", "", 1), false},
		{"chatter", "gm everyone, bonus soon?", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidBonusCodeMessage(tt.text); got != tt.want {
				t.Errorf("IsValidBonusCodeMessage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractAllCodes(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"three codes", "Code: RAIN9HLC / RainM5LK / RainQ2HF", []string{"RAIN9HLC", "RainM5LK", "RainQ2HF"}},
		{"tight separators", "Code: A1/B2/C3", []string{"A1", "B2", "C3"}},
		{"single", "Code: RAIN9HLC", []string{"RAIN9HLC"}},
		{"padded line", "   Code:   X1 /  Y2   ", []string{"X1", "Y2"}},
		{"not a code line", "Reward: $5", []string{}},
		{"empty alternative", "Code: A1 / / B2", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractAllCodes(tt.line)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractAllCodes(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestFieldString(t *testing.T) {
	tests := []struct {
		field Field
		want  string
	}{
		{FieldTitle, "title"},
		{FieldReward, "reward"},
		{FieldWagered, "wagered"},
		{FieldClaims, "claims"},
		{FieldExpiry, "expiry"},
		{FieldCode, "code"},
		{Field(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.field.String(); got != tt.want {
			t.Errorf("Field(%d).String() = %q, want %q", int(tt.field), got, tt.want)
		}
	}
}

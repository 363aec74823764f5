package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAllowlistAllowed(t *testing.T) {
	tests := []struct {
		name     string
		chats    []int64
		users    []int64
		chatID   int64
		senderID int64
		want     bool
	}{
		{"empty lists allow all", nil, nil, -1001, 0, true},
		{"listed chat", []int64{-1001}, nil, -1001, 0, true},
		{"unlisted chat without sender", []int64{-1001}, nil, -1002, 0, false},
		{"unlisted chat listed sender", []int64{-1001}, []int64{77}, -1002, 77, true},
		{"unlisted chat unlisted sender", []int64{-1001}, []int64{77}, -1002, 78, false},
		{"users only, no sender", nil, []int64{77}, -1002, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAllowlist(tt.chats, tt.users)
			if got := a.Allowed(tt.chatID, tt.senderID); got != tt.want {
				t.Errorf("Allowed(%d, %d) = %v, want %v", tt.chatID, tt.senderID, got, tt.want)
			}
		})
	}
}

func TestLoadAllowlistFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist.yaml")
	content := "chat_ids:\n  - -100555\nuser_ids:\n  - 42\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := LoadAllowlist(path, []int64{-100111}, nil)
	if err != nil {
		t.Fatalf("LoadAllowlist() error = %v", err)
	}

	if !a.Allowed(-100555, 0) {
		t.Error("chat from file should be allowed")
	}
	if !a.Allowed(-100111, 0) {
		t.Error("base chat should be allowed")
	}
	if !a.Allowed(-1, 42) {
		t.Error("user from file should be allowed")
	}
	if a.Allowed(-1, 43) {
		t.Error("unlisted chat and user should be rejected")
	}
}

func TestLoadAllowlistWithoutPath(t *testing.T) {
	a, err := LoadAllowlist("", nil, nil)
	if err != nil {
		t.Fatalf("LoadAllowlist() error = %v", err)
	}
	if !a.Allowed(-1, 0) {
		t.Error("no lists should allow everything")
	}
}

func TestLoadAllowlistMissingFile(t *testing.T) {
	if _, err := LoadAllowlist(filepath.Join(t.TempDir(), "nope.yaml"), nil, nil); err == nil {
		t.Error("expected error for missing allowlist file")
	}
}

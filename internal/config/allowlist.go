package config

import (
	"fmt"
	"sync"

	"bonus-drops/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Allowlist decides which chats and senders may feed the ingester.
// With both lists empty every message is allowed; otherwise a message is
// allowed when its chat or its sender is listed.
type Allowlist struct {
	mu    sync.RWMutex
	chats map[int64]struct{}
	users map[int64]struct{}
}

func NewAllowlist(chatIDs, userIDs []int64) *Allowlist {
	a := &Allowlist{}
	a.set(chatIDs, userIDs)
	return a
}

func (a *Allowlist) set(chatIDs, userIDs []int64) {
	chats := make(map[int64]struct{}, len(chatIDs))
	for _, id := range chatIDs {
		chats[id] = struct{}{}
	}
	users := make(map[int64]struct{}, len(userIDs))
	for _, id := range userIDs {
		users[id] = struct{}{}
	}

	a.mu.Lock()
	a.chats, a.users = chats, users
	a.mu.Unlock()
}

// Allowed reports whether a message from chatID sent by senderID passes.
// senderID 0 means the message had no sender.
func (a *Allowlist) Allowed(chatID, senderID int64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if len(a.chats) == 0 && len(a.users) == 0 {
		return true
	}
	if _, ok := a.chats[chatID]; ok {
		return true
	}
	if senderID == 0 {
		return false
	}
	_, ok := a.users[senderID]
	return ok
}

type allowlistFile struct {
	ChatIDs []int64 `mapstructure:"chat_ids"`
	UserIDs []int64 `mapstructure:"user_ids"`
}

// LoadAllowlist reads the allowlist file at path and keeps it in sync with
// the file until the process exits. The base ids are always included.
func LoadAllowlist(path string, baseChats, baseUsers []int64) (*Allowlist, error) {
	a := NewAllowlist(baseChats, baseUsers)
	if path == "" {
		return a, nil
	}

	v := viper.New()
	v.SetConfigFile(path)

	reload := func() error {
		var f allowlistFile
		if err := v.Unmarshal(&f); err != nil {
			return fmt.Errorf("failed to decode allowlist %s: %w", path, err)
		}
		a.set(append(append([]int64{}, baseChats...), f.ChatIDs...), append(append([]int64{}, baseUsers...), f.UserIDs...))
		return nil
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read allowlist %s: %w", path, err)
	}
	if err := reload(); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if err := reload(); err != nil {
			logger.Error("Failed to reload allowlist", logger.Err(err), logger.String("file", e.Name))
			return
		}
		logger.Info("Allowlist reloaded", logger.String("file", e.Name))
	})
	v.WatchConfig()

	return a, nil
}

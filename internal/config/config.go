// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Polling intervals the daemon accepts, in seconds.
var allowedIntervals = []int{30, 60, 120, 300}

// Config holds the application configuration.
type Config struct {
	GitHubToken         string
	TelegramBotToken    string
	TelegramChatID      int64
	DatabasePath        string
	LogLevel            string
	PollInterval        time.Duration
	NativeNotifications bool
	AutoStart           bool
	IncludeRead         bool
	AllowedUsers        []int64
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	chatRaw := os.Getenv("TELEGRAM_CHAT_ID")
	if chatRaw == "" {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID is required")
	}
	chatID, err := strconv.ParseInt(chatRaw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", chatRaw, err)
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/ghnotify.db"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	interval, err := parseInterval(os.Getenv("POLL_INTERVAL_SECONDS"))
	if err != nil {
		return nil, err
	}

	native, err := parseBool("NATIVE_NOTIFICATIONS", true)
	if err != nil {
		return nil, err
	}
	autoStart, err := parseBool("AUTO_START", false)
	if err != nil {
		return nil, err
	}
	includeRead, err := parseBool("INCLUDE_READ", false)
	if err != nil {
		return nil, err
	}

	var allowedUsers []int64
	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			allowedUsers = append(allowedUsers, uid)
		}
	}

	return &Config{
		GitHubToken:         os.Getenv("GITHUB_TOKEN"),
		TelegramBotToken:    botToken,
		TelegramChatID:      chatID,
		DatabasePath:        dbPath,
		LogLevel:            logLevel,
		PollInterval:        interval,
		NativeNotifications: native,
		AutoStart:           autoStart,
		IncludeRead:         includeRead,
		AllowedUsers:        allowedUsers,
	}, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func parseInterval(raw string) (time.Duration, error) {
	if raw == "" {
		return 60 * time.Second, nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid POLL_INTERVAL_SECONDS %q: %w", raw, err)
	}
	for _, allowed := range allowedIntervals {
		if secs == allowed {
			return time.Duration(secs) * time.Second, nil
		}
	}
	return 0, fmt.Errorf("POLL_INTERVAL_SECONDS must be one of 30, 60, 120, 300; got %d", secs)
}

func parseBool(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

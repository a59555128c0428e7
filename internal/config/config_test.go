package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad(t *testing.T) {
	base := map[string]string{
		"TELEGRAM_BOT_TOKEN": "tok",
		"TELEGRAM_CHAT_ID":   "42",
	}

	tests := []struct {
		name    string
		env     map[string]string
		want    *Config
		wantErr bool
	}{
		{
			name:    "missing bot token",
			env:     map[string]string{"TELEGRAM_CHAT_ID": "42"},
			wantErr: true,
		},
		{
			name:    "missing chat id",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok"},
			wantErr: true,
		},
		{
			name: "defaults applied",
			env:  base,
			want: &Config{
				TelegramBotToken:    "tok",
				TelegramChatID:      42,
				DatabasePath:        "./data/ghnotify.db",
				LogLevel:            "info",
				PollInterval:        60 * time.Second,
				NativeNotifications: true,
			},
		},
		{
			name: "all values set",
			env: map[string]string{
				"GITHUB_TOKEN":          "ghp_abc",
				"TELEGRAM_BOT_TOKEN":    "tok",
				"TELEGRAM_CHAT_ID":      "42",
				"DATABASE_PATH":         "/tmp/ghnotify.db",
				"LOG_LEVEL":             "debug",
				"POLL_INTERVAL_SECONDS": "300",
				"NATIVE_NOTIFICATIONS":  "false",
				"AUTO_START":            "true",
				"INCLUDE_READ":          "true",
				"ALLOWED_USERS":         "111, 222 ,",
			},
			want: &Config{
				GitHubToken:      "ghp_abc",
				TelegramBotToken: "tok",
				TelegramChatID:   42,
				DatabasePath:     "/tmp/ghnotify.db",
				LogLevel:         "debug",
				PollInterval:     300 * time.Second,
				AutoStart:        true,
				IncludeRead:      true,
				AllowedUsers:     []int64{111, 222},
			},
		},
		{
			name:    "interval outside allowed set",
			env:     merge(base, map[string]string{"POLL_INTERVAL_SECONDS": "45"}),
			wantErr: true,
		},
		{
			name:    "interval not a number",
			env:     merge(base, map[string]string{"POLL_INTERVAL_SECONDS": "soon"}),
			wantErr: true,
		},
		{
			name:    "invalid chat id",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "TELEGRAM_CHAT_ID": "abc"},
			wantErr: true,
		},
		{
			name:    "invalid allowed user",
			env:     merge(base, map[string]string{"ALLOWED_USERS": "111,abc"}),
			wantErr: true,
		},
		{
			name:    "invalid bool",
			env:     merge(base, map[string]string{"AUTO_START": "maybe"}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{
				"GITHUB_TOKEN", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
				"DATABASE_PATH", "LOG_LEVEL", "POLL_INTERVAL_SECONDS",
				"NATIVE_NOTIFICATIONS", "AUTO_START", "INCLUDE_READ", "ALLOWED_USERS",
			} {
				t.Setenv(key, "")
				if v, ok := tt.env[key]; ok {
					t.Setenv(key, v)
				}
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsUserAllowed(t *testing.T) {
	open := &Config{}
	if !open.IsUserAllowed(999) {
		t.Error("empty allow list should permit everyone")
	}

	restricted := &Config{AllowedUsers: []int64{10, 20}}
	if !restricted.IsUserAllowed(10) {
		t.Error("listed user rejected")
	}
	if restricted.IsUserAllowed(30) {
		t.Error("unlisted user permitted")
	}
}

func merge(a, b map[string]string) map[string]string {
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

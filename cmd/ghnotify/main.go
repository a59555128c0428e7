package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"ghnotify/internal/auth"
	"ghnotify/internal/bot"
	"ghnotify/internal/config"
	"ghnotify/internal/engine"
	"ghnotify/internal/github"
	"ghnotify/internal/notify"
	"ghnotify/internal/service"
	"ghnotify/internal/storage"
)

func main() {
	setToken := flag.String("set-token", "", "store a GitHub token in the system keyring and exit")
	deleteToken := flag.Bool("delete-token", false, "remove the stored GitHub token and exit")
	flag.Parse()

	if *setToken != "" {
		if err := auth.StoreToken(*setToken); err != nil {
			slog.Error("store token", "error", err)
			os.Exit(1)
		}
		fmt.Println("Token stored in keyring.")
		return
	}
	if *deleteToken {
		if err := auth.DeleteToken(); err != nil {
			slog.Error("delete token", "error", err)
			os.Exit(1)
		}
		fmt.Println("Token removed from keyring.")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	tokens := auth.NewProvider(cfg.GitHubToken)
	gw := github.NewClient(tokens, log)

	svc := service.NewNotifications(gw, store, log)
	threads := service.NewThreads(gw, log)

	b, err := bot.New(cfg.TelegramBotToken, cfg, svc, threads, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	eng := engine.New(svc, notify.New(b, log), engine.Options{
		Interval:      cfg.PollInterval,
		IncludeRead:   cfg.IncludeRead,
		AlertsEnabled: cfg.NativeNotifications,
	}, log)
	b.AttachPoller(eng)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting bot")

	if token, err := tokens.Token(ctx); err != nil || token == "" {
		log.Warn("no GitHub token configured; set GITHUB_TOKEN or run with -set-token")
	} else if !tokens.ValidateToken(ctx, token) {
		log.Warn("GitHub token failed validation; API calls may be rejected")
	}

	if shouldAutoStart(ctx, cfg, svc) {
		if err := eng.StartListening(ctx); err != nil {
			log.Error("start polling", "error", err)
		}
	}

	// The persisted listening state is left untouched on shutdown so the
	// next run resumes polling if this one was listening.
	b.Run(ctx)

	log.Info("bot stopped")
}

// shouldAutoStart polls at startup when configured to, or when the previous
// run was still listening when it shut down.
func shouldAutoStart(ctx context.Context, cfg *config.Config, svc *service.Notifications) bool {
	if cfg.AutoStart {
		return true
	}
	return svc.ListeningState(ctx).IsListening
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// Package bot implements the Telegram surface: the interactive inbox
// commands and the channel native alerts are delivered through.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ghnotify/internal/config"
	"ghnotify/internal/model"
	"ghnotify/internal/notify"
	"ghnotify/internal/result"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type notificationService interface {
	GetState(ctx context.Context) (model.PersistedState, error)
	UpdateState(ctx context.Context, fn func(*model.PersistedState)) error
	MarkAsDone(ctx context.Context, id string) result.Result[struct{}]
	Snooze(ctx context.Context, id string, until time.Time) result.Result[struct{}]
	ListeningState(ctx context.Context) model.ListeningState
}

type threadService interface {
	FetchThreads(ctx context.Context, ref model.PRRef) result.Result[model.PullRequestDetail]
	ReplyToThread(ctx context.Context, threadID, body string) result.Result[model.ThreadComment]
}

type poller interface {
	StartListening(ctx context.Context) error
	StopListening(ctx context.Context) error
	Refresh(ctx context.Context) *result.Failure
	IsListening() bool
	LastFailure() *result.Failure
	LastFetchedAt() time.Time
	ConsecutiveErrors() int
}

// Bot is the Telegram bot that handles user commands and delivers alerts.
type Bot struct {
	api     telegramAPI
	cfg     *config.Config
	svc     notificationService
	threads threadService
	poller  poller
	log     *slog.Logger
	now     func() time.Time

	// threadIndex maps the short numbers printed by /threads to GraphQL
	// thread ids so /reply can reference them.
	mu          sync.Mutex
	threadIndex map[int]string
}

// New creates a Bot with the given Telegram token and services. The poller
// is attached separately because it alerts through the bot itself.
func New(token string, cfg *config.Config, svc notificationService, threads threadService, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:         api,
		cfg:         cfg,
		svc:         svc,
		threads:     threads,
		log:         log,
		now:         time.Now,
		threadIndex: make(map[int]string),
	}, nil
}

// AttachPoller wires the polling engine in after construction.
func (b *Bot) AttachPoller(p poller) {
	b.poller = p
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// ShowNotification delivers a single native alert to the configured chat.
func (b *Bot) ShowNotification(title, body string) error {
	msg := tgbotapi.NewMessage(b.cfg.TelegramChatID, title+"\n"+body)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// ShowBatchNotification delivers one collapsed alert for a burst of items.
func (b *Bot) ShowBatchNotification(count int, summary string) error {
	return b.ShowNotification("GitHub: "+notify.BatchTitle(count), summary)
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case cmdInbox:
		b.handleInbox(ctx, chatID, args)
	case cmdDone:
		b.handleDone(ctx, chatID, args)
	case cmdSnooze:
		b.handleSnooze(ctx, chatID, args)
	case "threads":
		b.handleThreads(ctx, chatID, args)
	case "reply":
		b.handleReply(ctx, chatID, args)
	case "listen":
		b.handleListen(ctx, chatID)
	case "stop":
		b.handleStop(ctx, chatID)
	case "status":
		b.handleStatus(ctx, chatID)
	case "refresh":
		b.handleRefresh(ctx, chatID)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}

func (b *Bot) rememberThreads(threads []model.ReviewThread) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.threadIndex = make(map[int]string, len(threads))
	for i, t := range threads {
		b.threadIndex[i+1] = t.ID
	}
}

func (b *Bot) threadID(index int) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.threadIndex[index]
	return id, ok
}

package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ghnotify/internal/model"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to GitHub Notifications Bot!

Get native alerts for new GitHub notifications and manage your inbox from here.

Quick start:
1. /listen — start polling for notifications
2. /inbox — show your notification inbox
3. /done <id> — mark a notification done

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Inbox:
/inbox [filter] — show notifications (filter: all, unread, a reason like mention, or repo:<owner/name>)
/done <id> — mark a notification as done
/snooze <id> [duration] — hide a notification for a while (30m, 2h, 1d; default 1h)

Pull request threads:
/threads <id> — show review threads for a PR notification
/reply <thread#> <text> — reply to a thread listed by /threads

Polling:
/listen — start polling GitHub
/stop — stop polling
/refresh — fetch once now
/status — polling state and last fetch`)
}

func (b *Bot) handleInbox(ctx context.Context, chatID int64, args string) {
	filter, err := ParseInboxFilter(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	state, err := b.svc.GetState(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	if filter == "" {
		filter = state.LastSelectedFilter
		if filter == "" {
			filter = model.FilterAll
		}
	} else if filter != state.LastSelectedFilter {
		persistErr := b.svc.UpdateState(ctx, func(s *model.PersistedState) {
			s.LastSelectedFilter = filter
			if repo, ok := repoFilter(filter); ok {
				s.LastSelectedRepository = repo
			}
		})
		if persistErr != nil {
			b.log.Error("persist inbox filter", "error", persistErr)
		}
	}

	items := applyInboxFilter(visibleItems(state), filter)

	msg := tgbotapi.NewMessage(chatID, FormatInbox(items, filter, b.now()))
	msg.DisableWebPagePreview = true
	if kb := inboxKeyboard(items); kb != nil {
		msg.ReplyMarkup = *kb
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send inbox", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleDone(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /done <id>")
		return
	}

	if res := b.svc.MarkAsDone(ctx, id); !res.IsOk() {
		b.reply(chatID, res.Failure().Message)
		return
	}
	b.reply(chatID, fmt.Sprintf("Notification %s marked as done.", id))
}

func (b *Bot) handleSnooze(ctx context.Context, chatID int64, args string) {
	id, dur, err := ParseSnoozeArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	until := b.now().Add(dur)
	if res := b.svc.Snooze(ctx, id, until); !res.IsOk() {
		b.reply(chatID, res.Failure().Message)
		return
	}
	b.reply(chatID, fmt.Sprintf("Notification %s snoozed until %s.", id, until.UTC().Format("2006-01-02 15:04 UTC")))
}

func (b *Bot) handleThreads(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /threads <id>")
		return
	}

	state, err := b.svc.GetState(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	var item *model.Notification
	for i := range state.Notifications {
		if state.Notifications[i].ID == id {
			item = &state.Notifications[i]
			break
		}
	}
	if item == nil {
		b.reply(chatID, "Notification not found")
		return
	}

	ref, ok := item.PullRequestRef()
	if !ok {
		b.reply(chatID, fmt.Sprintf("Notification %s is not a pull request.", id))
		return
	}

	res := b.threads.FetchThreads(ctx, ref)
	if !res.IsOk() {
		b.reply(chatID, res.Failure().Message)
		return
	}

	detail := res.Value()
	sorted := model.SortThreads(detail.ReviewThreads)
	b.rememberThreads(sorted)
	b.reply(chatID, FormatThreads(detail, sorted, b.now()))
}

func (b *Bot) handleReply(ctx context.Context, chatID int64, args string) {
	index, body, err := ParseReplyArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	threadID, ok := b.threadID(index)
	if !ok {
		b.reply(chatID, fmt.Sprintf("Unknown thread #%d. Run /threads first.", index))
		return
	}

	res := b.threads.ReplyToThread(ctx, threadID, body)
	if !res.IsOk() {
		b.reply(chatID, res.Failure().Message)
		return
	}
	b.reply(chatID, fmt.Sprintf("Reply posted to thread #%d.", index))
}

func (b *Bot) handleListen(ctx context.Context, chatID int64) {
	if b.poller == nil {
		b.reply(chatID, "Polling is not available.")
		return
	}
	if err := b.poller.StartListening(ctx); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to start polling: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Polling started (every %s).", b.cfg.PollInterval))
}

func (b *Bot) handleStop(ctx context.Context, chatID int64) {
	if b.poller == nil {
		b.reply(chatID, "Polling is not available.")
		return
	}
	if err := b.poller.StopListening(ctx); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to stop polling: %v", err))
		return
	}
	b.reply(chatID, "Polling stopped.")
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	if b.poller == nil {
		b.reply(chatID, "Polling is not available.")
		return
	}
	listening := b.svc.ListeningState(ctx)
	b.reply(chatID, FormatStatus(StatusInfo{
		Listening:         b.poller.IsListening(),
		StartedAt:         listening.StartedAt,
		LastFetchedAt:     b.poller.LastFetchedAt(),
		ConsecutiveErrors: b.poller.ConsecutiveErrors(),
		LastFailure:       b.poller.LastFailure(),
		Interval:          b.cfg.PollInterval,
	}, b.now()))
}

func (b *Bot) handleRefresh(ctx context.Context, chatID int64) {
	if b.poller == nil {
		b.reply(chatID, "Polling is not available.")
		return
	}
	if failure := b.poller.Refresh(ctx); failure != nil {
		b.reply(chatID, failure.Message)
		return
	}
	b.reply(chatID, "Refreshed.")
}

package bot

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ghnotify/internal/diffhunk"
	"ghnotify/internal/model"
	"ghnotify/internal/result"
)

// maxKeyboardRows caps how many inbox items get inline action buttons.
const maxKeyboardRows = 8

// visibleItems returns the cached notifications without done or snoozed ones.
func visibleItems(state model.PersistedState) []model.Notification {
	done := make(map[string]struct{}, len(state.DoneNotificationIDs))
	for _, id := range state.DoneNotificationIDs {
		done[id] = struct{}{}
	}

	var items []model.Notification
	for _, n := range state.Notifications {
		if _, ok := done[n.ID]; ok {
			continue
		}
		if _, ok := state.SnoozedNotifications[n.ID]; ok {
			continue
		}
		items = append(items, n)
	}
	return items
}

func applyInboxFilter(items []model.Notification, filter string) []model.Notification {
	if filter == "" || filter == model.FilterAll {
		return items
	}

	var keep func(model.Notification) bool
	switch {
	case filter == "unread":
		keep = func(n model.Notification) bool { return n.Unread }
	case strings.HasPrefix(filter, "repo:"):
		repo, _ := repoFilter(filter)
		keep = func(n model.Notification) bool {
			return strings.EqualFold(n.Repository.FullName, repo)
		}
	default:
		reason, ok := reasonFilters[filter]
		if !ok {
			return items
		}
		keep = func(n model.Notification) bool { return n.Reason == reason }
	}

	var filtered []model.Notification
	for _, n := range items {
		if keep(n) {
			filtered = append(filtered, n)
		}
	}
	return filtered
}

// FormatInbox formats the notification list for display.
func FormatInbox(items []model.Notification, filter string, now time.Time) string {
	if len(items) == 0 {
		if filter == "" || filter == model.FilterAll {
			return "Inbox zero! No notifications."
		}
		return fmt.Sprintf("No notifications match filter %q.", filter)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Inbox (%d, filter: %s):\n", len(items), filter)
	for _, n := range items {
		marker := " "
		if n.Unread {
			marker = "*"
		}
		fmt.Fprintf(&b, "\n%s %s [%s] %s\n   %s — %s\n",
			marker, n.ID, n.Reason.Label(), n.Repository.FullName,
			n.Subject.Title, RelativeTime(n.UpdatedAt, now))
	}
	return b.String()
}

func inboxKeyboard(items []model.Notification) *tgbotapi.InlineKeyboardMarkup {
	if len(items) == 0 {
		return nil
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, n := range items {
		if len(rows) == maxKeyboardRows {
			break
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Done "+n.ID, cmdDone+":"+n.ID),
			tgbotapi.NewInlineKeyboardButtonData("Snooze 1h", cmdSnooze+":"+n.ID),
		))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// RelativeTime renders a timestamp relative to now, falling back to a date
// for anything older than a week.
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "min") + " ago"
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour") + " ago"
	case d < 7*24*time.Hour:
		return plural(int(d.Hours()/24), "day") + " ago"
	default:
		return t.Format("Jan 2, 2006")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatThreads renders a pull request's review threads, numbered so /reply
// can reference them.
func FormatThreads(detail model.PullRequestDetail, threads []model.ReviewThread, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]\n%s\n", detail.Title, detail.State, detail.URL)

	if len(threads) == 0 {
		b.WriteString("\nNo review threads.")
		return b.String()
	}

	for i, t := range threads {
		status := "unresolved"
		if t.IsResolved {
			status = "resolved"
		}
		if t.IsOutdated {
			status += ", outdated"
		}
		fmt.Fprintf(&b, "\n#%d %s:%d (%s)\n", i+1, t.Path, t.Line, status)

		if hunk := formatHunk(t.DiffHunk); hunk != "" {
			b.WriteString(hunk)
		}
		for _, c := range t.Comments {
			fmt.Fprintf(&b, "  %s (%s): %s\n", c.Author.Login, RelativeTime(c.CreatedAt, now), c.Body)
		}
	}

	b.WriteString("\nUse /reply <thread#> <text> to respond.")
	return b.String()
}

// formatHunk renders the tail of a diff hunk with change markers and new-file
// line numbers where known.
func formatHunk(hunk string) string {
	lines := diffhunk.Parse(hunk)
	if len(lines) == 0 {
		return ""
	}
	// Only the last few lines give useful context in a chat message.
	const maxLines = 6
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}

	var b strings.Builder
	for _, l := range lines {
		marker := " "
		switch l.Kind {
		case diffhunk.Add:
			marker = "+"
		case diffhunk.Remove:
			marker = "-"
		}
		if l.Number > 0 {
			fmt.Fprintf(&b, "  %4d %s %s\n", l.Number, marker, l.Content)
		} else {
			fmt.Fprintf(&b, "       %s %s\n", marker, l.Content)
		}
	}
	return b.String()
}

// StatusInfo is everything /status reports.
type StatusInfo struct {
	Listening         bool
	StartedAt         *time.Time
	LastFetchedAt     time.Time
	ConsecutiveErrors int
	LastFailure       *result.Failure
	Interval          time.Duration
}

// FormatStatus renders the polling status summary.
func FormatStatus(info StatusInfo, now time.Time) string {
	var b strings.Builder
	if info.Listening {
		fmt.Fprintf(&b, "Polling: active (every %s)\n", info.Interval)
		if info.StartedAt != nil {
			fmt.Fprintf(&b, "Started: %s\n", RelativeTime(*info.StartedAt, now))
		}
	} else {
		b.WriteString("Polling: stopped\n")
	}

	if info.LastFetchedAt.IsZero() {
		b.WriteString("Last fetch: never")
	} else {
		fmt.Fprintf(&b, "Last fetch: %s", RelativeTime(info.LastFetchedAt, now))
	}

	if info.ConsecutiveErrors > 0 && info.LastFailure != nil {
		fmt.Fprintf(&b, "\nErrors: %d consecutive, last: %s", info.ConsecutiveErrors, info.LastFailure.Message)
	}
	return b.String()
}

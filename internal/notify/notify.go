// Package notify turns batches of new notifications into native alert calls.
package notify

import (
	"log/slog"
	"strconv"
	"strings"

	"ghnotify/internal/model"
)

// BatchThreshold is the item count at which individual alerts collapse into a
// single batched alert.
const BatchThreshold = 4

// Display is the native-notification primitive provided by the host.
type Display interface {
	ShowNotification(title, body string) error
	ShowBatchNotification(count int, summary string) error
}

// Notifier formats and dispatches alerts through a Display.
type Notifier struct {
	display Display
	log     *slog.Logger
}

// New creates a Notifier.
func New(display Display, log *slog.Logger) *Notifier {
	return &Notifier{display: display, log: log}
}

// Send alerts on a batch of new notifications: one alert per item below the
// batch threshold, a single summarized alert at or above it. An empty batch
// produces no display calls.
func (n *Notifier) Send(items []model.Notification) {
	if len(items) == 0 {
		return
	}

	if len(items) >= BatchThreshold {
		summary := BatchSummary(items)
		if err := n.display.ShowBatchNotification(len(items), summary); err != nil {
			n.log.Error("show batch notification", "count", len(items), "error", err)
		}
		return
	}

	for _, item := range items {
		title := "GitHub - " + item.Reason.Label()
		if err := n.display.ShowNotification(title, item.Subject.Title); err != nil {
			n.log.Error("show notification", "id", item.ID, "error", err)
		}
	}
}

// Announce sends a standalone alert unrelated to a notification batch, such
// as the polling-stopped notice.
func (n *Notifier) Announce(title, body string) {
	if err := n.display.ShowNotification(title, body); err != nil {
		n.log.Error("show announcement", "title", title, "error", err)
	}
}

// BatchSummary renders per-reason counts in first-seen order, e.g.
// "3 review requests, 2 mentions".
func BatchSummary(items []model.Notification) string {
	counts := make(map[model.Reason]int)
	var order []model.Reason
	for _, item := range items {
		if counts[item.Reason] == 0 {
			order = append(order, item.Reason)
		}
		counts[item.Reason]++
	}

	parts := make([]string, len(order))
	for i, reason := range order {
		parts[i] = reason.CountLabel(counts[reason])
	}
	return strings.Join(parts, ", ")
}

// BatchTitle renders the headline for a batched alert.
func BatchTitle(count int) string {
	return strconv.Itoa(count) + " new notifications"
}

package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"ghnotify/internal/model"
)

// Reason keywords accepted as inbox filters.
var reasonFilters = map[string]model.Reason{
	"review_requested": model.ReasonReviewRequested,
	"mention":          model.ReasonMention,
	"assign":           model.ReasonAssign,
	"comment":          model.ReasonComment,
	"author":           model.ReasonAuthor,
	"state_change":     model.ReasonStateChange,
	"subscribed":       model.ReasonSubscribed,
}

const defaultSnooze = time.Hour

// ParseInboxFilter validates an /inbox filter argument. An empty argument
// returns "" so the caller can fall back to the remembered filter.
func ParseInboxFilter(args string) (string, error) {
	filter := strings.ToLower(strings.TrimSpace(args))
	if filter == "" {
		return "", nil
	}
	if filter == model.FilterAll || filter == "unread" {
		return filter, nil
	}
	if _, ok := reasonFilters[filter]; ok {
		return filter, nil
	}
	if repo, ok := repoFilter(filter); ok {
		if !strings.Contains(repo, "/") {
			return "", fmt.Errorf("invalid repository %q, expected repo:<owner/name>", repo)
		}
		return filter, nil
	}
	return "", fmt.Errorf("unknown filter %q, use: all, unread, a reason, or repo:<owner/name>", filter)
}

// repoFilter extracts the repository name from a repo:<owner/name> filter.
func repoFilter(filter string) (string, bool) {
	repo, ok := strings.CutPrefix(filter, "repo:")
	return repo, ok
}

// ParseIDArg extracts a notification ID from a command argument string.
func ParseIDArg(args string) (string, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return "", fmt.Errorf("notification ID is required")
	}
	return strings.Fields(s)[0], nil
}

// ParseSnoozeArgs extracts a notification ID and an optional duration.
// Durations accept time.ParseDuration forms plus a day suffix, e.g. "2d".
func ParseSnoozeArgs(args string) (string, time.Duration, error) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return "", 0, fmt.Errorf("usage: /snooze <id> [duration]")
	}
	if len(parts) == 1 {
		return parts[0], defaultSnooze, nil
	}

	dur, err := parseSnoozeDuration(parts[1])
	if err != nil {
		return "", 0, err
	}
	return parts[0], dur, nil
}

func parseSnoozeDuration(raw string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.Atoi(days)
		if err == nil && n > 0 {
			return time.Duration(n) * 24 * time.Hour, nil
		}
	}
	dur, err := time.ParseDuration(raw)
	if err != nil || dur <= 0 {
		return 0, fmt.Errorf("invalid duration %q, use forms like 30m, 2h, 1d", raw)
	}
	return dur, nil
}

// ParseReplyArgs extracts a thread number and the reply body.
func ParseReplyArgs(args string) (int, string, error) {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if len(parts) < 2 {
		return 0, "", fmt.Errorf("usage: /reply <thread#> <text>")
	}
	index, err := strconv.Atoi(strings.TrimPrefix(parts[0], "#"))
	if err != nil || index < 1 {
		return 0, "", fmt.Errorf("invalid thread number %q", parts[0])
	}
	body := strings.TrimSpace(parts[1])
	if body == "" {
		return 0, "", fmt.Errorf("reply text cannot be empty")
	}
	return index, body, nil
}

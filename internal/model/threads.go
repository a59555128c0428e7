package model

import (
	"sort"
	"time"
)

// GhostAuthor replaces a missing comment author, e.g. a deleted account.
var GhostAuthor = Owner{Login: "ghost", AvatarURL: ""}

// ThreadComment is a single comment within a review thread.
type ThreadComment struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	Author    Owner     `json:"author"`
	ReplyToID string    `json:"replyToId,omitempty"`
}

// ReviewThread is a review discussion anchored to a location in a diff.
type ReviewThread struct {
	ID         string          `json:"id"`
	IsResolved bool            `json:"isResolved"`
	IsOutdated bool            `json:"isOutdated"`
	Path       string          `json:"path"`
	Line       int             `json:"line"`
	DiffSide   string          `json:"diffSide"`
	DiffHunk   string          `json:"diffHunk"`
	Comments   []ThreadComment `json:"comments"`
}

// PullRequestDetail is a pull request together with its review threads.
// Always live-fetched, never cached.
type PullRequestDetail struct {
	Title         string         `json:"title"`
	URL           string         `json:"url"`
	State         string         `json:"state"`
	ReviewThreads []ReviewThread `json:"reviewThreads"`
}

// SortThreads returns the threads with unresolved ones first, preserving the
// original order within each group.
func SortThreads(threads []ReviewThread) []ReviewThread {
	sorted := make([]ReviewThread, len(threads))
	copy(sorted, threads)
	sort.SliceStable(sorted, func(i, j int) bool {
		return !sorted[i].IsResolved && sorted[j].IsResolved
	})
	return sorted
}

// Package model defines the domain types used across the application.
package model

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Reason is a notification reason reported by the GitHub API.
type Reason string

// Supported notification reasons.
const (
	ReasonReviewRequested Reason = "review_requested"
	ReasonMention         Reason = "mention"
	ReasonAssign          Reason = "assign"
	ReasonComment         Reason = "comment"
	ReasonAuthor          Reason = "author"
	ReasonStateChange     Reason = "state_change"
	ReasonSubscribed      Reason = "subscribed"
)

// Label returns a human-readable label for the reason.
func (r Reason) Label() string {
	switch r {
	case ReasonReviewRequested:
		return "Review Requested"
	case ReasonMention:
		return "Mentioned"
	case ReasonAssign:
		return "Assigned"
	case ReasonComment:
		return "Comment"
	case ReasonAuthor:
		return "Author"
	case ReasonStateChange:
		return "State Change"
	case ReasonSubscribed:
		return "Subscribed"
	default:
		return string(r)
	}
}

// CountLabel returns a pluralized phrase like "3 review requests".
func (r Reason) CountLabel(count int) string {
	var singular string
	switch r {
	case ReasonReviewRequested:
		singular = "review request"
	case ReasonMention:
		singular = "mention"
	case ReasonAssign:
		singular = "assignment"
	case ReasonComment:
		singular = "comment"
	case ReasonAuthor:
		singular = "author update"
	case ReasonStateChange:
		singular = "state change"
	case ReasonSubscribed:
		singular = "subscription"
	default:
		singular = string(r)
	}
	label := singular
	if count != 1 {
		label += "s"
	}
	return strconv.Itoa(count) + " " + label
}

// SubjectType identifies what a notification is about.
type SubjectType string

// Supported subject types.
const (
	SubjectPullRequest SubjectType = "PullRequest"
	SubjectIssue       SubjectType = "Issue"
	SubjectRelease     SubjectType = "Release"
	SubjectDiscussion  SubjectType = "Discussion"
	SubjectCommit      SubjectType = "Commit"
)

// Owner identifies a repository owner or comment author.
type Owner struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatarUrl"`
}

// Repository is the repository a notification belongs to.
type Repository struct {
	ID       int64  `json:"id"`
	FullName string `json:"fullName"`
	Private  bool   `json:"private"`
	Owner    Owner  `json:"owner"`
}

// Subject describes the thing a notification is about.
type Subject struct {
	Type             SubjectType `json:"type"`
	Title            string      `json:"title"`
	URL              string      `json:"url"`
	LatestCommentURL string      `json:"latestCommentUrl,omitempty"`
}

// Notification is an immutable snapshot of a GitHub notification thread.
// Identity is the ID.
type Notification struct {
	ID         string     `json:"id"`
	Unread     bool       `json:"unread"`
	Reason     Reason     `json:"reason"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	Subject    Subject    `json:"subject"`
	Repository Repository `json:"repository"`
}

// PRRef identifies a pull request by owner, repository, and number.
type PRRef struct {
	Owner  string
	Repo   string
	Number int
}

var prNumberRe = regexp.MustCompile(`/pulls/(\d+)$`)

// PullRequestRef extracts the pull request reference from a notification.
// Only PullRequest subjects with a well-formed owner/repo name and a trailing
// /pulls/<digits> API URL yield a reference.
func (n Notification) PullRequestRef() (PRRef, bool) {
	if n.Subject.Type != SubjectPullRequest {
		return PRRef{}, false
	}

	owner, repo, found := strings.Cut(n.Repository.FullName, "/")
	if !found || owner == "" || repo == "" {
		return PRRef{}, false
	}

	m := prNumberRe.FindStringSubmatch(n.Subject.URL)
	if m == nil {
		return PRRef{}, false
	}
	number, err := strconv.Atoi(m[1])
	if err != nil {
		return PRRef{}, false
	}

	return PRRef{Owner: owner, Repo: repo, Number: number}, true
}

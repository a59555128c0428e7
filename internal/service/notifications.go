// Package service implements the typed notification and review-thread
// operations on top of the API gateway and the persisted-state store.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"ghnotify/internal/model"
	"ghnotify/internal/result"
	"ghnotify/internal/storage"
)

const (
	// StateKey is the storage key for the persisted notification state.
	StateKey = "github-notifications-state"
	// ListeningKey is the storage key for the listening flag.
	ListeningKey = "github-notifications-listening"
)

// Gateway is the subset of the GitHub client the notification service needs.
type Gateway interface {
	ListNotifications(ctx context.Context, includeRead bool) result.Result[[]byte]
	MarkThreadDone(ctx context.Context, threadID string) result.Result[struct{}]
}

// Notifications manages fetching, caching, and user actions on GitHub
// notifications. Read-modify-write of the persisted state is serialized with
// a mutex so user actions and fetch cycles cannot interleave mid-update.
type Notifications struct {
	gw    Gateway
	store storage.Provider
	log   *slog.Logger

	mu sync.Mutex
}

// NewNotifications creates the notification service.
func NewNotifications(gw Gateway, store storage.Provider, log *slog.Logger) *Notifications {
	return &Notifications{gw: gw, store: store, log: log}
}

// githubNotification is the wire shape of a REST notification item.
type githubNotification struct {
	ID        string `json:"id"`
	Unread    bool   `json:"unread"`
	Reason    string `json:"reason"`
	UpdatedAt string `json:"updated_at"`
	Subject   struct {
		Type             string `json:"type"`
		Title            string `json:"title"`
		URL              string `json:"url"`
		LatestCommentURL string `json:"latest_comment_url"`
	} `json:"subject"`
	Repository struct {
		ID       int64  `json:"id"`
		FullName string `json:"full_name"`
		Private  bool   `json:"private"`
		Owner    struct {
			Login     string `json:"login"`
			AvatarURL string `json:"avatar_url"`
		} `json:"owner"`
	} `json:"repository"`
}

// Fetch retrieves notifications from GitHub and transforms them into the
// domain model. It does not touch the persisted state.
func (s *Notifications) Fetch(ctx context.Context, includeRead bool) result.Result[[]model.Notification] {
	res := s.gw.ListNotifications(ctx, includeRead)
	if !res.IsOk() {
		return result.Err[[]model.Notification](res.Failure())
	}

	var raw []githubNotification
	if err := json.Unmarshal(res.Value(), &raw); err != nil {
		s.log.Error("decode notifications", "error", err)
		return result.Err[[]model.Notification](&result.Failure{
			Code:    result.CodeUpstream,
			Message: "GitHub API returned malformed JSON",
			Cause:   err,
		})
	}

	fetchedAt := time.Now()
	notifications := make([]model.Notification, len(raw))
	for i, item := range raw {
		notifications[i] = s.transformNotification(item, fetchedAt)
	}

	s.log.Info("fetched notifications", "count", len(notifications))
	return result.Ok(notifications)
}

func (s *Notifications) transformNotification(item githubNotification, fetchedAt time.Time) model.Notification {
	updatedAt, err := time.Parse(time.RFC3339, item.UpdatedAt)
	if err != nil {
		s.log.Warn("unparseable updated_at, using fetch time",
			"id", item.ID, "value", item.UpdatedAt)
		updatedAt = fetchedAt
	}
	return model.Notification{
		ID:        item.ID,
		Unread:    item.Unread,
		Reason:    model.Reason(item.Reason),
		UpdatedAt: updatedAt,
		Subject: model.Subject{
			Type:             model.SubjectType(item.Subject.Type),
			Title:            item.Subject.Title,
			URL:              item.Subject.URL,
			LatestCommentURL: item.Subject.LatestCommentURL,
		},
		Repository: model.Repository{
			ID:       item.Repository.ID,
			FullName: item.Repository.FullName,
			Private:  item.Repository.Private,
			Owner: model.Owner{
				Login:     item.Repository.Owner.Login,
				AvatarURL: item.Repository.Owner.AvatarURL,
			},
		},
	}
}

// MarkAsDone marks a notification thread as done remotely, then removes it
// from the cached list and records it in doneNotificationIds. The local state
// is only touched after the remote call succeeds; a local persistence error
// after that point is logged, not surfaced, since the next fetch rebuilds the
// cache.
func (s *Notifications) MarkAsDone(ctx context.Context, id string) result.Result[struct{}] {
	res := s.gw.MarkThreadDone(ctx, id)
	if !res.IsOk() {
		return res
	}

	err := s.updateState(ctx, func(state *model.PersistedState) {
		state.DoneNotificationIDs = append(state.DoneNotificationIDs, id)
		state.Notifications = removeByID(state.Notifications, id)
	})
	if err != nil {
		s.log.Error("mark as done: update state", "id", id, "error", err)
	}
	return result.Ok(struct{}{})
}

// Snooze parks a notification until the given time. Purely local; fails with
// NOT_FOUND when the id is not in the cached list.
func (s *Notifications) Snooze(ctx context.Context, id string, until time.Time) result.Result[struct{}] {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.getStateLocked(ctx)
	if err != nil {
		return result.Err[struct{}](storageFailure(err))
	}

	var found *model.Notification
	for i := range state.Notifications {
		if state.Notifications[i].ID == id {
			found = &state.Notifications[i]
			break
		}
	}
	if found == nil {
		s.log.Error("snooze: notification not found", "id", id)
		return result.Err[struct{}](&result.Failure{
			Code:    result.CodeNotFound,
			Message: "Notification not found",
		})
	}

	state.SnoozedNotifications[id] = model.SnoozedNotification{
		UnsnoozeAt:   until,
		Notification: *found,
	}
	state.Notifications = removeByID(state.Notifications, id)

	if err := s.saveStateLocked(ctx, state); err != nil {
		return result.Err[struct{}](storageFailure(err))
	}
	return result.Ok(struct{}{})
}

// RestoreDueSnoozes moves snoozed notifications whose wake-up time has passed
// back into the cached list. Returns how many were restored.
func (s *Notifications) RestoreDueSnoozes(ctx context.Context, now time.Time) (int, error) {
	restored := 0
	err := s.updateState(ctx, func(state *model.PersistedState) {
		for id, snoozed := range state.SnoozedNotifications {
			if snoozed.UnsnoozeAt.After(now) {
				continue
			}
			delete(state.SnoozedNotifications, id)
			if !containsID(state.Notifications, id) {
				state.Notifications = append(state.Notifications, snoozed.Notification)
			}
			restored++
		}
	})
	if err != nil {
		return 0, err
	}
	if restored > 0 {
		s.log.Info("restored snoozed notifications", "count", restored)
	}
	return restored, nil
}

// GetState loads the persisted state, returning the default empty state when
// nothing has been stored yet.
func (s *Notifications) GetState(ctx context.Context) (model.PersistedState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getStateLocked(ctx)
}

// SaveState writes the persisted state back as a single document.
func (s *Notifications) SaveState(ctx context.Context, state model.PersistedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveStateLocked(ctx, state)
}

// UpdateState applies fn to the current state and saves the outcome as one
// serialized read-modify-write.
func (s *Notifications) UpdateState(ctx context.Context, fn func(*model.PersistedState)) error {
	return s.updateState(ctx, fn)
}

func (s *Notifications) updateState(ctx context.Context, fn func(*model.PersistedState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.getStateLocked(ctx)
	if err != nil {
		return err
	}
	fn(&state)
	return s.saveStateLocked(ctx, state)
}

func (s *Notifications) getStateLocked(ctx context.Context) (model.PersistedState, error) {
	state := model.DefaultPersistedState()
	found, err := storage.GetJSON(ctx, s.store, StateKey, &state)
	if err != nil {
		return model.DefaultPersistedState(), err
	}
	if !found {
		return model.DefaultPersistedState(), nil
	}
	if state.SnoozedNotifications == nil {
		state.SnoozedNotifications = map[string]model.SnoozedNotification{}
	}
	return state, nil
}

func (s *Notifications) saveStateLocked(ctx context.Context, state model.PersistedState) error {
	return storage.SetJSON(ctx, s.store, StateKey, state)
}

func removeByID(list []model.Notification, id string) []model.Notification {
	out := list[:0]
	for _, n := range list {
		if n.ID != id {
			out = append(out, n)
		}
	}
	return out
}

func containsID(list []model.Notification, id string) bool {
	for _, n := range list {
		if n.ID == id {
			return true
		}
	}
	return false
}

// storageFailure wraps a local persistence error into the failure vocabulary.
func storageFailure(err error) *result.Failure {
	return &result.Failure{
		Code:    result.CodeUpstream,
		Message: "Local storage error",
		Cause:   err,
	}
}

package service

import (
	"context"
	"time"

	"ghnotify/internal/model"
	"ghnotify/internal/storage"
)

// ListeningState reads the persisted listening flag, defaulting to not
// listening when nothing is stored or the stored value is unreadable.
func (s *Notifications) ListeningState(ctx context.Context) model.ListeningState {
	var state model.ListeningState
	found, err := storage.GetJSON(ctx, s.store, ListeningKey, &state)
	if err != nil || !found {
		return model.ListeningState{}
	}
	return state
}

// MarkListeningStarted persists that a polling session is active.
func (s *Notifications) MarkListeningStarted(ctx context.Context, now time.Time) error {
	return storage.SetJSON(ctx, s.store, ListeningKey, model.ListeningState{
		IsListening: true,
		StartedAt:   &now,
	})
}

// MarkListeningStopped persists that no polling session is active.
func (s *Notifications) MarkListeningStopped(ctx context.Context) error {
	return storage.SetJSON(ctx, s.store, ListeningKey, model.ListeningState{})
}

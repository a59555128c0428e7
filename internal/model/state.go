package model

import "time"

// FilterAll is the default inbox filter value.
const FilterAll = "all"

// SnoozedNotification is a notification parked until a wake-up time.
type SnoozedNotification struct {
	UnsnoozeAt   time.Time    `json:"unsnoozeAt"`
	Notification Notification `json:"notification"`
}

// PersistedState is the durable cache and dedup record, stored as a single
// JSON document. NotifiedNotificationIDs is intended to stay a subset of
// SeenNotificationIDs: an item must be seen before it can be notified.
type PersistedState struct {
	Notifications           []Notification                 `json:"notifications"`
	LastFetchedAt           *time.Time                     `json:"lastFetchedAt"`
	SeenNotificationIDs     []string                       `json:"seenNotificationIds"`
	NotifiedNotificationIDs []string                       `json:"notifiedNotificationIds"`
	DoneNotificationIDs     []string                       `json:"doneNotificationIds"`
	SnoozedNotifications    map[string]SnoozedNotification `json:"snoozedNotifications"`
	LastSelectedFilter      string                         `json:"lastSelectedFilter"`
	LastSelectedRepository  string                         `json:"lastSelectedRepository"`
}

// DefaultPersistedState returns the empty state used before anything has been
// stored.
func DefaultPersistedState() PersistedState {
	return PersistedState{
		Notifications:           []Notification{},
		SeenNotificationIDs:     []string{},
		NotifiedNotificationIDs: []string{},
		DoneNotificationIDs:     []string{},
		SnoozedNotifications:    map[string]SnoozedNotification{},
		LastSelectedFilter:      FilterAll,
	}
}

// ListeningState records whether a polling session is active, so commands
// other than the one owning the timer can report it.
type ListeningState struct {
	IsListening bool       `json:"isListening"`
	StartedAt   *time.Time `json:"startedAt"`
}

// Package engine drives the polling loop: periodic fetches, seen/notified
// dedup, exponential backoff, and the consecutive-error budget that disarms
// polling. The tick logic is separate from the timer so tests can drive
// cycles synchronously.
package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"ghnotify/internal/model"
	"ghnotify/internal/result"
)

const (
	// maxConsecutiveErrors is the error budget: this many back-to-back
	// failed cycles disarm polling.
	maxConsecutiveErrors = 5

	backoffBase = 5 * time.Second
	backoffCap  = 60 * time.Second
)

// Outcome is the result of a fetch cycle.
type Outcome int

// Fetch cycle outcomes.
const (
	OutcomeOK Outcome = iota
	OutcomeRetry
	OutcomeStop
)

// Service is the notification service surface the engine drives.
type Service interface {
	Fetch(ctx context.Context, includeRead bool) result.Result[[]model.Notification]
	GetState(ctx context.Context) (model.PersistedState, error)
	UpdateState(ctx context.Context, fn func(*model.PersistedState)) error
	RestoreDueSnoozes(ctx context.Context, now time.Time) (int, error)
	MarkListeningStarted(ctx context.Context, now time.Time) error
	MarkListeningStopped(ctx context.Context) error
}

// Alerter dispatches native alerts for new notifications.
type Alerter interface {
	Send(items []model.Notification)
	Announce(title, body string)
}

// Options configures an Engine.
type Options struct {
	Interval      time.Duration
	IncludeRead   bool
	AlertsEnabled bool
}

// Engine owns the polling session state.
type Engine struct {
	svc    Service
	alerts Alerter
	opts   Options
	log    *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)

	mu                sync.Mutex
	listening         bool
	stopCh            chan struct{}
	hydrated          bool
	seen              map[string]struct{}
	notified          map[string]struct{}
	consecutiveErrors int
	firstFetch        bool
	backoff           retry.Backoff
	nextDelay         time.Duration
	lastFailure       *result.Failure
	lastFetchedAt     time.Time
}

// New creates an Engine in the Idle state.
func New(svc Service, alerts Alerter, opts Options, log *slog.Logger) *Engine {
	e := &Engine{
		svc:        svc,
		alerts:     alerts,
		opts:       opts,
		log:        log,
		now:        time.Now,
		sleep:      sleepContext,
		seen:       make(map[string]struct{}),
		notified:   make(map[string]struct{}),
		firstFetch: true,
	}
	e.resetBackoffLocked()
	return e
}

// StartListening hydrates the dedup sets from persisted state, performs one
// immediate fetch cycle, and arms the repeating timer. Starting while already
// listening re-arms the timer.
func (e *Engine) StartListening(ctx context.Context) error {
	e.mu.Lock()
	if e.listening {
		close(e.stopCh)
		e.listening = false
	}
	e.consecutiveErrors = 0
	e.lastFailure = nil
	e.firstFetch = true
	e.resetBackoffLocked()
	e.mu.Unlock()

	if err := e.hydrate(ctx); err != nil {
		return err
	}
	if err := e.svc.MarkListeningStarted(ctx, e.now()); err != nil {
		return err
	}

	e.Tick(ctx)

	e.mu.Lock()
	e.stopCh = make(chan struct{})
	e.listening = true
	stopCh := e.stopCh
	e.mu.Unlock()

	go e.run(ctx, stopCh)

	e.log.Info("started listening", "interval", e.opts.Interval)
	return nil
}

// StopListening disarms the timer and persists the idle state. An in-flight
// fetch is not aborted; its result is still applied.
func (e *Engine) StopListening(ctx context.Context) error {
	e.mu.Lock()
	if e.listening {
		close(e.stopCh)
		e.listening = false
	}
	e.mu.Unlock()

	e.log.Info("stopped listening")
	return e.svc.MarkListeningStopped(ctx)
}

// Refresh performs a user-initiated fetch cycle. It resets the error count
// first and never applies backoff, keeping manual actions responsive.
// Returns the cycle's failure, or nil on success.
func (e *Engine) Refresh(ctx context.Context) *result.Failure {
	e.mu.Lock()
	e.consecutiveErrors = 0
	e.resetBackoffLocked()
	e.mu.Unlock()

	e.Tick(ctx)
	return e.LastFailure()
}

// IsListening reports whether the timer is armed.
func (e *Engine) IsListening() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.listening
}

// LastFailure returns the failure of the most recent cycle, nil after a
// successful one.
func (e *Engine) LastFailure() *result.Failure {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastFailure
}

// LastFetchedAt returns when the last successful fetch completed, zero when
// none has.
func (e *Engine) LastFetchedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastFetchedAt
}

// ConsecutiveErrors returns the current error streak length.
func (e *Engine) ConsecutiveErrors() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.consecutiveErrors
}

// Tick runs one fetch cycle: fetch, dedup, persist, alert. It applies no
// backoff delay; that belongs to timer-triggered cycles only.
func (e *Engine) Tick(ctx context.Context) Outcome {
	if err := e.hydrate(ctx); err != nil {
		return e.recordFailure(&result.Failure{
			Code:    result.CodeUpstream,
			Message: "Local storage error",
			Cause:   err,
		})
	}

	res := e.svc.Fetch(ctx, e.opts.IncludeRead)
	if !res.IsOk() {
		return e.recordFailure(res.Failure())
	}
	return e.recordSuccess(ctx, res.Value())
}

// hydrate loads the seen and notified id sets from persisted state so no
// cycle, whether a session start or a pre-listen manual refresh, can
// overwrite the durable dedup record with empty sets and re-alert on known
// items. Runs at most once per engine.
func (e *Engine) hydrate(ctx context.Context) error {
	e.mu.Lock()
	done := e.hydrated
	e.mu.Unlock()
	if done {
		return nil
	}

	state, err := e.svc.GetState(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hydrated {
		return nil
	}
	for _, id := range state.SeenNotificationIDs {
		e.seen[id] = struct{}{}
	}
	for _, id := range state.NotifiedNotificationIDs {
		e.notified[id] = struct{}{}
	}
	if state.LastFetchedAt != nil {
		e.lastFetchedAt = *state.LastFetchedAt
	}
	e.hydrated = true
	return nil
}

func (e *Engine) run(ctx context.Context, stopCh <-chan struct{}) {
	ticker := time.NewTicker(e.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			e.timerTick(ctx)
			select {
			case <-stopCh:
				return
			default:
			}
		}
	}
}

// timerTick is one scheduled cycle: wait out any backoff, fetch, and disarm
// when the error budget is exhausted. A tick after the engine left the
// Listening state is a no-op.
func (e *Engine) timerTick(ctx context.Context) {
	if !e.IsListening() {
		return
	}

	if delay := e.pendingBackoff(); delay > 0 {
		e.log.Debug("backing off before fetch", "delay", delay)
		e.sleep(ctx, delay)
	}

	if e.Tick(ctx) == OutcomeStop {
		e.stopForError(ctx)
	}
}

func (e *Engine) recordFailure(failure *result.Failure) Outcome {
	e.mu.Lock()
	e.consecutiveErrors++
	e.lastFailure = failure
	if delay, _ := e.backoff.Next(); delay > 0 {
		e.nextDelay = delay
	}
	errorCount := e.consecutiveErrors
	e.mu.Unlock()

	e.log.Error("fetch cycle failed",
		"attempt", errorCount,
		"code", failure.Code,
		"error", failure.Message,
	)

	if errorCount >= maxConsecutiveErrors {
		return OutcomeStop
	}
	return OutcomeRetry
}

func (e *Engine) recordSuccess(ctx context.Context, fetched []model.Notification) Outcome {
	now := e.now()

	e.mu.Lock()
	e.consecutiveErrors = 0
	e.lastFailure = nil
	e.resetBackoffLocked()

	first := e.firstFetch
	var newItems []model.Notification
	for _, n := range fetched {
		if _, ok := e.seen[n.ID]; !ok {
			newItems = append(newItems, n)
		}
	}
	for _, n := range fetched {
		e.seen[n.ID] = struct{}{}
	}
	seenIDs := sortedKeys(e.seen)
	notifiedIDs := sortedKeys(e.notified)
	e.lastFetchedAt = now
	e.mu.Unlock()

	err := e.svc.UpdateState(ctx, func(state *model.PersistedState) {
		state.Notifications = fetched
		state.LastFetchedAt = &now
		state.SeenNotificationIDs = seenIDs
		state.NotifiedNotificationIDs = notifiedIDs
	})
	if err != nil {
		e.log.Error("persist fetch snapshot", "error", err)
	}

	if _, err := e.svc.RestoreDueSnoozes(ctx, now); err != nil {
		e.log.Error("restore due snoozes", "error", err)
	}

	if !first && len(newItems) > 0 && e.opts.AlertsEnabled {
		e.dispatchAlerts(ctx, newItems)
	}

	e.mu.Lock()
	e.firstFetch = false
	e.mu.Unlock()

	return OutcomeOK
}

// dispatchAlerts filters out already-notified ids before alerting. This
// second filter is what prevents duplicate alerts across overlapping fetch
// cycles or id-set races.
func (e *Engine) dispatchAlerts(ctx context.Context, newItems []model.Notification) {
	e.mu.Lock()
	var unnotified []model.Notification
	for _, n := range newItems {
		if _, ok := e.notified[n.ID]; !ok {
			unnotified = append(unnotified, n)
		}
	}
	e.mu.Unlock()

	if len(unnotified) == 0 {
		return
	}

	e.alerts.Send(unnotified)

	e.mu.Lock()
	for _, n := range unnotified {
		e.notified[n.ID] = struct{}{}
	}
	notifiedIDs := sortedKeys(e.notified)
	e.mu.Unlock()

	err := e.svc.UpdateState(ctx, func(state *model.PersistedState) {
		state.NotifiedNotificationIDs = notifiedIDs
	})
	if err != nil {
		e.log.Error("persist notified ids", "error", err)
	}
}

// stopForError disarms polling after the error budget is exhausted and
// surfaces a distinct notice, more severe than a per-cycle failure.
func (e *Engine) stopForError(ctx context.Context) {
	e.mu.Lock()
	if !e.listening {
		e.mu.Unlock()
		return
	}
	close(e.stopCh)
	e.listening = false
	e.mu.Unlock()

	e.log.Error("polling stopped", "consecutive_errors", maxConsecutiveErrors)

	if err := e.svc.MarkListeningStopped(ctx); err != nil {
		e.log.Error("persist listening state", "error", err)
	}
	e.alerts.Announce("GitHub Notifications",
		"Polling stopped after too many consecutive errors. Use /listen to resume.")
}

// pendingBackoff returns the delay to wait before the next scheduled fetch,
// zero when the last cycle succeeded.
func (e *Engine) pendingBackoff() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.consecutiveErrors == 0 {
		return 0
	}
	return e.nextDelay
}

func (e *Engine) resetBackoffLocked() {
	e.backoff = retry.WithCappedDuration(backoffCap, retry.NewExponential(backoffBase))
	e.nextDelay = 0
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

package bot

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ghnotify/internal/config"
	"ghnotify/internal/model"
	"ghnotify/internal/result"
)

// --- mocks ---

type sentMsg struct {
	ChatID int64
	Text   string
}

type mockAPI struct {
	mu   sync.Mutex
	sent []sentMsg
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		m.mu.Lock()
		m.sent = append(m.sent, sentMsg{ChatID: msg.ChatID, Text: msg.Text})
		m.mu.Unlock()
	}
	return tgbotapi.Message{}, nil
}

func (m *mockAPI) GetUpdatesChan(_ tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(tgbotapi.UpdatesChannel)
}

func (m *mockAPI) StopReceivingUpdates() {}

func (m *mockAPI) lastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].Text
}

type mockSvc struct {
	state        model.PersistedState
	doneIDs      []string
	doneFailure  *result.Failure
	snoozed      map[string]time.Time
	listening    model.ListeningState
}

func newMockSvc() *mockSvc {
	return &mockSvc{
		state:   model.DefaultPersistedState(),
		snoozed: make(map[string]time.Time),
	}
}

func (m *mockSvc) GetState(context.Context) (model.PersistedState, error) {
	return m.state, nil
}

func (m *mockSvc) UpdateState(_ context.Context, fn func(*model.PersistedState)) error {
	fn(&m.state)
	return nil
}

func (m *mockSvc) MarkAsDone(_ context.Context, id string) result.Result[struct{}] {
	if m.doneFailure != nil {
		return result.Err[struct{}](m.doneFailure)
	}
	m.doneIDs = append(m.doneIDs, id)
	return result.Ok(struct{}{})
}

func (m *mockSvc) Snooze(_ context.Context, id string, until time.Time) result.Result[struct{}] {
	m.snoozed[id] = until
	return result.Ok(struct{}{})
}

func (m *mockSvc) ListeningState(context.Context) model.ListeningState {
	return m.listening
}

type threadReply struct {
	ThreadID string
	Body     string
}

type mockThreads struct {
	detail       model.PullRequestDetail
	fetchFailure *result.Failure
	replies      []threadReply
}

func (m *mockThreads) FetchThreads(_ context.Context, _ model.PRRef) result.Result[model.PullRequestDetail] {
	if m.fetchFailure != nil {
		return result.Err[model.PullRequestDetail](m.fetchFailure)
	}
	return result.Ok(m.detail)
}

func (m *mockThreads) ReplyToThread(_ context.Context, threadID, body string) result.Result[model.ThreadComment] {
	m.replies = append(m.replies, threadReply{ThreadID: threadID, Body: body})
	return result.Ok(model.ThreadComment{ID: "C_1", Body: body})
}

type mockPoller struct {
	listening      bool
	startCalls     int
	stopCalls      int
	refreshCalls   int
	refreshFailure *result.Failure
}

func (m *mockPoller) StartListening(context.Context) error {
	m.startCalls++
	m.listening = true
	return nil
}

func (m *mockPoller) StopListening(context.Context) error {
	m.stopCalls++
	m.listening = false
	return nil
}

func (m *mockPoller) Refresh(context.Context) *result.Failure {
	m.refreshCalls++
	return m.refreshFailure
}

func (m *mockPoller) IsListening() bool             { return m.listening }
func (m *mockPoller) LastFailure() *result.Failure  { return nil }
func (m *mockPoller) LastFetchedAt() time.Time      { return time.Time{} }
func (m *mockPoller) ConsecutiveErrors() int        { return 0 }

// --- helpers ---

func newTestBot(svc *mockSvc, threads *mockThreads) (*Bot, *mockAPI) {
	api := &mockAPI{}
	b := &Bot{
		api:         api,
		cfg:         &config.Config{TelegramChatID: 99, PollInterval: time.Minute},
		svc:         svc,
		threads:     threads,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:         func() time.Time { return testNow },
		threadIndex: make(map[int]string),
	}
	return b, api
}

func prNotification(id string) model.Notification {
	return model.Notification{
		ID:     id,
		Unread: true,
		Reason: model.ReasonReviewRequested,
		Subject: model.Subject{
			Type:  model.SubjectPullRequest,
			Title: "Add retry logic",
			URL:   "https://api.github.com/repos/octo/hello/pulls/7",
		},
		Repository: model.Repository{FullName: "octo/hello"},
	}
}

// --- tests ---

func TestHandleInboxRemembersFilter(t *testing.T) {
	svc := newMockSvc()
	svc.state.Notifications = []model.Notification{prNotification("1")}
	b, api := newTestBot(svc, &mockThreads{})

	b.handleInbox(context.Background(), 10, "review_requested")

	if svc.state.LastSelectedFilter != "review_requested" {
		t.Errorf("LastSelectedFilter = %q, want %q", svc.state.LastSelectedFilter, "review_requested")
	}
	if !strings.Contains(api.lastText(), "filter: review_requested") {
		t.Errorf("inbox reply = %q", api.lastText())
	}
}

func TestHandleInboxEchoesRememberedFilter(t *testing.T) {
	svc := newMockSvc()
	svc.state.LastSelectedFilter = "unread"
	b, api := newTestBot(svc, &mockThreads{})

	b.handleInbox(context.Background(), 10, "")

	if !strings.Contains(api.lastText(), `"unread"`) {
		t.Errorf("inbox reply = %q, want remembered filter echoed", api.lastText())
	}
}

func TestHandleInboxRepoFilterPersistsRepository(t *testing.T) {
	svc := newMockSvc()
	b, _ := newTestBot(svc, &mockThreads{})

	b.handleInbox(context.Background(), 10, "repo:octo/hello")

	if svc.state.LastSelectedRepository != "octo/hello" {
		t.Errorf("LastSelectedRepository = %q, want %q", svc.state.LastSelectedRepository, "octo/hello")
	}
}

func TestHandleDone(t *testing.T) {
	svc := newMockSvc()
	b, api := newTestBot(svc, &mockThreads{})

	b.handleDone(context.Background(), 10, "12345")

	if len(svc.doneIDs) != 1 || svc.doneIDs[0] != "12345" {
		t.Errorf("done ids = %v, want [12345]", svc.doneIDs)
	}
	if !strings.Contains(api.lastText(), "marked as done") {
		t.Errorf("reply = %q", api.lastText())
	}
}

func TestHandleDoneSurfacesFailureMessage(t *testing.T) {
	svc := newMockSvc()
	svc.doneFailure = &result.Failure{Code: result.CodeNotFound, Message: "Notification not found"}
	b, api := newTestBot(svc, &mockThreads{})

	b.handleDone(context.Background(), 10, "12345")

	if api.lastText() != "Notification not found" {
		t.Errorf("reply = %q, want failure message", api.lastText())
	}
}

func TestHandleSnooze(t *testing.T) {
	svc := newMockSvc()
	b, api := newTestBot(svc, &mockThreads{})

	b.handleSnooze(context.Background(), 10, "12345 2h")

	want := testNow.Add(2 * time.Hour)
	if got := svc.snoozed["12345"]; !got.Equal(want) {
		t.Errorf("snoozed until %v, want %v", got, want)
	}
	if !strings.Contains(api.lastText(), "snoozed until") {
		t.Errorf("reply = %q", api.lastText())
	}
}

func TestHandleThreadsAndReply(t *testing.T) {
	svc := newMockSvc()
	svc.state.Notifications = []model.Notification{prNotification("1")}
	threads := &mockThreads{
		detail: model.PullRequestDetail{
			Title: "Add retry logic",
			State: "OPEN",
			ReviewThreads: []model.ReviewThread{
				{ID: "T_resolved", Path: "a.go", IsResolved: true},
				{ID: "T_open", Path: "b.go"},
			},
		},
	}
	b, api := newTestBot(svc, threads)
	ctx := context.Background()

	b.handleThreads(ctx, 10, "1")

	// Unresolved threads come first, so #1 must map to the open thread.
	if !strings.Contains(api.lastText(), "#1 b.go") {
		t.Errorf("threads reply = %q, want unresolved thread first", api.lastText())
	}

	b.handleReply(ctx, 10, "1 looks good")

	if len(threads.replies) != 1 {
		t.Fatalf("replies = %v, want one", threads.replies)
	}
	if threads.replies[0].ThreadID != "T_open" || threads.replies[0].Body != "looks good" {
		t.Errorf("reply = %+v, want T_open/looks good", threads.replies[0])
	}
	if !strings.Contains(api.lastText(), "Reply posted") {
		t.Errorf("reply confirmation = %q", api.lastText())
	}
}

func TestHandleThreadsRejectsNonPullRequest(t *testing.T) {
	svc := newMockSvc()
	issue := prNotification("1")
	issue.Subject.Type = model.SubjectIssue
	svc.state.Notifications = []model.Notification{issue}
	b, api := newTestBot(svc, &mockThreads{})

	b.handleThreads(context.Background(), 10, "1")

	if !strings.Contains(api.lastText(), "not a pull request") {
		t.Errorf("reply = %q", api.lastText())
	}
}

func TestHandleReplyWithoutThreadsListed(t *testing.T) {
	b, api := newTestBot(newMockSvc(), &mockThreads{})

	b.handleReply(context.Background(), 10, "3 text")

	if !strings.Contains(api.lastText(), "Run /threads first") {
		t.Errorf("reply = %q", api.lastText())
	}
}

func TestHandleListenStopStatus(t *testing.T) {
	svc := newMockSvc()
	b, api := newTestBot(svc, &mockThreads{})
	p := &mockPoller{}
	b.AttachPoller(p)
	ctx := context.Background()

	b.handleListen(ctx, 10)
	if p.startCalls != 1 {
		t.Errorf("start calls = %d, want 1", p.startCalls)
	}
	if !strings.Contains(api.lastText(), "Polling started") {
		t.Errorf("reply = %q", api.lastText())
	}

	b.handleStatus(ctx, 10)
	if !strings.Contains(api.lastText(), "Polling: active") {
		t.Errorf("status reply = %q", api.lastText())
	}

	b.handleStop(ctx, 10)
	if p.stopCalls != 1 {
		t.Errorf("stop calls = %d, want 1", p.stopCalls)
	}
	if !strings.Contains(api.lastText(), "Polling stopped") {
		t.Errorf("reply = %q", api.lastText())
	}
}

func TestHandleRefresh(t *testing.T) {
	b, api := newTestBot(newMockSvc(), &mockThreads{})
	p := &mockPoller{}
	b.AttachPoller(p)
	ctx := context.Background()

	b.handleRefresh(ctx, 10)
	if p.refreshCalls != 1 {
		t.Errorf("refresh calls = %d, want 1", p.refreshCalls)
	}
	if api.lastText() != "Refreshed." {
		t.Errorf("reply = %q", api.lastText())
	}

	p.refreshFailure = &result.Failure{Code: result.CodeNetwork, Message: "Network error. Check your internet connection."}
	b.handleRefresh(ctx, 10)
	if api.lastText() != "Network error. Check your internet connection." {
		t.Errorf("reply = %q", api.lastText())
	}
}

func TestHandleCallbackDone(t *testing.T) {
	svc := newMockSvc()
	b, _ := newTestBot(svc, &mockThreads{})

	b.handleCallback(context.Background(), &tgbotapi.CallbackQuery{
		ID:      "cb1",
		Data:    "done:12345",
		From:    &tgbotapi.User{ID: 7},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 10}},
	})

	if len(svc.doneIDs) != 1 || svc.doneIDs[0] != "12345" {
		t.Errorf("done ids = %v, want [12345]", svc.doneIDs)
	}
}

func TestHandleCallbackSnoozeUsesDefaultDuration(t *testing.T) {
	svc := newMockSvc()
	b, _ := newTestBot(svc, &mockThreads{})

	b.handleCallback(context.Background(), &tgbotapi.CallbackQuery{
		ID:      "cb2",
		Data:    "snooze:12345",
		From:    &tgbotapi.User{ID: 7},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 10}},
	})

	want := testNow.Add(time.Hour)
	if got := svc.snoozed["12345"]; !got.Equal(want) {
		t.Errorf("snoozed until %v, want %v", got, want)
	}
}

func TestShowNotificationSendsToConfiguredChat(t *testing.T) {
	b, api := newTestBot(newMockSvc(), &mockThreads{})

	if err := b.ShowNotification("GitHub - Mentioned", "Add retry logic"); err != nil {
		t.Fatalf("ShowNotification: %v", err)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.sent) != 1 {
		t.Fatalf("sent = %d messages, want 1", len(api.sent))
	}
	if api.sent[0].ChatID != 99 {
		t.Errorf("chat id = %d, want 99", api.sent[0].ChatID)
	}
	if !strings.Contains(api.sent[0].Text, "GitHub - Mentioned") {
		t.Errorf("text = %q", api.sent[0].Text)
	}
}

func TestShowBatchNotificationTitle(t *testing.T) {
	b, api := newTestBot(newMockSvc(), &mockThreads{})

	if err := b.ShowBatchNotification(5, "3 review requests, 2 mentions"); err != nil {
		t.Fatalf("ShowBatchNotification: %v", err)
	}

	got := api.lastText()
	if !strings.Contains(got, "GitHub: 5 new notifications") {
		t.Errorf("text = %q, want count headline", got)
	}
	if !strings.Contains(got, "3 review requests, 2 mentions") {
		t.Errorf("text = %q, want summary", got)
	}
}

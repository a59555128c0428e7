package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"ghnotify/internal/model"
	"ghnotify/internal/result"
)

type mockGraphQL struct {
	data    json.RawMessage
	failure *result.Failure

	gotQuery string
	gotVars  map[string]any
}

func (m *mockGraphQL) GraphQL(_ context.Context, query string, variables map[string]any) result.Result[json.RawMessage] {
	m.gotQuery = query
	m.gotVars = variables
	if m.failure != nil {
		return result.Err[json.RawMessage](m.failure)
	}
	return result.Ok(m.data)
}

const threadsFixture = `{
  "repository": {
    "pullRequest": {
      "title": "Add retry to uploader",
      "url": "https://github.com/octo/widgets/pull/42",
      "state": "OPEN",
      "reviewThreads": {
        "nodes": [
          {
            "id": "RT_1",
            "isResolved": false,
            "isOutdated": true,
            "path": "cmd/upload/main.go",
            "line": 37,
            "diffSide": "RIGHT",
            "comments": {
              "nodes": [
                {
                  "id": "C_1",
                  "body": "Should this be capped?",
                  "createdAt": "2026-08-29T10:00:00Z",
                  "author": {"login": "reviewer", "avatarUrl": "https://a.example/r.png"},
                  "replyTo": null
                },
                {
                  "id": "C_2",
                  "body": "Done in the next commit.",
                  "createdAt": "2026-08-29T11:00:00Z",
                  "author": null,
                  "replyTo": {"id": "C_1"}
                }
              ]
            }
          }
        ]
      }
    }
  }
}`

func TestFetchThreads(t *testing.T) {
	gw := &mockGraphQL{data: json.RawMessage(threadsFixture)}
	svc := NewThreads(gw, discardLogger())

	res := svc.FetchThreads(context.Background(), model.PRRef{Owner: "octo", Repo: "widgets", Number: 42})
	if !res.IsOk() {
		t.Fatalf("unexpected failure: %v", res.Failure())
	}

	want := model.PullRequestDetail{
		Title: "Add retry to uploader",
		URL:   "https://github.com/octo/widgets/pull/42",
		State: "OPEN",
		ReviewThreads: []model.ReviewThread{
			{
				ID:         "RT_1",
				IsOutdated: true,
				Path:       "cmd/upload/main.go",
				Line:       37,
				DiffSide:   "RIGHT",
				Comments: []model.ThreadComment{
					{
						ID:        "C_1",
						Body:      "Should this be capped?",
						CreatedAt: time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
						Author:    model.Owner{Login: "reviewer", AvatarURL: "https://a.example/r.png"},
					},
					{
						ID:        "C_2",
						Body:      "Done in the next commit.",
						CreatedAt: time.Date(2026, 8, 29, 11, 0, 0, 0, time.UTC),
						Author:    model.GhostAuthor,
						ReplyToID: "C_1",
					},
				},
			},
		},
	}
	if diff := cmp.Diff(want, res.Value()); diff != "" {
		t.Errorf("detail mismatch (-want +got):\n%s", diff)
	}

	wantVars := map[string]any{"owner": "octo", "repo": "widgets", "number": 42}
	if diff := cmp.Diff(wantVars, gw.gotVars); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchThreadsPropagatesFailure(t *testing.T) {
	gw := &mockGraphQL{failure: &result.Failure{Code: result.CodeUpstream, Message: "GraphQL error: nope"}}
	svc := NewThreads(gw, discardLogger())

	res := svc.FetchThreads(context.Background(), model.PRRef{Owner: "o", Repo: "r", Number: 1})
	if res.IsOk() {
		t.Fatal("expected failure")
	}
	if res.Failure().Code != result.CodeUpstream {
		t.Errorf("code = %s, want UPSTREAM", res.Failure().Code)
	}
}

func TestReplyToThread(t *testing.T) {
	reply := `{
	  "addPullRequestReviewComment": {
	    "comment": {
	      "id": "C_9",
	      "body": "Agreed.",
	      "createdAt": "2026-08-31T09:00:00Z",
	      "author": null,
	      "replyTo": {"id": "C_1"}
	    }
	  }
	}`
	gw := &mockGraphQL{data: json.RawMessage(reply)}
	svc := NewThreads(gw, discardLogger())

	res := svc.ReplyToThread(context.Background(), "RT_1", "Agreed.")
	if !res.IsOk() {
		t.Fatalf("unexpected failure: %v", res.Failure())
	}

	want := model.ThreadComment{
		ID:        "C_9",
		Body:      "Agreed.",
		CreatedAt: time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC),
		Author:    model.GhostAuthor,
		ReplyToID: "C_1",
	}
	if diff := cmp.Diff(want, res.Value()); diff != "" {
		t.Errorf("comment mismatch (-want +got):\n%s", diff)
	}

	wantVars := map[string]any{"threadId": "RT_1", "body": "Agreed."}
	if diff := cmp.Diff(wantVars, gw.gotVars); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}
}

package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"ghnotify/internal/model"
	"ghnotify/internal/result"
)

// GraphQLGateway is the subset of the GitHub client the thread service needs.
type GraphQLGateway interface {
	GraphQL(ctx context.Context, query string, variables map[string]any) result.Result[json.RawMessage]
}

const reviewThreadsQuery = `
query PRReviewThreads($owner: String!, $repo: String!, $number: Int!) {
  repository(owner: $owner, name: $repo) {
    pullRequest(number: $number) {
      title
      url
      state
      reviewThreads(first: 100) {
        nodes {
          id
          isResolved
          isOutdated
          path
          line
          diffSide
          comments(first: 100) {
            nodes {
              id
              body
              createdAt
              author {
                login
                avatarUrl
              }
              replyTo {
                id
              }
            }
          }
        }
      }
    }
  }
}`

const replyToThreadMutation = `
mutation ReplyToThread($threadId: ID!, $body: String!) {
  addPullRequestReviewComment(input: { pullRequestReviewThreadId: $threadId, body: $body }) {
    comment {
      id
      body
      createdAt
      author {
        login
        avatarUrl
      }
      replyTo {
        id
      }
    }
  }
}`

// Threads fetches pull request review threads and posts replies via the
// GitHub GraphQL API. Results are live projections, never cached.
type Threads struct {
	gw  GraphQLGateway
	log *slog.Logger
}

// NewThreads creates the thread service.
func NewThreads(gw GraphQLGateway, log *slog.Logger) *Threads {
	return &Threads{gw: gw, log: log}
}

type wireComment struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
	Author    *struct {
		Login     string `json:"login"`
		AvatarURL string `json:"avatarUrl"`
	} `json:"author"`
	ReplyTo *struct {
		ID string `json:"id"`
	} `json:"replyTo"`
}

// FetchThreads returns a pull request with its review threads.
func (t *Threads) FetchThreads(ctx context.Context, ref model.PRRef) result.Result[model.PullRequestDetail] {
	res := t.gw.GraphQL(ctx, reviewThreadsQuery, map[string]any{
		"owner":  ref.Owner,
		"repo":   ref.Repo,
		"number": ref.Number,
	})
	if !res.IsOk() {
		return result.Err[model.PullRequestDetail](res.Failure())
	}

	var data struct {
		Repository struct {
			PullRequest struct {
				Title         string `json:"title"`
				URL           string `json:"url"`
				State         string `json:"state"`
				ReviewThreads struct {
					Nodes []struct {
						ID         string `json:"id"`
						IsResolved bool   `json:"isResolved"`
						IsOutdated bool   `json:"isOutdated"`
						Path       string `json:"path"`
						Line       int    `json:"line"`
						DiffSide   string `json:"diffSide"`
						Comments   struct {
							Nodes []wireComment `json:"nodes"`
						} `json:"comments"`
					} `json:"nodes"`
				} `json:"reviewThreads"`
			} `json:"pullRequest"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(res.Value(), &data); err != nil {
		t.log.Error("decode review threads", "error", err)
		return result.Err[model.PullRequestDetail](&result.Failure{
			Code:    result.CodeUpstream,
			Message: "GitHub GraphQL API returned malformed JSON",
			Cause:   err,
		})
	}

	pr := data.Repository.PullRequest
	detail := model.PullRequestDetail{
		Title: pr.Title,
		URL:   pr.URL,
		State: pr.State,
	}
	for _, node := range pr.ReviewThreads.Nodes {
		thread := model.ReviewThread{
			ID:         node.ID,
			IsResolved: node.IsResolved,
			IsOutdated: node.IsOutdated,
			Path:       node.Path,
			Line:       node.Line,
			DiffSide:   node.DiffSide,
		}
		for _, c := range node.Comments.Nodes {
			thread.Comments = append(thread.Comments, transformComment(c))
		}
		detail.ReviewThreads = append(detail.ReviewThreads, thread)
	}

	return result.Ok(detail)
}

// ReplyToThread posts a reply to an existing review thread.
func (t *Threads) ReplyToThread(ctx context.Context, threadID, body string) result.Result[model.ThreadComment] {
	res := t.gw.GraphQL(ctx, replyToThreadMutation, map[string]any{
		"threadId": threadID,
		"body":     body,
	})
	if !res.IsOk() {
		return result.Err[model.ThreadComment](res.Failure())
	}

	var data struct {
		AddPullRequestReviewComment struct {
			Comment wireComment `json:"comment"`
		} `json:"addPullRequestReviewComment"`
	}
	if err := json.Unmarshal(res.Value(), &data); err != nil {
		t.log.Error("decode reply", "error", err)
		return result.Err[model.ThreadComment](&result.Failure{
			Code:    result.CodeUpstream,
			Message: "GitHub GraphQL API returned malformed JSON",
			Cause:   err,
		})
	}

	return result.Ok(transformComment(data.AddPullRequestReviewComment.Comment))
}

// transformComment maps a wire comment to the model, substituting the ghost
// author when the account no longer exists.
func transformComment(c wireComment) model.ThreadComment {
	createdAt, _ := time.Parse(time.RFC3339, c.CreatedAt)
	comment := model.ThreadComment{
		ID:        c.ID,
		Body:      c.Body,
		CreatedAt: createdAt,
		Author:    model.GhostAuthor,
	}
	if c.Author != nil {
		comment.Author = model.Owner{Login: c.Author.Login, AvatarURL: c.Author.AvatarURL}
	}
	if c.ReplyTo != nil {
		comment.ReplyToID = c.ReplyTo.ID
	}
	return comment
}

package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

const issueJSON = `{
	"number": 12,
	"title": "Crash on save",
	"body": "Saving a file crashes the editor.",
	"state": "open",
	"html_url": "https://github.com/octo/hello/issues/12",
	"user": {"login": "mona"},
	"labels": [{"name": "bug"}, {"name": ""}],
	"comments": 3,
	"created_at": "2024-05-01T10:00:00Z",
	"updated_at": "2024-05-02T10:00:00Z"
}`

const commentsJSON = `[
	{"id": 1, "body": "same here", "user": {"login": "a"}, "created_at": "2024-05-01T11:00:00Z"},
	{"id": 2, "body": "me too", "user": {"login": "b"}, "created_at": "2024-05-01T12:00:00Z"},
	{"id": 3, "body": "fixed?", "user": null, "created_at": "2024-05-01T13:00:00Z"}
]`

func TestFetchIssue(t *testing.T) {
	var gotAuth, gotPerPage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/octo/hello/issues/12":
			gotAuth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(issueJSON))
		case "/repos/octo/hello/issues/12/comments":
			gotPerPage = r.URL.Query().Get("per_page")
			_, _ = w.Write([]byte(commentsJSON))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewGitHubClient(srv.URL, "tok", 2, zerolog.Nop())
	ticket, err := c.FetchIssue(context.Background(), "octo", "hello", 12)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotAuth != "Bearer tok" || gotPerPage != "2" {
		t.Fatalf("unexpected request: auth=%q per_page=%q", gotAuth, gotPerPage)
	}
	if ticket.Number != 12 || ticket.Title != "Crash on save" || ticket.Author != "mona" || ticket.State != "open" {
		t.Fatalf("unexpected ticket: %+v", ticket)
	}
	if len(ticket.Labels) != 1 || ticket.Labels[0] != "bug" {
		t.Fatalf("unexpected labels: %v", ticket.Labels)
	}
	if len(ticket.Comments) != 2 || ticket.Comments[0].Author != "a" || ticket.CommentCount != 3 {
		t.Fatalf("unexpected comments: %+v", ticket.Comments)
	}
	if ticket.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be parsed")
	}
}

func TestFetchIssueToleratesCommentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/octo/hello/issues/12" {
			_, _ = w.Write([]byte(issueJSON))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ticket, err := NewGitHubClient(srv.URL, "", 0, zerolog.Nop()).FetchIssue(context.Background(), "octo", "hello", 12)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(ticket.Comments) != 0 || ticket.TotalComments() != 3 {
		t.Fatalf("expected ticket without fetched comments, got %+v", ticket.Comments)
	}
}

func TestFetchIssueNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewGitHubClient(srv.URL, "", 0, zerolog.Nop()).FetchIssue(context.Background(), "octo", "hello", 99)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddLabels(t *testing.T) {
	var got map[string][]string
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		if r.URL.Path != "/repos/octo/hello/issues/12/labels" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewGitHubClient(srv.URL, "tok", 0, zerolog.Nop())
	if err := c.AddLabels(context.Background(), "octo", "hello", 12, []string{"bug", "priority:high"}); err != nil {
		t.Fatalf("add labels: %v", err)
	}
	if method != http.MethodPost || len(got["labels"]) != 2 || got["labels"][1] != "priority:high" {
		t.Fatalf("unexpected request: %s %v", method, got)
	}
}

func TestAddLabelsEmptyIsNoop(t *testing.T) {
	c := NewGitHubClient("http://127.0.0.1:1", "", 0, zerolog.Nop())
	if err := c.AddLabels(context.Background(), "octo", "hello", 1, nil); err != nil {
		t.Fatalf("expected no request for empty labels, got %v", err)
	}
}

func TestListIssuesPagesAndSkipsPullRequests(t *testing.T) {
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/octo/hello/issues" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("state") != "closed" || q.Get("per_page") != "3" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		pages = append(pages, q.Get("page"))
		switch q.Get("page") {
		case "1":
			_, _ = w.Write([]byte(`[
				{"number": 9, "title": "Crash", "state": "closed", "comments": 2},
				{"number": 8, "title": "Add retries", "state": "closed", "pull_request": {"url": "https://api.github.com/repos/octo/hello/pulls/8"}},
				{"number": 7, "title": "Docs typo", "state": "closed", "labels": [{"name": "documentation"}]}
			]`))
		case "2":
			_, _ = w.Write([]byte(`[
				{"number": 6, "title": "Bump deps", "state": "closed", "pull_request": {}},
				{"number": 5, "title": "Slow start", "state": "closed", "pull_request": null},
				{"number": 4, "title": "Question", "state": "closed"}
			]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	c := NewGitHubClient(srv.URL, "", 0, zerolog.Nop())
	tickets, err := c.ListIssues(context.Background(), "octo", "hello", "Closed", 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tickets) != 3 || tickets[0].Number != 9 || tickets[1].Number != 7 || tickets[2].Number != 5 {
		t.Fatalf("unexpected tickets: %+v", tickets)
	}
	if tickets[0].CommentCount != 2 || len(tickets[1].Labels) != 1 {
		t.Fatalf("issue fields not mapped: %+v", tickets)
	}
	if len(pages) != 2 {
		t.Fatalf("expected two pages, got %v", pages)
	}
}

func TestListIssuesStopsOnShortPage(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("state") != "open" || r.URL.Query().Get("per_page") != "50" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[{"number": 1, "title": "Only one"}]`))
	}))
	defer srv.Close()

	tickets, err := NewGitHubClient(srv.URL, "", 0, zerolog.Nop()).ListIssues(context.Background(), "octo", "hello", "", 0)
	if err != nil || len(tickets) != 1 || calls != 1 {
		t.Fatalf("unexpected result: %d tickets, %d calls, err %v", len(tickets), calls, err)
	}
}

func TestListIssuesRejectsState(t *testing.T) {
	c := NewGitHubClient("http://127.0.0.1:0", "", 0, zerolog.Nop())
	if _, err := c.ListIssues(context.Background(), "octo", "hello", "merged", 10); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

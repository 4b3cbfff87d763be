package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/issuelens/backend/internal/models"
)

// GitHubClient reads issues through the GitHub REST API. Requests are spaced by MinInterval.
type GitHubClient struct {
	BaseURL     string
	Token       string
	UserAgent   string
	MaxComments int
	MinInterval time.Duration
	Client      *http.Client
	Logger      zerolog.Logger

	mu        sync.Mutex
	lastReqAt time.Time
}

const maxListPages = 20

type githubUser struct {
	Login string `json:"login"`
}

type githubLabel struct {
	Name string `json:"name"`
}

type githubIssue struct {
	Number    int           `json:"number"`
	Title     string        `json:"title"`
	Body      *string       `json:"body"`
	State     string        `json:"state"`
	HTMLURL   string        `json:"html_url"`
	User      *githubUser   `json:"user"`
	Labels    []githubLabel `json:"labels"`
	Comments  int           `json:"comments"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`

	PullRequest json.RawMessage `json:"pull_request"`
}

type githubComment struct {
	ID        int64       `json:"id"`
	Body      string      `json:"body"`
	User      *githubUser `json:"user"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func NewGitHubClient(baseURL, token string, maxComments int, logger zerolog.Logger) *GitHubClient {
	return &GitHubClient{
		BaseURL:     baseURL,
		Token:       token,
		MaxComments: maxComments,
		Logger:      logger,
	}
}

func (g *GitHubClient) defaults() {
	if g.Client == nil {
		g.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if g.BaseURL == "" {
		g.BaseURL = "https://api.github.com"
	}
	g.BaseURL = strings.TrimRight(g.BaseURL, "/")
	if g.UserAgent == "" {
		g.UserAgent = "issuelens"
	}
	if g.MaxComments <= 0 {
		g.MaxComments = 30
	}
}

// FetchIssue loads an issue and up to MaxComments of its comments. A failed comment request
// is logged and the issue is returned without comments.
func (g *GitHubClient) FetchIssue(ctx context.Context, owner, repo string, number int) (models.Ticket, error) {
	g.defaults()

	var issue githubIssue
	path := fmt.Sprintf("/repos/%s/%s/issues/%d", owner, repo, number)
	if err := g.do(ctx, http.MethodGet, path, nil, &issue); err != nil {
		return models.Ticket{}, err
	}
	ticket := toTicket(issue)

	if issue.Comments > 0 {
		var comments []githubComment
		cpath := fmt.Sprintf("%s/comments?per_page=%d", path, g.MaxComments)
		if err := g.do(ctx, http.MethodGet, cpath, nil, &comments); err != nil {
			g.Logger.Warn().Err(err).Str("issue", Ref(owner, repo, number)).Msg("failed to fetch comments")
		} else {
			ticket.Comments = toComments(comments, g.MaxComments)
		}
	}
	return ticket, nil
}

// ListIssues pages through the repository issues until limit tickets are collected or the
// listing ends. The issues endpoint also returns pull requests; those are skipped.
func (g *GitHubClient) ListIssues(ctx context.Context, owner, repo, state string, limit int) ([]models.Ticket, error) {
	g.defaults()
	state, err := NormalizeState(state)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultListMax
	}
	perPage := limit
	if perPage > 100 {
		perPage = 100
	}

	out := make([]models.Ticket, 0, limit)
	for page := 1; page <= maxListPages && len(out) < limit; page++ {
		var issues []githubIssue
		path := fmt.Sprintf("/repos/%s/%s/issues?state=%s&per_page=%d&page=%d", owner, repo, state, perPage, page)
		if err := g.do(ctx, http.MethodGet, path, nil, &issues); err != nil {
			return nil, err
		}
		for _, issue := range issues {
			if len(issue.PullRequest) > 0 && string(issue.PullRequest) != "null" {
				continue
			}
			out = append(out, toTicket(issue))
			if len(out) == limit {
				break
			}
		}
		if len(issues) < perPage {
			break
		}
	}

	g.Logger.Debug().
		Str("repo", owner+"/"+repo).
		Str("state", state).
		Int("issues", len(out)).
		Msg("listed issues")
	return out, nil
}

// AddLabels appends labels to an issue. Labels that do not exist yet are created by GitHub.
func (g *GitHubClient) AddLabels(ctx context.Context, owner, repo string, number int, labels []string) error {
	g.defaults()
	if len(labels) == 0 {
		return nil
	}
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/labels", owner, repo, number)
	return g.do(ctx, http.MethodPost, path, map[string][]string{"labels": labels}, nil)
}

func (g *GitHubClient) wait(ctx context.Context) error {
	g.mu.Lock()
	sleepFor := time.Until(g.lastReqAt.Add(g.MinInterval))
	if sleepFor > 0 {
		g.mu.Unlock()
		select {
		case <-time.After(sleepFor):
		case <-ctx.Done():
			return ctx.Err()
		}
		g.mu.Lock()
	}
	g.lastReqAt = time.Now()
	g.mu.Unlock()
	return nil
}

func (g *GitHubClient) do(ctx context.Context, method, path string, in any, out any) error {
	if err := g.wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", g.UserAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(g.Token) != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("github http error: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func toTicket(issue githubIssue) models.Ticket {
	t := models.Ticket{
		Number:       issue.Number,
		Title:        issue.Title,
		State:        issue.State,
		URL:          issue.HTMLURL,
		CreatedAt:    issue.CreatedAt,
		UpdatedAt:    issue.UpdatedAt,
		Labels:       make([]string, 0, len(issue.Labels)),
		CommentCount: issue.Comments,
	}
	if issue.Body != nil {
		t.Body = *issue.Body
	}
	if issue.User != nil {
		t.Author = issue.User.Login
	}
	for _, l := range issue.Labels {
		if l.Name != "" {
			t.Labels = append(t.Labels, l.Name)
		}
	}
	return t
}

func toComments(items []githubComment, limit int) []models.Comment {
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]models.Comment, 0, len(items))
	for _, c := range items {
		cm := models.Comment{
			ID:        c.ID,
			Body:      c.Body,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		}
		if c.User != nil {
			cm.Author = c.User.Login
		}
		out = append(out, cm)
	}
	return out
}
